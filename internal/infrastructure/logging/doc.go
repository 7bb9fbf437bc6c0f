// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for humans
//
// Components take a *Logger and fall back to NewNop when given nil, so
// library code never has to nil-check before logging.
//
// Example Usage:
//
//	logger := logging.NewDefault().Named("transport")
//	logger.Info("connected", zap.String("url", url))
//	logger.Warn("send dropped", zap.Error(err))
package logging
