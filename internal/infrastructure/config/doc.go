// Package config provides 12-factor configuration management for the bridge.
//
// Configuration is loaded from environment variables with sensible defaults,
// then optionally overlaid with a yaml, toml or json file.
//
// Configuration Sections:
//   - Backend: websocket URL, reconnect backoff, launch command
//   - Session: status poll interval, terminal reset delay, auto-queue
//   - Export: fixed encoder parameters
//   - Paths: data, temp and workflow directories
//   - Server: HTTP control surface
//   - Logging: log level and output format
//
// Example Usage:
//
//	cfg, err := config.LoadFile("bridge.yaml")
//	if err != nil {
//		cfg = config.Default()
//	}
//
// Environment Variables:
//   - BACKEND_URL, BACKEND_RECONNECT_INTERVAL, BACKEND_LAUNCH_COMMAND
//   - STATUS_POLL_INTERVAL, SESSION_RESET_DELAY, AUTO_QUEUE
//   - DATA_DIR, TEMP_DIR, WORKFLOW_DIR, DEFAULT_WORKFLOW
//   - PORT, HOST, LOG_LEVEL, LOG_DEV
package config
