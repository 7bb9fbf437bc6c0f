// Package launcher starts the local generation backend when the
// transport cannot reach it. The process runs under a pseudo-terminal so
// its output arrives line-buffered and is forwarded to the logger.
package launcher
