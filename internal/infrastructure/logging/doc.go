// Package logging provides structured logging for hadevice.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the binary and its packages.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Per-component child loggers
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("device").Info("announced", "entities", 3)
//
// Never log broker passwords or the InfluxDB token.
package logging
