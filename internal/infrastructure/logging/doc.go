// Package logging is the structured logging layer for the Hearth
// runtime, a thin wrapper over log/slog.
//
// Every record carries the service name and build version as default
// fields. Output format (json or text), destination (stdout or
// stderr) and minimum level come from the logging section of the
// config file:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("model loaded", "items", n)
//
//	rulesLog := logger.With("component", "rules")
//
// Keep secrets out of log records. Broker passwords, tokens and JWT
// secrets must never appear, even at debug level.
package logging
