// Package logger provides structured logging for the build tool using zerolog.
//
// Console output goes to stderr by default so task summaries and listings on
// stdout stay machine-readable.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "console"
//	  components:
//	    scheduler: "debug"
//
// # Usage
//
// Component loggers are registered once at startup and fetched by name:
//
//	logger.RegisterComponents(base, cfg.Components, logger.Components...)
//	log := logger.Get("scheduler")
//	log.Info("task finished", logger.Fields(logger.FieldTask, "styles"))
package logger
