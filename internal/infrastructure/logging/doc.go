// Package logging builds the bridge's log/slog logger.
//
// Output is JSON or text on stdout, stderr or a lumberjack-rotated file,
// filtered by level and stamped with service and version on every entry.
// Components take a narrow Debug/Info/Warn/Error interface, which *Logger
// satisfies.
//
//	logging:
//	  level: info
//	  format: json
//	  output: file
//	  file:
//	    path: ./logs/klf200bridge.log
//	    max_size: 10
//
// Passwords and broker credentials must never be passed as attributes.
package logging
