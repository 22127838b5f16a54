// Package logging provides slog-based structured logging for shuttle with
// console and JSON output formats, standardized attribute keys, and helpers
// for component-scoped loggers.
package logging
