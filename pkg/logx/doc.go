// Package logx is chatmate's structured logging.
//
// Logger is a small value type over zerolog: console output is human readable
// with a short caller, file output is JSON lines. A Service owns the sinks and
// can be re-applied at runtime when the config changes.
package logx
