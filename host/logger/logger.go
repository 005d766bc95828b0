// Package logger prints host tool messages with a common prefix
package logger

import "log"

// Quiet suppresses Info output; Error is always printed
var Quiet bool

// Info prints a message prefixed with "clkm: " unless Quiet is set
func Info(format string, args ...interface{}) {
	if Quiet {
		return
	}
	log.Printf("clkm: "+format, args...)
}

// Error prints a message prefixed with "clkm: "
func Error(format string, args ...interface{}) {
	log.Printf("clkm: "+format, args...)
}
