// Package logger makes the loggers of hcpctl commands.
package logger

import (
	"fmt"
	"io"
	"log"
)

// Null writes nowhere.
func Null() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// For returns a logger writing to w with the command name as a prefix of each message.
func For(w io.Writer, command string) *log.Logger {
	return log.New(w, fmt.Sprintf("[%s] ", command), log.LstdFlags|log.Lmsgprefix)
}
