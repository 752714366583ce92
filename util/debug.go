package util

import (
	"runtime/debug"
)

// Stack returns the stack trace of the current goroutine
func Stack() string {
	return string(debug.Stack())
}
