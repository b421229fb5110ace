package model

import (
	"bytes"
	"runtime"
	"strconv"
)

var goroutinePrefix = []byte("goroutine ")

// CurrentThreadID returns the id of the calling goroutine as an opaque string.
func CurrentThreadID() string {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	if _, err := strconv.ParseUint(string(b), 10, 64); err != nil {
		return "0"
	}
	return string(b)
}
