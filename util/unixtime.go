package util

import "time"

// Bitmessage works in second-based unix time throughout: expiry stamps,
// address last-seen times and the iv cache all use it.
const (
	Minute = 60
	Hour   = 60 * Minute
	Day    = 24 * Hour
)

// Now returns the current second-based unix time.
func Now() int64 {
	return time.Now().Unix()
}

// NowShifted returns Now() + shiftSeconds. NowShifted(-5*Minute) reads
// better than the arithmetic at the call site.
func NowShifted(shiftSeconds int64) int64 {
	return time.Now().Unix() + shiftSeconds
}
