package heapdb

import "log"

// Debug turns on DPrintf tracing. Off by default; tests may flip it when
// chasing a page layout or locking problem.
var Debug = false

func DPrintf(format string, a ...any) {
	if Debug {
		log.Printf(format, a...)
	}
}
