package snatchlib

import (
	"runtime/debug"
	"sync"

	"github.com/snatchdl/snatch/pkg/logger"
)

// safeGo runs fn in a goroutine with panic recovery.
// If wg is non-nil, it is decremented on completion (normal or panic).
// Recovered panics are logged with stack traces and, if onPanic is
// non-nil, forwarded to it.
func safeGo(l logger.Logger, wg *sync.WaitGroup, context string, onPanic func(r interface{}), fn func()) {
	go func() {
		if wg != nil {
			defer wg.Done()
		}
		defer func() {
			if r := recover(); r != nil {
				if l != nil {
					l.Error("panic [%s]: %v\n%s", context, r, debug.Stack())
				}
				if onPanic != nil {
					onPanic(r)
				}
			}
		}()
		fn()
	}()
}
