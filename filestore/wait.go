package filestore

import (
	"sync"
	"time"
)

// waitTimeout blocks on cond (whose Locker must already be held by
// the caller) until either Broadcast/Signal wakes it or timeout
// elapses, returning true if it woke because of the timeout rather
// than a real signal. timeout < 0 blocks indefinitely; timeout == 0
// is a non-blocking poll that reports a timeout immediately without
// ever calling cond.Wait, matching the "negative = infinite, zero =
// non-blocking" convention the original store's callers rely on.
//
// sync.Cond has no built-in deadline, unlike the condition variable
// the original store used. The idiomatic Go way to add one is a timer
// goroutine that grabs the same lock and broadcasts once, the
// approach this function uses: the timer's own broadcast is
// indistinguishable from a real one to cond.Wait, so this function
// tags the wakeup by flipping a bool under the lock before
// broadcasting, and the caller checks that bool after Wait returns.
func waitTimeout(cond *sync.Cond, timeout time.Duration) (timedOut bool) {
	if timeout == 0 {
		return true
	}
	if timeout < 0 {
		cond.Wait()
		return false
	}

	fired := false
	timer := time.AfterFunc(timeout, func() {
		cond.L.Lock()
		fired = true
		cond.L.Unlock()
		cond.Broadcast()
	})
	cond.Wait()
	timer.Stop()
	return fired
}
