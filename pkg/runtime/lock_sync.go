//go:build mqsync

package runtime

import "sync"

// envLock guards environment cells with a reader/writer lock so a second
// goroutine (an attached debugger, typically) can inspect state while
// evaluation is paused.
type envLock struct {
	mu sync.RWMutex
}

func (l *envLock) lock()    { l.mu.Lock() }
func (l *envLock) unlock()  { l.mu.Unlock() }
func (l *envLock) rlock()   { l.mu.RLock() }
func (l *envLock) runlock() { l.mu.RUnlock() }
