//go:build !mqsync

package runtime

// envLock is a no-op in the default single-owner build: one engine is
// confined to one goroutine, so environment cells need no
// synchronization. Build with -tags mqsync for the locked discipline.
type envLock struct{}

func (envLock) lock()    {}
func (envLock) unlock()  {}
func (envLock) rlock()   {}
func (envLock) runlock() {}
