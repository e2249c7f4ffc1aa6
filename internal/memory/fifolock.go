package memory

import "sync"

// fifoLock is a ticket lock: acquisitions are granted strictly in the order
// they were requested, so concurrent Grow/access calls never starve a
// waiter.
type fifoLock struct {
	mu        sync.Mutex
	cond      *sync.Cond
	nextTicket uint64
	serving    uint64
}

func (f *fifoLock) Lock() {
	f.mu.Lock()
	if f.cond == nil {
		f.cond = sync.NewCond(&f.mu)
	}
	my := f.nextTicket
	f.nextTicket++
	for my != f.serving {
		f.cond.Wait()
	}
	f.mu.Unlock()
}

func (f *fifoLock) Unlock() {
	f.mu.Lock()
	f.serving++
	f.cond.Broadcast()
	f.mu.Unlock()
}
