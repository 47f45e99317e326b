package flow

import "sync"

// ticketLock serializes all engine work per ticket. One goroutine at a
// time may run, resume or stop the ticket's execution; locks are cheap
// and kept for the process lifetime.
type ticketLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newTicketLock() *ticketLock {
	return &ticketLock{locks: make(map[string]*sync.Mutex)}
}

func (t *ticketLock) lock(ticketID string) func() {
	t.mu.Lock()

	lock, ok := t.locks[ticketID]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[ticketID] = lock
	}
	t.mu.Unlock()

	lock.Lock()

	return lock.Unlock
}
