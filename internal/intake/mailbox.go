package intake

import (
	"sync"
	"sync/atomic"
)

// mailbox serializes work for one sender. Jobs run in enqueue order on a
// single goroutine, so two turns for the same sender can never interleave
// their read-modify-write of the session. Different senders get different
// mailboxes and run fully in parallel.
type mailbox struct {
	mu      sync.Mutex
	queue   []func()
	running bool

	// onIdle fires after the drain goroutine empties the queue, so the
	// engine can prune the mailbox instead of holding one per sender ever
	// seen.
	onIdle func()

	// cancelPending is set the moment a cancel command is accepted, before
	// it reaches the front of the queue. In-flight turns check it before
	// committing so a late AI result is discarded instead of applied.
	cancelPending atomic.Bool
}

// enqueue appends a job and starts the drain goroutine when idle. Callers
// must hold the engine lock so enqueueing cannot race mailbox pruning.
func (m *mailbox) enqueue(job func(), wg *sync.WaitGroup) {
	m.mu.Lock()
	m.queue = append(m.queue, job)
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			m.mu.Lock()
			if len(m.queue) == 0 {
				m.running = false
				m.mu.Unlock()
				if m.onIdle != nil {
					m.onIdle()
				}
				return
			}
			next := m.queue[0]
			m.queue = m.queue[1:]
			m.mu.Unlock()
			next()
		}
	}()
}

// idle reports whether the mailbox has no queued work and no drain running.
func (m *mailbox) idle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.running && len(m.queue) == 0
}
