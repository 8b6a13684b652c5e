package memory

import "sync"

// mailbox runs queued callbacks one at a time on its own goroutine, preserving enqueue order.
type mailbox struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	stop    chan struct{}
	once    sync.Once
}

func newMailbox() *mailbox {
	m := &mailbox{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *mailbox) post(fn func()) {
	m.mu.Lock()
	m.pending = append(m.pending, fn)
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *mailbox) run() {
	for {
		select {
		case <-m.stop:
			return
		case <-m.wake:
		}
		for {
			m.mu.Lock()
			batch := m.pending
			m.pending = nil
			m.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, fn := range batch {
				select {
				case <-m.stop:
					return
				default:
				}
				fn()
			}
		}
	}
}

// close drops undelivered callbacks and stops the goroutine.
func (m *mailbox) close() {
	m.once.Do(func() { close(m.stop) })
}
