package browser

import "sync"

// EventQueue is an unbounded FIFO in front of a channel. Engine listeners
// push into it without ever blocking; a pump goroutine feeds C().
type EventQueue struct {
	mu     sync.Mutex
	items  []queued
	gen    uint64
	closed bool

	signal chan struct{}
	reset  chan struct{}
	done   chan struct{}
	out    chan Event
	once   sync.Once
}

// NewEventQueue creates a queue and starts its pump.
func NewEventQueue() *EventQueue {
	q := &EventQueue{
		signal: make(chan struct{}, 1),
		reset:  make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan Event),
	}
	go q.pump()
	return q
}

// Push appends an event. Pushing to a closed queue is a no-op.
func (q *EventQueue) Push(ev Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, queued{ev: ev, gen: q.gen})
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// C returns the delivery channel. It is closed after Close.
func (q *EventQueue) C() <-chan Event {
	return q.out
}

// Len returns the number of events not yet handed to the pump.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Reset discards every event not yet received from C(), including one the
// pump already holds. Events pushed afterwards are delivered normally.
func (q *EventQueue) Reset() {
	q.mu.Lock()
	q.gen++
	q.items = nil
	q.mu.Unlock()

	select {
	case q.reset <- struct{}{}:
	default:
	}
}

// Close stops delivery and discards anything still queued.
func (q *EventQueue) Close() {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.items = nil
		q.mu.Unlock()
		close(q.done)
	})
}

func (q *EventQueue) pump() {
	defer close(q.out)
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			select {
			case <-q.signal:
			case <-q.reset:
			case <-q.done:
				return
			}
			continue
		}
		it := q.items[0]
		q.items[0] = queued{}
		q.items = q.items[1:]
		q.mu.Unlock()

	send:
		for {
			select {
			case q.out <- it.ev:
				break send
			case <-q.reset:
				if q.stale(it) {
					break send
				}
			case <-q.done:
				return
			}
		}
	}
}

func (q *EventQueue) stale(it queued) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return it.gen != q.gen
}

type queued struct {
	ev  Event
	gen uint64
}
