package recognition

import (
	"sync"

	"github.com/rs/zerolog"
)

// notifier delivers callbacks one at a time, in post order, on its own
// goroutine. Posting never blocks.
type notifier struct {
	log zerolog.Logger

	mu      sync.Mutex
	queue   []func()
	closed  bool
	started bool

	wake chan struct{}
	done chan struct{}
}

func newNotifier(log zerolog.Logger) *notifier {
	return &notifier{
		log:  log,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (n *notifier) start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return
	}
	n.started = true
	go n.run()
}

// post queues fn. Calls after close are dropped.
func (n *notifier) post(fn func()) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.queue = append(n.queue, fn)
	n.mu.Unlock()
	n.signal()
}

// close stops accepting callbacks; queued ones are still delivered.
func (n *notifier) close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.mu.Unlock()
	n.signal()
}

func (n *notifier) signal() {
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) run() {
	defer close(n.done)
	for {
		n.mu.Lock()
		batch := n.queue
		n.queue = nil
		closed := n.closed
		n.mu.Unlock()

		if len(batch) == 0 {
			if closed {
				return
			}
			<-n.wake
			continue
		}
		for _, fn := range batch {
			n.invoke(fn)
		}
	}
}

func (n *notifier) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error().Interface("panic", r).Msg("Session callback panicked")
		}
	}()
	fn()
}
