package task

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrWaiterRequired indicates a notifier cannot be constructed without a waiter.
var ErrWaiterRequired = errors.New("notifier waiter is required")

// Waiter blocks until a task-added notification arrives or ctx ends.
type Waiter interface {
	WaitForNotification(ctx context.Context) error
}

// Notifier fans task-added notifications out to idle workers.
type Notifier interface {
	Subscribe() (func(), <-chan struct{})
	StopAll()
}

// NotifierOptions configure DefaultNotifier.
type NotifierOptions struct {
	Waiter Waiter
	// WaitWindow bounds one WaitForNotification call (default 1m). Subscribers
	// are woken at the end of every window so they re-check delayed retries.
	WaitWindow time.Duration
	// Backoff is the pause after a failed wait (default 250ms).
	Backoff time.Duration
}

// DefaultNotifier shares one listener goroutine among all subscribers. The
// listener starts with the first subscriber and stops with the last.
type DefaultNotifier struct {
	opts NotifierOptions

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan struct{}
	stop   context.CancelFunc
}

// NewNotifier constructs a DefaultNotifier.
func NewNotifier(opts NotifierOptions) (*DefaultNotifier, error) {
	if opts.Waiter == nil {
		return nil, ErrWaiterRequired
	}
	if opts.WaitWindow <= 0 {
		opts.WaitWindow = time.Minute
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 250 * time.Millisecond
	}
	return &DefaultNotifier{opts: opts, subs: map[uint64]chan struct{}{}}, nil
}

// Subscribe returns a wake channel holding at most one pending signal, and a
// func that unsubscribes and closes it. Calling the func twice is harmless.
func (n *DefaultNotifier) Subscribe() (func(), <-chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	ch := make(chan struct{}, 1)
	n.subs[id] = ch
	if n.stop == nil {
		ctx, cancel := context.WithCancel(context.Background())
		n.stop = cancel
		go n.listen(ctx)
	}

	var once sync.Once
	return func() { once.Do(func() { n.remove(id) }) }, ch
}

func (n *DefaultNotifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch, ok := n.subs[id]
	if !ok {
		return
	}
	delete(n.subs, id)
	closeDrained(ch)
	if len(n.subs) == 0 {
		n.stopListenerLocked()
	}
}

// StopAll stops the listener and closes every subscriber channel.
func (n *DefaultNotifier) StopAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopListenerLocked()
	for id, ch := range n.subs {
		closeDrained(ch)
		delete(n.subs, id)
	}
}

func (n *DefaultNotifier) stopListenerLocked() {
	if n.stop != nil {
		n.stop()
		n.stop = nil
	}
}

func (n *DefaultNotifier) listen(ctx context.Context) {
	for ctx.Err() == nil {
		waitCtx, cancel := context.WithTimeout(ctx, n.opts.WaitWindow)
		err := n.opts.Waiter.WaitForNotification(waitCtx)
		cancel()
		if ctx.Err() != nil {
			return
		}
		n.wakeAll()

		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			pause := time.NewTimer(n.opts.Backoff)
			select {
			case <-ctx.Done():
				pause.Stop()
				return
			case <-pause.C:
			}
		}
	}
}

// wakeAll signals every subscriber without blocking; a subscriber that has
// not consumed the previous signal keeps just that one.
func (n *DefaultNotifier) wakeAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// closeDrained discards a pending signal first so receivers observe the close
// on their next read.
func closeDrained(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
	close(ch)
}

var _ Notifier = (*DefaultNotifier)(nil)
