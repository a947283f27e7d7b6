// Package coord provides the single coordination context on which all
// device-list mutations and hardware-change callbacks run.
package coord

import (
	"errors"
	"sync"

	list "github.com/bahlo/generic-list-go"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by Do once the loop has stopped.
var ErrClosed = errors.New("coordination loop closed")

// Loop runs submitted functions one at a time, in submission order, on a
// single goroutine. The mailbox is unbounded so Post never blocks the
// platform thread delivering a notification.
type Loop struct {
	log zerolog.Logger

	mu      sync.Mutex
	mailbox *list.List[func()]
	closed  bool

	wake chan struct{}
	done chan struct{}
}

// New starts a loop.
func New(log zerolog.Logger) *Loop {
	l := &Loop{
		log:     log,
		mailbox: list.New[func()](),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

// Post enqueues fn and returns immediately. Work posted after Close is
// dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.log.Debug().Msg("Dropping work posted after close")
		return
	}
	l.mailbox.PushBack(fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do runs fn on the loop and waits for it to return. It must not be
// called from a function already running on the loop.
func (l *Loop) Do(fn func()) error {
	done := make(chan struct{})
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.mailbox.PushBack(func() {
		defer close(done)
		fn()
	})
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}

	select {
	case <-done:
		return nil
	case <-l.done:
		// The loop drains everything queued before it stopped, so done
		// may still have been closed.
		select {
		case <-done:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Close stops accepting work, runs what is already queued and waits for
// the loop goroutine to exit.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.closed = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for l.mailbox.Len() > 0 {
			fn := l.mailbox.Remove(l.mailbox.Front())
			l.mu.Unlock()
			l.exec(fn)
			l.mu.Lock()
		}
		closed := l.closed
		l.mu.Unlock()

		if closed {
			return
		}
		<-l.wake
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Msg("Recovered panic on coordination loop")
		}
	}()
	fn()
}
