// Package cycle implements the cooperative processing loop of the services
// daemon. Work items Posted to a Loop run one at a time on the goroutine
// running the Loop. A cycle is the run of every work item which is
// immediately available; once the Loop has no further work ready, the cycle
// goes idle and each armed Notifier fires exactly once.
//
// State owned by the Loop's goroutine (for example, an open storage
// transaction) therefore needs no locking, and a Notifier armed any number
// of times within one cycle runs its callback a single time after all of
// that cycle's work is done.
package cycle

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Loop is a single-goroutine work loop.
type Loop struct {
	workCh chan func()
	armed  []*Notifier
	cycles int64
}

// NewLoop returns a Loop which buffers up to |backlog| Posted work items.
func NewLoop(backlog int) *Loop {
	return &Loop{workCh: make(chan func(), backlog)}
}

// Post a work item to the Loop. Post is safe for concurrent use,
// and blocks if the Loop's backlog is full.
func (l *Loop) Post(fn func()) { l.workCh <- fn }

// Run the Loop until the Context is cancelled. Armed Notifiers are fired
// before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.idle()
			return ctx.Err()
		case fn := <-l.workCh:
			fn()
			l.drain()
			l.idle()
		}
	}
}

// Cycle runs all immediately available work, and then fires armed
// Notifiers. It must not be called concurrently with Run.
func (l *Loop) Cycle() {
	l.drain()
	l.idle()
}

// Cycles returns the number of cycles completed by the Loop.
func (l *Loop) Cycles() int64 { return l.cycles }

func (l *Loop) drain() {
	for {
		select {
		case fn := <-l.workCh:
			fn()
		default:
			return
		}
	}
}

func (l *Loop) idle() {
	var armed = l.armed
	l.armed = nil

	for _, n := range armed {
		n.armed = false
		n.fn()
	}
	l.cycles++

	if len(armed) != 0 {
		log.WithFields(log.Fields{
			"cycle":     l.cycles,
			"notifiers": len(armed),
		}).Trace("cycle idle")
	}
}

// Notifier runs a callback once when the current cycle of its Loop goes idle.
type Notifier struct {
	loop  *Loop
	fn    func()
	armed bool
}

// NewNotifier returns a Notifier of the Loop which invokes |fn|.
func (l *Loop) NewNotifier(fn func()) *Notifier {
	return &Notifier{loop: l, fn: fn}
}

// Notify arms the Notifier, if it's not already armed. Notify must be
// called from the Loop's goroutine. A Notifier armed from within an idle
// callback fires at the end of the following cycle.
func (n *Notifier) Notify() {
	if n.armed {
		return
	}
	n.armed = true
	n.loop.armed = append(n.loop.armed, n)
}

// Armed returns true if the Notifier will fire when the cycle goes idle.
func (n *Notifier) Armed() bool { return n.armed }
