// Package task runs the long-lived goroutines of a process as one Group.
package task

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Group is a set of named tasks which run concurrently and are waited on
// together. The first task to return a non-nil error cancels the Context
// of the Group, which every task should monitor. Group itself is not
// safe for concurrent use.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc
	eg     *errgroup.Group

	tasks   []task
	started bool
}

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// NewGroup returns an empty Group deriving from |ctx|.
func NewGroup(ctx context.Context) *Group {
	var cancel context.CancelFunc
	ctx, cancel = context.WithCancel(ctx)

	var eg, egCtx = errgroup.WithContext(ctx)
	return &Group{ctx: egCtx, cancel: cancel, eg: eg}
}

// Context of the Group. It's cancelled when any task fails, when Cancel
// is called, or when the parent Context is cancelled.
func (g *Group) Context() context.Context { return g.ctx }

// Cancel the Group Context.
func (g *Group) Cancel() { g.cancel() }

// Queue task |fn| under |name|. It panics if called after GoRun.
func (g *Group) Queue(name string, fn func(ctx context.Context) error) {
	if g.started {
		panic("Queue called after GoRun")
	}
	g.tasks = append(g.tasks, task{name: name, fn: fn})
}

// GoRun starts all queued tasks. It panics if called twice.
func (g *Group) GoRun() {
	if g.started {
		panic("GoRun already called")
	}
	g.started = true

	for i := range g.tasks {
		var t = g.tasks[i]

		g.eg.Go(func() error {
			var err = t.fn(g.ctx)
			if err != nil && errors.Cause(err) != context.Canceled {
				log.WithFields(log.Fields{"task": t.name, "err": err}).Warn("task failed")
				return errors.WithMessage(err, t.name)
			}
			log.WithField("task", t.name).Debug("task exited")
			return nil
		})
	}
}

// Wait for all tasks to complete, returning the first task error.
// It panics if GoRun wasn't called.
func (g *Group) Wait() error {
	if !g.started {
		panic("Wait called before GoRun")
	}
	defer g.cancel()
	return g.eg.Wait()
}
