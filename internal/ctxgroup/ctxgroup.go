// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

// Package ctxgroup runs a set of goroutines tied to a shared context,
// canceling the group's context as soon as one goroutine returns a
// non-nil error, and returning the first such error from Wait.
package ctxgroup

import (
	"context"
	"sync"
)

// Group manages a set of goroutines working on behalf of a common task,
// analogous to golang.org/x/sync/errgroup but bound up-front to a single
// context rather than deriving one from the first Go call.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc

	wg sync.WaitGroup

	once sync.Once
	err  error
}

// New returns a Group whose member goroutines all run with a context
// derived from ctx, canceled as soon as the group's Wait would return.
func New(ctx context.Context) *Group {
	gctx, cancel := context.WithCancel(ctx)
	return &Group{ctx: gctx, cancel: cancel}
}

// Go starts fn in a new goroutine. The first call to fn that returns a
// non-nil error cancels the group's context; that error is what Wait
// returns.
func (g *Group) Go(fn func(ctx context.Context) error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := fn(g.ctx); err != nil {
			g.once.Do(func() {
				g.err = err
				g.cancel()
			})
		}
	}()
}

// Wait blocks until every goroutine started with Go has returned, then
// returns the first non-nil error (if any), and cancels the group's
// context in all cases.
func (g *Group) Wait() error {
	g.wg.Wait()
	g.cancel()
	return g.err
}
