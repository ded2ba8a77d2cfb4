// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// queueCapacity bounds the number of pending outbound commands per
// server before Submit starts returning ErrBackpressure (spec §4.5
// invariant 7: commands are never silently dropped — rejection is
// explicit and synchronous).
const queueCapacity = 256

// defaultRateLimit/defaultRateBurst are the flood-protection token
// bucket parameters (spec §4.5, scenario S5): one token every two
// seconds, with a burst allowance of 5 so an initial JOIN+MODE+WHO
// triplet doesn't immediately throttle.
const (
	defaultRateLimit = rate.Limit(0.5)
	defaultRateBurst = 5
)

// CommandRequest is one caller-submitted outbound command (spec §3
// CommandRequest). Label, if non-empty, requests IRCv3
// labeled-response correlation (spec §4.5).
type CommandRequest struct {
	Message  *Message
	Label    string
	Priority bool // bypasses the flood limiter's wait (PONG, CAP negotiation, AUTHENTICATE).
}

// CommandQueue is the bounded, priority-aware outbound command queue
// for one server, paired with a token-bucket flood limiter (spec
// §4.5). High-priority requests (protocol plumbing the server expects
// promptly, like PONG) go to their own lane, which skips the token
// bucket, so a registration burst is never blocked behind a user's
// queued PRIVMSGs. Each lane has its own capacity and rejects with
// ErrBackpressure when full.
type CommandQueue struct {
	limiter *rate.Limiter

	mu       sync.Mutex
	normal   chan CommandRequest
	priority chan CommandRequest
}

// NewCommandQueue builds a queue using the default flood-protection
// parameters and capacity.
func NewCommandQueue() *CommandQueue {
	return NewCommandQueueWithLimit(defaultRateLimit, defaultRateBurst, queueCapacity)
}

// NewCommandQueueWithLimit builds a queue with a caller-supplied
// token-bucket rate, burst, and per-lane capacity (spec §4.5 allows
// per-server tuning of all three).
func NewCommandQueueWithLimit(limit rate.Limit, burst, capacity int) *CommandQueue {
	if capacity <= 0 {
		capacity = queueCapacity
	}
	return &CommandQueue{
		limiter:  rate.NewLimiter(limit, burst),
		normal:   make(chan CommandRequest, capacity),
		priority: make(chan CommandRequest, capacity),
	}
}

// Submit enqueues req, returning ErrBackpressure immediately if the
// appropriate lane is full rather than blocking the caller.
func (q *CommandQueue) Submit(req CommandRequest) error {
	ch := q.normal
	if req.Priority {
		ch = q.priority
	}
	select {
	case ch <- req:
		return nil
	default:
		return ErrBackpressure
	}
}

// Next blocks until the next request should be sent: priority requests
// are dequeued immediately; normal requests wait on the flood limiter.
// Returns (zero, ctx.Err()) once ctx is done.
func (q *CommandQueue) Next(ctx context.Context) (CommandRequest, error) {
	for {
		select {
		case req := <-q.priority:
			return req, nil
		default:
		}

		select {
		case req := <-q.priority:
			return req, nil
		case req := <-q.normal:
			if err := q.limiter.Wait(ctx); err != nil {
				return CommandRequest{}, err
			}
			return req, nil
		case <-ctx.Done():
			return CommandRequest{}, ctx.Err()
		}
	}
}

// Len reports the combined number of pending requests across both
// lanes (diagnostic use only).
func (q *CommandQueue) Len() int { return len(q.normal) + len(q.priority) }

// labelTimeout bounds how long a labeled-response correlation is kept
// before it is abandoned and its waiter is told it timed out (spec
// §4.5).
const labelTimeout = 30 * time.Second

// LabelTracker correlates IRCv3 labeled-response replies (the "label"
// message tag) back to the caller that submitted the originating
// command.
type LabelTracker struct {
	mu      sync.Mutex
	waiters map[string]chan *Message
	next    uint64
}

// NewLabelTracker constructs an empty tracker.
func NewLabelTracker() *LabelTracker {
	return &LabelTracker{waiters: make(map[string]chan *Message)}
}

// NewLabel mints a fresh label and returns a channel that receives the
// correlated reply (or is closed, unfulfilled, after labelTimeout).
func (t *LabelTracker) NewLabel() (label string, replies chan *Message) {
	t.mu.Lock()
	t.next++
	label = "ircengine-" + strconv.FormatUint(t.next, 10)
	ch := make(chan *Message, 1)
	t.waiters[label] = ch
	t.mu.Unlock()

	go func() {
		time.Sleep(labelTimeout)
		t.mu.Lock()
		if waiting, ok := t.waiters[label]; ok && waiting == ch {
			delete(t.waiters, label)
			close(ch)
		}
		t.mu.Unlock()
	}()

	return label, ch
}

// Resolve delivers m to the waiter registered for its "label" tag, if
// any, removing the correlation. Returns false if no waiter was found
// (either never registered, already timed out, or already resolved).
func (t *LabelTracker) Resolve(m *Message) bool {
	label, ok := m.Tags.Get("label")
	if !ok {
		return false
	}
	t.mu.Lock()
	ch, ok := t.waiters[label]
	if ok {
		delete(t.waiters, label)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	ch <- m
	close(ch)
	return true
}
