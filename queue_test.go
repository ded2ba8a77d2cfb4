// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestCommandQueueSubmitAndNext(t *testing.T) {
	q := NewCommandQueueWithLimit(rate.Inf, 1, 4)
	err := q.Submit(CommandRequest{Message: &Message{Command: PRIVMSG}})
	assert.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req, err := q.Next(ctx)
	assert.NoError(t, err)
	assert.Equal(t, PRIVMSG, req.Message.Command)
}

func TestCommandQueuePriorityBypassesLimiter(t *testing.T) {
	q := NewCommandQueueWithLimit(rate.Limit(0.001), 1, 4)
	// Queue a normal-lane request ahead of the priority one; Next must
	// still hand out the priority request first.
	assert.NoError(t, q.Submit(CommandRequest{Message: &Message{Command: PRIVMSG}}))
	assert.NoError(t, q.Submit(CommandRequest{Message: &Message{Command: PING}, Priority: true}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req, err := q.Next(ctx)
	assert.NoError(t, err)
	assert.Equal(t, PING, req.Message.Command)
}

func TestCommandQueueBackpressure(t *testing.T) {
	const capacity = 4
	q := NewCommandQueueWithLimit(rate.Inf, 1, capacity)
	for i := 0; i < capacity; i++ {
		assert.NoError(t, q.Submit(CommandRequest{Message: &Message{Command: PRIVMSG}}))
	}
	err := q.Submit(CommandRequest{Message: &Message{Command: PRIVMSG}})
	assert.ErrorIs(t, err, ErrBackpressure)
}

func TestCommandQueueWithLimitDefaultsCapacityWhenNonPositive(t *testing.T) {
	q := NewCommandQueueWithLimit(rate.Inf, 1, 0)
	for i := 0; i < queueCapacity; i++ {
		assert.NoError(t, q.Submit(CommandRequest{Message: &Message{Command: PRIVMSG}}))
	}
	err := q.Submit(CommandRequest{Message: &Message{Command: PRIVMSG}})
	assert.ErrorIs(t, err, ErrBackpressure)
}

func TestCommandQueueNextRespectsContext(t *testing.T) {
	q := NewCommandQueueWithLimit(rate.Inf, 1, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLabelTrackerResolve(t *testing.T) {
	lt := NewLabelTracker()
	label, replies := lt.NewLabel()

	reply := &Message{Command: "ACK", Tags: Tags{"label": label}}
	assert.True(t, lt.Resolve(reply))

	select {
	case got := <-replies:
		assert.Same(t, reply, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for correlated reply")
	}
}

func TestLabelTrackerResolveUnknownLabel(t *testing.T) {
	lt := NewLabelTracker()
	assert.False(t, lt.Resolve(&Message{Tags: Tags{"label": "nonexistent"}}))
}

func TestLabelTrackerResolveNoLabelTag(t *testing.T) {
	lt := NewLabelTracker()
	assert.False(t, lt.Resolve(&Message{Command: "PRIVMSG"}))
}
