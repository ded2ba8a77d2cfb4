// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelayGrowsExponentiallyAndCaps(t *testing.T) {
	rc := resolvedConfig{reconnectInitial: time.Second, reconnectMax: 8 * time.Second}

	assert.Equal(t, time.Second, backoffDelay(rc, 0))
	assert.Equal(t, 2*time.Second, backoffDelay(rc, 1))
	assert.Equal(t, 4*time.Second, backoffDelay(rc, 2))
	assert.Equal(t, 8*time.Second, backoffDelay(rc, 3))
	assert.Equal(t, 8*time.Second, backoffDelay(rc, 10)) // capped.
}

func TestBackoffDelayAppliesJitterWithinBounds(t *testing.T) {
	rc := resolvedConfig{reconnectInitial: 10 * time.Second, reconnectMax: 10 * time.Second, reconnectJitter: 0.5}

	for i := 0; i < 20; i++ {
		d := backoffDelay(rc, 0)
		assert.True(t, d >= 5*time.Second && d <= 15*time.Second, "delay %s out of jitter bounds", d)
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	b := &circuitBreaker{threshold: 3, window: time.Minute, hold: 5 * time.Second}
	now := time.Now()

	assert.Equal(t, time.Duration(0), b.openFor(now))
	b.recordFailure(now)
	b.recordFailure(now)
	assert.Equal(t, time.Duration(0), b.openFor(now))
	b.recordFailure(now)

	wait := b.openFor(now)
	assert.True(t, wait > 0 && wait <= 5*time.Second)
}

func TestCircuitBreakerForgetsFailuresOutsideWindow(t *testing.T) {
	b := &circuitBreaker{threshold: 2, window: time.Second, hold: time.Second}
	start := time.Now()

	b.recordFailure(start)
	b.recordFailure(start.Add(2 * time.Second)) // outside the window relative to the first.

	assert.Equal(t, time.Duration(0), b.openFor(start.Add(2*time.Second)))
}

func TestCircuitBreakerResetsAfterHold(t *testing.T) {
	b := &circuitBreaker{threshold: 1, window: time.Minute, hold: time.Second}
	start := time.Now()
	b.recordFailure(start)

	assert.True(t, b.openFor(start) > 0)
	assert.Equal(t, time.Duration(0), b.openFor(start.Add(2*time.Second)))
}

func TestClassifyReadErrEOFIsPeerReset(t *testing.T) {
	err := classifyReadErr("srv", io.EOF)
	var te *TransportError
	assert.ErrorAs(t, err, &te)
	assert.Equal(t, TransportPeerReset, te.Kind)
}

func TestClassifyReadErrGenericIsIO(t *testing.T) {
	err := classifyReadErr("srv", errors.New("boom"))
	var te *TransportError
	assert.ErrorAs(t, err, &te)
	assert.Equal(t, TransportIO, te.Kind)
}
