// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecretRevealRoundTrip(t *testing.T) {
	s := NewSecret("hunter2")
	assert.Equal(t, "hunter2", s.Reveal())
}

func TestSecretEmptyPlaintextYieldsNil(t *testing.T) {
	assert.Nil(t, NewSecret(""))
}

func TestSecretWipeClearsValue(t *testing.T) {
	s := NewSecret("hunter2")
	s.Wipe()
	assert.Equal(t, "", s.Reveal())
}

func TestSecretNilIsSafe(t *testing.T) {
	var s *Secret
	assert.Equal(t, "", s.Reveal())
	assert.NotPanics(t, func() { s.Wipe() })
	assert.Equal(t, "<nil-secret>", s.String())
}

func TestSecretStringNeverLeaksValue(t *testing.T) {
	s := NewSecret("hunter2")
	assert.Equal(t, "<secret>", s.String())
}
