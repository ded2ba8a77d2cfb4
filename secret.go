// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import "sync"

// Secret holds sensitive material (server passwords, SASL passwords) so
// that it never round-trips through a log line or an Event payload, and
// so its backing buffer can be wiped once it's no longer needed (spec
// §9, "Credentials in memory"). The teacher marks sensitive outbound
// Events with a boolean Sensitive flag (see Message.Sensitive); Secret
// generalizes that idea to the value itself, not just the event that
// carries it.
//
// Secret is safe for concurrent use; Reveal and Wipe both take the same
// lock so a concurrent wipe can't race a read.
type Secret struct {
	mu   sync.Mutex
	buf  []byte
	done bool
}

// NewSecret copies plaintext into a Secret-owned buffer. The caller
// should not retain the plaintext slice afterwards.
func NewSecret(plaintext string) *Secret {
	if plaintext == "" {
		return nil
	}
	s := &Secret{buf: []byte(plaintext)}
	return s
}

// Reveal returns the current value, or "" once Wipe has been called or
// for a nil Secret.
func (s *Secret) Reveal() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return ""
	}
	return string(s.buf)
}

// Wipe overwrites the backing buffer with zero bytes and marks the
// Secret exhausted. Safe to call multiple times and on a nil Secret.
func (s *Secret) Wipe() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.buf {
		s.buf[i] = 0
	}
	s.done = true
}

// String implements fmt.Stringer but deliberately never reveals the
// value, so a Secret embedded in a struct that gets logged with %v or
// %+v does not leak.
func (s *Secret) String() string {
	if s == nil {
		return "<nil-secret>"
	}
	return "<secret>"
}
