// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSource(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *Source
	}{
		{name: "full", raw: "nick!user@host.com", want: &Source{Name: "nick", Ident: "user", Host: "host.com"}},
		{name: "nick and user only", raw: "nick!user", want: &Source{Name: "nick", Ident: "user"}},
		{name: "nick and host only", raw: "nick@host.com", want: &Source{Name: "nick", Host: "host.com"}},
		{name: "bare server name", raw: "irc.example.com", want: &Source{Name: "irc.example.com"}},
		{name: "special chars in nick", raw: "^[]nick!~user@test.host---name.com", want: &Source{
			Name: "^[]nick", Ident: "~user", Host: "test.host---name.com",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSource(tt.raw))
		})
	}
}

func TestSourceString(t *testing.T) {
	s := &Source{Name: "nick", Ident: "user", Host: "host.com"}
	assert.Equal(t, "nick!user@host.com", s.String())
}

func TestSourceNilSafe(t *testing.T) {
	var s *Source
	assert.Equal(t, "", s.String())
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.IsHostmask())
	assert.False(t, s.IsServer())
	assert.Equal(t, "", s.ID())
}

func TestSourceIsHostmaskIsServer(t *testing.T) {
	full := &Source{Name: "nick", Ident: "user", Host: "host.com"}
	assert.True(t, full.IsHostmask())
	assert.False(t, full.IsServer())

	server := &Source{Name: "irc.example.com"}
	assert.False(t, server.IsHostmask())
	assert.True(t, server.IsServer())
}

func TestSourceID(t *testing.T) {
	a := &Source{Name: "Nick[Work]"}
	b := &Source{Name: "nick[work]"}
	assert.Equal(t, a.ID(), b.ID())
}
