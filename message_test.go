// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *Message
	}{
		{
			name: "basic",
			raw:  "PING :irc.example.com",
			want: &Message{Command: "PING", Trailing: "irc.example.com"},
		},
		{
			name: "with source and params",
			raw:  ":nick!user@host PRIVMSG #chan :hello world",
			want: &Message{
				Source:   &Source{Name: "nick", Ident: "user", Host: "host"},
				Command:  "PRIVMSG",
				Params:   []string{"#chan"},
				Trailing: "hello world",
			},
		},
		{
			name: "with tags",
			raw:  "@id=123;account=foo :nick!u@h PRIVMSG #chan :hi",
			want: &Message{
				Tags:     Tags{"id": "123", "account": "foo"},
				Source:   &Source{Name: "nick", Ident: "u", Host: "h"},
				Command:  "PRIVMSG",
				Params:   []string{"#chan"},
				Trailing: "hi",
			},
		},
		{
			name: "empty trailing",
			raw:  "JOIN #chan :",
			want: &Message{Command: "JOIN", Params: []string{"#chan"}, EmptyTrailing: true},
		},
		{
			name: "no trailing at all",
			raw:  "MODE #chan +o nick",
			want: &Message{Command: "MODE", Params: []string{"#chan", "+o", "nick"}},
		},
		{
			name: "tolerates trailing crlf",
			raw:  "PING :x\r\n",
			want: &Message{Command: "PING", Trailing: "x"},
		},
		{
			name: "uppercases command",
			raw:  "ping :x",
			want: &Message{Command: "PING", Trailing: "x"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseMessage(tt.raw)
			assert.Equal(t, tt.want.Tags, got.Tags)
			assert.Equal(t, tt.want.Source, got.Source)
			assert.Equal(t, tt.want.Command, got.Command)
			assert.Equal(t, tt.want.Params, got.Params)
			assert.Equal(t, tt.want.Trailing, got.Trailing)
			assert.Equal(t, tt.want.EmptyTrailing, got.EmptyTrailing)
		})
	}
}

func TestParseMessageEmpty(t *testing.T) {
	assert.Nil(t, ParseMessage(""))
	assert.Nil(t, ParseMessage("\r\n"))
}

func TestMessageBytes(t *testing.T) {
	m := &Message{
		Tags:     Tags{"id": "1"},
		Source:   &Source{Name: "nick", Ident: "u", Host: "h"},
		Command:  "PRIVMSG",
		Params:   []string{"#chan"},
		Trailing: "hi there",
	}
	assert.Equal(t, "@id=1 :nick!u@h PRIVMSG #chan :hi there", m.String())
}

func TestMessageBytesStripsCRLF(t *testing.T) {
	m := &Message{Command: "PRIVMSG", Params: []string{"#chan"}, Trailing: "line1\r\nline2"}
	assert.NotContains(t, m.String(), "\r")
	assert.NotContains(t, m.String(), "\n")
}

func TestMessageRoundTrip(t *testing.T) {
	raw := "@id=1 :nick!u@h PRIVMSG #chan :hi there"
	m := ParseMessage(raw)
	assert.Equal(t, raw, m.String())
}

func TestMessageValidateTooLong(t *testing.T) {
	m := &Message{Command: "PRIVMSG", Params: []string{"#chan"}, Trailing: strings.Repeat("x", 600)}
	err := m.Validate()
	assert.Error(t, err)
	var tooLong *SerializeTooLongError
	assert.ErrorAs(t, err, &tooLong)
}

func TestMessageValidateOK(t *testing.T) {
	m := &Message{Command: "PRIVMSG", Params: []string{"#chan"}, Trailing: "hi"}
	assert.NoError(t, m.Validate())
}

func TestMessageIsFromChannel(t *testing.T) {
	assert.True(t, (&Message{Command: "PRIVMSG", Params: []string{"#chan"}}).IsFromChannel())
	assert.False(t, (&Message{Command: "PRIVMSG", Params: []string{"nick"}}).IsFromChannel())
	assert.False(t, (&Message{Command: "PRIVMSG"}).IsFromChannel())
}
