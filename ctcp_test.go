// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingResponder struct {
	calls []recordedCTCP
}

type recordedCTCP struct {
	target, ctcpType, text string
}

func (r *recordingResponder) SendCTCP(id ServerID, target, ctcpType, text string) error {
	r.calls = append(r.calls, recordedCTCP{target, ctcpType, text})
	return nil
}

func TestDecodeCTCP(t *testing.T) {
	m := &Message{
		Command:  PRIVMSG,
		Params:   []string{"#chan"},
		Source:   &Source{Name: "nick"},
		Trailing: "\x01VERSION\x01",
	}
	ev := decodeCTCP("srv", m)
	assert.NotNil(t, ev)
	assert.Equal(t, "VERSION", ev.Command)
	assert.Equal(t, "", ev.Text)
	assert.False(t, ev.Reply)
}

func TestDecodeCTCPWithText(t *testing.T) {
	m := &Message{
		Command:  PRIVMSG,
		Params:   []string{"nick"},
		Source:   &Source{Name: "other"},
		Trailing: "\x01PING 1234567890\x01",
	}
	ev := decodeCTCP("srv", m)
	assert.NotNil(t, ev)
	assert.Equal(t, "PING", ev.Command)
	assert.Equal(t, "1234567890", ev.Text)
}

func TestDecodeCTCPReply(t *testing.T) {
	m := &Message{Command: NOTICE, Params: []string{"nick"}, Trailing: "\x01VERSION foo\x01"}
	ev := decodeCTCP("srv", m)
	assert.NotNil(t, ev)
	assert.True(t, ev.Reply)
}

func TestDecodeCTCPNotCTCP(t *testing.T) {
	assert.Nil(t, decodeCTCP("srv", &Message{Command: PRIVMSG, Params: []string{"#chan"}, Trailing: "hello"}))
	assert.Nil(t, decodeCTCP("srv", &Message{Command: JOIN, Params: []string{"#chan"}}))
}

func TestEncodeCTCPRaw(t *testing.T) {
	assert.Equal(t, "\x01VERSION\x01", encodeCTCPRaw("VERSION", ""))
	assert.Equal(t, "\x01PING 123\x01", encodeCTCPRaw("PING", "123"))
	assert.Equal(t, "", encodeCTCPRaw("", "x"))
}

func TestCTCPRegistryDispatchesVersion(t *testing.T) {
	reg := NewCTCPRegistry()
	resp := &recordingResponder{}
	reg.dispatch(resp, CTCPEvent{Server: "srv", Source: &Source{Name: "nick"}, Command: CTCP_VERSION})

	assert.Len(t, resp.calls, 1)
	assert.Equal(t, "nick", resp.calls[0].target)
	assert.Equal(t, CTCP_VERSION, resp.calls[0].ctcpType)
}

func TestCTCPRegistryUnknownTagRepliesErrmsg(t *testing.T) {
	reg := NewCTCPRegistry()
	resp := &recordingResponder{}
	reg.dispatch(resp, CTCPEvent{Server: "srv", Source: &Source{Name: "nick"}, Command: "FROBNICATE"})

	assert.Len(t, resp.calls, 1)
	assert.Equal(t, CTCP_ERRMSG, resp.calls[0].ctcpType)
}

func TestCTCPRegistryNoErrmsgOnReply(t *testing.T) {
	reg := NewCTCPRegistry()
	resp := &recordingResponder{}
	reg.dispatch(resp, CTCPEvent{Server: "srv", Source: &Source{Name: "nick"}, Command: "FROBNICATE", Reply: true})

	assert.Empty(t, resp.calls)
}

func TestCTCPRegistrySetAndClear(t *testing.T) {
	reg := NewCTCPRegistry()
	var called bool
	reg.Set("FOO", func(r CTCPResponder, ev CTCPEvent) { called = true })
	reg.dispatch(&recordingResponder{}, CTCPEvent{Command: "FOO", Reply: true})
	assert.True(t, called)

	reg.Clear("FOO")
	called = false
	resp := &recordingResponder{}
	reg.dispatch(resp, CTCPEvent{Server: "srv", Source: &Source{Name: "nick"}, Command: "FOO"})
	assert.False(t, called)
	assert.Len(t, resp.calls, 1) // falls back to ERRMSG now that no handler is registered.
}
