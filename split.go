// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import (
	"bytes"
	"strconv"
	"unicode/utf8"
)

// splitFunc splits one too-long outbound Message into several, each
// respecting maxLen (spec's supplemented long-message-splitting
// feature; teacher's splitEvent machinery generalized onto Message).
type splitFunc func(m *Message, maxLen int) []*Message

var splitFuncs = map[string]splitFunc{
	PRIVMSG: splitTrailing,
	NOTICE:  splitTrailing,
}

// getIntIsupport returns the integer value of an ISUPPORT token, or def
// if it's absent or not a valid integer.
func getIntIsupport(ist *isupportTable, key string, def int) int {
	raw, ok := ist.Get(key)
	if !ok {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}

// maxPrefixLen upper-bounds how many bytes the server might prepend as
// our own ":nick!user@host " source when relaying a message we sent,
// per RFC 2812's ABNF. NICKLEN/USERLEN/HOSTLEN come from ISUPPORT, with
// modern.ircdocs.horse's conservative defaults when absent.
func maxPrefixLen(ist *isupportTable) int {
	nicklen := getIntIsupport(ist, "NICKLEN", 10)
	userlen := getIntIsupport(ist, "USERLEN", 18)
	hostlen := getIntIsupport(ist, "HOSTLEN", 63)
	return 1 + nicklen + 1 + userlen + 1 + hostlen + 1
}

// splitTrailing splits m (a PRIVMSG/NOTICE) on UTF-8-safe boundaries,
// preferring the last space within the budget, so that no resulting
// Message exceeds maxLen once serialized.
func splitTrailing(m *Message, maxLen int) []*Message {
	base := &Message{Command: m.Command, Params: append([]string(nil), m.Params...)}
	maxTextLen := maxLen - base.Len() - len(" :")
	if maxTextLen <= 0 {
		return []*Message{m}
	}

	newMsg := func(text []byte) *Message {
		return &Message{
			Command:  m.Command,
			Params:   append([]string(nil), m.Params...),
			Trailing: string(text),
			Tags:     m.Tags,
		}
	}

	var out []*Message
	b := []byte(m.Trailing)
	for len(b) > maxTextLen {
		idx := bytes.LastIndexByte(b[:maxTextLen], ' ')
		if idx > 0 {
			idx++
		} else {
			idx = bytes.LastIndexFunc(b[:maxTextLen+1], utf8.ValidRune)
			if idx <= 0 {
				idx = maxTextLen
			}
		}
		out = append(out, newMsg(b[:idx]))
		b = b[idx:]
	}
	out = append(out, newMsg(b))
	return out
}

// splitMessage splits m into one or more Messages that each fit within
// the 512-byte wire limit once the server's own source prefix is
// accounted for (spec §4.1/§4.5's supplemented long-message handling).
func splitMessage(ist *isupportTable, m *Message) []*Message {
	const maxIRCLen = maxMessageLength - len("\r\n")
	maxLen := maxIRCLen - maxPrefixLen(ist)

	if m.Len() <= maxLen {
		return []*Message{m}
	}
	if fn, ok := splitFuncs[m.Command]; ok {
		return fn(m, maxLen)
	}
	return []*Message{m}
}
