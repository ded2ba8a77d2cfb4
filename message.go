// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import (
	"bytes"
	"strings"
)

const (
	// maxMessageLength is the classic (non-tag) section limit: command,
	// source, params and trailing, including the leading ':' and the
	// terminating CRLF (spec §4.1).
	maxMessageLength = 512
)

// cutCRLFFunc trims a trailing CR/LF pair (or either alone) from a raw
// line, tolerating servers that send a lone LF (spec §4.1 framing).
func cutCRLFFunc(r rune) bool {
	return r == '\r' || r == '\n'
}

// Message represents a single parsed (or to-be-serialized) IRC protocol
// line, see RFC 1459 §2.3.1 and the IRCv3 message-tags spec:
//
//	<message>  ::= ['@' <tags> <SPACE>] [':' <source> <SPACE>] <command> <params> <crlf>
//	<source>   ::= <servername> | <nick> ['!' <user>] ['@' <host>]
//	<command>  ::= <letter>{<letter>} | <number> <number> <number>
//	<params>   ::= <SPACE> [':' <trailing> | <middle> <params>]
//
// Message is the wire-level representation; Event (bus.go) is the
// higher-level semantic representation derived from a Message plus
// engine/state context (spec §3 distinguishes the two).
type Message struct {
	Tags    Tags
	Source  *Source
	Command string
	Params  []string

	// Trailing is the last, colon-introduced parameter. EmptyTrailing
	// distinguishes "no trailing parameter at all" from "a trailing
	// parameter present but zero-length" (":"), since both serialize
	// differently than a bare absent trailing param.
	Trailing      string
	EmptyTrailing bool

	// Sensitive marks a message whose Trailing/Params must never be
	// written to the debug logger (spec §9, "Credentials in memory") —
	// e.g. PASS, AUTHENTICATE, OPER.
	Sensitive bool
}

// ParseMessage parses a single raw line (CR/LF already stripped by the
// caller's line reader, but ParseMessage tolerates a trailing CR/LF of
// its own for convenience). ParseMessage never panics: malformed input
// degrades to a best-effort partial Message rather than failing, so a
// read loop can always call it directly on a split line (spec §4.1
// invariant: "parsing is total").
//
// ParseMessage returns nil only for a line with no content at all.
func ParseMessage(raw string) *Message {
	raw = strings.TrimFunc(raw, cutCRLFFunc)
	if raw == "" {
		return nil
	}

	m := &Message{}

	if raw[0] == tagPrefix {
		sp := strings.IndexByte(raw, eventSpace)
		if sp < 0 {
			// Tag section with nothing after it: there is no command,
			// but don't discard what we parsed.
			m.Tags = ParseTags(raw[1:])
			return m
		}
		m.Tags = ParseTags(raw[1:sp])
		raw = strings.TrimLeft(raw[sp+1:], " ")
	}

	if raw == "" {
		return m
	}

	if raw[0] == messagePrefix {
		sp := strings.IndexByte(raw, eventSpace)
		if sp < 0 {
			m.Source = ParseSource(raw[1:])
			return m
		}
		m.Source = ParseSource(raw[1:sp])
		raw = strings.TrimLeft(raw[sp+1:], " ")
	}

	if raw == "" {
		return m
	}

	// Split off the trailing parameter, if any: the first " :" at the
	// top level of what remains, or a leading ':' if there was never a
	// command/params before it (defensive; shouldn't happen on a
	// well-formed line).
	rest := raw
	trailingIdx := -1
	if i := strings.Index(rest, " :"); i >= 0 {
		trailingIdx = i
	}

	var head string
	if trailingIdx >= 0 {
		head = rest[:trailingIdx]
		m.Trailing = rest[trailingIdx+2:]
		m.EmptyTrailing = m.Trailing == ""
	} else {
		head = rest
	}

	fields := strings.Fields(head)
	if len(fields) == 0 {
		return m
	}
	m.Command = strings.ToUpper(fields[0])
	if len(fields) > 1 {
		m.Params = fields[1:]
	}

	return m
}

// Len reports the wire length of Bytes(), without actually rendering
// it.
func (m *Message) Len() int {
	return len(m.Bytes())
}

// Bytes renders the wire form of m, including the tag section but
// excluding the terminating CRLF. It does not truncate: callers that
// need the spec §4.1 "never truncate silently, reject instead" behavior
// should call Validate first.
func (m *Message) Bytes() []byte {
	buf := new(bytes.Buffer)

	if len(m.Tags) > 0 {
		m.Tags.writeTo(buf)
	}

	if m.Source != nil {
		buf.WriteByte(messagePrefix)
		m.Source.writeTo(buf)
		buf.WriteByte(eventSpace)
	}

	buf.WriteString(m.Command)

	if len(m.Params) > 0 {
		buf.WriteByte(eventSpace)
		buf.WriteString(strings.Join(m.Params, string(eventSpace)))
	}

	if len(m.Trailing) > 0 || m.EmptyTrailing {
		buf.WriteByte(eventSpace)
		buf.WriteByte(messagePrefix)
		buf.WriteString(m.Trailing)
	}

	out := buf.Bytes()
	for i := 0; i < len(out); i++ {
		if out[i] == '\r' || out[i] == '\n' {
			out = append(out[:i], out[i+1:]...)
			i--
		}
	}
	return out
}

func (m *Message) String() string { return string(m.Bytes()) }

// Validate reports a *SerializeTooLongError if the rendered message
// would not fit on the wire: the tag section against maxTagSection, and
// everything else against maxMessageLength (spec §4.1, §8.3). The codec
// never truncates silently — callers must check Validate (or rely on
// the command queue, which does) before writing.
func (m *Message) Validate() error {
	if err := m.Tags.validateLength(); err != nil {
		return err
	}

	total := m.Len() - m.Tags.Len()
	if m.Tags.Len() > 0 {
		total-- // the separating space is counted once in Len, not against the message budget.
	}
	if total+2 > maxMessageLength { // +2 for CRLF.
		return &SerializeTooLongError{Section: "message", Limit: maxMessageLength, Actual: total + 2}
	}
	return nil
}

// IsFromChannel reports whether Params[0] names a channel (spec §4.6).
func (m *Message) IsFromChannel() bool {
	return len(m.Params) > 0 && IsValidChannel(m.Params[0])
}
