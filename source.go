// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import (
	"bytes"
	"strings"
)

const (
	messagePrefix byte = ':' // ':' -- prefix or last argument introducer.
	prefixUser    byte = '!' // '!' -- separates nick from user/ident.
	prefixHost    byte = '@' // '@' -- separates user/ident from host.
	eventSpace    byte = ' ' // ' ' -- separator between message sections.
)

// Source represents the sender of a Message (spec §3 Message, wire
// form): servername | nick ['!' user] ['@' host] (RFC 1459 §2.3.1).
type Source struct {
	// Name is the nickname, server name, or service name.
	Name string
	// Ident is commonly known as the "user"/ident.
	Ident string
	// Host is the hostname or IP address reported by the server. Not
	// necessarily accurate: servers can spoof/cloak hostnames.
	Host string
}

// ParseSource parses a prefix string (without the leading ':').
func ParseSource(raw string) *Source {
	src := new(Source)

	user := strings.IndexByte(raw, prefixUser)
	host := strings.IndexByte(raw, prefixHost)

	switch {
	case user > 0 && host > user:
		src.Name = raw[:user]
		src.Ident = raw[user+1 : host]
		src.Host = raw[host+1:]
	case user > 0:
		src.Name = raw[:user]
		src.Ident = raw[user+1:]
	case host > 0:
		src.Name = raw[:host]
		src.Host = raw[host+1:]
	default:
		src.Name = raw
	}

	return src
}

// Len calculates the length of the string representation of the source,
// not including the leading ':' or trailing space.
func (s *Source) Len() (length int) {
	if s == nil {
		return 0
	}
	length = len(s.Name)
	if len(s.Ident) > 0 {
		length = 1 + length + len(s.Ident)
	}
	if len(s.Host) > 0 {
		length = 1 + length + len(s.Host)
	}
	return
}

// Bytes returns the wire representation of the source (no leading ':').
func (s *Source) Bytes() []byte {
	buffer := new(bytes.Buffer)
	s.writeTo(buffer)
	return buffer.Bytes()
}

// String returns the wire representation of the source (no leading ':').
func (s *Source) String() string {
	if s == nil {
		return ""
	}
	out := s.Name
	if len(s.Ident) > 0 {
		out += string(prefixUser) + s.Ident
	}
	if len(s.Host) > 0 {
		out += string(prefixHost) + s.Host
	}
	return out
}

// IsHostmask reports whether the source looks like a full user hostmask
// (nick!user@host) rather than a bare server name.
func (s *Source) IsHostmask() bool {
	return s != nil && len(s.Ident) > 0 && len(s.Host) > 0
}

// IsServer reports whether the source looks like a server name (no
// ident or host component).
func (s *Source) IsServer() bool {
	return s != nil && len(s.Ident) == 0 && len(s.Host) == 0
}

// ID returns a case-folded (RFC 1459) identity key suitable for
// correlating a source against tracked User state.
func (s *Source) ID() string {
	if s == nil {
		return ""
	}
	return ToRFC1459(s.Name)
}

func (s *Source) writeTo(buffer *bytes.Buffer) {
	if s == nil {
		return
	}
	buffer.WriteString(s.Name)
	if len(s.Ident) > 0 {
		buffer.WriteByte(prefixUser)
		buffer.WriteString(s.Ident)
	}
	if len(s.Host) > 0 {
		buffer.WriteByte(prefixHost)
		buffer.WriteString(s.Host)
	}
}
