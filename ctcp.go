// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import (
	"runtime"
	"strings"
	"sync"
	"time"
)

// ctcpDelim is the prefix/suffix byte for CTCP-formatted message text
// (http://www.irchelp.org/protocol/ctcpspec.html).
const ctcpDelim byte = 0x01

// Well-known CTCP query/reply tags (spec's supplemented CTCP feature).
const (
	CTCP_PING    = "PING"
	CTCP_PONG    = "PONG"
	CTCP_VERSION = "VERSION"
	CTCP_SOURCE  = "SOURCE"
	CTCP_TIME    = "TIME"
	CTCP_ERRMSG  = "ERRMSG"
	CTCP_ACTION  = "ACTION"
)

// CTCPEvent is the decoded form of a CTCP-formatted PRIVMSG/NOTICE.
type CTCPEvent struct {
	Server  ServerID
	Source  *Source
	Command string
	Text    string
	Reply   bool // true if this arrived via NOTICE (a reply to our own query).
}

// decodeCTCP decodes an incoming CTCP event out of a PRIVMSG/NOTICE
// Message, returning nil if m isn't CTCP-formatted.
func decodeCTCP(id ServerID, m *Message) *CTCPEvent {
	if len(m.Params) != 1 || len(m.Trailing) < 3 {
		return nil
	}
	if m.Command != PRIVMSG && m.Command != NOTICE {
		return nil
	}
	if m.Trailing[0] != ctcpDelim || m.Trailing[len(m.Trailing)-1] != ctcpDelim {
		return nil
	}

	text := m.Trailing[1 : len(m.Trailing)-1]
	sep := strings.IndexByte(text, ' ')
	if sep < 0 {
		if !isCTCPTag(text) {
			return nil
		}
		return &CTCPEvent{Server: id, Source: m.Source, Command: text, Reply: m.Command == NOTICE}
	}
	if !isCTCPTag(text[:sep]) {
		return nil
	}
	return &CTCPEvent{Server: id, Source: m.Source, Command: text[:sep], Text: text[sep+1:], Reply: m.Command == NOTICE}
}

func isCTCPTag(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if (s[i] < 'A' || s[i] > 'Z') && (s[i] < '0' || s[i] > '9') {
			return false
		}
	}
	return true
}

// encodeCTCPRaw wraps cmd/text in CTCP delimiters, ready to be used as
// a PRIVMSG/NOTICE Trailing.
func encodeCTCPRaw(cmd, text string) string {
	if cmd == "" {
		return ""
	}
	out := string(ctcpDelim) + cmd
	if text != "" {
		out += " " + text
	}
	return out + string(ctcpDelim)
}

// CTCPResponder is the narrow surface a CTCPHandler needs to reply;
// satisfied by *Engine and by the supervisor's internal adapter so
// default handlers work whether dispatched at the Engine or connection
// layer.
type CTCPResponder interface {
	SendCTCP(id ServerID, target, ctcpType, text string) error
}

// CTCPHandler reacts to one decoded CTCPEvent, typically replying via
// SendCTCP (NOTICE semantics, per the CTCP spec).
type CTCPHandler func(r CTCPResponder, ev CTCPEvent)

// CTCPRegistry dispatches incoming CTCP queries to registered handlers,
// falling back to an ERRMSG reply for unknown tags (spec's supplemented
// CTCP feature, teacher's CTCP type generalized off Client onto Engine).
type CTCPRegistry struct {
	mu       sync.RWMutex
	handlers map[string]CTCPHandler
}

// NewCTCPRegistry builds a registry pre-populated with the standard
// PING/VERSION/SOURCE/TIME replies.
func NewCTCPRegistry() *CTCPRegistry {
	r := &CTCPRegistry{handlers: make(map[string]CTCPHandler)}
	r.Set(CTCP_PING, handleCTCPPing)
	r.Set(CTCP_VERSION, handleCTCPVersion)
	r.Set(CTCP_SOURCE, handleCTCPSource)
	r.Set(CTCP_TIME, handleCTCPTime)
	return r
}

// Set registers handler for cmd ("*" registers a wildcard handler that
// runs for every tag, before any handler registered for that tag).
func (r *CTCPRegistry) Set(cmd string, handler CTCPHandler) {
	cmd = strings.ToUpper(cmd)
	r.mu.Lock()
	r.handlers[cmd] = handler
	r.mu.Unlock()
}

// Clear removes any handler registered for cmd.
func (r *CTCPRegistry) Clear(cmd string) {
	cmd = strings.ToUpper(cmd)
	r.mu.Lock()
	delete(r.handlers, cmd)
	r.mu.Unlock()
}

// dispatch invokes the handler registered for ev.Command (or "*"),
// replying ERRMSG for unhandled queries (never for replies).
func (r *CTCPRegistry) dispatch(resp CTCPResponder, ev CTCPEvent) {
	r.mu.RLock()
	wildcard, hasWildcard := r.handlers["*"]
	handler, ok := r.handlers[ev.Command]
	r.mu.RUnlock()

	if hasWildcard {
		wildcard(resp, ev)
	}
	if ok {
		handler(resp, ev)
		return
	}
	if !ev.Reply && ev.Source != nil && IsValidNick(ev.Source.Name) {
		_ = resp.SendCTCP(ev.Server, ev.Source.Name, CTCP_ERRMSG, "that is an unknown CTCP query")
	}
}

func handleCTCPPing(r CTCPResponder, ev CTCPEvent) {
	if ev.Reply {
		return
	}
	_ = r.SendCTCP(ev.Server, ev.Source.Name, CTCP_PING, ev.Text)
}

func handleCTCPVersion(r CTCPResponder, ev CTCPEvent) {
	if ev.Reply {
		return
	}
	_ = r.SendCTCP(ev.Server, ev.Source.Name, CTCP_VERSION,
		"ircengine ("+runtime.Version()+", "+runtime.GOOS+"/"+runtime.GOARCH+")")
}

func handleCTCPSource(r CTCPResponder, ev CTCPEvent) {
	if ev.Reply {
		return
	}
	_ = r.SendCTCP(ev.Server, ev.Source.Name, CTCP_SOURCE, "https://github.com/quartzirc/ircengine")
}

func handleCTCPTime(r CTCPResponder, ev CTCPEvent) {
	if ev.Reply {
		return
	}
	_ = r.SendCTCP(ev.Server, ev.Source.Name, CTCP_TIME, time.Now().Format(time.RFC1123Z))
}
