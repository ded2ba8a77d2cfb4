// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import "github.com/google/uuid"

// ServerID is an opaque, stable identifier for a registered server
// configuration. It is assigned once by RegisterServer and survives
// reconnects; it only stops being valid once the server is removed from
// the engine.
type ServerID string

// newServerID mints a fresh ServerID. It is never derived from
// network-observable data (hostname, nick, etc.) so that two servers
// with identical configuration remain distinguishable.
func newServerID() ServerID {
	return ServerID(uuid.New().String())
}

// String implements fmt.Stringer.
func (id ServerID) String() string { return string(id) }

// ConnectionState is the coarse lifecycle state of a registered server
// (spec §4.7 Supervisor, §6 ConnectionStateChanged). The finer-grained
// registration sub-states (CapLsSent, NickSent, ...) live only inside
// the registration state machine (registration.go) and are not exposed
// here; StateRegistering covers all of them.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateRegistering
	StateReady
	StateReconnecting
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateRegistering:
		return "registering"
	case StateReady:
		return "ready"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
