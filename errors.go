// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import (
	"errors"
	"fmt"
)

// Policy errors are returned synchronously to the caller (spec §7); they
// are sentinel values so callers can use errors.Is.
var (
	// ErrBackpressure is returned by Submit when a server's outbound
	// command queue is full. Commands are never silently dropped.
	ErrBackpressure = errors.New("ircengine: command queue is full")
	// ErrNotConnected is returned by Submit when the target server isn't
	// in the Registered state.
	ErrNotConnected = errors.New("ircengine: server is not connected")
	// ErrInvalidTarget is returned when a command names an RFC-invalid
	// nickname or channel.
	ErrInvalidTarget = errors.New("ircengine: invalid target")
	// ErrUnknownServer is returned by operations given a ServerID that was
	// never registered (or has since been removed).
	ErrUnknownServer = errors.New("ircengine: unknown server id")
	// ErrNickExhausted's text is published as an EventError when the
	// alternate nick list and the configured collision-retry cap are both
	// exhausted during registration. The connection state is not changed
	// at that point; the attempt ends when the registration timeout fires.
	ErrNickExhausted = errors.New("ircengine: nickname alternatives exhausted")
)

// ErrInvalidConfig is returned when a ServerConfig fails validation,
// before any connection attempt is made.
type ErrInvalidConfig struct {
	Field string
	Err   error
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("ircengine: invalid configuration (%s): %v", e.Field, e.Err)
}

func (e *ErrInvalidConfig) Unwrap() error { return e.Err }

// TransportErrorKind classifies a transport-level failure (spec §7).
type TransportErrorKind int

const (
	TransportDNS TransportErrorKind = iota
	TransportTCP
	TransportTLS
	TransportProxyNegotiation
	TransportIO
	TransportPeerReset
	TransportReadTimeout
	TransportProtocolError
)

func (k TransportErrorKind) String() string {
	switch k {
	case TransportDNS:
		return "dns"
	case TransportTCP:
		return "tcp"
	case TransportTLS:
		return "tls"
	case TransportProxyNegotiation:
		return "proxy_negotiation"
	case TransportIO:
		return "io"
	case TransportPeerReset:
		return "peer_reset"
	case TransportReadTimeout:
		return "read_timeout"
	case TransportProtocolError:
		return "protocol_error"
	default:
		return "unknown"
	}
}

// TransportError wraps a classified transport failure. Only TransportTLS
// (certificate validation failures, specifically) is non-retryable by
// default; every other kind triggers supervisor-driven backoff.
type TransportError struct {
	Kind      TransportErrorKind
	Server    ServerID
	Err       error
	Retryable bool
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ircengine: transport error (%s): %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RegistrationTimeoutError is returned when no 001 RPL_WELCOME arrives
// within the configured registration timeout.
type RegistrationTimeoutError struct {
	Server ServerID
}

func (e *RegistrationTimeoutError) Error() string {
	return fmt.Sprintf("ircengine: registration timed out for server %s", e.Server)
}

// FatalError wraps an unrecoverable condition (certificate validation
// failure without override, state corruption). The connection is held
// Failed and no automatic reconnect is attempted.
type FatalError struct {
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("ircengine: fatal: %s: %v", e.Reason, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// ParseError describes a line that failed to parse as a Message (spec
// §4.1). It is published to the event bus; the connection is not
// dropped and the offending line is discarded.
type ParseError struct {
	Line   []byte
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ircengine: parse error at offset %d: %s", e.Offset, e.Reason)
}

// SerializeTooLongError is returned by Message.Bytes/Message.Validate
// when the message or tag section would exceed the wire limits. The
// codec never silently truncates.
type SerializeTooLongError struct {
	// Section is "message" or "tags".
	Section string
	Limit   int
	Actual  int
}

func (e *SerializeTooLongError) Error() string {
	return fmt.Sprintf("ircengine: serialize error: %s section too long (%d > %d)", e.Section, e.Actual, e.Limit)
}

// SASLError reports a failed SASL authentication attempt (spec §4.3 step
// 6 and §7 Auth errors).
type SASLError struct {
	Mechanism string
	Numeric   string
	Retryable bool
	Reason    string
}

func (e *SASLError) Error() string {
	return fmt.Sprintf("ircengine: sasl %s failed (%s): %s", e.Mechanism, e.Numeric, e.Reason)
}
