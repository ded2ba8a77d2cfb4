// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

// Package ircengine implements the protocol engine that sits between raw
// TCP/TLS sockets and an IRC client's user-facing surface: capability
// negotiation, SASL, wire-format parsing and serialization, per-server
// state tracking, a flood-protected outbound queue, and an ordered
// semantic event bus. Front ends, bots, and scripting hosts are expected
// to sit on top of the Engine type and consume Events; the engine itself
// renders nothing and hosts no UI policy.
package ircengine
