// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import "strings"

// CMode is a single parsed mode change from a MODE delta (spec §4.4,
// "apply the delta parsed against CHANMODES classes A/B/C/D and
// PREFIX").
type CMode struct {
	Add     bool
	Name    byte
	HasArg  bool // true for classes A/B, and C when Add.
	Arg     string
	IsPrefix bool // true when Name is a PREFIX mode letter (e.g. 'o', 'v'), not a CHANMODES class.
}

// Short renders e.g. "+o" or "-b".
func (m CMode) Short() string {
	sign := byte('-')
	if m.Add {
		sign = '+'
	}
	if m.Arg == "" {
		return string([]byte{sign, m.Name})
	}
	return string([]byte{sign, m.Name}) + " " + m.Arg
}

// CModes holds the channel-mode class table derived from CHANMODES plus
// the flag/parameterized modes currently applied to a channel (this is
// distinct from membership prefixes, which live on each Member).
type CModes struct {
	listArgs string // class A: always has an arg; returns the list when parsed with no arg (bans, exceptions, invites).
	setArgs  string // class B: always has an arg.
	onArgs   string // class C: has an arg only when being set.
	noArgs   string // class D: never has an arg.

	set []CMode // currently-applied modes, one entry per letter (A-list modes included, last argument wins).
}

// NewCModes builds a class table from a raw CHANMODES value
// ("A,B,C,D"); malformed input degrades to all-classes-empty rather
// than failing, matching the parser's "never panic" discipline.
func NewCModes(chanModes string) CModes {
	parts := strings.SplitN(chanModes, ",", 4)
	for len(parts) < 4 {
		parts = append(parts, "")
	}
	return CModes{listArgs: parts[0], setArgs: parts[1], onArgs: parts[2], noArgs: parts[3]}
}

// Copy returns an independent copy safe to hand to a snapshot reader.
func (c CModes) Copy() CModes {
	nc := c
	nc.set = append([]CMode(nil), c.set...)
	return nc
}

func (c CModes) classify(adding bool, mode byte) (hasArg bool) {
	switch {
	case strings.IndexByte(c.listArgs, mode) >= 0:
		return true
	case strings.IndexByte(c.setArgs, mode) >= 0:
		return true
	case strings.IndexByte(c.onArgs, mode) >= 0:
		return adding
	default:
		return false
	}
}

// Parse turns a MODE flags string ("+o-b+l") plus its trailing
// parameter list into individual CMode values, consuming one parameter
// per mode that classify() says takes one. prefixModes marks which
// letters are PREFIX (membership) modes rather than CHANMODES classes.
func (c CModes) Parse(flags string, args []string, prefixModes string) []CMode {
	var out []CMode
	add := true
	argIdx := 0

	for i := 0; i < len(flags); i++ {
		switch flags[i] {
		case '+':
			add = true
			continue
		case '-':
			add = false
			continue
		}

		m := CMode{Name: flags[i], Add: add}
		if strings.IndexByte(prefixModes, flags[i]) >= 0 {
			m.IsPrefix = true
			m.HasArg = true
		} else {
			m.HasArg = c.classify(add, flags[i])
		}

		if m.HasArg && argIdx < len(args) {
			m.Arg = args[argIdx]
			argIdx++
		} else {
			m.HasArg = false
		}

		out = append(out, m)
	}
	return out
}

// Apply folds non-prefix mode changes into the persistent flag/param
// set (last writer wins per letter; a '-' removes any existing entry
// for that letter). Prefix-mode changes are not tracked here — they
// mutate per-member MemberStatus instead (see mutations.go).
func (c *CModes) Apply(deltas []CMode) {
	next := make([]CMode, 0, len(c.set))
	for _, existing := range c.set {
		keep := true
		for _, d := range deltas {
			if d.IsPrefix {
				continue
			}
			if d.Name == existing.Name && d.Add {
				keep = false // superseded below.
			}
			if d.Name == existing.Name && !d.Add {
				keep = false
			}
		}
		if keep {
			next = append(next, existing)
		}
	}
	for _, d := range deltas {
		if d.IsPrefix || !d.Add {
			continue
		}
		next = append(next, d)
	}
	c.set = next
}

// String renders the persistent mode set as "+modes args...".
func (c CModes) String() string {
	if len(c.set) == 0 {
		return ""
	}
	var letters, args strings.Builder
	letters.WriteByte('+')
	for _, m := range c.set {
		letters.WriteByte(m.Name)
		if m.Arg != "" {
			args.WriteByte(' ')
			args.WriteString(m.Arg)
		}
	}
	return letters.String() + args.String()
}

func isValidChannelMode(raw string) bool {
	if raw == "" {
		return false
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != ',' && (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}

// isValidUserPrefix validates a PREFIX token of the form "(modes)chars"
// with matching lengths.
func isValidUserPrefix(raw string) bool {
	if len(raw) < 1 || raw[0] != '(' {
		return false
	}
	i := strings.IndexByte(raw, ')')
	if i < 1 {
		return false
	}
	return len(raw[1:i]) == len(raw[i+1:])
}

// parsePrefixes splits "(ov)@+" into ("ov", "@+"); both returned strings
// are empty on malformed input.
func parsePrefixes(raw string) (modes, prefixes string) {
	if !isValidUserPrefix(raw) {
		return "", ""
	}
	i := strings.IndexByte(raw, ')')
	return raw[1:i], raw[i+1:]
}

// modeForPrefix/prefixForMode translate between a PREFIX mode letter
// (e.g. 'o') and its display character (e.g. '@') given the server's
// negotiated tables.
func modeForPrefix(prefixModes, prefixChars string, char byte) (mode byte, ok bool) {
	i := strings.IndexByte(prefixChars, char)
	if i < 0 || i >= len(prefixModes) {
		return 0, false
	}
	return prefixModes[i], true
}

func prefixForMode(prefixModes, prefixChars string, mode byte) (char byte, ok bool) {
	i := strings.IndexByte(prefixModes, mode)
	if i < 0 || i >= len(prefixChars) {
		return 0, false
	}
	return prefixChars[i], true
}

// rankOf returns a member's privilege rank for sorting/IsAtLeast checks:
// higher is more privileged. Unranked (no prefix) is 0.
func rankOf(prefixModes string, prefixes string) int {
	best := 0
	for i := 0; i < len(prefixes); i++ {
		if idx := strings.IndexByte(prefixModes, prefixes[i]); idx >= 0 {
			// prefixModes is ordered highest-privilege first (as servers
			// advertise PREFIX), so a lower index is higher rank.
			rank := len(prefixModes) - idx
			if rank > best {
				best = rank
			}
		}
	}
	return best
}

// parseMemberPrefix splits a NAMES-reply token like "@+nick" into its
// prefix characters and bare nick (spec S4).
func parseMemberPrefix(raw, prefixChars string) (prefixes, nick string) {
	i := 0
	for i < len(raw) && strings.IndexByte(prefixChars, raw[i]) >= 0 {
		i++
	}
	return raw[:i], raw[i:]
}
