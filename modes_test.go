// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCModesParse(t *testing.T) {
	cm := NewCModes("b,k,l,imnpst")
	deltas := cm.Parse("+o-b+l", []string{"nick", "*!*@host", "50"}, "ov")

	assert.Len(t, deltas, 3)

	assert.Equal(t, CMode{Add: true, Name: 'o', HasArg: true, Arg: "nick", IsPrefix: true}, deltas[0])
	assert.Equal(t, CMode{Add: false, Name: 'b', HasArg: true, Arg: "*!*@host"}, deltas[1])
	assert.Equal(t, CMode{Add: true, Name: 'l', HasArg: true, Arg: "50"}, deltas[2])
}

func TestCModesClassByClass(t *testing.T) {
	cm := NewCModes("b,k,l,imnpst")
	// class D ('s') never takes an arg even when set with no params left.
	deltas := cm.Parse("+s", nil, "")
	assert.Len(t, deltas, 1)
	assert.False(t, deltas[0].HasArg)

	// class C ('l') takes an arg only when adding.
	removeL := cm.Parse("-l", nil, "")
	assert.False(t, removeL[0].HasArg)
}

func TestCModesApplyLastWriterWins(t *testing.T) {
	cm := NewCModes("b,k,l,imnpst")
	cm.Apply(cm.Parse("+l", []string{"50"}, ""))
	assert.Equal(t, "+l 50", cm.String())

	cm.Apply(cm.Parse("+l", []string{"100"}, ""))
	assert.Equal(t, "+l 100", cm.String())

	cm.Apply(cm.Parse("-l", nil, ""))
	assert.Equal(t, "", cm.String())
}

func TestCModesApplyIgnoresPrefixDeltas(t *testing.T) {
	cm := NewCModes("b,k,l,imnpst")
	cm.Apply(cm.Parse("+o", []string{"nick"}, "ov"))
	assert.Equal(t, "", cm.String())
}

func TestIsValidUserPrefixAndParsePrefixes(t *testing.T) {
	assert.True(t, isValidUserPrefix("(ov)@+"))
	assert.False(t, isValidUserPrefix("ov@+"))
	assert.False(t, isValidUserPrefix("(ov)@"))

	modes, prefixes := parsePrefixes("(qaohv)~&@%+")
	assert.Equal(t, "qaohv", modes)
	assert.Equal(t, "~&@%+", prefixes)

	modes, prefixes = parsePrefixes("garbage")
	assert.Equal(t, "", modes)
	assert.Equal(t, "", prefixes)
}

func TestModeForPrefixAndPrefixForMode(t *testing.T) {
	mode, ok := modeForPrefix("ov", "@+", '@')
	assert.True(t, ok)
	assert.Equal(t, byte('o'), mode)

	char, ok := prefixForMode("ov", "@+", 'v')
	assert.True(t, ok)
	assert.Equal(t, byte('+'), char)

	_, ok = modeForPrefix("ov", "@+", '%')
	assert.False(t, ok)
}

func TestRankOf(t *testing.T) {
	// "qaohv" is ordered highest-privilege first.
	assert.Greater(t, rankOf("qaohv", "@"), rankOf("qaohv", "+"))
	assert.Equal(t, 0, rankOf("qaohv", ""))
	assert.Greater(t, rankOf("qaohv", "~@"), rankOf("qaohv", "@"))
}

func TestParseMemberPrefix(t *testing.T) {
	prefixes, nick := parseMemberPrefix("@+nick", "@+")
	assert.Equal(t, "@+", prefixes)
	assert.Equal(t, "nick", nick)

	prefixes, nick = parseMemberPrefix("plainnick", "@+")
	assert.Equal(t, "", prefixes)
	assert.Equal(t, "plainnick", nick)
}
