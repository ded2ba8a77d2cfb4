// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIsupport(t *testing.T) {
	tokens := ParseIsupport([]string{"CASEMAPPING=rfc1459", "EXCEPTS", "-OLDTOKEN", "CHANMODES=eIb,k,l,imnpst"})
	assert.Equal(t, []IsupportToken{
		{Key: "CASEMAPPING", Value: "rfc1459", HasValue: true},
		{Key: "EXCEPTS"},
		{Key: "-OLDTOKEN"},
		{Key: "CHANMODES", Value: "eIb,k,l,imnpst", HasValue: true},
	}, tokens)
}

func TestIsupportTableDefaults(t *testing.T) {
	ist := newIsupportTable()
	assert.Equal(t, CaseMapRFC1459, ist.caseMapping)
	assert.Equal(t, defaultChanModes, ist.chanModes)
	assert.Equal(t, defaultChanTypes, ist.chanTypes)
	assert.Equal(t, "ov", ist.prefixModes)
	assert.Equal(t, "@+", ist.prefixChars)
}

func TestIsupportTableMergeRecomputes(t *testing.T) {
	ist := newIsupportTable()
	changed := ist.merge(ParseIsupport([]string{"PREFIX=(qaohv)~&@%+", "NETWORK=Testnet"}))
	assert.ElementsMatch(t, []string{"PREFIX", "NETWORK"}, changed)
	assert.Equal(t, "qaohv", ist.prefixModes)
	assert.Equal(t, "~&@%+", ist.prefixChars)

	v, ok := ist.Get("NETWORK")
	assert.True(t, ok)
	assert.Equal(t, "Testnet", v)
}

func TestIsupportTableMergeRetraction(t *testing.T) {
	ist := newIsupportTable()
	ist.merge(ParseIsupport([]string{"EXCEPTS"}))
	_, ok := ist.Get("EXCEPTS")
	assert.True(t, ok)

	ist.merge(ParseIsupport([]string{"-EXCEPTS"}))
	_, ok = ist.Get("EXCEPTS")
	assert.False(t, ok)
}

func TestIsupportTableIgnoresMalformedPrefixAndChanmodes(t *testing.T) {
	ist := newIsupportTable()
	ist.merge(ParseIsupport([]string{"PREFIX=garbage", "CHANMODES=***"}))
	assert.Equal(t, "ov", ist.prefixModes)
	assert.Equal(t, defaultChanModes, ist.chanModes)
}
