// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import "bytes"

// defaultChanTypes is used until a server's ISUPPORT CHANTYPES token has
// been observed (spec §3 IsupportToken, §4.4). '*' is included even
// though it isn't RFC-compliant, since it's commonly seen (e.g. ZNC).
const defaultChanTypes = "#&+!*"

// IsValidChannel reports whether channel looks like a well-formed
// channel name under the default CHANTYPES set (defaultChanTypes);
// isValidChannel takes an explicit set, with "" meaning the defaults.
//
//	channel    =  ( "#" / "+" / ( "!" channelid ) / "&" ) chanstring [ ":" chanstring ]
//	chanstring =  any octet except NUL, BELL, CR, LF, " ", "," and ":"
//	channelid  =  5( A-Z / 0-9 )
func IsValidChannel(channel string) bool {
	return isValidChannel(channel, defaultChanTypes)
}

func isValidChannel(channel, chanTypes string) bool {
	if len(channel) <= 1 || len(channel) > 50 {
		return false
	}
	if chanTypes == "" {
		chanTypes = defaultChanTypes
	}
	if !bytes.ContainsRune([]byte(chanTypes), rune(channel[0])) {
		return false
	}

	if channel[0] == '!' {
		if len(channel) < 7 {
			return false
		}
		for i := 1; i < 6; i++ {
			if (channel[i] < '0' || channel[i] > '9') && (channel[i] < 'A' || channel[i] > 'Z') {
				return false
			}
		}
	}

	bad := []byte{0x00, 0x07, '\r', '\n', ' ', ',', ':'}
	for i := 1; i < len(channel); i++ {
		if bytes.IndexByte(bad, channel[i]) != -1 {
			return false
		}
	}
	return true
}

// IsValidNick reports whether nick is a syntactically valid IRC
// nickname. Length limits are server-defined (ISUPPORT NICKLEN) and
// checked separately by callers that have state access.
//
//	nickname =  ( letter / special ) *( letter / digit / special / "-" )
//	special  =  0x5B-0x60 / 0x7B-0x7D
func IsValidNick(nick string) bool {
	if len(nick) == 0 {
		return false
	}
	if nick[0] < 0x41 || nick[0] > 0x7D {
		return false
	}
	for i := 1; i < len(nick); i++ {
		c := nick[i]
		if (c < 0x41 || c > 0x7D) && (c < '0' || c > '9') && c != '-' {
			return false
		}
	}
	return true
}
