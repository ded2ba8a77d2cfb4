// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import (
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// applyMutation is the single-writer state-machine step: given one
// parsed incoming Message, it mutates st in place, publishes the
// resulting semantic Events to bus, and returns any follow-up Messages
// that should be sent back to the server (spec §4.4's message ->
// mutation table).
func applyMutation(st *serverState, bus *Bus, id ServerID, m *Message) []*Message {
	bus.Publish(Event{Server: id, Kind: EventRaw, Raw: m})

	switch m.Command {
	case PING:
		return []*Message{{Command: PONG, Params: nil, Trailing: m.Trailing}}

	case ERROR:
		bus.Publish(Event{Server: id, Kind: EventError, Text: m.Trailing})
		return nil

	case JOIN:
		return applyJoin(st, bus, id, m)
	case PART:
		applyPart(st, bus, id, m)
	case KICK:
		applyKick(st, bus, id, m)
	case QUIT:
		applyQuit(st, bus, id, m)
	case NICK:
		applyNick(st, bus, id, m)
	case MODE:
		return applyMode(st, bus, id, m)
	case TOPIC:
		applyTopic(st, bus, id, m, true)
	case RPL_TOPIC:
		applyTopic(st, bus, id, m, false)
	case RPL_TOPICWHOTIME:
		applyTopicWhoTime(st, m)
	case RPL_NAMREPLY:
		applyNames(st, m)
	case RPL_ENDOFNAMES:
		applyEndOfNames(st, bus, id, m)
	case RPL_CREATIONTIME:
		applyCreationTime(st, m)
	case RPL_WHOREPLY:
		applyWho(st, bus, id, m)
	case RPL_ISUPPORT:
		applyIsupport(st, bus, id, m)
	case RPL_CREATED:
		applyCreated(st, m)
	case PRIVMSG:
		applyMessage(st, bus, id, m, EventMessageReceived)
	case NOTICE:
		applyMessage(st, bus, id, m, EventNoticeReceived)
	case CAP:
		// CAP lines change nothing here. registration.go's state machine
		// folds LS/ACK/NAK/NEW/DEL into st.caps, and the supervisor feeds
		// it only messages that arrive before the connection is Ready, so
		// a CAP NEW/DEL received after registration leaves st.caps as it is.
	case ACCOUNT:
		applyAccount(st, m)
	case AWAY:
		applyAway(st, m)
	case CHGHOST:
		applyChghost(st, m)
	}

	if acct, ok := m.Tags.Get("account"); ok && m.Source != nil {
		st.mu.Lock()
		if u := st.lookupUserLive(m.Source.Name); u != nil {
			u.Account = acct
		}
		st.mu.Unlock()
	}

	return nil
}

func applyJoin(st *serverState, bus *Bus, id ServerID, m *Message) []*Message {
	if m.Source == nil || len(m.Params) == 0 {
		return nil
	}
	chName := m.Params[0]

	st.mu.Lock()
	ch := st.lookupChannelLive(chName)
	if ch == nil {
		ch, _ = createChannelLocked(st, chName)
	}
	var prefixes string
	st.addMember(ch, m.Source, prefixes)

	u := st.lookupUserLive(m.Source.Name)
	if len(m.Params) >= 2 && m.Params[1] != "*" {
		u.Account = m.Params[1]
	}
	if len(m.Params) > 2 {
		// realname carried by extended-join, not separately modeled.
		_ = m.Params[2]
	}
	isSelf := st.fold(m.Source.Name) == st.fold(st.nick)
	if isSelf {
		st.ident = m.Source.Ident
		st.host = m.Source.Host
	}
	st.mu.Unlock()

	bus.Publish(Event{Server: id, Kind: EventJoined, Channel: chName, Nick: m.Source.Name, Raw: m})

	if isSelf {
		return []*Message{
			{Command: MODE, Params: []string{chName}},
			{Command: WHO, Params: []string{chName, "%tacuhnr,1"}},
		}
	}
	return []*Message{{Command: WHO, Params: []string{m.Source.Name, "%tacuhnr,1"}}}
}

// createChannelLocked assumes st.mu is already held.
func createChannelLocked(st *serverState, name string) (*Channel, bool) {
	key := st.fold(name)
	if existing, ok := st.channels.Get(key); ok {
		return existing.(*Channel), false
	}
	ch := &Channel{Name: name, Members: newMemberMap(), Modes: NewCModes(st.isupport.chanModes)}
	st.channels.Set(key, ch)
	return ch, true
}

func applyPart(st *serverState, bus *Bus, id ServerID, m *Message) {
	if m.Source == nil || len(m.Params) == 0 {
		return
	}
	chName := m.Params[0]

	st.mu.Lock()
	ch := st.lookupChannelLive(chName)
	isSelf := st.fold(m.Source.Name) == st.fold(st.nick)
	if ch != nil {
		if isSelf {
			st.channels.Remove(st.fold(chName))
		} else {
			st.removeMember(ch, m.Source.Name)
		}
	}
	st.mu.Unlock()

	bus.Publish(Event{Server: id, Kind: EventParted, Channel: chName, Nick: m.Source.Name, Reason: m.Trailing, Raw: m})
}

func applyKick(st *serverState, bus *Bus, id ServerID, m *Message) {
	if len(m.Params) < 2 {
		return
	}
	chName, target := m.Params[0], m.Params[1]

	st.mu.Lock()
	ch := st.lookupChannelLive(chName)
	isSelf := st.fold(target) == st.fold(st.nick)
	if ch != nil {
		if isSelf {
			st.channels.Remove(st.fold(chName))
		} else {
			st.removeMember(ch, target)
		}
	}
	st.mu.Unlock()

	bus.Publish(Event{Server: id, Kind: EventKicked, Channel: chName, Nick: target, Reason: m.Trailing, Raw: m})
}

func applyQuit(st *serverState, bus *Bus, id ServerID, m *Message) {
	if m.Source == nil {
		return
	}
	if st.fold(m.Source.Name) == st.fold(st.nick) {
		return
	}

	st.mu.Lock()
	st.users.Remove(st.fold(m.Source.Name))
	for entry := range st.channels.IterBuffered() {
		ch := entry.Val.(*Channel)
		ch.Members.Remove(st.fold(m.Source.Name))
	}
	st.mu.Unlock()

	bus.Publish(Event{Server: id, Kind: EventQuit, Nick: m.Source.Name, Reason: m.Trailing, Raw: m})
}

func applyNick(st *serverState, bus *Bus, id ServerID, m *Message) {
	if m.Source == nil || len(m.Params) < 1 {
		return
	}
	old := m.Source.Name
	newNick := m.Params[0]

	st.mu.Lock()
	st.renameUser(old, newNick)
	st.mu.Unlock()

	bus.Publish(Event{Server: id, Kind: EventNickChanged, Nick: newNick, OldNick: old, Raw: m})
}

func applyMode(st *serverState, bus *Bus, id ServerID, m *Message) []*Message {
	if len(m.Params) == 0 {
		return nil
	}
	target := m.Params[0]

	if !isValidChannel(target, st.isupport.chanTypes) {
		return nil // user mode; not tracked per spec's Channel-centric model.
	}

	st.mu.Lock()
	ch := st.lookupChannelLive(target)
	if ch == nil {
		st.mu.Unlock()
		return nil
	}

	var flags string
	var args []string
	if m.Command == RPL_CHANNELMODEIS {
		if len(m.Params) < 2 {
			st.mu.Unlock()
			return nil
		}
		flags = m.Params[1]
		args = m.Params[2:]
	} else {
		flags = m.Params[1]
		args = m.Params[2:]
	}

	deltas := ch.Modes.Parse(flags, args, st.isupport.prefixModes)
	var plain []CMode
	for _, d := range deltas {
		if d.IsPrefix {
			applyPrefixDelta(st, ch, d)
			continue
		}
		plain = append(plain, d)
	}
	ch.Modes.Apply(plain)
	st.mu.Unlock()

	bus.Publish(Event{Server: id, Kind: EventModeChanged, Channel: target, Text: ch.Modes.String(), Raw: m})
	return nil
}

// applyPrefixDelta updates one member's PREFIX characters in response
// to a +o/-o/+v/-v/... mode delta (assumes st.mu held).
func applyPrefixDelta(st *serverState, ch *Channel, d CMode) {
	key := st.fold(d.Arg)
	v, ok := ch.Members.Get(key)
	if !ok {
		return
	}
	member := v.(Member)
	char, ok := prefixForMode(st.isupport.prefixModes, st.isupport.prefixChars, d.Name)
	if !ok {
		return
	}
	if d.Add {
		if !strings.ContainsRune(member.Prefixes, rune(char)) {
			member.Prefixes += string(char)
		}
		// Keep Prefixes in PREFIX order (highest privilege first).
		ordered := make([]byte, 0, len(member.Prefixes))
		for i := 0; i < len(st.isupport.prefixChars); i++ {
			if strings.IndexByte(member.Prefixes, st.isupport.prefixChars[i]) >= 0 {
				ordered = append(ordered, st.isupport.prefixChars[i])
			}
		}
		member.Prefixes = string(ordered)
	} else {
		member.Prefixes = strings.ReplaceAll(member.Prefixes, string(char), "")
	}
	ch.Members.Set(key, member)
}

func applyTopic(st *serverState, bus *Bus, id ServerID, m *Message, live bool) {
	var name string
	switch {
	case live && len(m.Params) >= 1:
		name = m.Params[0]
	case !live && len(m.Params) >= 2:
		name = m.Params[1]
	default:
		return
	}

	st.mu.Lock()
	ch := st.lookupChannelLive(name)
	if ch == nil {
		st.mu.Unlock()
		return
	}
	ch.Topic = m.Trailing
	if live && m.Source != nil {
		ch.TopicBy = m.Source.Name
		ch.TopicAt = time.Now()
	}
	st.mu.Unlock()

	bus.Publish(Event{Server: id, Kind: EventTopicChanged, Channel: name, Text: m.Trailing, Raw: m})
}

// applyTopicWhoTime handles 333 (setter/time for the topic reported by
// the preceding 332).
func applyTopicWhoTime(st *serverState, m *Message) {
	if len(m.Params) < 4 {
		return
	}
	name, who, when := m.Params[1], m.Params[2], m.Params[3]

	st.mu.Lock()
	defer st.mu.Unlock()
	ch := st.lookupChannelLive(name)
	if ch == nil {
		return
	}
	ch.TopicBy = who
	if unix, err := strconv.ParseInt(when, 10, 64); err == nil {
		ch.TopicAt = time.Unix(unix, 0)
	}
}

// applyNames accumulates a 353 line's member tokens into the channel's
// pending membership snapshot (swapped in on 366, spec §4.4).
func applyNames(st *serverState, m *Message) {
	if len(m.Params) < 3 {
		return
	}
	name := m.Params[2]

	st.mu.Lock()
	defer st.mu.Unlock()
	ch := st.lookupChannelLive(name)
	if ch == nil {
		ch, _ = createChannelLocked(st, name)
	}

	for _, tok := range strings.Fields(m.Trailing) {
		prefixes, nick := parseMemberPrefix(tok, st.isupport.prefixChars)
		if nick == "" {
			continue
		}
		if strings.Contains(nick, "@") {
			if src := ParseSource(nick); src != nil {
				ch.pendingNames = append(ch.pendingNames, Member{Nick: src.Name, Prefixes: prefixes})
			}
			continue
		}
		if !IsValidNick(nick) {
			continue
		}
		ch.pendingNames = append(ch.pendingNames, Member{Nick: nick, Prefixes: prefixes})
	}
}

func applyEndOfNames(st *serverState, bus *Bus, id ServerID, m *Message) {
	if len(m.Params) < 2 {
		return
	}
	name := m.Params[1]

	st.mu.Lock()
	ch := st.lookupChannelLive(name)
	if ch == nil {
		st.mu.Unlock()
		return
	}
	pending := ch.pendingNames
	ch.pendingNames = nil
	ch.Members = newMemberMap()
	for _, member := range pending {
		src := &Source{Name: member.Nick}
		st.addMember(ch, src, member.Prefixes)
	}
	st.mu.Unlock()

	bus.Publish(Event{Server: id, Kind: EventJoined, Channel: name, Text: "names", Raw: m})
}

func applyCreationTime(st *serverState, m *Message) {
	if len(m.Params) < 3 {
		return
	}
	name, created := m.Params[1], m.Params[2]

	st.mu.Lock()
	defer st.mu.Unlock()
	ch := st.lookupChannelLive(name)
	if ch == nil {
		return
	}
	if unix, err := strconv.ParseInt(created, 10, 64); err == nil {
		ch.Created = time.Unix(unix, 0)
	}
}

// applyWho handles RPL_WHOREPLY: "<me> <chan> <user> <host> <server> <nick> <H|G>[*][@|+] :<hops> <real>".
func applyWho(st *serverState, bus *Bus, id ServerID, m *Message) {
	if len(m.Params) < 6 {
		return
	}
	ident, host, nick := m.Params[2], m.Params[3], m.Params[5]

	st.mu.Lock()
	u := st.lookupUserLive(nick)
	if u == nil {
		u = st.ensureUser(&Source{Name: nick, Ident: ident, Host: host})
	} else {
		u.Ident = ident
		u.Host = host
	}
	st.mu.Unlock()

	bus.Publish(Event{Server: id, Kind: EventRaw, Nick: nick, Raw: m})
}

func applyIsupport(st *serverState, bus *Bus, id ServerID, m *Message) {
	if len(m.Params) < 2 {
		return
	}
	body := m.Params[1:]

	st.mu.Lock()
	changed := st.isupport.merge(ParseIsupport(body))
	st.mu.Unlock()

	if len(changed) > 0 {
		bus.Publish(Event{Server: id, Kind: EventIsupportUpdated, Raw: m})
	}
}

func applyCreated(st *serverState, m *Message) {
	if m.Trailing == "" {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if t, err := dateparse.ParseAny(m.Trailing); err == nil {
		st.info.Created = t.Format(time.RFC3339)
	} else {
		st.info.Created = m.Trailing
	}
}

func applyAccount(st *serverState, m *Message) {
	if m.Source == nil || len(m.Params) != 1 {
		return
	}
	account := m.Params[0]
	if account == "*" {
		account = ""
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if u := st.lookupUserLive(m.Source.Name); u != nil {
		u.Account = account
	}
}

func applyAway(st *serverState, m *Message) {
	if m.Source == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	u := st.lookupUserLive(m.Source.Name)
	if u == nil {
		return
	}
	u.Away = m.Trailing != ""
	u.AwayMsg = m.Trailing
}

// applyMessage handles PRIVMSG/NOTICE: CTCP-formatted text is left to
// ctcp.go's decode/dispatch (run by the caller alongside this), so this
// only updates LastActive and publishes the plain-text Event.
func applyMessage(st *serverState, bus *Bus, id ServerID, m *Message, kind EventKind) {
	if m.Source == nil || len(m.Params) == 0 {
		return
	}
	target := m.Params[0]

	st.mu.Lock()
	if u := st.lookupUserLive(m.Source.Name); u != nil {
		u.LastActive = time.Now()
	}
	st.mu.Unlock()

	bus.Publish(Event{Server: id, Kind: kind, Channel: target, Nick: m.Source.Name, Text: m.Trailing, Raw: m})
}

func applyChghost(st *serverState, m *Message) {
	if m.Source == nil || len(m.Params) != 2 {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	u := st.lookupUserLive(m.Source.Name)
	if u == nil {
		return
	}
	u.Ident, u.Host = m.Params[0], m.Params[1]
}
