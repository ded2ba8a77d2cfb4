// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import (
	"sync"
	"time"

	cmap "github.com/orcaman/concurrent-map"
)

// newMemberMap returns an empty membership map for a Channel.
func newMemberMap() cmap.ConcurrentMap { return cmap.New() }

// Member is a channel membership record: a user's nick plus their
// PREFIX characters in that channel (spec §3 MemberStatus).
type Member struct {
	Nick     string
	Prefixes string // e.g. "@+", ordered highest-privilege first.
}

// Rank returns m's privilege rank given the server's PREFIX mode
// ordering (higher is more privileged; 0 is unranked).
func (m Member) Rank(prefixModes string) int {
	return rankOf(prefixModes, m.Prefixes)
}

// Channel is the per-server mutable record for one channel (spec §3
// Channel). All mutation happens on the owning server's single writer
// task (state machine in mutations.go); Members uses cmap so readers
// can range it without holding the writer's lock.
type Channel struct {
	Name    string // display form (not folded).
	Topic   string
	TopicBy string
	TopicAt time.Time
	Created time.Time // from RPL_CREATIONTIME (329); zero if never observed.

	Modes CModes

	Members cmap.ConcurrentMap // folded nick -> Member

	// pendingNames accumulates 353 lines until 366 swaps them in as the
	// authoritative membership (spec §4.4 "Accumulate a pending snapshot;
	// on 366 swap into membership").
	pendingNames []Member
}

// Len returns the number of tracked members.
func (ch *Channel) Len() int { return ch.Members.Count() }

// Copy returns an independent snapshot of ch safe for a reader to keep
// after the writer resumes mutating.
func (ch *Channel) Copy() *Channel {
	if ch == nil {
		return nil
	}
	nc := &Channel{
		Name: ch.Name, Topic: ch.Topic, TopicBy: ch.TopicBy, TopicAt: ch.TopicAt,
		Created: ch.Created, Modes: ch.Modes.Copy(), Members: cmap.New(),
	}
	for entry := range ch.Members.IterBuffered() {
		nc.Members.Set(entry.Key, entry.Val)
	}
	return nc
}

// User is the per-server mutable record for one observed user (spec §3
// User). Removed once no channel and no open query references it.
type User struct {
	Nick    string
	Ident   string
	Host    string
	Account string
	Away    bool
	AwayMsg string

	FirstSeen  time.Time
	LastActive time.Time

	// Channels is the set of folded channel names the engine currently
	// observes this user in.
	Channels map[string]bool
}

// IsActive reports whether the user has been seen active in the last
// 30 minutes (teacher's state.go User.IsActive heuristic).
func (u *User) IsActive() bool {
	return u != nil && time.Since(u.LastActive) < 30*time.Minute
}

func (u *User) Copy() *User {
	if u == nil {
		return nil
	}
	nu := *u
	nu.Channels = make(map[string]bool, len(u.Channels))
	for k, v := range u.Channels {
		nu.Channels[k] = v
	}
	return &nu
}

// Capabilities tracks the four IRCv3 CAP sets (spec §3 Capability).
// Invariant: acknowledged ⊆ requested ⊆ advertised ∪ {previously NEW}.
type Capabilities struct {
	Advertised   map[string]string // name -> value (may be "").
	Requested    map[string]bool
	Acknowledged map[string]bool
	Rejected     map[string]bool
}

func newCapabilities() Capabilities {
	return Capabilities{
		Advertised:   make(map[string]string),
		Requested:    make(map[string]bool),
		Acknowledged: make(map[string]bool),
		Rejected:     make(map[string]bool),
	}
}

func (c Capabilities) Copy() Capabilities {
	nc := newCapabilities()
	for k, v := range c.Advertised {
		nc.Advertised[k] = v
	}
	for k := range c.Requested {
		nc.Requested[k] = true
	}
	for k := range c.Acknowledged {
		nc.Acknowledged[k] = true
	}
	for k := range c.Rejected {
		nc.Rejected[k] = true
	}
	return nc
}

// ServerInfo is welcome-burst metadata the engine accumulates but that
// isn't otherwise part of channel/user state (teacher-style
// supplement; spec.md's Data Model doesn't name it but the burst
// handling in §4.3 step 7 implies tracking it).
type ServerInfo struct {
	Name    string // the server's own name, from the Source of 001-005.
	Version string // from 004.
	Network string // from ISUPPORT NETWORK=.
	Created string // free-form text from 003 RPL_CREATED.
}

// serverState is the single-writer mutable state for one registered
// server (spec §4.4). Exactly one state-machine goroutine (run by the
// supervisor) calls the unexported mutators; every exported method
// takes the RWMutex so concurrent readers get a coherent view without
// ever observing a partially-applied message (spec §4.4 "mutations
// from a single message are atomic with respect to snapshot reads").
type serverState struct {
	mu sync.RWMutex

	connState ConnectionState

	nick     string
	ident    string
	host     string
	account  string

	channels cmap.ConcurrentMap // folded name -> *Channel
	users    cmap.ConcurrentMap // folded nick -> *User

	caps      Capabilities
	isupport  *isupportTable
	info      ServerInfo
	motd      []string

	seq uint64 // counter advanced by nextSeq; Bus numbers published events with its own counter.
}

func newServerState() *serverState {
	return &serverState{
		channels: cmap.New(),
		users:    cmap.New(),
		caps:     newCapabilities(),
		isupport: newIsupportTable(),
		connState: StateDisconnected,
	}
}

func (s *serverState) fold(name string) string {
	return s.isupport.caseMapping.Fold(name)
}

func (s *serverState) nextSeq() uint64 {
	s.seq++
	return s.seq
}

func (s *serverState) setNick(nick string) {
	s.mu.Lock()
	s.nick = nick
	s.mu.Unlock()
}

func (s *serverState) currentNick() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nick
}

func (s *serverState) setConnState(cs ConnectionState) {
	s.mu.Lock()
	s.connState = cs
	s.mu.Unlock()
}

func (s *serverState) getConnState() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connState
}

// createChannel creates an empty channel entry if absent, returning the
// (possibly pre-existing) channel and whether it was newly created.
func (s *serverState) createChannel(name string) (*Channel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.fold(name)
	if existing, ok := s.channels.Get(key); ok {
		return existing.(*Channel), false
	}
	ch := &Channel{
		Name:    name,
		Members: cmap.New(),
		Modes:   NewCModes(s.isupport.chanModes),
	}
	s.channels.Set(key, ch)
	return ch, true
}

func (s *serverState) deleteChannel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.fold(name)
	v, ok := s.channels.Get(key)
	if !ok {
		return
	}
	ch := v.(*Channel)
	for entry := range ch.Members.IterBuffered() {
		member := entry.Val.(Member)
		if uv, ok := s.users.Get(s.fold(member.Nick)); ok {
			u := uv.(*User)
			delete(u.Channels, key)
			if len(u.Channels) == 0 {
				s.users.Remove(s.fold(member.Nick))
			}
		}
	}
	s.channels.Remove(key)
}

// LookupChannel returns a snapshot copy, or nil if untracked.
func (s *serverState) LookupChannel(name string) *Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.channels.Get(s.fold(name))
	if !ok {
		return nil
	}
	return v.(*Channel).Copy()
}

func (s *serverState) lookupChannelLive(name string) *Channel {
	v, ok := s.channels.Get(s.fold(name))
	if !ok {
		return nil
	}
	return v.(*Channel)
}

// LookupUser returns a snapshot copy, or nil if untracked.
func (s *serverState) LookupUser(nick string) *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.users.Get(s.fold(nick))
	if !ok {
		return nil
	}
	return v.(*User).Copy()
}

func (s *serverState) lookupUserLive(nick string) *User {
	v, ok := s.users.Get(s.fold(nick))
	if !ok {
		return nil
	}
	return v.(*User)
}

// ensureUser returns the live user record for nick, creating it (from
// src, if given) when absent.
func (s *serverState) ensureUser(src *Source) *User {
	key := s.fold(src.Name)
	if v, ok := s.users.Get(key); ok {
		u := v.(*User)
		if src.Ident != "" {
			u.Ident = src.Ident
		}
		if src.Host != "" {
			u.Host = src.Host
		}
		return u
	}
	u := &User{
		Nick: src.Name, Ident: src.Ident, Host: src.Host,
		FirstSeen: time.Now(), LastActive: time.Now(),
		Channels: make(map[string]bool),
	}
	s.users.Set(key, u)
	return u
}

// addMember records nick as a member of channel (both live, already
// locked by the caller's mutation step).
func (s *serverState) addMember(ch *Channel, src *Source, prefixes string) {
	u := s.ensureUser(src)
	key := s.fold(src.Name)
	u.Channels[s.fold(ch.Name)] = true
	ch.Members.Set(key, Member{Nick: src.Name, Prefixes: prefixes})
}

// removeMember drops nick from channel, and drops the user entirely
// once it is in no channels (spec §3 User "Lifetime").
func (s *serverState) removeMember(ch *Channel, nick string) {
	key := s.fold(nick)
	ch.Members.Remove(key)
	if u, ok := s.users.Get(key); ok {
		user := u.(*User)
		delete(user.Channels, s.fold(ch.Name))
		if len(user.Channels) == 0 {
			s.users.Remove(key)
		}
	}
}

// renameUser moves a user from one folded key to another across every
// channel it's a member of, and updates our own nick if it was us.
func (s *serverState) renameUser(from, to string) {
	fromKey, toKey := s.fold(from), s.fold(to)

	if fromKey == s.fold(s.nick) {
		s.nick = to
	}

	v, ok := s.users.Pop(fromKey)
	if !ok {
		return
	}
	u := v.(*User)
	u.Nick = to
	u.LastActive = time.Now()
	s.users.Set(toKey, u)

	for chName := range u.Channels {
		if cv, ok := s.channels.Get(chName); ok {
			ch := cv.(*Channel)
			if m, ok := ch.Members.Get(fromKey); ok {
				member := m.(Member)
				member.Nick = to
				ch.Members.Remove(fromKey)
				ch.Members.Set(toKey, member)
			}
		}
	}
}

// reset clears all per-connection state for a fresh registration
// attempt (spec §4.3's AwaitWelcome/Burst reset semantics on reconnect).
func (s *serverState) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.channels = cmap.New()
	s.users = cmap.New()
	s.caps = newCapabilities()
	s.isupport = newIsupportTable()
	s.motd = nil
	s.info = ServerInfo{}
}

// ServerSnapshot is the cheap, read-only view returned by Engine.Snapshot
// (spec §6).
type ServerSnapshot struct {
	ID            ServerID
	ConnState     ConnectionState
	Nick          string
	Info          ServerInfo
	Capabilities  Capabilities
	Isupport      map[string]string
	Channels      map[string]*Channel // keyed by display name.
	MOTD          []string
}

func (s *serverState) Snapshot(id ServerID) ServerSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	channels := make(map[string]*Channel, s.channels.Count())
	for entry := range s.channels.IterBuffered() {
		ch := entry.Val.(*Channel)
		channels[ch.Name] = ch.Copy()
	}

	return ServerSnapshot{
		ID:           id,
		ConnState:    s.connState,
		Nick:         s.nick,
		Info:         s.info,
		Capabilities: s.caps.Copy(),
		Isupport:     s.isupport.Snapshot(),
		Channels:     channels,
		MOTD:         append([]string(nil), s.motd...),
	}
}
