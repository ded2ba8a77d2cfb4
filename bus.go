// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import "sync"

// EventKind distinguishes the semantic events the engine publishes
// from the raw wire Message that produced them (spec §4.6). A single
// incoming Message can fan out into zero or more Events.
type EventKind int

const (
	EventRaw EventKind = iota
	EventConnected
	EventDisconnected
	EventJoined
	EventParted
	EventKicked
	EventQuit
	EventNickChanged
	EventTopicChanged
	EventModeChanged
	EventMessageReceived
	EventNoticeReceived
	EventCTCPReceived
	EventCapabilityChanged
	EventIsupportUpdated
	EventAccountChanged
	EventAwayChanged
	EventError
	EventLagged
)

// Event is the semantic, already-interpreted notification published on
// a server's event bus (spec §3 Event, §4.6). Fields not relevant to
// Kind are left zero.
type Event struct {
	Seq    uint64
	Server ServerID
	Kind   EventKind

	Raw *Message // always set for EventRaw; set alongside for most derived kinds.

	Channel string
	Nick    string
	OldNick string
	Reason  string
	Text    string
	Tags    Tags

	Skipped uint64 // set only on EventLagged: how many events a slow consumer missed.
}

// busCapacity is the bounded ring size per server (spec §4.6 invariant
// 4: bounded memory, non-blocking publish). Sized generously enough
// that a consumer doing brief synchronous work (e.g. a database write)
// won't spuriously lag during a NAMES burst on a busy channel.
const busCapacity = 1024

// Bus is a bounded, multi-consumer ring buffer of Events for one
// server. Publish never blocks: a slow subscriber simply misses events
// and is told how many via a synthesized EventLagged, rather than
// backpressuring the writer (spec §4.6).
type Bus struct {
	mu   sync.Mutex
	ring []Event
	next uint64 // sequence number of the next slot to be written.

	subs map[int]*subscriber
	subN int
}

// ringCapacity returns the configured ring size, for deliver's oldest-
// entry computation.
func (b *Bus) ringCapacity() uint64 { return uint64(len(b.ring)) }

type subscriber struct {
	ch     chan Event
	cursor uint64 // next sequence number this subscriber hasn't seen.
}

// NewBus constructs an empty event bus using the default ring capacity.
func NewBus() *Bus {
	return NewBusWithCapacity(busCapacity)
}

// NewBusWithCapacity constructs an empty event bus with a
// caller-supplied ring size (spec allows per-server tuning of the
// event ring).
func NewBusWithCapacity(capacity int) *Bus {
	if capacity <= 0 {
		capacity = busCapacity
	}
	return &Bus{ring: make([]Event, capacity), subs: make(map[int]*subscriber)}
}

// Publish appends ev to the ring (assigning Seq) and wakes any
// subscriber with room in its channel. Never blocks.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	ev.Seq = b.next
	b.ring[b.next%b.ringCapacity()] = ev
	b.next++
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		b.deliver(s)
	}
}

// deliver pushes every event the subscriber hasn't seen yet into its
// channel, non-blockingly. If the subscriber's cursor has fallen
// behind the ring's oldest retained entry, the gap is collapsed into a
// single EventLagged before resuming from the oldest available entry.
func (b *Bus) deliver(s *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	oldest := uint64(0)
	if cap := b.ringCapacity(); b.next > cap {
		oldest = b.next - cap
	}
	if s.cursor < oldest {
		skipped := oldest - s.cursor
		select {
		case s.ch <- Event{Kind: EventLagged, Skipped: skipped, Seq: oldest}:
			s.cursor = oldest
		default:
			return
		}
	}

	for s.cursor < b.next {
		select {
		case s.ch <- b.ring[s.cursor%b.ringCapacity()]:
			s.cursor++
		default:
			return
		}
	}
}

// Subscription is a live handle on a Bus subscriber.
type Subscription struct {
	bus *Bus
	id  int
	ch  chan Event
}

// Events returns the channel to range over for delivered events.
func (sub *Subscription) Events() <-chan Event { return sub.ch }

// Close detaches the subscription from its bus and closes its channel.
func (sub *Subscription) Close() {
	sub.bus.mu.Lock()
	delete(sub.bus.subs, sub.id)
	sub.bus.mu.Unlock()
	close(sub.ch)
}

// subscriberBuffer is the capacity of each subscriber's channel. Once it
// is full deliver() stops pushing into it; EventLagged markers are
// synthesized when the subscriber's cursor falls behind the ring's oldest
// retained entry, not when this buffer fills.
const subscriberBuffer = 256

// Subscribe registers a new consumer starting from the current head of
// the bus (it does not replay history).
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	id := b.subN
	b.subN++
	s := &subscriber{ch: make(chan Event, subscriberBuffer), cursor: b.next}
	b.subs[id] = s
	b.mu.Unlock()
	return &Subscription{bus: b, id: id, ch: s.ch}
}
