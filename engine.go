// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import (
	"context"
	"fmt"
	"sync"
)

// Engine is the top-level handle for zero or more registered IRC
// servers (spec §6). It owns each server's supervisor, and is safe for
// concurrent use from any number of goroutines.
type Engine struct {
	cfg EngineConfig

	mu      sync.Mutex
	servers map[ServerID]*supervisor
	cancel  map[ServerID]context.CancelFunc
	wg      sync.WaitGroup
}

// NewEngine constructs an Engine using cfg as the process-wide default
// tuning for every server it registers.
func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		cfg:     cfg,
		servers: make(map[ServerID]*supervisor),
		cancel:  make(map[ServerID]context.CancelFunc),
	}
}

// RegisterServer validates sc and assigns it a fresh ServerID. The
// connection itself does not start until Open is called with the
// returned ID (spec §6).
func (e *Engine) RegisterServer(sc *ServerConfig) (ServerID, error) {
	if err := sc.isValid(); err != nil {
		return "", err
	}

	id := newServerID()
	sv := newSupervisor(id, sc, e.cfg)

	e.mu.Lock()
	e.servers[id] = sv
	e.mu.Unlock()

	return id, nil
}

// Open starts (or restarts) a registered server's supervisor loop,
// returning once the connect/reconnect loop has been launched (not once
// registration completes — watch Subscribe or Snapshot for that).
func (e *Engine) Open(ctx context.Context, id ServerID) error {
	e.mu.Lock()
	sv, ok := e.servers[id]
	if !ok {
		e.mu.Unlock()
		return ErrUnknownServer
	}
	if _, running := e.cancel[id]; running {
		e.mu.Unlock()
		return fmt.Errorf("ircengine: server %s is already open", id)
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel[id] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		_ = sv.Run(runCtx)
		e.mu.Lock()
		delete(e.cancel, id)
		e.mu.Unlock()
	}()

	return nil
}

// Close gracefully disconnects one server (QUIT, then stop reconnect
// attempts) without removing its registration — Open can be called
// again later.
func (e *Engine) Close(id ServerID, reason string) error {
	e.mu.Lock()
	sv, ok := e.servers[id]
	e.mu.Unlock()
	if !ok {
		return ErrUnknownServer
	}
	sv.Quit(reason)
	return nil
}

// CloseAll gracefully disconnects every registered server and waits for
// their supervisor goroutines to exit.
func (e *Engine) CloseAll(reason string) {
	e.mu.Lock()
	ids := make([]ServerID, 0, len(e.servers))
	for id := range e.servers {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		_ = e.Close(id, reason)
	}
	e.wg.Wait()
}

// Submit enqueues req for sending on the given server (spec §6). It
// returns ErrUnknownServer, ErrNotConnected, or ErrBackpressure rather
// than blocking or silently dropping the request.
func (e *Engine) Submit(id ServerID, req CommandRequest) error {
	sv, err := e.lookup(id)
	if err != nil {
		return err
	}
	if req.Message != nil && sv.state.getConnState() != StateReady && !req.Priority {
		return ErrNotConnected
	}
	return sv.queue.Submit(req)
}

// SubmitLabeled submits req with IRCv3 labeled-response correlation,
// returning a channel that receives the correlated reply (spec §4.5).
func (e *Engine) SubmitLabeled(id ServerID, m *Message) (<-chan *Message, error) {
	sv, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	label, replies := sv.labels.NewLabel()
	if err := sv.queue.Submit(CommandRequest{Message: m, Label: label}); err != nil {
		return nil, err
	}
	return replies, nil
}

// Snapshot returns a point-in-time copy of one server's tracked state
// (spec §4.4, §6).
func (e *Engine) Snapshot(id ServerID) (ServerSnapshot, error) {
	sv, err := e.lookup(id)
	if err != nil {
		return ServerSnapshot{}, err
	}
	return sv.state.Snapshot(id), nil
}

// Subscribe returns a live feed of semantic Events for one server (spec
// §4.6, §6). Callers must Close the subscription when done.
func (e *Engine) Subscribe(id ServerID) (*Subscription, error) {
	sv, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	return sv.bus.Subscribe(), nil
}

func (e *Engine) lookup(id ServerID) (*supervisor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sv, ok := e.servers[id]
	if !ok {
		return nil, ErrUnknownServer
	}
	return sv, nil
}

// The remaining methods are thin, validated convenience wrappers around
// Submit for the commands most callers need (spec §6), mirroring the
// teacher's Commands helper.

func (e *Engine) Join(id ServerID, channels ...string) error {
	max := maxMessageLength - len(JOIN) - 1
	var buf string
	for i, ch := range channels {
		if !IsValidChannel(ch) {
			return fmt.Errorf("%w: %s", ErrInvalidTarget, ch)
		}
		if len(buf+","+ch) > max && buf != "" {
			if err := e.Submit(id, CommandRequest{Message: &Message{Command: JOIN, Params: []string{buf}}}); err != nil {
				return err
			}
			buf = ""
		}
		if buf == "" {
			buf = ch
		} else {
			buf += "," + ch
		}
		if i == len(channels)-1 {
			return e.Submit(id, CommandRequest{Message: &Message{Command: JOIN, Params: []string{buf}}})
		}
	}
	return nil
}

func (e *Engine) Part(id ServerID, channel, reason string) error {
	if !IsValidChannel(channel) {
		return fmt.Errorf("%w: %s", ErrInvalidTarget, channel)
	}
	return e.Submit(id, CommandRequest{Message: &Message{Command: PART, Params: []string{channel}, Trailing: reason}})
}

func (e *Engine) Message(id ServerID, target, text string) error {
	if !IsValidNick(target) && !IsValidChannel(target) {
		return fmt.Errorf("%w: %s", ErrInvalidTarget, target)
	}
	return e.submitSplit(id, &Message{Command: PRIVMSG, Params: []string{target}, Trailing: text})
}

func (e *Engine) Notice(id ServerID, target, text string) error {
	if !IsValidNick(target) && !IsValidChannel(target) {
		return fmt.Errorf("%w: %s", ErrInvalidTarget, target)
	}
	return e.submitSplit(id, &Message{Command: NOTICE, Params: []string{target}, Trailing: text})
}

// submitSplit splits m across the wire-length limit before submitting
// each part (spec's supplemented long-message-splitting feature).
func (e *Engine) submitSplit(id ServerID, m *Message) error {
	sv, err := e.lookup(id)
	if err != nil {
		return err
	}
	for _, part := range splitMessage(sv.state.isupport, m) {
		if err := e.Submit(id, CommandRequest{Message: part}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) Action(id ServerID, target, text string) error {
	return e.Message(id, target, encodeCTCPRaw("ACTION", text))
}

func (e *Engine) SendCTCP(id ServerID, target, ctcpType, text string) error {
	return e.Notice(id, target, encodeCTCPRaw(ctcpType, text))
}

func (e *Engine) SendCTCPQuery(id ServerID, target, ctcpType, text string) error {
	return e.Message(id, target, encodeCTCPRaw(ctcpType, text))
}

func (e *Engine) Topic(id ServerID, channel, topic string) error {
	if !IsValidChannel(channel) {
		return fmt.Errorf("%w: %s", ErrInvalidTarget, channel)
	}
	return e.Submit(id, CommandRequest{Message: &Message{Command: TOPIC, Params: []string{channel}, Trailing: topic}})
}

func (e *Engine) Kick(id ServerID, channel, nick, reason string) error {
	if !IsValidChannel(channel) {
		return fmt.Errorf("%w: %s", ErrInvalidTarget, channel)
	}
	if !IsValidNick(nick) {
		return fmt.Errorf("%w: %s", ErrInvalidTarget, nick)
	}
	return e.Submit(id, CommandRequest{Message: &Message{Command: KICK, Params: []string{channel, nick}, Trailing: reason}})
}

func (e *Engine) Invite(id ServerID, channel, nick string) error {
	if !IsValidChannel(channel) {
		return fmt.Errorf("%w: %s", ErrInvalidTarget, channel)
	}
	if !IsValidNick(nick) {
		return fmt.Errorf("%w: %s", ErrInvalidTarget, nick)
	}
	return e.Submit(id, CommandRequest{Message: &Message{Command: INVITE, Params: []string{nick, channel}}})
}

func (e *Engine) Away(id ServerID, reason string) error {
	return e.Submit(id, CommandRequest{Message: &Message{Command: AWAY, Trailing: reason}})
}
