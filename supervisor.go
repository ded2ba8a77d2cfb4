// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/quartzirc/ircengine/internal/ctxgroup"
)

// supervisor owns the full lifecycle of one registered server: dialing,
// registration/CAP/SASL negotiation, the read/write/ping loops, and the
// reconnect-with-backoff and circuit-breaker policy around all of that
// (spec §4.7). Exactly one supervisor runs per ServerID at a time.
type supervisor struct {
	id     ServerID
	cfg    *ServerConfig
	rc     resolvedConfig
	logger *log.Logger

	state  *serverState
	bus    *Bus
	queue  *CommandQueue
	labels *LabelTracker
	ctcp   *CTCPRegistry

	breaker *circuitBreaker

	mu           sync.Mutex
	activeCancel context.CancelFunc
	quitOnce     sync.Once
	quitting     chan struct{}
}

func newSupervisor(id ServerID, cfg *ServerConfig, ec EngineConfig) *supervisor {
	rc := ec.resolve(cfg)
	out := ec.Logger
	if out == nil {
		out = io.Discard
	}
	return &supervisor{
		id:     id,
		cfg:    cfg,
		rc:     rc,
		logger: log.New(out, fmt.Sprintf("[%s] ", id), log.LstdFlags),
		state:  newServerState(),
		bus:    NewBusWithCapacity(rc.eventRingSize),
		queue:  NewCommandQueueWithLimit(rate.Limit(rc.rateLimitRate), rc.rateLimitBurst, rc.queueCapacity),
		labels: NewLabelTracker(),
		ctcp:   NewCTCPRegistry(),
		breaker: &circuitBreaker{
			threshold: rc.breakerThreshold,
			window:    rc.breakerWindow,
			hold:      rc.breakerHold,
		},
		quitting: make(chan struct{}),
	}
}

// Run drives the connect/register/serve/reconnect loop until ctx is
// canceled, Quit is called, or a FatalError (or a disabled-autoreconnect
// failure) ends it for good (spec §4.7).
func (sv *supervisor) Run(ctx context.Context) error {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sv.quitting:
			return nil
		default:
		}

		if wait := sv.breaker.openFor(time.Now()); wait > 0 {
			sv.state.setConnState(StateFailed)
			sv.logger.Printf("circuit breaker open, waiting %s before next attempt", wait)
			if !sv.sleep(ctx, wait) {
				return nil
			}
			continue
		}

		sv.state.setConnState(StateConnecting)
		err := sv.connectOnce(ctx)

		select {
		case <-sv.quitting:
			return nil
		default:
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			return nil
		}

		var fatal *FatalError
		if errors.As(err, &fatal) {
			sv.state.setConnState(StateFailed)
			sv.bus.Publish(Event{Server: sv.id, Kind: EventError, Text: err.Error()})
			return err
		}

		sv.breaker.recordFailure(time.Now())
		sv.bus.Publish(Event{Server: sv.id, Kind: EventError, Text: err.Error()})

		if !sv.rc.autoReconnect {
			sv.state.setConnState(StateFailed)
			return err
		}

		sv.state.setConnState(StateReconnecting)
		delay := backoffDelay(sv.rc, attempt)
		attempt++
		sv.logger.Printf("connection attempt failed: %v; retrying in %s", err, delay)
		if !sv.sleep(ctx, delay) {
			return nil
		}
	}
}

func (sv *supervisor) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	case <-sv.quitting:
		return false
	}
}

// Quit sends a QUIT to the server (if connected) and stops the
// supervisor's reconnect loop for good (spec §6 Engine.Close).
func (sv *supervisor) Quit(reason string) {
	_ = sv.queue.Submit(CommandRequest{Message: &Message{Command: QUIT, Trailing: reason}, Priority: true})
	time.Sleep(200 * time.Millisecond)
	sv.quitOnce.Do(func() { close(sv.quitting) })
	sv.mu.Lock()
	cancel := sv.activeCancel
	sv.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// connectOnce performs one full dial-register-serve attempt, returning
// nil only on a caller-initiated graceful shutdown.
func (sv *supervisor) connectOnce(parent context.Context) error {
	c, err := dial(sv.rc, sv.cfg)
	if err != nil {
		return err
	}
	defer c.close()

	ctx, cancel := context.WithCancel(parent)
	sv.mu.Lock()
	sv.activeCancel = cancel
	sv.mu.Unlock()
	defer func() {
		sv.mu.Lock()
		sv.activeCancel = nil
		sv.mu.Unlock()
		cancel()
	}()

	sv.state.reset()
	sv.state.setNick(sv.cfg.Nick)
	sv.state.setConnState(StateRegistering)

	reg := newRegistration(sv.cfg.Nick)
	if sv.cfg.SASL != nil {
		reg.sasl = buildSASLState(sv.cfg.SASL)
	}

	if sv.cfg.ServerPassword != nil {
		_ = sv.queue.Submit(CommandRequest{Priority: true, Message: &Message{
			Command: PASS, Params: []string{sv.cfg.ServerPassword.Reveal()}, Sensitive: true,
		}})
	}
	_ = sv.queue.Submit(CommandRequest{Priority: true, Message: &Message{Command: CAP, Params: []string{CAP_LS, "302"}}})
	_ = sv.queue.Submit(CommandRequest{Priority: true, Message: &Message{Command: NICK, Params: []string{sv.cfg.Nick}}})
	_ = sv.queue.Submit(CommandRequest{Priority: true, Message: &Message{
		Command: USER, Params: []string{sv.cfg.Username, "0", "*"}, Trailing: sv.cfg.Realname,
	}})

	ready := make(chan struct{})
	var readyOnce sync.Once

	g := ctxgroup.New(ctx)
	g.Go(func(ctx context.Context) error { return sv.readLoop(ctx, c, reg, ready, &readyOnce) })
	g.Go(func(ctx context.Context) error { return sv.writeLoop(ctx, c) })
	g.Go(func(ctx context.Context) error { return sv.pingLoop(ctx, c) })
	g.Go(func(ctx context.Context) error { return sv.registrationWatchdog(ctx, ready) })

	err = g.Wait()

	sv.state.setConnState(StateDisconnected)
	sv.bus.Publish(Event{Server: sv.id, Kind: EventDisconnected})

	select {
	case <-sv.quitting:
		return nil
	default:
	}
	return err
}

func (sv *supervisor) registrationWatchdog(ctx context.Context, ready chan struct{}) error {
	timer := time.NewTimer(sv.rc.registrationTimeout)
	defer timer.Stop()
	select {
	case <-ready:
		return nil
	case <-timer.C:
		if sv.state.getConnState() == StateReady {
			return nil
		}
		return &RegistrationTimeoutError{Server: sv.id}
	case <-ctx.Done():
		return nil
	}
}

// readLoop is the connection's single reader, and therefore the single
// mutator of serverState (spec §4.4's single-writer invariant).
func (sv *supervisor) readLoop(ctx context.Context, c *conn, reg *registration, ready chan struct{}, readyOnce *sync.Once) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		c.setReadDeadline(sv.rc.pingInterval + sv.rc.pongTimeout)
		m, err := c.readLine()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var perr *ParseError
			if errors.As(err, &perr) {
				sv.bus.Publish(Event{Server: sv.id, Kind: EventError, Text: perr.Error()})
				continue
			}
			return classifyReadErr(sv.id, err)
		}
		if m == nil {
			continue
		}

		if m.Command == PONG {
			c.mu.Lock()
			c.lastPong = time.Now()
			c.mu.Unlock()
		}

		sv.labels.Resolve(m)

		for _, followup := range applyMutation(sv.state, sv.bus, sv.id, m) {
			_ = sv.queue.Submit(CommandRequest{Priority: true, Message: followup})
		}

		if ctcpEv := decodeCTCP(sv.id, m); ctcpEv != nil {
			sv.bus.Publish(Event{Server: sv.id, Kind: EventCTCPReceived, Nick: ctcpEv.Source.Name, Text: ctcpEv.Command, Raw: m})
			sv.ctcp.dispatch(supervisorResponder{sv}, *ctcpEv)
		}

		if sv.state.getConnState() != StateReady {
			sv.advanceRegistration(reg, m, ready, readyOnce)
		}
	}
}

// advanceRegistration folds one registration-phase message into the
// CAP/SASL/nick state machine (spec §4.3), submitting whatever
// follow-up the machine produces.
func (sv *supervisor) advanceRegistration(reg *registration, m *Message, ready chan struct{}, readyOnce *sync.Once) {
	switch m.Command {
	case CAP:
		sv.state.mu.Lock()
		followups := reg.handleCapMessage(&sv.state.caps, m)
		sv.state.mu.Unlock()
		for _, fm := range followups {
			_ = sv.queue.Submit(CommandRequest{Priority: true, Message: fm})
		}

	case AUTHENTICATE:
		sv.handleAuthenticate(reg, m)

	case RPL_LOGGEDIN:
		// informational; RPL_SASLSUCCESS below ends the exchange.

	case RPL_SASLSUCCESS:
		reg.state = regNickUserSent
		_ = sv.queue.Submit(CommandRequest{Priority: true, Message: &Message{Command: CAP, Params: []string{CAP_END}}})

	case ERR_SASLFAIL, ERR_SASLTOOLONG, ERR_SASLABORTED:
		sv.bus.Publish(Event{Server: sv.id, Kind: EventError, Text: "sasl authentication failed: " + m.Command})
		reg.state = regNickUserSent
		_ = sv.queue.Submit(CommandRequest{Priority: true, Message: &Message{Command: CAP, Params: []string{CAP_END}}})

	case ERR_NICKNAMEINUSE, ERR_NICKCOLLISION, ERR_UNAVAILRESOURCE:
		nick, ok := reg.nextNick(sv.cfg.Alternates, sv.rc.maxNickCollisions)
		if !ok {
			sv.bus.Publish(Event{Server: sv.id, Kind: EventError, Text: ErrNickExhausted.Error()})
			return
		}
		sv.state.setNick(nick)
		_ = sv.queue.Submit(CommandRequest{Priority: true, Message: &Message{Command: NICK, Params: []string{nick}}})

	case RPL_WELCOME:
		sv.state.setConnState(StateReady)
		if m.Source != nil {
			sv.state.mu.Lock()
			sv.state.info.Name = m.Source.Name
			sv.state.mu.Unlock()
		}
		sv.bus.Publish(Event{Server: sv.id, Kind: EventConnected, Raw: m})
		readyOnce.Do(func() { close(ready) })
		sv.runBurstCommands()

	case RPL_ENDOFMOTD, ERR_NOMOTD:
		// MOTD end typically follows 001; nothing further required since
		// Ready + burst commands already fired off of RPL_WELCOME.
	}
}

// runBurstCommands submits the configured on-connect commands and
// autojoin list once registration completes (spec §4.3 step 7).
func (sv *supervisor) runBurstCommands() {
	for _, raw := range sv.cfg.OnConnectCmds {
		if m := ParseMessage(raw); m != nil {
			_ = sv.queue.Submit(CommandRequest{Message: m})
		}
	}
	for _, ch := range sv.cfg.Autojoin {
		_ = sv.queue.Submit(CommandRequest{Message: &Message{Command: JOIN, Params: []string{ch}}})
	}
}

func (sv *supervisor) handleAuthenticate(reg *registration, m *Message) {
	var challenge []byte
	if len(m.Params) > 0 {
		decoded, err := DecodeAuthenticate(m.Params)
		if err != nil {
			sv.bus.Publish(Event{Server: sv.id, Kind: EventError, Text: "sasl: " + err.Error()})
			return
		}
		challenge = decoded
	}

	var (
		payload []byte
		err     error
	)
	if reg.state != regSaslChallenge {
		reg.state = regSaslChallenge
		payload, err = reg.sasl.Start()
	} else {
		payload, err = reg.sasl.Next(challenge)
	}
	if err != nil {
		sv.bus.Publish(Event{Server: sv.id, Kind: EventError, Text: "sasl: " + err.Error()})
		return
	}
	for _, line := range EncodeAuthenticate(payload) {
		_ = sv.queue.Submit(CommandRequest{Priority: true, Message: &Message{Command: AUTHENTICATE, Params: []string{line}, Sensitive: true}})
	}
}

// buildSASLState constructs the SASLClientState for one server's
// configured mechanism, revealing its Secret-held password exactly once
// (spec §9, "Credentials in memory").
func buildSASLState(cfg *SASLConfig) SASLClientState {
	switch cfg.Mechanism {
	case SASLExternal:
		return NewSASLExternal(cfg.Authzid)
	case SASLScram256:
		return NewSASLScramSHA256(cfg.Authcid, cfg.Password.Reveal())
	default:
		return NewSASLPlain(cfg.Authzid, cfg.Authcid, cfg.Password.Reveal())
	}
}

// writeLoop is the connection's single writer, draining the command
// queue in priority order and gating normal traffic on the flood
// limiter (spec §4.5).
func (sv *supervisor) writeLoop(ctx context.Context, c *conn) error {
	for {
		req, err := sv.queue.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if req.Label != "" && req.Message.Tags == nil {
			req.Message.Tags = Tags{}
		}
		if req.Label != "" {
			req.Message.Tags.Set("label", req.Label)
		}
		if err := c.writeMessage(req.Message); err != nil {
			return &TransportError{Kind: TransportIO, Server: sv.id, Err: err, Retryable: true}
		}
	}
}

// pingLoop sends periodic keepalive PINGs and declares the connection
// dead once no PONG has arrived within PingInterval+PongTimeout (spec
// §4.7 health check).
func (sv *supervisor) pingLoop(ctx context.Context, c *conn) error {
	ticker := time.NewTicker(sv.rc.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.mu.Lock()
			lastPong := c.lastPong
			c.mu.Unlock()
			if time.Since(lastPong) > sv.rc.pingInterval+sv.rc.pongTimeout {
				return &TransportError{Kind: TransportReadTimeout, Server: sv.id, Err: errors.New("ping timeout"), Retryable: true}
			}
			_ = sv.queue.Submit(CommandRequest{Priority: true, Message: &Message{Command: PING, Trailing: string(sv.id)}})
		}
	}
}

// supervisorResponder lets the default CTCP handlers reply directly
// through a connection's own queue, without needing the owning Engine.
type supervisorResponder struct{ sv *supervisor }

func (r supervisorResponder) SendCTCP(id ServerID, target, ctcpType, text string) error {
	return r.sv.queue.Submit(CommandRequest{Message: &Message{
		Command: NOTICE, Params: []string{target}, Trailing: encodeCTCPRaw(ctcpType, text),
	}})
}

func classifyReadErr(id ServerID, err error) error {
	if err == io.EOF {
		return &TransportError{Kind: TransportPeerReset, Server: id, Err: err, Retryable: true}
	}
	if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
		return &TransportError{Kind: TransportReadTimeout, Server: id, Err: err, Retryable: true}
	}
	return &TransportError{Kind: TransportIO, Server: id, Err: err, Retryable: true}
}

// backoffDelay computes the next reconnect delay: exponential growth
// from ReconnectInitialDelay up to ReconnectMaxDelay, with +/-Jitter
// fractional jitter applied (spec §4.7).
func backoffDelay(rc resolvedConfig, attempt int) time.Duration {
	d := rc.reconnectInitial
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= rc.reconnectMax {
			d = rc.reconnectMax
			break
		}
	}
	if rc.reconnectJitter > 0 {
		spread := float64(d) * rc.reconnectJitter
		d += time.Duration(spread * (2*rand.Float64() - 1))
		if d < 0 {
			d = rc.reconnectInitial
		}
	}
	return d
}

// circuitBreaker opens once Threshold connection failures land within
// Window, holding the supervisor off reconnect attempts for Hold before
// resetting (spec §4.7 circuit breaker).
type circuitBreaker struct {
	threshold int
	window    time.Duration
	hold      time.Duration

	mu        sync.Mutex
	failures  []time.Time
	openUntil time.Time
}

func (b *circuitBreaker) recordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := now.Add(-b.window)
	kept := b.failures[:0]
	for _, t := range b.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.failures = append(kept, now)

	if b.threshold > 0 && len(b.failures) >= b.threshold {
		b.openUntil = now.Add(b.hold)
		b.failures = nil
	}
}

func (b *circuitBreaker) openFor(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if now.Before(b.openUntil) {
		return b.openUntil.Sub(now)
	}
	return 0
}
