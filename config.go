// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import (
	"crypto/tls"
	"errors"
	"io"
	"time"
)

// TLSMode selects how a server's transport negotiates TLS (spec §3).
type TLSMode int

const (
	TLSOff TLSMode = iota
	TLSOn
	TLSOnWithInvalidCerts
)

// ProxyKind selects the proxy protocol used to reach a server (spec §3,
// §4.2, §6).
type ProxyKind int

const (
	ProxyNone ProxyKind = iota
	ProxySocks5
	ProxyHTTPConnect
)

// ProxyConfig describes an optional forward proxy a server is dialed
// through. Socks5 performs the RFC 1928 handshake (optionally RFC 1929
// username/password auth); HTTPConnect issues a CONNECT request with an
// optional Proxy-Authorization: Basic header.
type ProxyConfig struct {
	Kind     ProxyKind
	Host     string
	Port     int
	Username string
	Password string
}

// SASLMechanism names a supported SASL mechanism (spec §1, §4.3).
type SASLMechanism string

const (
	SASLPlain    SASLMechanism = "PLAIN"
	SASLExternal SASLMechanism = "EXTERNAL"
	SASLScram256 SASLMechanism = "SCRAM-SHA-256"
)

// SASLConfig describes the optional SASL authentication attempted during
// registration (spec §3, §4.3, §6).
type SASLConfig struct {
	Mechanism SASLMechanism
	Authcid   string
	Authzid   string
	// Password is held as a Secret so its backing buffer can be wiped once
	// the SASL exchange completes (spec §9, "Credentials in memory").
	Password *Secret
}

// ServerConfig is immutable once it has been used to open a connection
// (spec §3). Mutating it after RegisterServer/Open has no defined effect
// on the live connection; re-register to pick up changes.
type ServerConfig struct {
	Address string
	Port    int
	TLS     TLSMode
	TLSConf *tls.Config // optional; a default is synthesized from Address/TLS if nil.

	// Nick is the preferred nickname; Alternates is tried in order on 433
	// collisions (spec §4.3, S3).
	Nick       string
	Alternates []string
	Username   string
	Realname   string

	// ServerPassword is sent as PASS before NICK/USER, if set.
	ServerPassword *Secret

	SASL *SASLConfig

	Autojoin      []string
	OnConnectCmds []string

	Proxy *ProxyConfig

	// CapabilitiesWanted augments the engine's fixed supported-capability
	// list (spec §4.3 step 3, §6).
	CapabilitiesWanted []string

	// Timeouts, all optional; zero means "use the EngineConfig default".
	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
	RegistrationTimeout time.Duration
	SASLStepTimeout     time.Duration

	// PingInterval/PongTimeout drive the supervisor's health check
	// (spec §4.7). Zero means "use the EngineConfig default".
	PingInterval time.Duration
	PongTimeout  time.Duration

	// CommandQueueCapacity/RateLimitRate/RateLimitBurst override the
	// engine defaults for this server only (spec §4.5, §6). Zero means
	// "use the EngineConfig default".
	CommandQueueCapacity int
	RateLimitRate        float64
	RateLimitBurst       int

	// MaxNickCollisionAttempts bounds the 433 retry loop (spec §4.3,
	// "Nick collision"). Zero means "use the EngineConfig default".
	MaxNickCollisionAttempts int

	// AutoReconnect disables the supervisor's reconnect loop for this
	// server when false (spec §6).
	AutoReconnect bool
}

// isValid performs the same role as the teacher's Config.isValid():
// sanity-check the handful of fields that must be non-empty before a
// connection attempt is made.
func (c *ServerConfig) isValid() error {
	if c.Address == "" {
		return &ErrInvalidConfig{Field: "Address", Err: errors.New("must not be empty")}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return &ErrInvalidConfig{Field: "Port", Err: errors.New("must be between 1 and 65535")}
	}
	if c.Nick == "" {
		return &ErrInvalidConfig{Field: "Nick", Err: errors.New("must not be empty")}
	}
	if c.Username == "" {
		return &ErrInvalidConfig{Field: "Username", Err: errors.New("must not be empty")}
	}
	if c.SASL != nil {
		switch c.SASL.Mechanism {
		case SASLPlain, SASLExternal, SASLScram256:
		default:
			return &ErrInvalidConfig{Field: "SASL.Mechanism", Err: errors.New("unsupported mechanism")}
		}
	}
	if c.Proxy != nil {
		switch c.Proxy.Kind {
		case ProxySocks5, ProxyHTTPConnect:
		default:
			return &ErrInvalidConfig{Field: "Proxy.Kind", Err: errors.New("unsupported proxy kind")}
		}
		if c.Proxy.Host == "" {
			return &ErrInvalidConfig{Field: "Proxy.Host", Err: errors.New("must not be empty")}
		}
	}
	return nil
}

// EngineConfig holds process-wide defaults that apply to every server
// registered with the Engine unless overridden per-ServerConfig (spec
// §6).
type EngineConfig struct {
	// Logger receives debug-level traces of engine activity. Defaults to
	// io.Discard, matching the teacher's Config.Debug default.
	Logger io.Writer

	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
	RegistrationTimeout time.Duration
	SASLStepTimeout     time.Duration
	PingInterval        time.Duration
	PongTimeout         time.Duration
	LabeledResponseTTL  time.Duration

	CommandQueueCapacity int
	RateLimitRate        float64
	RateLimitBurst       int

	EventRingSize            int
	MaxNickCollisionAttempts int

	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectJitter       float64

	CircuitBreakerThreshold int
	CircuitBreakerWindow    time.Duration
	CircuitBreakerHold      time.Duration
}

// DefaultEngineConfig returns the spec-mandated defaults (spec §4.5,
// §4.7, §5, §6).
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Logger:                   io.Discard,
		DialTimeout:              30 * time.Second,
		TLSHandshakeTimeout:      30 * time.Second,
		RegistrationTimeout:      60 * time.Second,
		SASLStepTimeout:          30 * time.Second,
		PingInterval:             120 * time.Second,
		PongTimeout:              60 * time.Second,
		LabeledResponseTTL:       30 * time.Second,
		CommandQueueCapacity:     1024,
		RateLimitRate:            0.5,
		RateLimitBurst:           5,
		EventRingSize:            4096,
		MaxNickCollisionAttempts: 32,
		ReconnectInitialDelay:    2 * time.Second,
		ReconnectMaxDelay:        5 * time.Minute,
		ReconnectJitter:          0.20,
		CircuitBreakerThreshold:  5,
		CircuitBreakerWindow:     10 * time.Minute,
		CircuitBreakerHold:       5 * time.Minute,
	}
}

// resolve merges server-specific overrides onto the engine defaults.
func (ec EngineConfig) resolve(sc *ServerConfig) resolvedConfig {
	r := resolvedConfig{
		dialTimeout:          orDuration(sc.DialTimeout, ec.DialTimeout),
		tlsHandshakeTimeout:  orDuration(sc.TLSHandshakeTimeout, ec.TLSHandshakeTimeout),
		registrationTimeout:  orDuration(sc.RegistrationTimeout, ec.RegistrationTimeout),
		saslStepTimeout:      orDuration(sc.SASLStepTimeout, ec.SASLStepTimeout),
		pingInterval:         orDuration(sc.PingInterval, ec.PingInterval),
		pongTimeout:          orDuration(sc.PongTimeout, ec.PongTimeout),
		queueCapacity:        orInt(sc.CommandQueueCapacity, ec.CommandQueueCapacity),
		rateLimitRate:        orFloat(sc.RateLimitRate, ec.RateLimitRate),
		rateLimitBurst:       orInt(sc.RateLimitBurst, ec.RateLimitBurst),
		maxNickCollisions:    orInt(sc.MaxNickCollisionAttempts, ec.MaxNickCollisionAttempts),
		labeledResponseTTL:   ec.LabeledResponseTTL,
		eventRingSize:        ec.EventRingSize,
		reconnectInitial:     ec.ReconnectInitialDelay,
		reconnectMax:         ec.ReconnectMaxDelay,
		reconnectJitter:      ec.ReconnectJitter,
		breakerThreshold:     ec.CircuitBreakerThreshold,
		breakerWindow:        ec.CircuitBreakerWindow,
		breakerHold:          ec.CircuitBreakerHold,
		autoReconnect:        sc.AutoReconnect,
	}
	return r
}

type resolvedConfig struct {
	dialTimeout, tlsHandshakeTimeout, registrationTimeout, saslStepTimeout time.Duration
	pingInterval, pongTimeout, labeledResponseTTL                         time.Duration
	queueCapacity, rateLimitBurst, maxNickCollisions, eventRingSize       int
	rateLimitRate                                                        float64
	reconnectInitial, reconnectMax                                       time.Duration
	reconnectJitter                                                      float64
	breakerThreshold                                                     int
	breakerWindow, breakerHold                                           time.Duration
	autoReconnect                                                        bool
}

func orDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orFloat(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}
