// Copyright (c) Liam Stanley <me@liamstanley.io>. All rights reserved. Use
// of this source code is governed by the MIT license that can be found in
// the LICENSE file.

package ircengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validServerConfig() *ServerConfig {
	return &ServerConfig{Address: "irc.example.com", Port: 6697, Nick: "nick", Username: "user"}
}

func TestServerConfigIsValid(t *testing.T) {
	assert.NoError(t, validServerConfig().isValid())
}

func TestServerConfigIsValidRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name  string
		mutate func(*ServerConfig)
	}{
		{"address", func(c *ServerConfig) { c.Address = "" }},
		{"port too low", func(c *ServerConfig) { c.Port = 0 }},
		{"port too high", func(c *ServerConfig) { c.Port = 70000 }},
		{"nick", func(c *ServerConfig) { c.Nick = "" }},
		{"username", func(c *ServerConfig) { c.Username = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validServerConfig()
			tt.mutate(c)
			assert.Error(t, c.isValid())
		})
	}
}

func TestServerConfigIsValidRejectsUnsupportedSASL(t *testing.T) {
	c := validServerConfig()
	c.SASL = &SASLConfig{Mechanism: "NOT-A-MECHANISM"}
	assert.Error(t, c.isValid())
}

func TestServerConfigIsValidAcceptsKnownSASL(t *testing.T) {
	c := validServerConfig()
	c.SASL = &SASLConfig{Mechanism: SASLScram256}
	assert.NoError(t, c.isValid())
}

func TestServerConfigIsValidRejectsBadProxy(t *testing.T) {
	c := validServerConfig()
	c.Proxy = &ProxyConfig{Kind: ProxyKind(99)}
	assert.Error(t, c.isValid())

	c.Proxy = &ProxyConfig{Kind: ProxySocks5}
	assert.Error(t, c.isValid()) // missing Host.

	c.Proxy.Host = "proxy.example.com"
	assert.NoError(t, c.isValid())
}

func TestEngineConfigResolveFallsBackToDefaults(t *testing.T) {
	ec := DefaultEngineConfig()
	rc := ec.resolve(&ServerConfig{})

	assert.Equal(t, ec.DialTimeout, rc.dialTimeout)
	assert.Equal(t, ec.MaxNickCollisionAttempts, rc.maxNickCollisions)
	assert.Equal(t, ec.RateLimitRate, rc.rateLimitRate)
}

func TestEngineConfigResolveHonorsOverrides(t *testing.T) {
	ec := DefaultEngineConfig()
	sc := &ServerConfig{MaxNickCollisionAttempts: 3, RateLimitBurst: 7}
	rc := ec.resolve(sc)

	assert.Equal(t, 3, rc.maxNickCollisions)
	assert.Equal(t, 7, rc.rateLimitBurst)
}
