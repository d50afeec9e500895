/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package config holds the low-level bind/dial configuration for a single
// socket: network family, address, optional TLS, and (for unix sockets)
// file permissions. It is decoded by viper from the host's config file and
// validated with go-playground/validator before being handed to
// socket/server/tcp or a future client package.
package config

import (
	"errors"
	"fmt"

	libtls "github.com/sabouaram/sockd/certificates"
	libdur "github.com/sabouaram/sockd/duration"
	libprm "github.com/sabouaram/sockd/file/perm"
	libptc "github.com/sabouaram/sockd/network/protocol"
)

// MaxGID is the highest unix group id this config accepts; -1 (current
// process group) is also accepted.
const MaxGID = 32767

var (
	ErrInvalidProtocol  = errors.New("socket config: invalid protocol for this operation")
	ErrInvalidTLSConfig = errors.New("socket config: invalid TLS config")
	ErrInvalidGroup     = errors.New("socket config: invalid unix group id")
	ErrInvalidAddress   = errors.New("socket config: invalid or empty address")
)

// ServerTLS is the server-side TLS toggle: Enabled gates whether Config is
// consulted at all, so a zero-value Config is harmless when Enabled is false.
type ServerTLS struct {
	Enabled bool          `mapstructure:"enabled" json:"enabled" yaml:"enabled" toml:"enabled"`
	Config  libtls.Config `mapstructure:"config" json:"config" yaml:"config" toml:"config"`
}

// ClientTLS additionally carries the server name used for certificate
// verification, since a client has no listener identity of its own.
type ClientTLS struct {
	Enabled    bool          `mapstructure:"enabled" json:"enabled" yaml:"enabled" toml:"enabled"`
	Config     libtls.Config `mapstructure:"config" json:"config" yaml:"config" toml:"config"`
	ServerName string        `mapstructure:"serverName" json:"serverName" yaml:"serverName" toml:"serverName"`
}

// Server is the bind-side socket configuration: which network/address to
// listen on, optional TLS, and (unix only) the socket file's permissions.
type Server struct {
	Network  libptc.NetworkProtocol `mapstructure:"network" json:"network" yaml:"network" toml:"network"`
	Address  string                 `mapstructure:"address" json:"address" yaml:"address" toml:"address"`
	PermFile libprm.Perm            `mapstructure:"permFile" json:"permFile" yaml:"permFile" toml:"permFile"`
	// GroupPerm is a unix group id applied to the socket file; -1 keeps the
	// process's current group, 0 is root's group.
	GroupPerm int32 `mapstructure:"groupPerm" json:"groupPerm" yaml:"groupPerm" toml:"groupPerm"`
	// ConIdleTimeout closes an accepted connection that sits idle longer
	// than this duration at the raw-socket level; 0 disables it. This is
	// distinct from the App Session idle sweep (appserver), which operates
	// above the framer/dispatcher layer.
	ConIdleTimeout libdur.Duration `mapstructure:"conIdleTimeout" json:"conIdleTimeout" yaml:"conIdleTimeout" toml:"conIdleTimeout"`
	TLS            ServerTLS     `mapstructure:"tls" json:"tls" yaml:"tls" toml:"tls"`
}

// Validate checks the network/address/TLS/unix-permission combination.
func (s Server) Validate() error {
	if !isBindable(s.Network) {
		return fmt.Errorf("%w: %q", ErrInvalidProtocol, s.Network.String())
	}

	if s.GroupPerm < -1 || s.GroupPerm > MaxGID {
		return ErrInvalidGroup
	}

	if s.TLS.Enabled && s.Network != libptc.NetworkTCP &&
		s.Network != libptc.NetworkTCP4 && s.Network != libptc.NetworkTCP6 {
		return ErrInvalidTLSConfig
	}

	return validateAddress(s.Network, s.Address)
}

// GetTLS returns whether TLS is enabled for this listener and, if so, a
// pointer to its config (nil otherwise so callers can pass it directly to
// tls.Listen-style constructors).
func (s Server) GetTLS() (bool, *libtls.Config) {
	if !s.TLS.Enabled {
		return false, nil
	}

	cfg := s.TLS.Config
	return true, &cfg
}

// Client is the dial-side socket configuration.
type Client struct {
	Network libptc.NetworkProtocol `mapstructure:"network" json:"network" yaml:"network" toml:"network"`
	Address string                 `mapstructure:"address" json:"address" yaml:"address" toml:"address"`
	TLS     ClientTLS              `mapstructure:"tls" json:"tls" yaml:"tls" toml:"tls"`
}

// Validate checks the network/address/TLS combination.
func (c Client) Validate() error {
	if !isBindable(c.Network) {
		return fmt.Errorf("%w: %q", ErrInvalidProtocol, c.Network.String())
	}

	if c.TLS.Enabled {
		if c.Network != libptc.NetworkTCP && c.Network != libptc.NetworkTCP4 && c.Network != libptc.NetworkTCP6 {
			return ErrInvalidTLSConfig
		}

		if c.TLS.ServerName == "" {
			return fmt.Errorf("%w: TLS enabled without a server name", ErrInvalidTLSConfig)
		}
	}

	return validateAddress(c.Network, c.Address)
}

// GetTLS returns whether TLS is enabled, its config if so, and the server
// name to verify the peer certificate against.
func (c Client) GetTLS() (bool, *libtls.Config, string) {
	if !c.TLS.Enabled {
		return false, nil, ""
	}

	cfg := c.TLS.Config
	return true, &cfg, c.TLS.ServerName
}

// DefaultTLS sets Config to def when TLS is enabled but no config was
// supplied by the host (a zero-value libtls.Config still has sane Go
// defaults, so this is a convenience rather than a correctness need).
func (c *Client) DefaultTLS(def *libtls.Config) {
	if def == nil || !c.TLS.Enabled {
		return
	}

	c.TLS.Config = *def
}
