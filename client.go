// SPDX-License-Identifier: MIT

package mtpz

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/libmtp/go-mtpz/internal/handshake"
	"github.com/libmtp/go-mtpz/internal/rsaop"
	"github.com/libmtp/go-mtpz/message"
)

// defaultSecretsPath mirrors the original's fixed "$HOME/.mtpz-data"
// location.
func defaultSecretsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mtpz-data"
	}
	return filepath.Join(home, ".mtpz-data")
}

// Result is the set of session tokens returned by a successful handshake,
// passed on to EnableTrustedFileOperations to unlock protected commands.
type Result struct {
	P0, P1, P2, P3 uint32
}

// Option configures a Client at construction time. The module favors
// functional options over a config-file/viper layer: a Client's inputs
// are a handful of scalars, not a nested settings tree.
type Option func(*clientConfig)

type clientConfig struct {
	secretsPath string
	identity    string
	randomSource func(int) []byte
}

// WithSecretsPath overrides the default secrets file location.
func WithSecretsPath(path string) Option {
	return func(c *clientConfig) { c.secretsPath = path }
}

// WithSessionInitiator overrides the identity string sent at the start
// of every handshake attempt.
func WithSessionInitiator(identity string) Option {
	return func(c *clientConfig) { c.identity = identity }
}

// Client drives the MTPZ handshake against a caller-supplied Transport,
// holding the key bundle loaded once at construction time.
type Client struct {
	transport Transport
	identity  string
	key       *rsaop.Key
	secrets   *Secrets
	randomSource func(int) []byte
}

// NewClient loads the secrets bundle and builds a Client ready to drive
// handshakes over transport. The default secrets path is ".mtpz-data"
// in the user's home directory; override it with WithSecretsPath. A
// secrets file that exists but cannot be parsed is reported with one
// Error log line; a missing file is not logged.
func NewClient(transport Transport, opts ...Option) (*Client, error) {
	cfg := clientConfig{
		secretsPath:  defaultSecretsPath(),
		identity:     DefaultSessionInitiator,
		randomSource: handshake.DefaultRandomSource,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	secrets, err := LoadSecrets(cfg.secretsPath)
	if err != nil {
		if !errors.Is(err, ErrNoSecrets) {
			currentLogger().Error("MTPZ secrets could not be loaded; MTPZ disabled", "path", cfg.secretsPath, "error", err)
		}
		return nil, err
	}

	key, err := rsaop.NewKey(secrets.Modulus, secrets.PrivateKey)
	if err != nil {
		secrets.Wipe()
		err = wrapErr(Configuration, "NewClient", fmt.Errorf("%w: %v", ErrMalformedSecrets, err))
		currentLogger().Error("MTPZ secrets could not be loaded; MTPZ disabled", "path", cfg.secretsPath, "error", err)
		return nil, err
	}

	return &Client{
		transport:    transport,
		identity:     cfg.identity,
		key:          key,
		secrets:      secrets,
		randomSource: cfg.randomSource,
	}, nil
}

// Close wipes the key bundle held by the Client. Safe to call more than
// once.
func (c *Client) Close() error {
	c.secrets.Wipe()
	return nil
}

// Handshake drives one complete MTPZ handshake attempt: send the
// application certificate, validate the device's response, send the
// confirmation, and derive the session parameters, per spec.md §4.G.
func (c *Client) Handshake(ctx context.Context) (*Result, error) {
	res, err := handshake.Run(ctx, c.transport, currentLogger(), c.identity, c.secrets.Certificates, c.key, c.randomSource)
	if err != nil {
		return nil, classifyHandshakeErr(err)
	}
	return &Result{P0: res.P0, P1: res.P1, P2: res.P2, P3: res.P3}, nil
}

// classifyHandshakeErr maps a handshake.Run failure onto this package's
// Kind taxonomy and public sentinels by matching the message-package
// sentinels it wraps, so callers branch on mtpz.ErrBadPreamble and
// friends instead of reaching into the internal message package.
func classifyHandshakeErr(err error) error {
	switch {
	case errors.Is(err, message.ErrBadPreamble):
		return wrapErr(Protocol, "Handshake", fmt.Errorf("%w: %w", ErrBadPreamble, err))
	case errors.Is(err, message.ErrShortResponse):
		return wrapErr(Protocol, "Handshake", fmt.Errorf("%w: %w", ErrShortResponse, err))
	case errors.Is(err, message.ErrClientRandomMismatch):
		return wrapErr(Cryptographic, "Handshake", fmt.Errorf("%w: %w", ErrClientRandomMismatch, err))
	default:
		return wrapErr(Transport, "Handshake", err)
	}
}
