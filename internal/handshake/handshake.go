// Package handshake composes the byte, hash, AES, and RSA primitives
// into the MTPZ protocol state machine of spec.md §4.G: build the
// application-certificate message, validate the device's response, send
// a confirmation, and derive the session parameters that unlock trusted
// file operations.
package handshake

import (
	"context"
	"fmt"

	"github.com/bytemare/cryptotools/utils"

	"github.com/libmtp/go-mtpz/internal/rsaop"
	"github.com/libmtp/go-mtpz/message"
)

// Transport is the minimal set of request primitives the state machine
// drives, mirroring spec.md §6. It is defined independently of any
// caller-facing Transport type so this package stays free of a parent
// import; any interface with this method set satisfies it.
type Transport interface {
	SetSessionInitiatorInfo(ctx context.Context, identity string) error
	ResetHandshake(ctx context.Context) error
	SendAppRequest(ctx context.Context, payload []byte) error
	GetAppResponse(ctx context.Context) ([]byte, error)
	EnableTrustedFileOperations(ctx context.Context, p0, p1, p2, p3 uint32) error
}

// Logger is the minimal structured-logging sink the state machine uses
// to report progress, matching the original's LIBMTP_INFO bracketing of
// each phase without taking a concrete dependency on log/slog.
type Logger interface {
	Info(msg string, args ...any)
}

// Result holds the four 32-bit session tokens computed in §4.G.4.
type Result struct {
	P0, P1, P2, P3 uint32
}

// Run drives one complete handshake attempt to completion or failure.
// certificates must already be CertificatesLength bytes (spec.md §3);
// randomSource supplies the 16-byte client random (spec.md §4.G.1 notes
// a cryptographically strong source is recommended over the reference
// implementation's seeded PRNG).
func Run(
	ctx context.Context,
	t Transport,
	log Logger,
	identity string,
	certificates []byte,
	key *rsaop.Key,
	randomSource func(n int) []byte,
) (*Result, error) {
	log.Info("setting session initiator info")
	if err := t.SetSessionInitiatorInfo(ctx, identity); err != nil {
		return nil, fmt.Errorf("handshake: set session initiator info: %w", err)
	}

	log.Info("resetting handshake")
	if err := t.ResetHandshake(ctx); err != nil {
		return nil, fmt.Errorf("handshake: reset handshake: %w", err)
	}

	clientRandom := randomSource(16)
	defer wipe(clientRandom)

	log.Info("sending application certificate message")
	certMsg, err := message.BuildApplicationCertificate(certificates, clientRandom, key)
	if err != nil {
		return nil, fmt.Errorf("handshake: build application certificate: %w", err)
	}
	if err := t.SendAppRequest(ctx, certMsg); err != nil {
		return nil, fmt.Errorf("handshake: send application certificate: %w", err)
	}

	log.Info("getting and validating handshake response")
	raw, err := t.GetAppResponse(ctx)
	if err != nil {
		return nil, fmt.Errorf("handshake: get app response: %w", err)
	}
	resp, err := message.ParseDeviceResponse(raw, key, clientRandom)
	if err != nil {
		return nil, fmt.Errorf("handshake: validate device response: %w", err)
	}
	defer wipe(resp.MacHash)

	if len(resp.MacHash) < 16 {
		return nil, fmt.Errorf("handshake: machash shorter than MAC key size")
	}
	macKey := resp.MacHash[:16]

	log.Info("sending confirmation message")
	confirmMsg, err := message.BuildConfirmation(macKey)
	if err != nil {
		return nil, fmt.Errorf("handshake: build confirmation: %w", err)
	}
	if err := t.SendAppRequest(ctx, confirmMsg); err != nil {
		return nil, fmt.Errorf("handshake: send confirmation: %w", err)
	}

	log.Info("opening secure sync session")
	p0, p1, p2, p3, err := message.SessionParameters(resp.MacHash)
	if err != nil {
		return nil, fmt.Errorf("handshake: derive session parameters: %w", err)
	}
	if err := t.EnableTrustedFileOperations(ctx, p0, p1, p2, p3); err != nil {
		return nil, fmt.Errorf("handshake: enable trusted file operations: %w", err)
	}

	return &Result{P0: p0, P1: p1, P2: p2, P3: p3}, nil
}

// defaultRandomSource is a convenience built on the teacher's RNG
// dependency, matching spec.md §4.G.1's recommendation of a
// cryptographically strong source over the reference implementation's
// seeded PRNG.
func defaultRandomSource(n int) []byte {
	return utils.RandomBytes(n)
}

// DefaultRandomSource is exported so the root package can use it as the
// default without duplicating the dependency choice.
var DefaultRandomSource = defaultRandomSource

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
