// SPDX-License-Identifier: MIT

package mtpz

import "context"

// DefaultSessionInitiator is the identity string the reference
// implementation sends ahead of every handshake attempt; spec.md §6 lets
// callers customize it.
const DefaultSessionInitiator = "libmtp/Sajid Anwar - MTPZClassDriver"

// Transport is the external collaborator the handshake core drives
// through the five request primitives of spec.md §6. The core performs
// no I/O beyond the secrets file; everything else — USB/PTP framing,
// device enumeration, the broader file-operation command set — belongs
// to the caller's implementation of this interface.
type Transport interface {
	// SetSessionInitiatorInfo sends the session-initiator identity
	// string, out-of-band from the handshake payloads proper.
	SetSessionInitiatorInfo(ctx context.Context, identity string) error

	// ResetHandshake asks the device to discard any in-progress MTPZ
	// handshake state before a new one begins.
	ResetHandshake(ctx context.Context) error

	// SendAppRequest ships a variable-length payload produced by
	// spec.md §4.G.1 (application-certificate message) or §4.G.3
	// (confirmation message).
	SendAppRequest(ctx context.Context, payload []byte) error

	// GetAppResponse retrieves the device's response to the most
	// recent SendAppRequest call, consumed per spec.md §4.G.2.
	GetAppResponse(ctx context.Context) ([]byte, error)

	// EnableTrustedFileOperations invokes the device call that unlocks
	// protected operations, passing the four 32-bit parameters derived
	// in spec.md §4.G.4.
	EnableTrustedFileOperations(ctx context.Context, p0, p1, p2, p3 uint32) error
}
