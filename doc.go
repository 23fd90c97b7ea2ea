// SPDX-License-Identifier: MIT

// Package mtpz implements the MTPZ handshake used by Zune and Windows
// Phone 7 media devices to authorize protected MTP file operations: it
// sends a signed application certificate, validates the device's
// RSA/AES-wrapped response, and derives the session parameters that
// unlock trusted file operations.
//
// A Client holds a key bundle loaded from a secrets file (see
// LoadSecrets) and drives the handshake over a caller-supplied
// Transport, which carries the five request primitives the protocol
// needs; everything below that — USB, PTP framing, device enumeration —
// is the caller's responsibility.
package mtpz
