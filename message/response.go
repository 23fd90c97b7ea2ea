// SPDX-License-Identifier: MIT

package message

import (
	"errors"
	"fmt"

	"github.com/libmtp/go-mtpz/internal/aesengine"
	"github.com/libmtp/go-mtpz/internal/rsaop"
	"github.com/libmtp/go-mtpz/internal/sha1x"
)

// Sentinel errors mirroring the failure modes spec.md §4.G.2/§7 call out;
// the mtpz package re-exports these wrapped with a Kind.
var (
	ErrBadPreamble          = errors.New("message: response preamble mismatch")
	ErrShortResponse        = errors.New("message: response body too short")
	ErrClientRandomMismatch = errors.New("message: client random mismatch in response")
)

const (
	hashKeyBlockLength = 128
	bodyLength         = 832
	fixedHeaderLength  = 4 + hashKeyBlockLength + 4 + bodyLength
)

// DeviceResponse is the result of parsing and validating the device's
// reply to the application-certificate message (spec.md §4.G.2). MacHash
// is the caller-facing "machash" field: typically 16 bytes of MAC key
// followed by a 4-byte counter, used by the confirmation and
// open-session steps.
type DeviceResponse struct {
	MacHash []byte
}

// ParseDeviceResponse validates the fixed preambles, recovers the AES
// hash key from the RSA-encrypted block, decrypts the CBC-style body,
// and parses its length-prefixed fields — checking the echoed client
// random against the one sent in the application-certificate message.
func ParseDeviceResponse(response []byte, key *rsaop.Key, clientRandom []byte) (*DeviceResponse, error) {
	if len(response) < fixedHeaderLength {
		return nil, fmt.Errorf("%w: got %d bytes, need at least %d", ErrShortResponse, len(response), fixedHeaderLength)
	}

	if response[0] != 0x02 || response[1] != 0x02 || response[3] != 0x80 {
		return nil, fmt.Errorf("%w: first preamble", ErrBadPreamble)
	}

	rsaBlock := response[4 : 4+hashKeyBlockLength]
	offset := 4 + hashKeyBlockLength

	if response[offset+2] != 0x03 || response[offset+3] != 0x40 {
		return nil, fmt.Errorf("%w: second preamble", ErrBadPreamble)
	}
	offset += 4

	body := append([]byte(nil), response[offset:offset+bodyLength]...)

	hashKey, err := recoverHashKey(rsaBlock, key)
	if err != nil {
		return nil, err
	}
	defer wipeBytes(hashKey)

	ks, err := aesengine.NewSchedule(hashKey)
	if err != nil {
		return nil, fmt.Errorf("message: expanding body decryption key: %w", err)
	}
	aesengine.CipherCBC(ks, body, false)

	macHash, err := parseBody(body, clientRandom)
	if err != nil {
		return nil, err
	}

	return &DeviceResponse{MacHash: macHash}, nil
}

// recoverHashKey implements spec.md §4.G.2's hash-key-block recovery:
// RSA-decrypt, then unmask in two MGF passes, and return the trailing
// 16-byte AES key.
func recoverHashKey(rsaBlock []byte, key *rsaop.Key) ([]byte, error) {
	m, err := key.Decrypt(rsaBlock)
	if err != nil {
		return nil, fmt.Errorf("message: decrypting hash-key block: %w", err)
	}

	mask1 := sha1x.MGF(m[21:128], 20)
	for i := 0; i < 20; i++ {
		m[1+i] ^= mask1[i]
	}

	mask2 := sha1x.MGF(m[1:21], 107)
	for i := 0; i < 107; i++ {
		m[21+i] ^= mask2[i]
	}

	hashKey := append([]byte(nil), m[112:128]...)
	wipeBytes(m)

	return hashKey, nil
}

// parseBody reads the decrypted 832-byte body's length-prefixed fields
// per spec.md §4.G.2, validating the echoed client random and returning
// the machash field.
func parseBody(body []byte, clientRandom []byte) ([]byte, error) {
	r := bodyReader{buf: body}

	if err := r.skip(1); err != nil {
		return nil, err
	}

	certsLen, err := r.uint32BE()
	if err != nil {
		return nil, err
	}
	if err := r.skip(int(certsLen)); err != nil {
		return nil, err
	}

	randLen, err := r.uint16BE()
	if err != nil {
		return nil, err
	}
	rand, err := r.take(int(randLen))
	if err != nil {
		return nil, err
	}
	if len(rand) != len(clientRandom) || !bytesEqual(rand, clientRandom) {
		return nil, ErrClientRandomMismatch
	}

	devRandLen, err := r.uint16BE()
	if err != nil {
		return nil, err
	}
	if err := r.skip(int(devRandLen)); err != nil {
		return nil, err
	}

	if err := r.skip(1); err != nil {
		return nil, err
	}
	sigLen, err := r.uint16BE()
	if err != nil {
		return nil, err
	}
	if err := r.skip(int(sigLen)); err != nil {
		return nil, err
	}

	if err := r.skip(1); err != nil {
		return nil, err
	}
	machashLen, err := r.uint16BE()
	if err != nil {
		return nil, err
	}
	machash, err := r.take(int(machashLen))
	if err != nil {
		return nil, err
	}

	return append([]byte(nil), machash...), nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// bodyReader is a bounds-checked cursor over the decrypted response
// body, replacing the original's unchecked pointer advancement (spec.md
// §9) with explicit remaining-length checks before every slice.
type bodyReader struct {
	buf []byte
	pos int
}

func (r *bodyReader) skip(n int) error {
	if n < 0 || r.pos+n > len(r.buf) {
		return fmt.Errorf("%w: cannot skip %d bytes at offset %d of %d", ErrShortResponse, n, r.pos, len(r.buf))
	}
	r.pos += n
	return nil
}

func (r *bodyReader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("%w: cannot read %d bytes at offset %d of %d", ErrShortResponse, n, r.pos, len(r.buf))
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *bodyReader) uint16BE() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

func (r *bodyReader) uint32BE() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}
