// SPDX-License-Identifier: MIT

package mtpz

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/libmtp/go-mtpz/internal/byteutil"
)

const (
	maxPublicExponentHexLen = 6
	encryptionKeyHexLen     = 32
	modulusHexLen           = 256
	privateKeyHexLen        = 256
	maxCertificatesHexLen   = 1258
)

// Secrets is the per-installation key bundle spec.md §3/§6 describes:
// process-wide, loaded once from disk, immutable thereafter. A zero value
// is never valid; build one with LoadSecrets.
type Secrets struct {
	PublicExponent []byte // raw bytes of the hex-decoded public exponent
	EncryptionKey  []byte // 16 bytes
	Modulus        []byte // 128 bytes, big-endian
	PrivateKey     []byte // 128 bytes, big-endian
	Certificates   []byte // opaque blob embedded verbatim, typically 629 bytes
}

// Wipe zeroes every field's backing array, per the secret-hygiene
// discipline of spec.md §5.
func (s *Secrets) Wipe() {
	wipeBytes(s.PublicExponent)
	wipeBytes(s.EncryptionKey)
	wipeBytes(s.Modulus)
	wipeBytes(s.PrivateKey)
	wipeBytes(s.Certificates)
}

func wipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// LoadSecrets reads and parses the five-line secrets file at path. A
// missing file returns ErrNoSecrets; a present but malformed file
// returns ErrMalformedSecrets wrapping the specific defect. Both are
// Configuration-kind errors: the handshake must not start without a
// complete, well-formed bundle.
func LoadSecrets(path string) (*Secrets, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, wrapErr(Configuration, "LoadSecrets", ErrNoSecrets)
		}
		return nil, wrapErr(Configuration, "LoadSecrets", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	lines := make([][]byte, 5)
	caps := []int{maxPublicExponentHexLen, encryptionKeyHexLen, modulusHexLen, privateKeyHexLen, maxCertificatesHexLen}
	for i := range lines {
		line, err := byteutil.ReadLine(r, caps[i])
		if err != nil {
			return nil, wrapErr(Configuration, "LoadSecrets", fmt.Errorf("%w: line %d: %v", ErrMalformedSecrets, i+1, err))
		}
		lines[i] = line
	}

	if len(lines[1]) != encryptionKeyHexLen {
		return nil, wrapErr(Configuration, "LoadSecrets", fmt.Errorf("%w: encryption key line must be %d hex chars, got %d", ErrMalformedSecrets, encryptionKeyHexLen, len(lines[1])))
	}
	if len(lines[2]) != modulusHexLen {
		return nil, wrapErr(Configuration, "LoadSecrets", fmt.Errorf("%w: modulus line must be %d hex chars, got %d", ErrMalformedSecrets, modulusHexLen, len(lines[2])))
	}
	if len(lines[3]) != privateKeyHexLen {
		return nil, wrapErr(Configuration, "LoadSecrets", fmt.Errorf("%w: private key line must be %d hex chars, got %d", ErrMalformedSecrets, privateKeyHexLen, len(lines[3])))
	}

	publicExponent, err := byteutil.HexToBytes(string(lines[0]))
	if err != nil {
		return nil, wrapErr(Configuration, "LoadSecrets", fmt.Errorf("%w: public exponent: %v", ErrMalformedSecrets, err))
	}
	encryptionKey, err := byteutil.HexToBytes(string(lines[1]))
	if err != nil {
		return nil, wrapErr(Configuration, "LoadSecrets", fmt.Errorf("%w: encryption key: %v", ErrMalformedSecrets, err))
	}
	modulus, err := byteutil.HexToBytes(string(lines[2]))
	if err != nil {
		return nil, wrapErr(Configuration, "LoadSecrets", fmt.Errorf("%w: modulus: %v", ErrMalformedSecrets, err))
	}
	privateKey, err := byteutil.HexToBytes(string(lines[3]))
	if err != nil {
		return nil, wrapErr(Configuration, "LoadSecrets", fmt.Errorf("%w: private key: %v", ErrMalformedSecrets, err))
	}
	certificates, err := byteutil.HexToBytes(string(lines[4]))
	if err != nil {
		return nil, wrapErr(Configuration, "LoadSecrets", fmt.Errorf("%w: certificates: %v", ErrMalformedSecrets, err))
	}

	return &Secrets{
		PublicExponent: publicExponent,
		EncryptionKey:  encryptionKey,
		Modulus:        modulus,
		PrivateKey:     privateKey,
		Certificates:   certificates,
	}, nil
}
