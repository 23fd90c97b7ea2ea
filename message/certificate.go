// SPDX-License-Identifier: MIT

// Package message builds and parses the three framed byte buffers the
// MTPZ handshake exchanges with the device: the application-certificate
// message, the device's response, and the confirmation message.
package message

import (
	"fmt"

	"github.com/bytemare/cryptotools/encoding"
	"github.com/bytemare/cryptotools/utils"

	"github.com/libmtp/go-mtpz/internal/rsaop"
	"github.com/libmtp/go-mtpz/internal/sha1x"
)

// CertificatesLength is the fixed size of the certificates field the
// application-certificate message's preamble declares (0x275 bytes);
// spec.md §3 notes the secrets bundle's certificates blob is "typically"
// this size, and the wire preamble hardcodes it, so a mismatched bundle
// cannot be framed.
const CertificatesLength = 0x275

const (
	clientRandomLength = 16
	signatureLength    = 128
)

// certificatePreamble is the fixed marker-and-length prefix spec.md
// §4.G.1 specifies: 02 01 01, then a 4-byte big-endian CertificatesLength.
var certificatePreamble = utils.Concatenate(0,
	[]byte{0x02, 0x01, 0x01},
	encoding.I2OSP(CertificatesLength, 4),
)

// signatureFraming is written immediately before the 128-byte RSA
// signature; the original implementation hardcodes it as a length/marker
// triple rather than deriving it, so it is reproduced as a constant here.
var signatureFraming = []byte{0x01, 0x00, 0x80}

// BuildApplicationCertificate constructs the 785-byte application-
// certificate message of spec.md §4.G.1: marker and certificates, a
// length-prefixed client random, and an EMSA-PSS-like RSA signature over
// the message from byte 2 (inside the preamble) through the random. It
// returns only the message; the caller keeps clientRandom to check the
// device's echoed value in §4.G.2.
func BuildApplicationCertificate(certificates []byte, clientRandom []byte, key *rsaop.Key) ([]byte, error) {
	if len(certificates) != CertificatesLength {
		return nil, fmt.Errorf("message: certificates must be %d bytes, got %d", CertificatesLength, len(certificates))
	}
	if len(clientRandom) != clientRandomLength {
		return nil, fmt.Errorf("message: client random must be %d bytes, got %d", clientRandomLength, len(clientRandom))
	}

	randomField := utils.Concatenate(0, encoding.I2OSP(clientRandomLength, 2), clientRandom)

	signed := utils.Concatenate(0, certificatePreamble, certificates, randomField)

	odata, err := encodeSignatureBlock(signed[2:])
	if err != nil {
		return nil, err
	}

	signature, err := key.Sign(odata)
	if err != nil {
		return nil, fmt.Errorf("message: signing application certificate: %w", err)
	}

	wipeBytes(odata)

	return utils.Concatenate(0, signed, signatureFraming, signature), nil
}

// encodeSignatureBlock builds the 128-byte EMSA-PSS-like encoded block of
// spec.md §4.G.1 step 5 over the already-framed bytes signed (the
// message from byte 2 of its preamble through the client random).
func encodeSignatureBlock(signed []byte) ([]byte, error) {
	h20 := sha1x.Sum20(signed)

	v16 := make([]byte, 28)
	copy(v16[8:], h20[:])
	h := sha1x.Sum20(v16)

	mask := sha1x.MGF(h[:], 107)

	odata := make([]byte, signatureLength)
	copy(odata[107:127], h[:])
	odata[106] = 0x01
	for i := 0; i < 107; i++ {
		odata[i] ^= mask[i]
	}
	odata[0] &= 0x7f
	odata[127] = 0xbc

	wipeBytes(v16)

	return odata, nil
}

func wipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
