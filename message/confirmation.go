// SPDX-License-Identifier: MIT

package message

import (
	"fmt"

	"github.com/bytemare/cryptotools/utils"

	"github.com/libmtp/go-mtpz/internal/aesengine"
)

// ConfirmationLength is the fixed size of the confirmation message.
const ConfirmationLength = 20

var confirmationPreamble = []byte{0x02, 0x03, 0x00, 0x10}

// BuildConfirmation constructs the 20-byte confirmation message of
// spec.md §4.G.3: a fixed preamble followed by a CMAC-like tag of the
// 16-byte MAC key, seeded with 16 zero bytes whose last byte is 0x01.
func BuildConfirmation(macKey []byte) ([]byte, error) {
	if len(macKey) != 16 {
		return nil, fmt.Errorf("message: MAC key must be 16 bytes, got %d", len(macKey))
	}

	seed := make([]byte, 16)
	seed[15] = 0x01

	tag, err := aesengine.EncryptMAC(macKey, seed)
	if err != nil {
		return nil, fmt.Errorf("message: building confirmation tag: %w", err)
	}

	return utils.Concatenate(0, confirmationPreamble, tag[:]), nil
}

// SessionParameters computes the four 32-bit session tokens of spec.md
// §4.G.4: a CMAC-like tag of the 16-byte MAC key, seeded with the 4-byte
// MAC counter that follows it in the machash field, interpreted as four
// big-endian 32-bit words.
func SessionParameters(macHash []byte) (p0, p1, p2, p3 uint32, err error) {
	if len(macHash) < 20 {
		return 0, 0, 0, 0, fmt.Errorf("message: machash must be at least 20 bytes, got %d", len(macHash))
	}

	macKey := macHash[:16]
	counter := macHash[16:20]

	tag, err := aesengine.EncryptMAC(macKey, counter)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("message: deriving session parameters: %w", err)
	}

	p0 = beUint32(tag[0:4])
	p1 = beUint32(tag[4:8])
	p2 = beUint32(tag[8:12])
	p3 = beUint32(tag[12:16])
	return p0, p1, p2, p3, nil
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
