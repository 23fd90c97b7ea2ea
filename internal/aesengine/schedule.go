package aesengine

import "fmt"

// Schedule is an expanded AES key. It holds two round-key sets: the
// forward schedule used by Encrypt, and a second copy whose interior
// round keys (every round but the first and the last) have been passed
// through InvMixColumns, so Decrypt can run the same table-driven inner
// loop as Encrypt instead of a separate code path — the Equivalent
// Inverse Cipher construction of FIPS-197 §5.3.5, which is what
// spec.md §4.D's doubled 484-byte schedule buffer encodes.
type Schedule struct {
	nr      int
	encKeys []uint32 // (nr+1)*4 words
	decKeys []uint32 // (nr+1)*4 words, inner rounds InvMixColumns-transformed
}

// NewSchedule expands a 16, 24, or 32-byte key into 10, 12, or 14 rounds.
func NewSchedule(key []byte) (*Schedule, error) {
	var nk, nr int
	switch len(key) {
	case 16:
		nk, nr = 4, 10
	case 24:
		nk, nr = 6, 12
	case 32:
		nk, nr = 8, 14
	default:
		return nil, fmt.Errorf("aesengine: invalid key length %d", len(key))
	}

	enc := expandKey(key, nk, nr)

	dec := make([]uint32, len(enc))
	copy(dec, enc)
	for r := 1; r < nr; r++ {
		for c := 0; c < 4; c++ {
			i := r*4 + c
			dec[i] = invMixColumnsWord(dec[i])
		}
	}

	return &Schedule{nr: nr, encKeys: enc, decKeys: dec}, nil
}

// Rounds reports the number of AES rounds (10, 12, or 14).
func (s *Schedule) Rounds() int { return s.nr }

func expandKey(key []byte, nk, nr int) []uint32 {
	total := 4 * (nr + 1)
	w := make([]uint32, total)

	for i := 0; i < nk; i++ {
		w[i] = beWord(key[4*i : 4*i+4])
	}

	for i := nk; i < total; i++ {
		temp := w[i-1]
		switch {
		case i%nk == 0:
			temp = subWord(rotWord(temp)) ^ uint32(rcon[i/nk-1])<<24
		case nk > 6 && i%nk == 4:
			temp = subWord(temp)
		}
		w[i] = w[i-nk] ^ temp
	}

	return w
}

func subWord(w uint32) uint32 {
	return uint32(sbox[byte(w>>24)])<<24 |
		uint32(sbox[byte(w>>16)])<<16 |
		uint32(sbox[byte(w>>8)])<<8 |
		uint32(sbox[byte(w)])
}

func rotWord(w uint32) uint32 {
	return w<<8 | w>>24
}

func beWord(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func invMixColumnsWord(w uint32) uint32 {
	a0 := byte(w >> 24)
	a1 := byte(w >> 16)
	a2 := byte(w >> 8)
	a3 := byte(w)

	b0 := gfMul14[a0] ^ gfMul11[a1] ^ gfMul13[a2] ^ gfMul9[a3]
	b1 := gfMul9[a0] ^ gfMul14[a1] ^ gfMul11[a2] ^ gfMul13[a3]
	b2 := gfMul13[a0] ^ gfMul9[a1] ^ gfMul14[a2] ^ gfMul11[a3]
	b3 := gfMul11[a0] ^ gfMul13[a1] ^ gfMul9[a2] ^ gfMul14[a3]

	return uint32(b0)<<24 | uint32(b1)<<16 | uint32(b2)<<8 | uint32(b3)
}
