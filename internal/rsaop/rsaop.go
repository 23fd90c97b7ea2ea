// Package rsaop implements the raw RSA private-key operation spec.md
// §4.F calls for: no padding, a fixed 128-byte input/output, and a single
// primitive shared by both sign and decrypt.
package rsaop

import (
	"fmt"
	"math/big"
)

// KeySize is the modulus size in bytes this protocol always uses.
const KeySize = 128

// Key is an RSA private key built from big-endian hex, per spec.md §6's
// secrets file.
type Key struct {
	n *big.Int
	d *big.Int
}

// NewKey builds a key from a modulus and private exponent, both given as
// big-endian bytes. No public exponent is taken: this engine only
// performs the private-key operation.
func NewKey(modulus, privateExponent []byte) (*Key, error) {
	n := new(big.Int).SetBytes(modulus)
	if n.Sign() <= 0 {
		return nil, fmt.Errorf("rsaop: modulus must be positive")
	}
	d := new(big.Int).SetBytes(privateExponent)
	if d.Sign() <= 0 {
		return nil, fmt.Errorf("rsaop: private exponent must be positive")
	}

	return &Key{n: n, d: d}, nil
}

// Decrypt performs the raw private-key modular exponentiation m = c^d mod
// n over a KeySize-byte input, writing the result left-padded with zeros
// to exactly KeySize bytes. No padding scheme is applied or removed: the
// caller is responsible for PKCS#1-v1.5-like framing (spec.md §4.G.1,
// §4.G.2).
func (k *Key) Decrypt(in []byte) ([]byte, error) {
	if len(in) != KeySize {
		return nil, fmt.Errorf("rsaop: input length %d, want %d", len(in), KeySize)
	}

	c := new(big.Int).SetBytes(in)
	if c.Cmp(k.n) >= 0 {
		return nil, fmt.Errorf("rsaop: input out of range for modulus")
	}

	m := new(big.Int).Exp(c, k.d, k.n)

	out := make([]byte, KeySize)
	m.FillBytes(out)
	return out, nil
}

// Sign is an alias for Decrypt: MTPZ's raw RSA engine has a single
// private-key primitive that the protocol uses for both purposes
// depending on how the caller pads its input beforehand.
func (k *Key) Sign(in []byte) ([]byte, error) {
	return k.Decrypt(in)
}
