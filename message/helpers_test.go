package message

import (
	gorsa "crypto/rsa"
	"crypto/rand"
	"testing"
)

func mustGenerateRSAKey(t *testing.T) *gorsa.PrivateKey {
	t.Helper()
	priv, err := gorsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("crypto/rsa.GenerateKey: %v", err)
	}
	return priv
}
