// SPDX-License-Identifier: MIT

package mtpz

import (
	"context"
	gorsa "crypto/rsa"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/libmtp/go-mtpz/internal/aesengine"
	"github.com/libmtp/go-mtpz/internal/sha1x"
	"github.com/libmtp/go-mtpz/message"
)

type fakeTransport struct {
	resetCalled   bool
	sentPayloads  [][]byte
	response      []byte
	enabledCalled bool
}

func (f *fakeTransport) SetSessionInitiatorInfo(ctx context.Context, identity string) error {
	return nil
}

func (f *fakeTransport) ResetHandshake(ctx context.Context) error {
	f.resetCalled = true
	return nil
}

func (f *fakeTransport) SendAppRequest(ctx context.Context, payload []byte) error {
	f.sentPayloads = append(f.sentPayloads, payload)
	return nil
}

func (f *fakeTransport) GetAppResponse(ctx context.Context) ([]byte, error) {
	return f.response, nil
}

func (f *fakeTransport) EnableTrustedFileOperations(ctx context.Context, p0, p1, p2, p3 uint32) error {
	f.enabledCalled = true
	return nil
}

// writeSecretsFile builds a well-formed five-line secrets file around a
// freshly generated RSA key, returning both the file path and the
// matching crypto/rsa key for constructing a synthetic device response.
func writeSecretsFile(t *testing.T, dir string) (string, *gorsa.PrivateKey) {
	t.Helper()

	goKey, err := gorsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	nb := make([]byte, 128)
	goKey.N.FillBytes(nb)
	db := make([]byte, 128)
	goKey.D.FillBytes(db)

	certs := make([]byte, 629)
	content := fmt.Sprintf("010001\n%032x\n%x\n%x\n%x\n",
		0, nb, db, certs)
	path := filepath.Join(dir, "secrets")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path, goKey
}

func buildHashKeyBlockForClientTest(hashKey []byte) []byte {
	var u2 [107]byte
	copy(u2[91:107], hashKey)
	var u1 [20]byte
	copy(u1[:], []byte("deviceside-20bytes!"))

	mask2 := sha1x.MGF(u1[:], 107)
	var masked2 [107]byte
	for i := range masked2 {
		masked2[i] = u2[i] ^ mask2[i]
	}
	mask1 := sha1x.MGF(masked2[:], 20)
	var masked1 [20]byte
	for i := range masked1 {
		masked1[i] = u1[i] ^ mask1[i]
	}

	m := make([]byte, 128)
	copy(m[1:21], masked1[:])
	copy(m[21:128], masked2[:])
	return m
}

func buildResponseBodyForClientTest(clientRandom, machash []byte) []byte {
	body := make([]byte, 832)
	pos := 1
	const certsLen = 10
	body[pos+3] = certsLen
	pos += 4 + certsLen

	body[pos] = byte(len(clientRandom) >> 8)
	body[pos+1] = byte(len(clientRandom))
	pos += 2
	copy(body[pos:], clientRandom)
	pos += len(clientRandom)

	const devRandLen = 16
	body[pos+1] = devRandLen
	pos += 2 + devRandLen

	pos++
	const sigLen = 20
	body[pos+1] = sigLen
	pos += 2 + sigLen

	pos++
	body[pos] = byte(len(machash) >> 8)
	body[pos+1] = byte(len(machash))
	pos += 2
	copy(body[pos:], machash)

	return body
}

// buildFakeDeviceResponse needs to know the client random the Client
// will generate; since NewClient's default random source is
// non-deterministic, tests override it via an unexported seam.
func buildFakeDeviceResponse(t *testing.T, goKey *gorsa.PrivateKey, clientRandom, hashKey, machash []byte) []byte {
	t.Helper()

	body := buildResponseBodyForClientTest(clientRandom, machash)
	ks, err := aesengine.NewSchedule(hashKey)
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}
	aesengine.CipherCBC(ks, body, true)

	m := buildHashKeyBlockForClientTest(hashKey)
	m[0] = 0x00
	mInt := new(big.Int).SetBytes(m)
	e := big.NewInt(int64(goKey.PublicKey.E))
	cInt := new(big.Int).Exp(mInt, e, goKey.N)
	cipherBlock := make([]byte, 128)
	cInt.FillBytes(cipherBlock)

	response := make([]byte, 0, 968)
	response = append(response, 0x02, 0x02, 0x00, 0x80)
	response = append(response, cipherBlock...)
	response = append(response, 0x00, 0x00, 0x03, 0x40)
	response = append(response, body...)
	return response
}

func TestNewClientFailsWhenSecretsMissing(t *testing.T) {
	tr := &fakeTransport{}
	_, err := NewClient(tr, WithSecretsPath(filepath.Join(t.TempDir(), "missing")))
	if !errors.Is(err, ErrNoSecrets) {
		t.Fatalf("err = %v, want ErrNoSecrets", err)
	}
	var merr *Error
	if !errors.As(err, &merr) || merr.Kind != Configuration {
		t.Fatalf("expected Configuration-kind *Error, got %v", err)
	}
}

func TestClientHandshakeHappyPath(t *testing.T) {
	dir := t.TempDir()
	path, goKey := writeSecretsFile(t, dir)

	clientRandom := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	hashKey := []byte("0123456789abcdef")
	machash := append(append([]byte{}, hashKey...), 0, 0, 0, 9)

	tr := &fakeTransport{response: buildFakeDeviceResponse(t, goKey, clientRandom, hashKey, machash)}

	c, err := NewClient(tr, WithSecretsPath(path))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.randomSource = func(n int) []byte { return clientRandom }

	result, err := c.Handshake(context.Background())
	if err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if !tr.resetCalled || !tr.enabledCalled {
		t.Fatal("expected ResetHandshake and EnableTrustedFileOperations to be called")
	}
	if len(tr.sentPayloads) != 2 {
		t.Fatalf("expected 2 SendAppRequest calls, got %d", len(tr.sentPayloads))
	}
	if result.P0 == 0 && result.P1 == 0 && result.P2 == 0 && result.P3 == 0 {
		t.Fatal("expected non-zero session parameters")
	}
}

func TestClientHandshakeClassifiesProtocolError(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeSecretsFile(t, dir)

	response := make([]byte, 968)
	response[0], response[1], response[3] = 0x02, 0x02, 0x00 // bad preamble

	tr := &fakeTransport{response: response}
	c, err := NewClient(tr, WithSecretsPath(path))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.randomSource = func(n int) []byte { return make([]byte, n) }

	_, err = c.Handshake(context.Background())
	var merr *Error
	if !errors.As(err, &merr) || merr.Kind != Protocol {
		t.Fatalf("expected Protocol-kind *Error, got %v", err)
	}
	if !errors.Is(err, message.ErrBadPreamble) {
		t.Fatalf("expected wrapped ErrBadPreamble, got %v", err)
	}
}
