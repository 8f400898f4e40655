package encryption

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"fileshare/internal/fileshare"
)

// testMagic marks content written by TestEncryptor.
var testMagic = []byte("FSTEST1\n")

const testMask = 0x5a

// TestEncryptor is a deterministic, reversible stand-in for AgeEncryptor.
// Output is a magic line followed by every content byte XOR 0x5a, so it never
// equals the plaintext yet needs no keys.
type TestEncryptor struct {
	setupCalled bool
}

var _ fileshare.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.setupCalled = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testMagic); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, maskReader{bufio.NewReader(r)}); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (fileshare.DecryptionContext, error) {
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// TestDecryptionContext reverses TestEncryptor.
type TestDecryptionContext struct{}

var _ fileshare.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testMagic))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testMagic) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, maskReader{r}); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

type maskReader struct {
	r io.Reader
}

func (m maskReader) Read(p []byte) (int, error) {
	n, err := m.r.Read(p)
	for i := range p[:n] {
		p[i] ^= testMask
	}
	return n, err
}
