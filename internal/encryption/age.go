package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"filippo.io/age"

	"fileshare/internal/config"
	"fileshare/internal/fileshare"
)

// ErrWrongPassphrase is returned by Unlock when the passphrase does not open
// the private key.
var ErrWrongPassphrase = errors.New("wrong passphrase for private key")

// AgeEncryptor encrypts blobs to an X25519 recipient. Two files back it: the
// recipient in plaintext, and the identity sealed under a passphrase (scrypt).
type AgeEncryptor struct {
	publicKeyPath  string
	privateKeyPath string

	mu        sync.Mutex
	recipient age.Recipient // loaded on first Encrypt
}

var _ fileshare.Encryptor = (*AgeEncryptor)(nil)

func NewAgeEncryptor(cfg config.EncryptionConfig) *AgeEncryptor {
	return &AgeEncryptor{
		publicKeyPath:  cfg.PublicKeyPath,
		privateKeyPath: cfg.PrivateKeyPath,
	}
}

// Setup creates a fresh key pair. It refuses to replace existing key files,
// and leaves neither file behind when it fails part way.
func (e *AgeEncryptor) Setup(passphrase string) (err error) {
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}
	for _, p := range []string{e.publicKeyPath, e.privateKeyPath} {
		if _, statErr := os.Stat(p); statErr == nil {
			return fmt.Errorf("key file already exists at %s", p)
		}
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}
	seal, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("preparing passphrase: %w", err)
	}

	var created []string
	defer func() {
		if err != nil {
			for _, p := range created {
				os.Remove(p)
			}
		}
	}()

	err = writeKeyFile(e.publicKeyPath, 0644, &created, func(w io.Writer) error {
		_, err := io.WriteString(w, identity.Recipient().String()+"\n")
		return err
	})
	if err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}

	err = writeKeyFile(e.privateKeyPath, 0600, &created, func(w io.Writer) error {
		sealed, err := age.Encrypt(w, seal)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(sealed, identity.String()+"\n"); err != nil {
			return err
		}
		return sealed.Close()
	})
	if err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	return nil
}

// writeKeyFile creates path exclusively, records it in created, and syncs
// whatever fill writes.
func writeKeyFile(path string, perm os.FileMode, created *[]string, fill func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	*created = append(*created, path)

	if err := fill(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	recipient, err := e.loadRecipient()
	if err != nil {
		return err
	}

	ct, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("starting encryption: %w", err)
	}
	if _, err := io.Copy(ct, r); err != nil {
		return fmt.Errorf("encrypting blob: %w", err)
	}
	return ct.Close()
}

// Unlock opens the private key. A passphrase that does not match yields
// ErrWrongPassphrase.
func (e *AgeEncryptor) Unlock(passphrase string) (fileshare.DecryptionContext, error) {
	sealed, err := os.ReadFile(e.privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	opener, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("preparing passphrase: %w", err)
	}

	plain, err := age.Decrypt(bytes.NewReader(sealed), opener)
	if errors.Is(err, age.ErrIncorrectIdentity) {
		return nil, ErrWrongPassphrase
	}
	if err != nil {
		return nil, fmt.Errorf("opening private key: %w", err)
	}

	identity, err := firstOf(age.ParseIdentities(plain))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return &AgeDecryptionContext{identity: identity}, nil
}

func (e *AgeEncryptor) IsConfigured() bool {
	for _, p := range []string{e.publicKeyPath, e.privateKeyPath} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

func (e *AgeEncryptor) loadRecipient() (age.Recipient, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.recipient == nil {
		data, err := os.ReadFile(e.publicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("reading public key: %w", err)
		}
		recipient, err := firstOf(age.ParseRecipients(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("parsing public key %s: %w", e.publicKeyPath, err)
		}
		e.recipient = recipient
	}
	return e.recipient, nil
}

// firstOf returns the first key of a parsed key file.
func firstOf[T any](keys []T, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if len(keys) == 0 {
		return zero, errors.New("no keys in file")
	}
	return keys[0], nil
}

// AgeDecryptionContext holds an unlocked identity.
type AgeDecryptionContext struct {
	identity age.Identity
}

var _ fileshare.DecryptionContext = (*AgeDecryptionContext)(nil)

// Decrypt fails on ciphertext that does not authenticate, possibly after
// part of the plaintext has been written to w.
func (c *AgeDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	plain, err := age.Decrypt(r, c.identity)
	if err != nil {
		return fmt.Errorf("opening blob: %w", err)
	}
	if _, err := io.Copy(w, plain); err != nil {
		return fmt.Errorf("decrypting blob: %w", err)
	}
	return nil
}
