package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"fileshare/internal/fileshare"
)

// ErrLocked is returned by EncryptedStore.Open when no decryption context
// was supplied.
var ErrLocked = errors.New("blob store is locked: no decryption key")

// EncryptedStore encrypts blobs on their way into another BlobStore and
// decrypts them on the way out. Sizes reported by Write are plaintext sizes.
type EncryptedStore struct {
	inner     fileshare.BlobStore
	encryptor fileshare.Encryptor
	decryptor fileshare.DecryptionContext
}

// NewEncryptedStore wraps inner. decryptor may be nil, in which case the
// store can write, list and remove blobs but not open them.
func NewEncryptedStore(inner fileshare.BlobStore, encryptor fileshare.Encryptor, decryptor fileshare.DecryptionContext) *EncryptedStore {
	return &EncryptedStore{
		inner:     inner,
		encryptor: encryptor,
		decryptor: decryptor,
	}
}

func (s *EncryptedStore) Write(ctx context.Context, name string, r io.Reader) (string, int64, error) {
	plain := &countingReader{r: r}
	pr, pw := io.Pipe()

	done := make(chan error, 1)
	go func() {
		err := s.encryptor.Encrypt(plain, pw)
		pw.CloseWithError(err)
		done <- err
	}()

	path, _, err := s.inner.Write(ctx, name, pr)
	// Unblocks the encrypting goroutine if the inner store stopped reading early.
	pr.CloseWithError(io.ErrClosedPipe)
	encErr := <-done

	if err != nil {
		return "", 0, err
	}
	if encErr != nil {
		_ = s.inner.Remove(ctx, path)
		return "", 0, fmt.Errorf("encrypting blob: %w", encErr)
	}
	return path, plain.n, nil
}

// Open returns a reader that decrypts the blob as it is read. Authentication
// failures surface as read errors.
func (s *EncryptedStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if s.decryptor == nil {
		return nil, ErrLocked
	}

	rc, err := s.inner.Open(ctx, path)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		err := s.decryptor.Decrypt(rc, pw)
		rc.Close()
		pw.CloseWithError(err)
	}()
	return pr, nil
}

func (s *EncryptedStore) Remove(ctx context.Context, path string) error {
	return s.inner.Remove(ctx, path)
}

func (s *EncryptedStore) List(ctx context.Context) ([]fileshare.BlobInfo, error) {
	return s.inner.List(ctx)
}

// ValidateSetup checks the key files as well as the wrapped store.
func (s *EncryptedStore) ValidateSetup(ctx context.Context) error {
	if !s.encryptor.IsConfigured() {
		return fmt.Errorf("encryption keys are not configured (run 'fileshare keygen')")
	}
	return s.inner.ValidateSetup(ctx)
}

// Compile-time check that EncryptedStore implements fileshare.BlobStore
var _ fileshare.BlobStore = (*EncryptedStore)(nil)
