package testutil

import (
	"fileshare/internal/encryption"
	"fileshare/internal/fileshare"
)

// NewTestEncryptor returns a fast, keyless Encryptor for tests.
func NewTestEncryptor() fileshare.Encryptor {
	return encryption.NewTestEncryptor()
}
