package encryption

import (
	"fmt"

	"fileshare/internal/config"
	"fileshare/internal/fileshare"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// Type "none" (or empty) returns a nil Encryptor: blobs are stored as-is.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (fileshare.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
