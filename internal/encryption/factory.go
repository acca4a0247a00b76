package encryption

import (
	"fmt"

	"pcc-go/internal/config"
	"pcc-go/internal/pcc"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// Type "none" (the default) returns nil, which leaves content unencrypted.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (pcc.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
