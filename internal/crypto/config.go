package crypto

import (
	"fmt"

	"github.com/rakunlabs/pcgate/internal/config"
)

// EncryptChannelConfig encrypts the sensitive fields of a ChannelConfig
// (token) in-place and returns the modified config.
// If key is nil, the config is returned unchanged (no-op).
func EncryptChannelConfig(cfg config.ChannelConfig, key []byte) (config.ChannelConfig, error) {
	if key == nil {
		return cfg, nil
	}

	if cfg.Token != "" {
		enc, err := Encrypt(cfg.Token, key)
		if err != nil {
			return cfg, fmt.Errorf("encrypt token: %w", err)
		}
		cfg.Token = enc
	}

	return cfg, nil
}

// DecryptChannelConfig decrypts the sensitive fields of a ChannelConfig
// (token) in-place and returns the modified config.
// If key is nil, the config is returned unchanged (no-op).
// Values that are not encrypted (no "enc:" prefix) are left as-is.
func DecryptChannelConfig(cfg config.ChannelConfig, key []byte) (config.ChannelConfig, error) {
	if key == nil {
		return cfg, nil
	}

	if cfg.Token != "" {
		dec, err := Decrypt(cfg.Token, key)
		if err != nil {
			return cfg, fmt.Errorf("decrypt token: %w", err)
		}
		cfg.Token = dec
	}

	return cfg, nil
}
