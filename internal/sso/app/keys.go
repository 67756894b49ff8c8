package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/crosstab/pkg/jwtx"
)

// InitHandoffKeys creates the primary's ephemeral Ed25519 key manager.
//
// Keys are generated on startup and live only in memory: a restart
// invalidates outstanding handoff tokens, which costs at most one extra
// sign-in redirect since the tokens live for seconds. Multiple keys are
// generated so runtime rotation never leaves a signing gap; use
// SSO_NUM_KEYS to customize.
func InitHandoffKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	keyManager, err := jwtx.NewEphemeralKeyManager(cfg.NumKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ephemeral key manager: %w", err)
	}

	logger.Info("generated ephemeral handoff signing keys",
		"num_keys", keyManager.NumSigners(),
		"issuer", cfg.handoffIssuer(),
	)
	logger.Warn("outstanding handoff tokens are now invalid due to key generation on startup")

	return keyManager, nil
}
