package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/pkg/cryptox"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
)

// InitAuthKeys creates the KeyManager for the configured storage mode.
//
// Storage modes:
//   - "ephemeral": keys are generated on startup and held in memory. Tokens
//     issued before a restart can no longer be verified.
//   - "persistent": keys are sealed with the master key and kept in the
//     store, so tokens survive restarts until their key expires.
//   - "file": a single operator-provided PEM key, e.g. mounted from a
//     secret store.
func InitAuthKeys(ctx context.Context, cfg Config, db store.Store, logger *slog.Logger) (*jwtx.KeyManager, error) {
	opts := jwtx.KeyManagerOptions{
		Algorithm: cfg.Algorithm,
		Issuer:    cfg.Issuer,
		Audience:  cfg.Audience,
		RSABits:   cfg.RSABits,
		NumKeys:   cfg.NumKeys,
	}

	var (
		keyManager *jwtx.KeyManager
		err        error
	)

	switch cfg.KeyStorageMode {
	case KeyModePersistent:
		sealer, serr := cryptox.LoadKeySealer(cfg.MasterKeyPath, cfg.MasterKey)
		if serr != nil {
			return nil, fmt.Errorf("failed to load master key: %w", serr)
		}

		keyManager, err = jwtx.NewPersistentKeyManager(ctx, jwtx.PersistentKeyManagerOptions{
			KeyManagerOptions: opts,
			Store:             store.NewKeyStoreAdapter(db),
			Sealer:            sealer,
			Lifetime:          cfg.KeyGracePeriod,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize persistent key manager: %w", err)
		}
		logger.Info("persistent signing keys loaded",
			"algorithm", keyManager.Algorithm(),
			"num_keys", keyManager.NumSigners(),
			"lifetime", cfg.KeyGracePeriod,
		)

	case KeyModeFile:
		pemKey, rerr := os.ReadFile(cfg.PrivateKeyPath)
		if rerr != nil {
			return nil, fmt.Errorf("failed to read private key: %w", rerr)
		}

		keyManager, err = jwtx.NewStaticKeyManager(opts, cfg.KeyID, pemKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load private key: %w", err)
		}
		logger.Info("signing key loaded from file",
			"algorithm", keyManager.Algorithm(),
			"kid", keyManager.GetSigner().KID(),
		)

	default:
		keyManager, err = jwtx.NewEphemeralKeyManager(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ephemeral key manager: %w", err)
		}
		logger.Info("generated ephemeral signing keys",
			"algorithm", keyManager.Algorithm(),
			"num_keys", keyManager.NumSigners(),
		)
		logger.Warn("tokens issued before this start can no longer be verified")
	}

	return keyManager, nil
}
