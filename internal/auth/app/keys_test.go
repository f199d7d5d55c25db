package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/twostep/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/twostep/pkg/cryptox"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

func keyConfig(mode string) Config {
	return Config{
		Issuer:         "twostep-test",
		Algorithm:      jwtx.AlgorithmEdDSA,
		NumKeys:        2,
		KeyStorageMode: mode,
		MasterKey:      "test-master-key",
	}
}

func TestInitAuthKeysEphemeral(t *testing.T) {
	km, err := InitAuthKeys(t.Context(), keyConfig(KeyModeEphemeral), memory.NewStore(), slogx.Discard())
	require.NoError(t, err)
	assert.Equal(t, 2, km.NumSigners())
}

func TestInitAuthKeysPersistentSurvivesRestart(t *testing.T) {
	st := memory.NewStore()
	cfg := keyConfig(KeyModePersistent)

	first, err := InitAuthKeys(t.Context(), cfg, st, slogx.Discard())
	require.NoError(t, err)
	require.Equal(t, 2, first.NumSigners())

	second, err := InitAuthKeys(t.Context(), cfg, st, slogx.Discard())
	require.NoError(t, err)
	assert.ElementsMatch(t, first.KeySet.PublicJWKS().Keys, second.KeySet.PublicJWKS().Keys)

	cfg.MasterKey = "another-key"
	_, err = InitAuthKeys(t.Context(), cfg, st, slogx.Discard())
	assert.Error(t, err, "keys sealed with a different master key must not load")
}

func TestInitAuthKeysFile(t *testing.T) {
	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "signing.pem")
	require.NoError(t, os.WriteFile(path, pemKey, 0o600))

	cfg := keyConfig(KeyModeFile)
	cfg.PrivateKeyPath = path
	cfg.KeyID = "ops-2026"

	km, err := InitAuthKeys(t.Context(), cfg, memory.NewStore(), slogx.Discard())
	require.NoError(t, err)
	assert.Equal(t, "ops-2026", km.GetSigner().KID())

	cfg.PrivateKeyPath = filepath.Join(t.TempDir(), "missing.pem")
	_, err = InitAuthKeys(t.Context(), cfg, memory.NewStore(), slogx.Discard())
	assert.Error(t, err)
}
