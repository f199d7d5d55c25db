package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/twostep/pkg/clock"
	"github.com/aussiebroadwan/twostep/pkg/cryptox"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

func TestHousekeepingSweep(t *testing.T) {
	st := memory.NewStore()
	clk := clock.Fake(time.Now().UTC())
	nonces := &NonceStore{Store: st, Codes: &CodeGenerator{}, Clock: clk, TTL: time.Minute}

	expired, err := nonces.Create(t.Context(), sadman())
	require.NoError(t, err)
	clk.Advance(30 * time.Second)
	live, err := nonces.Create(t.Context(), sadman())
	require.NoError(t, err)

	require.NoError(t, st.SigningKeys().CreateSigningKey(t.Context(), domain.SigningKey{
		ID: "old", Kid: "old", Algorithm: "ES256", CreatedAt: clk.Now(), ExpiresAt: clk.Now().Add(30 * time.Second),
	}))
	require.NoError(t, st.SigningKeys().CreateSigningKey(t.Context(), domain.SigningKey{
		ID: "new", Kid: "new", Algorithm: "ES256", CreatedAt: clk.Now(), ExpiresAt: clk.Now().Add(time.Hour),
	}))

	clk.Advance(45 * time.Second)

	hk := NewHousekeepingService(nonces, st, slogx.Discard(), time.Hour)
	hk.Clock = clk
	hk.Sweep(t.Context())

	_, err = st.Verifications().GetVerification(t.Context(), cryptox.FingerprintToken(expired.Nonce))
	assert.Error(t, err)
	_, err = nonces.Get(t.Context(), live.Nonce)
	assert.NoError(t, err)

	keys, err := st.SigningKeys().ListSigningKeys(t.Context(), time.Time{})
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "new", keys[0].Kid)
}

func TestHousekeepingStartStop(t *testing.T) {
	st := memory.NewStore()
	nonces := &NonceStore{Store: st, Codes: &CodeGenerator{}}

	hk := NewHousekeepingService(nonces, st, slogx.Discard(), 0)
	assert.Equal(t, DefaultReapInterval, hk.Interval)

	hk.Start()
	hk.Stop()
}
