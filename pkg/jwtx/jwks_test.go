package jwtx_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/aussiebroadwan/twostep/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestJWK_RoundTrip(t *testing.T) {
	for _, alg := range []string{jwtx.AlgorithmRS256, jwtx.AlgorithmES256, jwtx.AlgorithmEdDSA} {
		t.Run(alg, func(t *testing.T) {
			signer, err := jwtx.NewSigner(alg, "kid-"+alg, generate(t, alg))
			require.NoError(t, err)

			jwk := signer.PublicJWK()
			require.Equal(t, "sig", jwk.Use)
			require.Equal(t, alg, jwk.Alg)

			raw, err := json.Marshal(jwtx.JWKS{Keys: []jwtx.JWK{jwk}})
			require.NoError(t, err)

			var decoded jwtx.JWKS
			require.NoError(t, json.Unmarshal(raw, &decoded))
			require.Equal(t, jwk, decoded.Keys[0])

			pemStr, err := decoded.Keys[0].PEM()
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(pemStr, "-----BEGIN PUBLIC KEY-----"))
		})
	}
}

func TestJWK_Unsupported(t *testing.T) {
	_, err := jwtx.JWK{Kty: "oct"}.PublicKey()
	require.Error(t, err)

	_, err = jwtx.JWK{Kty: "EC", Crv: "P-384"}.PublicKey()
	require.Error(t, err)

	_, err = jwtx.JWK{Kty: "OKP", Crv: "Ed25519", X: "AAAA"}.PublicKey()
	require.Error(t, err)
}

func TestKeySet_ResetFromJWKS(t *testing.T) {
	a, err := jwtx.NewSigner(jwtx.AlgorithmEdDSA, "a", generate(t, jwtx.AlgorithmEdDSA))
	require.NoError(t, err)
	b, err := jwtx.NewSigner(jwtx.AlgorithmEdDSA, "b", generate(t, jwtx.AlgorithmEdDSA))
	require.NoError(t, err)

	keys := jwtx.NewKeySet()
	require.False(t, keys.IsReady())
	require.NoError(t, keys.AddSigner(a))
	require.NoError(t, keys.AddSigner(a), "re-adding a kid replaces it")
	require.Len(t, keys.PublicJWKS().Keys, 1)

	require.NoError(t, keys.ResetFromJWKS(jwtx.JWKS{Keys: []jwtx.JWK{b.PublicJWK()}}))
	_, err = keys.Get("a")
	require.ErrorIs(t, err, jwtx.ErrNoKey)
	_, err = keys.Get("b")
	require.NoError(t, err)

	require.Error(t, keys.ResetFromJWKS(jwtx.JWKS{Keys: []jwtx.JWK{{Kty: "bogus"}}}))
	_, err = keys.Get("b")
	require.NoError(t, err, "failed reset leaves keys untouched")
}
