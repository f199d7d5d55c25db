package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/twostep/pkg/cryptox"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func generate(t *testing.T, alg string) []byte {
	t.Helper()
	var (
		pemKey []byte
		err    error
	)
	switch alg {
	case jwtx.AlgorithmRS256:
		pemKey, err = cryptox.GenerateRSAKey(2048)
	case jwtx.AlgorithmES256:
		pemKey, err = cryptox.GenerateES256Key()
	case jwtx.AlgorithmEdDSA:
		pemKey, err = cryptox.GenerateEd25519Key()
	}
	require.NoError(t, err)
	return pemKey
}

func TestSigner_SignAndVerify(t *testing.T) {
	for _, alg := range []string{jwtx.AlgorithmRS256, jwtx.AlgorithmES256, jwtx.AlgorithmEdDSA} {
		t.Run(alg, func(t *testing.T) {
			signer, err := jwtx.NewSigner(alg, "kid-1", generate(t, alg))
			require.NoError(t, err)
			require.Equal(t, alg, signer.Alg())
			require.Equal(t, "kid-1", signer.KID())
			require.Equal(t, "kid-1", signer.PublicJWK().Kid)

			keys := jwtx.NewKeySet()
			require.NoError(t, keys.AddSigner(signer))
			verifier := jwtx.NewVerifier(keys, jwtx.VerifyOptions{Issuer: "iss"})

			token, err := signer.Sign(jwtx.NewAccessClaims("1", []string{"admin"}, nil, time.Minute, "iss", nil, time.Now()))
			require.NoError(t, err)
			require.Len(t, strings.Split(token, "."), 3)

			claims, err := verifier.Verify(token)
			require.NoError(t, err)
			require.Equal(t, "1", claims.Subject)
			require.Equal(t, []string{"admin"}, claims.Scope)
		})
	}
}

func TestNewSigner_KeyMismatch(t *testing.T) {
	_, err := jwtx.NewSigner(jwtx.AlgorithmRS256, "k", generate(t, jwtx.AlgorithmEdDSA))
	require.Error(t, err)

	_, err = jwtx.NewSigner(jwtx.AlgorithmEdDSA, "k", generate(t, jwtx.AlgorithmES256))
	require.Error(t, err)

	_, err = jwtx.NewSigner("HS256", "k", generate(t, jwtx.AlgorithmEdDSA))
	require.Error(t, err)
}

func TestVerifier_Rejects(t *testing.T) {
	signer, err := jwtx.NewSigner(jwtx.AlgorithmEdDSA, "kid-1", generate(t, jwtx.AlgorithmEdDSA))
	require.NoError(t, err)
	other, err := jwtx.NewSigner(jwtx.AlgorithmEdDSA, "kid-2", generate(t, jwtx.AlgorithmEdDSA))
	require.NoError(t, err)

	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	verifier := jwtx.NewVerifier(keys, jwtx.VerifyOptions{
		Issuer:   "iss",
		Audience: []string{"web"},
		Now:      func() time.Time { return now },
	})

	sign := func(s jwtx.Signer, iss string, aud []string, issued time.Time) string {
		token, err := s.Sign(jwtx.NewAccessClaims("1", []string{"a"}, nil, time.Minute, iss, aud, issued))
		require.NoError(t, err)
		return token
	}

	tests := []struct {
		name  string
		token string
	}{
		{"malformed", "abc.def"},
		{"unknown kid", sign(other, "iss", []string{"web"}, now)},
		{"wrong issuer", sign(signer, "evil", []string{"web"}, now)},
		{"wrong audience", sign(signer, "iss", []string{"cli"}, now)},
		{"expired", sign(signer, "iss", []string{"web"}, now.Add(-time.Hour))},
		{"not yet valid", sign(signer, "iss", []string{"web"}, now.Add(time.Hour))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			require.Error(t, err)
		})
	}

	_, err = verifier.Verify(sign(signer, "iss", []string{"web"}, now))
	require.NoError(t, err)
}
