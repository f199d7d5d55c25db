package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/pkg/authsdk"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
)

type failingPing struct{ store.Store }

func (failingPing) Ping(context.Context) error { return errors.New("connection refused") }

func TestLivez(t *testing.T) {
	ts := newTestServer(t, acceptAll(sadman()))

	rec := ts.do(t, http.MethodGet, "/livez", nil)
	requireStatus(t, rec, http.StatusOK)
	body := decodeBody[authsdk.HealthResponse](t, rec)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "test", body.Version)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyz(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		ts := newTestServer(t, acceptAll(sadman()))

		rec := ts.do(t, http.MethodGet, "/readyz", nil)
		requireStatus(t, rec, http.StatusOK)
		body := decodeBody[authsdk.HealthResponse](t, rec)
		require.NotNil(t, body.Checks)
		assert.Equal(t, "ok", body.Checks.NonceStore)
		assert.Equal(t, "ok", body.Checks.Signer)
	})

	t.Run("store down", func(t *testing.T) {
		ts := newTestServer(t, acceptAll(sadman()))
		r := NewRouter(ts.keys, "test", failingPing{ts.store}, ts.router.logger)
		r.ChallengeService = ts.svc
		r.ApplyRoutes()

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		requireStatus(t, rec, http.StatusServiceUnavailable)
		body := decodeBody[authsdk.HealthResponse](t, rec)
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "error", body.Checks.NonceStore)
	})

	t.Run("no signing key", func(t *testing.T) {
		ts := newTestServer(t, acceptAll(sadman()))
		empty, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{Algorithm: jwtx.AlgorithmEdDSA, Issuer: testIssuer})
		require.NoError(t, err)
		r := NewRouter(empty, "test", ts.store, ts.router.logger)
		r.ChallengeService = ts.svc
		r.ApplyRoutes()

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		requireStatus(t, rec, http.StatusServiceUnavailable)
		assert.Contains(t, decodeBody[authsdk.HealthResponse](t, rec).Checks.Signer, "no signing key")
	})
}

func TestJWKS(t *testing.T) {
	ts := newTestServer(t, acceptAll(sadman()))

	rec := ts.do(t, http.MethodGet, "/.well-known/jwks.json", nil)
	requireStatus(t, rec, http.StatusOK)
	jwks := decodeBody[authsdk.JWKSResponse](t, rec)
	require.Len(t, jwks.Keys, 1)
	assert.Equal(t, ts.keys.GetSigner().KID(), jwks.Keys[0].Kid)
	assert.Equal(t, jwtx.AlgorithmEdDSA, jwks.Keys[0].Alg)
}

// TestSDKRoundTrip drives the service through the published client and
// verifies the token against the published key set.
func TestSDKRoundTrip(t *testing.T) {
	ts := newTestServer(t, acceptAll(sadman()))
	srv := httptest.NewServer(ts.router)
	t.Cleanup(srv.Close)

	client := authsdk.NewSDKClient(srv.URL)
	ctx := t.Context()

	auth, err := client.Authenticate(ctx, authsdk.AuthenticateRequest{Mobile: "+345345343", Password: "2r23432"})
	require.NoError(t, err)

	_, err = client.VerifyCode(ctx, auth.Nonce, "not-it")
	require.ErrorIs(t, err, authsdk.ErrUnauthorized)

	res, err := client.VerifyCode(ctx, auth.Nonce, ts.sms.LastCode())
	require.NoError(t, err)

	jwks, err := client.GetJWKS(ctx)
	require.NoError(t, err)

	keys := jwtx.NewKeySet()
	require.NoError(t, keys.ResetFromJWKS(jwtx.JWKS(*jwks)))
	claims, err := jwtx.NewVerifier(keys, jwtx.VerifyOptions{Issuer: testIssuer}).Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, claims.Scope)

	_, err = client.Authenticate(ctx, authsdk.AuthenticateRequest{Username: "+345345343", Password: "bad"})
	assert.ErrorIs(t, err, authsdk.ErrInvalidCredentials)

	ready, err := client.GetReadiness(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", ready.Status)
}
