package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/twostep/pkg/authsdk"
	"github.com/aussiebroadwan/twostep/pkg/cryptox"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
)

func TestHashPassword(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(t.Context(), []string{"hash-password"}, strings.NewReader("hunter2\n"), &out))

	hash := strings.TrimSpace(out.String())
	assert.NoError(t, cryptox.VerifyPassword("hunter2", hash))

	err := run(t.Context(), []string{"hash-password"}, strings.NewReader("\n"), &out)
	assert.Error(t, err)
}

func TestUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, run(t.Context(), nil, strings.NewReader(""), &out))
	assert.Error(t, run(t.Context(), []string{"rotate"}, strings.NewReader(""), &out))
	assert.NoError(t, run(t.Context(), []string{"help"}, strings.NewReader(""), &out))
}

func jwksServer(t *testing.T, km *jwtx.KeyManager) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/jwks.json" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(km.KeySet.PublicJWKS())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifyToken(t *testing.T) {
	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmES256,
		Issuer:    "twostep-test",
		NumKeys:   1,
	})
	require.NoError(t, err)
	srv := jwksServer(t, km)

	claims := jwtx.NewAccessClaims("1", []string{"admin"}, []string{jwtx.AMRPassword, jwtx.AMROTP}, time.Minute, "twostep-test", nil, time.Now())
	token, err := km.GetSigner().Sign(claims)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, run(t.Context(), []string{"verify-token", "--url", srv.URL, "--issuer", "twostep-test", token}, strings.NewReader(""), &out))
	assert.Contains(t, out.String(), `"sub": "1"`)

	err = run(t.Context(), []string{"verify-token", "--url", srv.URL, "--issuer", "someone-else", token}, strings.NewReader(""), &out)
	assert.Error(t, err)

	err = run(t.Context(), []string{"verify-token", "--url", srv.URL}, strings.NewReader(""), &out)
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /authenticate", func(w http.ResponseWriter, r *http.Request) {
		var req authsdk.AuthenticateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Username != "sadman" || req.Password != "pw" {
			authsdk.ErrInvalidCredentials.WriteError(w)
			return
		}
		_ = json.NewEncoder(w).Encode(authsdk.AuthenticateResponse{Nonce: "n1"})
	})
	mux.HandleFunc("POST /verifyCode", func(w http.ResponseWriter, r *http.Request) {
		var req authsdk.VerifyCodeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Nonce != "n1" || req.Code != "123456" {
			authsdk.ErrUnauthorized.WriteError(w)
			return
		}
		_ = json.NewEncoder(w).Encode(authsdk.VerifyCodeResponse{Token: "a.b.c"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	err := run(t.Context(), []string{"login", "--url", srv.URL, "-u", "sadman"}, strings.NewReader("pw\n 123456 \n"), &out)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out.String(), "a.b.c\n"))

	err = run(t.Context(), []string{"login", "--url", srv.URL, "-u", "sadman"}, strings.NewReader("wrong\n"), &out)
	assert.ErrorIs(t, err, authsdk.ErrInvalidCredentials)

	err = run(t.Context(), []string{"login", "--url", srv.URL}, strings.NewReader(""), &out)
	assert.Error(t, err)
}
