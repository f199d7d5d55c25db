package authsdk

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthenticateRequestSubject(t *testing.T) {
	t.Parallel()

	require.Equal(t, "id", AuthenticateRequest{Identifier: "id", Username: "u", Mobile: "m"}.Subject())
	require.Equal(t, "u", AuthenticateRequest{Username: "u", Mobile: "m"}.Subject())
	require.Equal(t, "m", AuthenticateRequest{Mobile: "m"}.Subject())
	require.Empty(t, AuthenticateRequest{}.Subject())
}

func TestClientChallengeFlow(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /authenticate", func(w http.ResponseWriter, r *http.Request) {
		var req AuthenticateRequest
		if r.Header.Get("Content-Type") != "application/json" || json.NewDecoder(r.Body).Decode(&req) != nil {
			ErrInvalidRequest.WriteError(w)
			return
		}
		if req.Mobile != "+345345343" || req.Password != "secret" {
			ErrInvalidCredentials.WriteError(w)
			return
		}
		_ = json.NewEncoder(w).Encode(AuthenticateResponse{Nonce: "n-1"})
	})
	mux.HandleFunc("POST /verifyCode", func(w http.ResponseWriter, r *http.Request) {
		var req VerifyCodeRequest
		if json.NewDecoder(r.Body).Decode(&req) != nil {
			ErrInvalidRequest.WriteError(w)
			return
		}
		if req.Nonce != "n-1" || req.Code != "123456" {
			ErrUnauthorized.WriteError(w)
			return
		}
		_ = json.NewEncoder(w).Encode(VerifyCodeResponse{Token: "a.b.c"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewSDKClient(srv.URL + "/")
	ctx := t.Context()

	t.Run("success", func(t *testing.T) {
		ch, err := client.Authenticate(ctx, AuthenticateRequest{Mobile: "+345345343", Password: "secret"})
		require.NoError(t, err)
		require.Equal(t, "n-1", ch.Nonce)

		tok, err := client.VerifyCode(ctx, ch.Nonce, "123456")
		require.NoError(t, err)
		require.Equal(t, "a.b.c", tok.Token)
	})

	t.Run("bad password", func(t *testing.T) {
		_, err := client.Authenticate(ctx, AuthenticateRequest{Mobile: "+345345343", Password: "nope"})
		require.ErrorIs(t, err, ErrInvalidCredentials)

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	})

	t.Run("bad code", func(t *testing.T) {
		_, err := client.VerifyCode(ctx, "n-1", "1")
		require.ErrorIs(t, err, ErrUnauthorized)
		require.NotErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestParseErrorResponse(t *testing.T) {
	t.Parallel()

	t.Run("retry after", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ErrUpstreamUnavailable.WriteError(rec)
		resp := rec.Result()

		err := parseErrorResponse(resp, rec.Body.Bytes())
		require.ErrorIs(t, err, ErrUpstreamUnavailable)
		require.Equal(t, 5, err.(*APIError).RetryAfter)
		require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	})

	t.Run("non json body", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusBadGateway, Header: http.Header{}}
		err := parseErrorResponse(resp, []byte("<html>"))

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, ErrorCodeServerError, apiErr.Code)
		require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	})

	t.Run("success", func(t *testing.T) {
		require.NoError(t, parseErrorResponse(&http.Response{StatusCode: http.StatusOK}, nil))
	})
}
