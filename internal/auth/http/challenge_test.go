package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/twostep/internal/auth/directory"
	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/notify"
	"github.com/aussiebroadwan/twostep/pkg/authsdk"
)

func TestVerifyCodeIssuesToken(t *testing.T) {
	ts := newTestServer(t, acceptAll(sadman()))

	rec := ts.do(t, http.MethodPost, "/authenticate", map[string]string{
		"username": "+345345343",
		"password": "2r23432",
	})
	requireStatus(t, rec, http.StatusOK)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	nonce := decodeBody[authsdk.AuthenticateResponse](t, rec).Nonce
	require.NotEmpty(t, nonce)

	code := ts.sms.LastCode()
	require.NotEmpty(t, code)

	rec = ts.do(t, http.MethodPost, "/verifyCode", map[string]string{"nonce": nonce, "code": code})
	requireStatus(t, rec, http.StatusOK)
	token := decodeBody[authsdk.VerifyCodeResponse](t, rec).Token

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	var body struct {
		Sub   string   `json:"sub"`
		Scope []string `json:"scope"`
	}
	require.NoError(t, json.Unmarshal(payload, &body))
	assert.Equal(t, "1", body.Sub)
	assert.Equal(t, []string{"admin"}, body.Scope)

	claims, err := ts.keys.Verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "1", claims.Subject)
}

func TestVerifyCodeRejectsBadCode(t *testing.T) {
	identity := sadman()
	identity.Name = nil
	identity.Email = ""
	ts := newTestServer(t, acceptAll(identity))

	rec := ts.do(t, http.MethodPost, "/authenticate", map[string]string{
		"mobile":   "+345345343",
		"password": "2r23432",
	})
	requireStatus(t, rec, http.StatusOK)
	nonce := decodeBody[authsdk.AuthenticateResponse](t, rec).Nonce

	rec = ts.do(t, http.MethodPost, "/verifyCode", map[string]string{"nonce": nonce, "code": "1"})
	requireStatus(t, rec, http.StatusUnauthorized)
	assert.Equal(t, authsdk.ErrorCodeUnauthorized, decodeBody[authsdk.APIError](t, rec).Code)
}

func TestVerifyCodeFailuresAreUniform(t *testing.T) {
	ts := newTestServer(t, acceptAll(sadman()))

	rec := ts.do(t, http.MethodPost, "/authenticate", map[string]string{"username": "+345345343", "password": "2r23432"})
	requireStatus(t, rec, http.StatusOK)
	nonce := decodeBody[authsdk.AuthenticateResponse](t, rec).Nonce
	code := ts.sms.LastCode()

	rec = ts.do(t, http.MethodPost, "/verifyCode", map[string]string{"nonce": nonce, "code": code})
	requireStatus(t, rec, http.StatusOK)

	bodies := map[string]string{}
	for name, in := range map[string]map[string]string{
		"replayed nonce": {"nonce": nonce, "code": code},
		"unknown nonce":  {"nonce": "bm90LWEtbm9uY2U", "code": code},
	} {
		rec := ts.do(t, http.MethodPost, "/verifyCode", in)
		requireStatus(t, rec, http.StatusUnauthorized)
		bodies[name] = rec.Body.String()
	}
	assert.Equal(t, bodies["replayed nonce"], bodies["unknown nonce"])
}

func TestAuthenticateErrors(t *testing.T) {
	tests := []struct {
		name     string
		dir      directory.Directory
		body     map[string]string
		wantCode int
		wantErr  string
	}{
		{
			name:     "wrong password",
			dir:      acceptAll(sadman()),
			body:     map[string]string{"username": "+345345343", "password": "nope"},
			wantCode: http.StatusUnauthorized,
			wantErr:  authsdk.ErrorCodeInvalidCredentials,
		},
		{
			name:     "unknown user",
			dir:      acceptAll(sadman()),
			body:     map[string]string{"username": "someone", "password": "2r23432"},
			wantCode: http.StatusUnauthorized,
			wantErr:  authsdk.ErrorCodeInvalidCredentials,
		},
		{
			name:     "missing password",
			dir:      acceptAll(sadman()),
			body:     map[string]string{"username": "+345345343"},
			wantCode: http.StatusBadRequest,
			wantErr:  authsdk.ErrorCodeInvalidRequest,
		},
		{
			name:     "missing identifier",
			dir:      acceptAll(sadman()),
			body:     map[string]string{"password": "2r23432"},
			wantCode: http.StatusBadRequest,
			wantErr:  authsdk.ErrorCodeInvalidRequest,
		},
		{
			name: "directory unavailable",
			dir: directoryFunc(func(context.Context, string, string) (domain.Identity, error) {
				return domain.Identity{}, directory.ErrUnavailable
			}),
			body:     map[string]string{"username": "+345345343", "password": "2r23432"},
			wantCode: http.StatusServiceUnavailable,
			wantErr:  authsdk.ErrorCodeTemporarilyDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.dir)

			rec := ts.do(t, http.MethodPost, "/authenticate", tt.body)
			requireStatus(t, rec, tt.wantCode)
			assert.Equal(t, tt.wantErr, decodeBody[authsdk.APIError](t, rec).Code)
			if tt.wantCode == http.StatusServiceUnavailable {
				assert.Equal(t, "5", rec.Header().Get("Retry-After"))
			}
			assert.Empty(t, ts.sms.Messages())
		})
	}
}

func TestAuthenticateDeliveryFailure(t *testing.T) {
	t.Run("fail policy", func(t *testing.T) {
		ts := newTestServer(t, acceptAll(sadman()))
		ts.sms.Err = notify.ErrRejected

		rec := ts.do(t, http.MethodPost, "/authenticate", map[string]string{"username": "+345345343", "password": "2r23432"})
		requireStatus(t, rec, http.StatusInternalServerError)
		assert.Equal(t, authsdk.ErrorCodeServerError, decodeBody[authsdk.APIError](t, rec).Code)
	})

	t.Run("unreachable gateway", func(t *testing.T) {
		ts := newTestServer(t, acceptAll(sadman()))
		ts.sms.Err = notify.ErrUnavailable

		rec := ts.do(t, http.MethodPost, "/authenticate", map[string]string{"username": "+345345343", "password": "2r23432"})
		requireStatus(t, rec, http.StatusServiceUnavailable)
	})

	t.Run("ignore policy", func(t *testing.T) {
		ts := newTestServer(t, acceptAll(sadman()))
		ts.svc.Policy = "ignore"
		ts.sms.Err = notify.ErrRejected

		rec := ts.do(t, http.MethodPost, "/authenticate", map[string]string{"username": "+345345343", "password": "2r23432"})
		requireStatus(t, rec, http.StatusOK)
		assert.NotEmpty(t, decodeBody[authsdk.AuthenticateResponse](t, rec).Nonce)
	})
}

func TestMalformedRequests(t *testing.T) {
	ts := newTestServer(t, acceptAll(sadman()))

	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		body        string
		wantCode    int
	}{
		{"broken json", http.MethodPost, "/authenticate", "application/json", `{"username":`, http.StatusBadRequest},
		{"trailing data", http.MethodPost, "/verifyCode", "application/json", `{"nonce":"a","code":"1"} {}`, http.StatusBadRequest},
		{"form body", http.MethodPost, "/authenticate", "application/x-www-form-urlencoded", "username=a&password=b", http.StatusUnsupportedMediaType},
		{"empty verify", http.MethodPost, "/verifyCode", "application/json", `{}`, http.StatusBadRequest},
		{"wrong method", http.MethodGet, "/verifyCode", "", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			ts.router.ServeHTTP(rec, req)

			requireStatus(t, rec, tt.wantCode)
			assert.NotEmpty(t, decodeBody[authsdk.APIError](t, rec).Code)
		})
	}
}

func TestChallengeRateLimit(t *testing.T) {
	ts := newTestServer(t, acceptAll(sadman()))
	ts.router = NewRouter(ts.keys, "test", ts.store, ts.router.logger)
	ts.router.ChallengeService = ts.svc
	ts.router.Limits.Strict.RequestsPerWindow = 2
	ts.router.Limits.Strict.Burst = 2
	ts.router.ApplyRoutes()

	body := map[string]string{"username": "+345345343", "password": "wrong"}
	for range 2 {
		requireStatus(t, ts.do(t, http.MethodPost, "/authenticate", body), http.StatusUnauthorized)
	}

	rec := ts.do(t, http.MethodPost, "/authenticate", body)
	requireStatus(t, rec, http.StatusTooManyRequests)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, authsdk.ErrorCodeRateLimitExceeded, decodeBody[authsdk.APIError](t, rec).Code)
}
