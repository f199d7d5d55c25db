package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/twostep/internal/auth/directory"
	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/notify/notifytest"
	"github.com/aussiebroadwan/twostep/internal/auth/service"
	"github.com/aussiebroadwan/twostep/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

const testIssuer = "https://auth.test"

type directoryFunc func(ctx context.Context, identifier, password string) (domain.Identity, error)

func (f directoryFunc) Verify(ctx context.Context, identifier, password string) (domain.Identity, error) {
	return f(ctx, identifier, password)
}

// acceptAll plays a directory that knows one account under its mobile.
func acceptAll(identity domain.Identity) directoryFunc {
	return func(_ context.Context, identifier, password string) (domain.Identity, error) {
		if identifier != identity.Mobile || password != "2r23432" {
			return domain.Identity{}, directory.ErrRejected
		}
		return identity, nil
	}
}

func sadman() domain.Identity {
	return domain.Identity{
		SubjectID: "1",
		Name:      []domain.HumanName{{Use: "en", Family: "Anik", Given: []string{"Sadman"}}},
		Scope:     []string{"admin"},
		Status:    domain.StatusActive,
		Mobile:    "+345345343",
		Email:     "test@test.org",
	}
}

type testServer struct {
	router *Router
	sms    *notifytest.Recorder
	keys   *jwtx.KeyManager
	store  *memory.Store
	svc    *service.ChallengeService
}

func newTestServer(t *testing.T, dir directory.Directory) *testServer {
	t.Helper()

	keys, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    testIssuer,
		NumKeys:   1,
	})
	require.NoError(t, err)

	ts := &testServer{
		sms:   &notifytest.Recorder{},
		keys:  keys,
		store: memory.NewStore(),
	}

	codes := &service.CodeGenerator{SMS: ts.sms, Email: &notifytest.Recorder{}, TTL: service.DefaultCodeTTL}
	nonces := &service.NonceStore{Store: ts.store, Codes: codes}
	ts.svc = &service.ChallengeService{
		Validator: &service.CredentialValidator{Directory: dir, Timeout: time.Second},
		Nonces:    nonces,
		Codes:     codes,
		Verifier:  &service.Verifier{Nonces: nonces},
		Tokens:    &service.TokenIssuer{KeyManager: keys, Issuer: testIssuer},
		Policy:    service.DeliveryFail,
	}

	ts.router = NewRouter(keys, "test", ts.store, slogx.Discard())
	ts.router.ChallengeService = ts.svc
	ts.router.ApplyRoutes()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, rec.Code, "body: %s", rec.Body.String())
}

var _ http.Handler = (*Router)(nil)
