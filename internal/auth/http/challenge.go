package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/twostep/internal/auth/service"
	"github.com/aussiebroadwan/twostep/pkg/authsdk"
	"github.com/aussiebroadwan/twostep/pkg/httpx"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

// ChallengeHandler serves the two steps of a sign-in.
type ChallengeHandler struct {
	Service *service.ChallengeService
}

// HandleAuthenticate handles POST /authenticate
//
//	@Summary		Check a primary credential
//	@Description	Validates username (or mobile) and password against the user directory and sends a
//	@Description	verification code to the account's phone or email. The returned nonce is exchanged,
//	@Description	together with the code, at /verifyCode.
//	@Tags			Challenge
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.AuthenticateRequest		true	"Primary credential"
//	@Success		200		{object}	authsdk.AuthenticateResponse	"Nonce for the pending verification"
//	@Failure		400		{object}	authsdk.APIError				"Malformed request"
//	@Failure		401		{object}	authsdk.APIError				"Invalid credentials"
//	@Failure		429		{object}	authsdk.APIError				"Rate limit exceeded"
//	@Failure		500		{object}	authsdk.APIError				"Code could not be delivered"
//	@Failure		503		{object}	authsdk.APIError				"User directory or notification channel unavailable"
//	@Router			/authenticate [post].
func (h *ChallengeHandler) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req authsdk.AuthenticateRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if req.Subject() == "" || req.Password == "" {
		authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
			"username or mobile, and password are required").WriteError(w)
		return
	}

	nonce, err := h.Service.Authenticate(r.Context(), req.Subject(), req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.AuthenticateResponse{Nonce: nonce})
}

// HandleVerifyCode handles POST /verifyCode
//
//	@Summary		Exchange a nonce and code for a token
//	@Description	Checks the code sent after /authenticate. On success the nonce is consumed and a signed
//	@Description	JWT carrying sub and scope is returned. Every failure (unknown, expired, exhausted or
//	@Description	already used nonce, wrong code) gets the same 401 response.
//	@Tags			Challenge
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.VerifyCodeRequest	true	"Nonce and code"
//	@Success		200		{object}	authsdk.VerifyCodeResponse	"Signed access token"
//	@Failure		400		{object}	authsdk.APIError			"Malformed request"
//	@Failure		401		{object}	authsdk.APIError			"Unauthorized"
//	@Failure		429		{object}	authsdk.APIError			"Rate limit exceeded"
//	@Failure		500		{object}	authsdk.APIError			"Token could not be signed"
//	@Router			/verifyCode [post].
func (h *ChallengeHandler) HandleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyCodeRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if req.Nonce == "" || req.Code == "" {
		authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest,
			"nonce and code are required").WriteError(w)
		return
	}

	token, err := h.Service.VerifyCode(r.Context(), req.Nonce, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.VerifyCodeResponse{Token: token})
}

func decodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	err := httpx.DecodeJSON(r, v)
	switch {
	case err == nil:
		return true
	case errors.Is(err, httpx.ErrUnsupportedMediaType):
		authsdk.ErrUnsupportedMediaType.WriteError(w)
	default:
		slogx.FromContext(r.Context()).Debug("malformed request body", "err", err)
		authsdk.ErrInvalidRequest.WriteError(w)
	}
	return false
}

// writeServiceError maps service errors to their single public response.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	log := slogx.FromContext(r.Context())

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		authsdk.ErrInvalidCredentials.WriteError(w)
	case errors.Is(err, service.ErrUnauthorized):
		authsdk.ErrUnauthorized.WriteError(w)
	case errors.Is(err, service.ErrUpstreamUnavailable):
		log.Warn("upstream unavailable", "err", err)
		authsdk.ErrUpstreamUnavailable.WriteError(w)
	default:
		// Delivery failures, missing signing keys and storage errors.
		log.Error("request failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
	}
}

// methodNotAllowed answers every method but the registered one.
func methodNotAllowed(allow string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		authsdk.ErrMethodNotAllowed.WriteError(w)
	}
}
