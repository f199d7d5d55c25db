package authsdk

import (
	"context"
	"net/http"
)

// Authenticate submits primary credentials and returns the nonce for the
// second step. The verification code arrives out of band.
func (c *SDKClient) Authenticate(ctx context.Context, req AuthenticateRequest) (*AuthenticateResponse, error) {
	resp, err := c.postJSON(ctx, "/authenticate", req)
	if err != nil {
		return nil, err
	}

	var out AuthenticateResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyCode exchanges a nonce and code for an access token.
func (c *SDKClient) VerifyCode(ctx context.Context, nonce, code string) (*VerifyCodeResponse, error) {
	resp, err := c.postJSON(ctx, "/verifyCode", VerifyCodeRequest{Nonce: nonce, Code: code})
	if err != nil {
		return nil, err
	}

	var out VerifyCodeResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
