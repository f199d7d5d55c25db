package authsdk

import (
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
)

// AuthenticateRequest is the body of POST /authenticate. Exactly one of
// Username, Mobile or Identifier names the account.
type AuthenticateRequest struct {
	Username   string `json:"username,omitempty"`
	Mobile     string `json:"mobile,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	Password   string `json:"password"`
}

// Subject returns the account identifier, preferring Identifier, then
// Username, then Mobile.
func (r AuthenticateRequest) Subject() string {
	switch {
	case r.Identifier != "":
		return r.Identifier
	case r.Username != "":
		return r.Username
	default:
		return r.Mobile
	}
}

// AuthenticateResponse carries the nonce to send back with the code.
type AuthenticateResponse struct {
	Nonce string `json:"nonce"`
}

// VerifyCodeRequest is the body of POST /verifyCode.
type VerifyCodeRequest struct {
	Nonce string `json:"nonce"`
	Code  string `json:"code"`
}

// VerifyCodeResponse carries the signed access token.
type VerifyCodeResponse struct {
	Token string `json:"token"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports dependency status on /readyz.
type HealthChecks struct {
	NonceStore string `json:"nonce_store"`
	Signer     string `json:"signer"`
}

// JWKSResponse is the public key set from /.well-known/jwks.json.
type JWKSResponse jwtx.JWKS
