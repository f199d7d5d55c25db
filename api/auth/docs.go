// Package auth holds the swagger document served at /swagger/.
// Regenerate with: swag init -g internal/auth/http/router.go -o api/auth --packageName auth
package auth

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "AussieBroadWAN Team",
            "url": "https://github.com/aussiebroadwan/twostep"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/.well-known/jwks.json": {
            "get": {
                "description": "Returns the JSON Web Key Set used to verify access tokens.",
                "produces": ["application/json"],
                "tags": ["well-known"],
                "summary": "Get JWKS",
                "responses": {
                    "200": {
                        "description": "The JSON Web Key Set",
                        "schema": {"$ref": "#/definitions/authsdk.JWKSResponse"}
                    }
                }
            }
        },
        "/authenticate": {
            "post": {
                "description": "Validates username (or mobile) and password against the user directory and sends a\nverification code to the account's phone or email. The returned nonce is exchanged,\ntogether with the code, at /verifyCode.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Challenge"],
                "summary": "Check a primary credential",
                "parameters": [
                    {
                        "description": "Primary credential",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/authsdk.AuthenticateRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "Nonce for the pending verification", "schema": {"$ref": "#/definitions/authsdk.AuthenticateResponse"}},
                    "400": {"description": "Malformed request", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "429": {"description": "Rate limit exceeded", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "500": {"description": "Code could not be delivered", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "503": {"description": "User directory or notification channel unavailable", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        },
        "/livez": {
            "get": {
                "description": "Returns 200 with uptime and version while the process is serving.",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "status, uptime, version", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}}
                }
            }
        },
        "/readyz": {
            "get": {
                "description": "Reports whether the nonce store answers and a signing key is loaded.",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "status, uptime, version, checks", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}},
                    "503": {"description": "one or more checks failed", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}}
                }
            }
        },
        "/verifyCode": {
            "post": {
                "description": "Checks the code sent after /authenticate. On success the nonce is consumed and a signed\nJWT carrying sub and scope is returned. Every failure (unknown, expired, exhausted or\nalready used nonce, wrong code) gets the same 401 response.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Challenge"],
                "summary": "Exchange a nonce and code for a token",
                "parameters": [
                    {
                        "description": "Nonce and code",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/authsdk.VerifyCodeRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "Signed access token", "schema": {"$ref": "#/definitions/authsdk.VerifyCodeResponse"}},
                    "400": {"description": "Malformed request", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "429": {"description": "Rate limit exceeded", "schema": {"$ref": "#/definitions/authsdk.APIError"}},
                    "500": {"description": "Token could not be signed", "schema": {"$ref": "#/definitions/authsdk.APIError"}}
                }
            }
        }
    },
    "definitions": {
        "authsdk.APIError": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "error_description": {"type": "string"}
            }
        },
        "authsdk.AuthenticateRequest": {
            "type": "object",
            "properties": {
                "identifier": {"type": "string"},
                "mobile": {"type": "string"},
                "password": {"type": "string"},
                "username": {"type": "string"}
            }
        },
        "authsdk.AuthenticateResponse": {
            "type": "object",
            "properties": {
                "nonce": {"type": "string"}
            }
        },
        "authsdk.HealthChecks": {
            "type": "object",
            "properties": {
                "nonce_store": {"type": "string"},
                "signer": {"type": "string"}
            }
        },
        "authsdk.HealthResponse": {
            "type": "object",
            "properties": {
                "checks": {"$ref": "#/definitions/authsdk.HealthChecks"},
                "status": {"type": "string"},
                "uptime": {"type": "string"},
                "version": {"type": "string"}
            }
        },
        "authsdk.JWKSResponse": {
            "type": "object",
            "properties": {
                "keys": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/jwtx.JWK"}
                }
            }
        },
        "authsdk.VerifyCodeRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "nonce": {"type": "string"}
            }
        },
        "authsdk.VerifyCodeResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"}
            }
        },
        "jwtx.JWK": {
            "type": "object",
            "properties": {
                "alg": {"type": "string"},
                "crv": {"type": "string"},
                "e": {"type": "string"},
                "kid": {"type": "string"},
                "kty": {"type": "string"},
                "n": {"type": "string"},
                "use": {"type": "string"},
                "x": {"type": "string"},
                "y": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Two-Step Authentication Service API",
	Description:      "Password plus one-time code sign-in. POST /authenticate checks the primary credential\nand sends a code out of band; POST /verifyCode exchanges nonce and code for a signed JWT.\n\nTokens can be verified offline with the keys published at /.well-known/jwks.json.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
