/*
Package authsdk is a client for the two-step authentication service and
holds the wire types and error values shared with the server.

A login is two calls. Authenticate checks the primary credential and
returns a nonce while a verification code is delivered by SMS or email.
VerifyCode exchanges the nonce and that code for a signed access token:

	client := authsdk.NewSDKClient("https://auth.example.com")

	ch, err := client.Authenticate(ctx, authsdk.AuthenticateRequest{
		Mobile:   "+345345343",
		Password: password,
	})
	if err != nil {
		return err
	}

	tok, err := client.VerifyCode(ctx, ch.Nonce, code)

Tokens are JWTs carrying "sub" and "scope" claims. Verify them offline with
the keys from GetJWKS.

# Errors

Failed calls return *APIError. The service does not say why a credential
or code was rejected, so compare against the predefined values:

	if errors.Is(err, authsdk.ErrUnauthorized) {
		// start again from Authenticate
	}

ErrUpstreamUnavailable carries RetryAfter and may be retried.
*/
package authsdk
