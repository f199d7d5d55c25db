// authctl is an operator tool for the auth service: it hashes passwords
// for the file directory, signs in from a terminal, and verifies tokens
// against a running service's published keys.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/aussiebroadwan/twostep/pkg/authsdk"
	"github.com/aussiebroadwan/twostep/pkg/cryptox"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
)

const usage = `usage: authctl <command> [flags]

commands:
  hash-password   read a password from stdin and print its argon2id hash
  login           sign in with a password and a verification code, print the token
  verify-token    verify a token against the service's JWKS and print its claims
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return errors.New("missing command")
	}

	in := bufio.NewReader(stdin)
	switch args[0] {
	case "hash-password":
		return hashPassword(in, stdout)
	case "login":
		return login(ctx, args[1:], in, stdout)
	case "verify-token":
		return verifyToken(ctx, args[1:], stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func hashPassword(in *bufio.Reader, stdout io.Writer) error {
	password, err := readLine(in)
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("empty password")
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, hash)
	return nil
}

func login(ctx context.Context, args []string, in *bufio.Reader, stdout io.Writer) error {
	flags := pflag.NewFlagSet("login", pflag.ContinueOnError)
	baseURL := flags.String("url", "http://localhost:8080", "auth service base URL")
	username := flags.StringP("username", "u", "", "username or mobile")
	timeout := flags.Duration("timeout", 10*time.Second, "per-request timeout")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		return errors.New("--username is required")
	}

	client := authsdk.NewSDKClient(*baseURL)
	client.HTTPClient.Timeout = *timeout

	fmt.Fprint(stdout, "password: ")
	password, err := readLine(in)
	if err != nil {
		return err
	}

	auth, err := client.Authenticate(ctx, authsdk.AuthenticateRequest{Username: *username, Password: password})
	if err != nil {
		return err
	}

	fmt.Fprint(stdout, "\nverification code: ")
	code, err := readLine(in)
	if err != nil {
		return err
	}

	res, err := client.VerifyCode(ctx, auth.Nonce, strings.TrimSpace(code))
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, res.Token)
	return nil
}

func verifyToken(ctx context.Context, args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("verify-token", pflag.ContinueOnError)
	baseURL := flags.String("url", "http://localhost:8080", "auth service base URL")
	issuer := flags.String("issuer", "", "expected issuer (empty accepts any)")
	audience := flags.StringSlice("audience", nil, "accepted audiences (empty accepts any)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return errors.New("expected exactly one token argument")
	}

	jwks, err := authsdk.NewSDKClient(*baseURL).GetJWKS(ctx)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}

	keys := jwtx.NewKeySet()
	if err := keys.ResetFromJWKS(jwtx.JWKS(*jwks)); err != nil {
		return fmt.Errorf("load jwks: %w", err)
	}

	claims, err := jwtx.NewVerifier(keys, jwtx.VerifyOptions{
		Issuer:   *issuer,
		Audience: *audience,
		Leeway:   30 * time.Second,
	}).Verify(flags.Arg(0))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(claims)
}
