package http

import (
	"log/slog"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	_ "github.com/aussiebroadwan/twostep/api/auth" // Swagger docs
	"github.com/aussiebroadwan/twostep/internal/auth/service"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
	"github.com/aussiebroadwan/twostep/pkg/httpx"
	"github.com/aussiebroadwan/twostep/pkg/jwtx"
	"github.com/aussiebroadwan/twostep/pkg/slogx"
)

// RateLimits are the profiles applied per route group.
type RateLimits struct {
	// Strict guards /authenticate and /verifyCode.
	Strict httpx.RateLimitConfig

	// Lenient is for health probes.
	Lenient httpx.RateLimitConfig

	// Public is for the JWKS.
	Public httpx.RateLimitConfig
}

// DefaultRateLimits returns the httpx default profiles.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Strict:  httpx.StrictLimit,
		Lenient: httpx.LenientLimit,
		Public:  httpx.PublicLimit,
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeyManager
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	ChallengeService *service.ChallengeService
	Limits           RateLimits
}

func NewRouter(
	keys *jwtx.KeyManager,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		Limits:       DefaultRateLimits(),
	}

	r.middlewares = []httpx.Middleware{
		otelhttp.NewMiddleware("twostep-auth"),
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerChallenge()
	r.registerWellKnown()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Two-Step Authentication Service API
//	@version		0.1.0
//	@description	Password plus one-time code sign-in. POST /authenticate checks the primary credential
//	@description	and sends a code out of band; POST /verifyCode exchanges nonce and code for a signed JWT.
//	@description
//	@description	Tokens can be verified offline with the keys published at /.well-known/jwks.json.
//
//	@contact.name	AussieBroadWAN Team
//	@contact.url	https://github.com/aussiebroadwan/twostep
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerChallenge() {
	h := &ChallengeHandler{Service: r.ChallengeService}

	// Credential guessing is limited per client address.
	r.Mux.Handle("POST /authenticate",
		httpx.Chain(http.HandlerFunc(h.HandleAuthenticate),
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)
	r.Mux.Handle("/authenticate", methodNotAllowed(http.MethodPost))

	// Code guessing is limited per client address and nonce, on top of the
	// per-nonce attempt bound.
	r.Mux.Handle("POST /verifyCode",
		httpx.Chain(http.HandlerFunc(h.HandleVerifyCode),
			httpx.RateLimitByIPAndJSONField(r.Limits.Strict, "nonce"),
		),
	)
	r.Mux.Handle("/verifyCode", methodNotAllowed(http.MethodPost))
}

func (r *Router) registerWellKnown() {
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys.KeySet),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.Limits.Lenient),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(r.Limits.Lenient),
		),
	)
}
