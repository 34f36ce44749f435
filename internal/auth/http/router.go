package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/driftlock/authd/internal/auth/obs"
	"github.com/driftlock/authd/internal/auth/service"
	"github.com/driftlock/authd/internal/auth/store"
	"github.com/driftlock/authd/pkg/httpx"
	"github.com/driftlock/authd/pkg/slogx"
)

// Router holds the shared dependencies for the HTTP handlers and wires
// every route with its middleware chain.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	TokenService    *service.TokenService
	AccountService  *service.AccountService
	PasswordService *service.PasswordService
	VerifyService   *service.VerificationService
	TwoFAService    *service.TwoFAService
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	return &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		middlewares: []httpx.Middleware{
			slogx.HTTPMiddleware(logger),
			obs.Instrument,
		},
	}
}

// ServeHTTP applies the global middleware chain in front of the mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerPassword()
	r.registerVerification()
	r.registerTwoFA()
	r.registerSystem()
}

// counted attaches the rate-limit reject counter to a profile.
func counted(cfg httpx.RateLimitConfig) httpx.RateLimitConfig {
	cfg.OnReject = obs.ObserveRateLimitReject
	return cfg
}

func (r *Router) registerAuth() {
	authn := AuthnMiddleware(r.TokenService)

	register := &RegisterHandler{Accounts: r.AccountService}
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(register,
			httpx.RateLimitByIP(counted(httpx.StrictLimit)),
		),
	)

	login := &LoginHandler{Accounts: r.AccountService}
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(login.HandleLogin),
			httpx.RateLimitByIP(counted(httpx.StrictLimit)),
		),
	)
	r.Mux.Handle("POST /v1/auth/login/2fa",
		httpx.Chain(http.HandlerFunc(login.HandleTwoFALogin),
			httpx.RateLimitByIP(counted(httpx.StrictLimit)),
		),
	)

	social := &SocialHandler{Accounts: r.AccountService}
	r.Mux.Handle("POST /v1/auth/social",
		httpx.Chain(social,
			httpx.RateLimitByIP(counted(httpx.StrictLimit)),
		),
	)

	resend := &ResendHandler{Accounts: r.AccountService}
	r.Mux.Handle("POST /v1/auth/otp/resend",
		httpx.Chain(resend,
			httpx.RateLimitByIP(counted(httpx.StrictLimit)),
		),
	)

	token := &TokenHandler{Tokens: r.TokenService, Accounts: r.AccountService}
	r.Mux.Handle("POST /v1/auth/token/refresh",
		httpx.Chain(http.HandlerFunc(token.HandleRefresh),
			httpx.RateLimitByIP(counted(httpx.ModerateLimit)),
		),
	)
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(token.HandleLogout),
			httpx.RateLimitByIP(counted(httpx.ModerateLimit)),
			authn,
		),
	)
	r.Mux.Handle("POST /v1/auth/logout-all",
		httpx.Chain(http.HandlerFunc(token.HandleLogoutAll),
			httpx.RateLimitByIP(counted(httpx.ModerateLimit)),
			authn,
		),
	)
}

func (r *Router) registerPassword() {
	authn := AuthnMiddleware(r.TokenService)
	h := &PasswordHandler{Password: r.PasswordService}

	r.Mux.Handle("POST /v1/auth/password/change",
		httpx.Chain(http.HandlerFunc(h.HandleChange),
			httpx.RateLimitByIP(counted(httpx.ModerateLimit)),
			authn,
		),
	)
	r.Mux.Handle("POST /v1/auth/password/forgot",
		httpx.Chain(http.HandlerFunc(h.HandleForgot),
			httpx.RateLimitByIP(counted(httpx.StrictLimit)),
		),
	)
	r.Mux.Handle("POST /v1/auth/password/reset",
		httpx.Chain(http.HandlerFunc(h.HandleReset),
			httpx.RateLimitByIP(counted(httpx.StrictLimit)),
		),
	)
}

func (r *Router) registerVerification() {
	authn := AuthnMiddleware(r.TokenService)
	h := &VerifyHandler{Verify: r.VerifyService}

	r.Mux.Handle("POST /v1/auth/verify/email",
		httpx.Chain(http.HandlerFunc(h.HandleStartEmail),
			httpx.RateLimitByIP(counted(httpx.StrictLimit)),
			authn,
		),
	)
	r.Mux.Handle("POST /v1/auth/verify/email/confirm",
		httpx.Chain(http.HandlerFunc(h.HandleConfirmEmail),
			httpx.RateLimitByIP(counted(httpx.StrictLimit)),
			authn,
		),
	)
	r.Mux.Handle("POST /v1/auth/verify/phone",
		httpx.Chain(http.HandlerFunc(h.HandleStartPhone),
			httpx.RateLimitByIP(counted(httpx.StrictLimit)),
			authn,
		),
	)
	r.Mux.Handle("POST /v1/auth/verify/phone/confirm",
		httpx.Chain(http.HandlerFunc(h.HandleConfirmPhone),
			httpx.RateLimitByIP(counted(httpx.StrictLimit)),
			authn,
		),
	)

	r.Mux.Handle("PUT /v1/account/email",
		httpx.Chain(http.HandlerFunc(h.HandleUpdateEmail),
			httpx.RateLimitByIP(counted(httpx.ModerateLimit)),
			authn,
		),
	)
	r.Mux.Handle("POST /v1/account/email/confirm",
		httpx.Chain(http.HandlerFunc(h.HandleConfirmUpdateEmail),
			httpx.RateLimitByIP(counted(httpx.ModerateLimit)),
			authn,
		),
	)
	r.Mux.Handle("PUT /v1/account/phone",
		httpx.Chain(http.HandlerFunc(h.HandleUpdatePhone),
			httpx.RateLimitByIP(counted(httpx.ModerateLimit)),
			authn,
		),
	)
	r.Mux.Handle("POST /v1/account/phone/confirm",
		httpx.Chain(http.HandlerFunc(h.HandleConfirmUpdatePhone),
			httpx.RateLimitByIP(counted(httpx.ModerateLimit)),
			authn,
		),
	)
}

func (r *Router) registerTwoFA() {
	authn := AuthnMiddleware(r.TokenService)
	h := &TwoFAHandler{TwoFA: r.TwoFAService}

	r.Mux.Handle("POST /v1/2fa/setup",
		httpx.Chain(http.HandlerFunc(h.HandleSetup),
			httpx.RateLimitByIP(counted(httpx.StrictLimit)),
			authn,
		),
	)
	r.Mux.Handle("POST /v1/2fa/confirm",
		httpx.Chain(http.HandlerFunc(h.HandleConfirm),
			httpx.RateLimitByIP(counted(httpx.StrictLimit)),
			authn,
		),
	)
	r.Mux.Handle("DELETE /v1/2fa",
		httpx.Chain(http.HandlerFunc(h.HandleDisable),
			httpx.RateLimitByIP(counted(httpx.StrictLimit)),
			authn,
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /metrics",
		httpx.Chain(obs.Handler(),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
