package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Path-Check/safeplaces-auth/internal/auth/domain"
	"github.com/Path-Check/safeplaces-auth/internal/auth/service"
	"github.com/Path-Check/safeplaces-auth/internal/auth/store"
	"github.com/Path-Check/safeplaces-auth/pkg/gatekeeper"
	"github.com/Path-Check/safeplaces-auth/pkg/httpx"
	"github.com/Path-Check/safeplaces-auth/pkg/metricsx"
	"github.com/Path-Check/safeplaces-auth/pkg/slogx"

	_ "github.com/Path-Check/safeplaces-auth/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store
	metrics      *metricsx.Metrics

	// Enforcer guards every authenticated route; admin routes add a role
	// check on top of it.
	Enforcer       *gatekeeper.Enforcer
	ClaimNamespace string
	Cookies        httpx.CookieConfig

	// IDMReady reports whether the IDM connector is primed. Optional.
	IDMReady func() bool

	LoginService *service.LoginService
	MFAService   *service.MFAService
	UserService  *service.UserService
}

func NewRouter(
	buildVersion string,
	st store.Store,
	m *metricsx.Metrics,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		metrics:      m,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger, gatekeeper.DefaultTagHeader),
		r.metrics.HTTPMiddleware,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerLogin()
	r.registerMFA()
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			SafePlaces Authentication Service API
//	@version		1.0.0
//	@description	Login, MFA and user management in front of the identity provider.
//	@description
//	@description				Browser clients authenticate with the access_token cookie and must send X-Requested-With: XMLHttpRequest.
//
//	@contact.name				Path Check
//	@contact.url				https://github.com/Path-Check/safeplaces-auth
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	CookieAuth
//	@in							cookie
//	@name						access_token
//	@description				Access token set by /v1/login or /v1/mfa/verify.
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				MFA or registration token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerLogin() {
	h := &LoginHandler{
		LoginService: r.LoginService,
		Cookies:      r.Cookies,
		now:          time.Now,
	}

	// Keyed on IP plus username so one address cannot spray one account.
	r.Mux.Handle("POST /v1/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndField(httpx.StrictLimit, "username"),
		),
	)
	r.Mux.Handle("POST /v1/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{
		MFAService: r.MFAService,
		Cookies:    r.Cookies,
		now:        time.Now,
	}

	// MFA codes are short; every endpoint is strict.
	strict := httpx.RateLimitByIP(httpx.StrictLimit)
	r.Mux.Handle("POST /v1/mfa/challenge", httpx.Chain(http.HandlerFunc(h.HandleChallenge), strict))
	r.Mux.Handle("POST /v1/mfa/enroll", httpx.Chain(http.HandlerFunc(h.HandleEnroll), strict))
	r.Mux.Handle("POST /v1/mfa/verify", httpx.Chain(http.HandlerFunc(h.HandleVerify), strict))
	r.Mux.Handle("POST /v1/mfa/recover", httpx.Chain(http.HandlerFunc(h.HandleRecover), strict))
}

func (r *Router) registerUsers() {
	h := &UsersHandler{
		UserService:    r.UserService,
		ClaimNamespace: r.ClaimNamespace,
	}

	admin := r.Enforcer.With(gatekeeper.RequireRole(r.ClaimNamespace, domain.RoleSuperAdmin, domain.RoleAdmin))
	secured := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			admin.Middleware(),
			httpx.RateLimitBySubject(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("GET /v1/users", secured(h.HandleList))
	r.Mux.Handle("POST /v1/users", secured(h.HandleCreate))
	r.Mux.Handle("GET /v1/users/{id}", secured(h.HandleGet))
	r.Mux.Handle("PATCH /v1/users/{id}", secured(h.HandleUpdate))
	r.Mux.Handle("DELETE /v1/users/{id}", secured(h.HandleDelete))
	r.Mux.Handle("PUT /v1/users/{id}/role", secured(h.HandleAssignRole))
	r.Mux.Handle("POST /v1/users/{id}/reset-mfa", secured(h.HandleResetMFA))

	// Public: the caller is not logged in yet.
	r.Mux.Handle("POST /v1/users/reset-password",
		httpx.Chain(http.HandlerFunc(h.HandleResetPassword),
			httpx.RateLimitByIPAndField(httpx.StrictLimit, "email"),
		),
	)
	r.Mux.Handle("POST /v1/users/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("GET /v1/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			r.Enforcer.Middleware(),
			httpx.RateLimitBySubject(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Monitoring polls frequently.
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.IDMReady),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /metrics", r.metrics.Handler())
}
