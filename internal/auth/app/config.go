package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Path-Check/safeplaces-auth/pkg/slogx"
)

// Trust strategies selectable through AUTH_STRATEGY.
const (
	StrategyAuth0     = "auth0"
	StrategySymmetric = "symmetric"
)

type Config struct {
	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
	DatabaseFile        string        // Path to the SQLite application database (default: ./auth.db)

	IDMBaseURL            string // Required: e.g. https://tenant.auth0.com
	IDMClientID           string // Required
	IDMClientSecret       string // Required
	IDMAPIAudience        string // Required: audience of end-user access tokens
	IDMManagementAudience string // Optional: defaults to <base>/api/v2/
	IDMRealm              string // Required: database connection users live in

	Strategy       string        // auth0 or symmetric (default: auth0)
	JWKSURI        string        // Optional: defaults to <base>/.well-known/jwks.json
	JWKSCacheTTL   time.Duration // Signing key cache lifetime (default: 10m)
	JWTSecret      string        // Required for the symmetric strategy and registration tokens
	JWTAlgorithms  []string      // Symmetric allow-list (default: HS256)
	ClaimNamespace string        // Prefix of the roles claim (default: https://safeplaces.app)

	CookieSecure   bool   // Secure attribute on auth cookies (default: true)
	CookieSameSite bool   // SameSite=Strict when set, None otherwise (default: false)
	CookieDomain   string // Optional Domain attribute

	RegistrationRedirectURL string // Page the email verification ticket lands on
	ReconcileOnStart        bool   // Run the IDM/database sweep at startup (default: true)
	ForceProblemResolution  bool   // Delete orphans found by the sweep (default: false)

	HTTPClientTimeout time.Duration // Timeout for IDM and JWKS calls (default: 10s)
	Verbose           bool          // AUTH_LOGGING=verbose
}

func LoadConfig() Config {
	cfg := Config{
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		DatabaseFile:        getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),

		IDMBaseURL:            strings.TrimSuffix(os.Getenv("AUTH0_BASE_URL"), "/"),
		IDMClientID:           os.Getenv("AUTH0_CLIENT_ID"),
		IDMClientSecret:       os.Getenv("AUTH0_CLIENT_SECRET"),
		IDMAPIAudience:        os.Getenv("AUTH0_API_AUDIENCE"),
		IDMManagementAudience: os.Getenv("AUTH0_MANAGEMENT_AUDIENCE"),
		IDMRealm:              os.Getenv("AUTH0_REALM"),

		Strategy:       strings.ToLower(getEnvOrDefault("AUTH_STRATEGY", StrategyAuth0)),
		JWKSURI:        os.Getenv("JWKS_URI"),
		JWKSCacheTTL:   getEnvDurationOrDefault("JWKS_CACHE_TTL", 10*time.Minute),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTAlgorithms:  splitList(getEnvOrDefault("JWT_ALGORITHMS", "HS256")),
		ClaimNamespace: getEnvOrDefault("JWT_CLAIM_NAMESPACE", "https://safeplaces.app"),

		CookieSecure:   getEnvBoolOrDefault("COOKIE_SECURE", true),
		CookieSameSite: getEnvBoolOrDefault("COOKIE_SAMESITE", false),
		CookieDomain:   os.Getenv("COOKIE_DOMAIN"),

		RegistrationRedirectURL: os.Getenv("REGISTRATION_REDIRECT_URL"),
		ReconcileOnStart:        getEnvBoolOrDefault("RECONCILE_ON_START", true),
		ForceProblemResolution:  getEnvBoolOrDefault("FORCE_PROBLEM_RESOLUTION", false),

		HTTPClientTimeout: getEnvDurationOrDefault("HTTP_CLIENT_TIMEOUT", 10*time.Second),
		Verbose:           slogx.Verbose(),
	}

	if cfg.JWKSURI == "" && cfg.IDMBaseURL != "" {
		cfg.JWKSURI = cfg.IDMBaseURL + "/.well-known/jwks.json"
	}

	return cfg
}

// Validate reports every missing or contradictory setting at once.
func (c Config) Validate() error {
	var errs []error
	require := func(name, value string) {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	require("AUTH0_BASE_URL", c.IDMBaseURL)
	require("AUTH0_CLIENT_ID", c.IDMClientID)
	require("AUTH0_CLIENT_SECRET", c.IDMClientSecret)
	require("AUTH0_REALM", c.IDMRealm)
	require("AUTH0_API_AUDIENCE", c.IDMAPIAudience)
	require("JWT_SECRET", c.JWTSecret) // registration tokens are always HMAC

	switch c.Strategy {
	case StrategyAuth0:
		require("JWKS_URI", c.JWKSURI)
	case StrategySymmetric:
		if len(c.JWTAlgorithms) == 0 {
			errs = append(errs, errors.New("JWT_ALGORITHMS must list at least one algorithm"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_STRATEGY %q is not one of %s, %s", c.Strategy, StrategyAuth0, StrategySymmetric))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Port))
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{errors.New("invalid configuration")}, errs...)...)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}
