package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/Path-Check/safeplaces-auth/pkg/gatekeeper"
	"github.com/Path-Check/safeplaces-auth/pkg/jwtx"
)

// RegistrationIssuer is the iss claim on emailed registration tokens. Only
// the registration verifier accepts it.
const RegistrationIssuer = "safeplaces-auth/registration"

// InitStrategy builds the verifier the enforcer trusts.
//
// Strategies:
//   - "auth0": RS256 tokens from the IDM, keys fetched from JWKS_URI and
//     held in an LRU for JWKS_CACHE_TTL.
//   - "symmetric": HMAC tokens signed with JWT_SECRET, restricted to
//     JWT_ALGORITHMS. Meant for local development and tests.
func InitStrategy(cfg Config, logger *slog.Logger) (gatekeeper.Strategy, error) {
	switch cfg.Strategy {
	case StrategySymmetric:
		v, err := jwtx.NewSymmetricVerifierWith([]byte(cfg.JWTSecret), cfg.JWTAlgorithms, []jwtx.Option{
			jwtx.WithAudience(cfg.IDMAPIAudience),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize symmetric verifier: %w", err)
		}
		logger.Warn("symmetric trust strategy enabled - do not use in production",
			"algorithms", cfg.JWTAlgorithms,
		)
		return gatekeeper.Static(v), nil

	case StrategyAuth0:
		opts := []jwtx.RemoteOption{
			jwtx.WithHTTPClient(&http.Client{Timeout: cfg.HTTPClientTimeout}),
		}
		if u, err := url.Parse(cfg.JWKSURI); err == nil && u.Scheme == "http" && cfg.Env != "prod" {
			opts = append(opts, jwtx.AllowInsecure())
		}
		remote, err := jwtx.NewRemoteKeySource(cfg.JWKSURI, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize key source: %w", err)
		}
		keys := jwtx.NewCachedKeySource(remote, jwtx.DefaultKeyCacheSize, cfg.JWKSCacheTTL)

		v, err := jwtx.NewAsymmetricVerifier(keys, cfg.IDMAPIAudience)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize asymmetric verifier: %w", err)
		}
		logger.Info("asymmetric trust strategy enabled",
			"jwks_uri", cfg.JWKSURI,
			"audience", cfg.IDMAPIAudience,
			"key_cache_ttl", cfg.JWKSCacheTTL,
		)
		return gatekeeper.Static(v), nil

	default:
		return nil, fmt.Errorf("unknown trust strategy %q", cfg.Strategy)
	}
}

// InitRegistrationTokens returns the issuer and verifier for registration
// links. Both share JWT_SECRET but are pinned to RegistrationIssuer.
func InitRegistrationTokens(cfg Config) (*jwtx.HSIssuer, *jwtx.SymmetricVerifier, error) {
	issuer, err := jwtx.NewHSIssuer([]byte(cfg.JWTSecret), "HS256", RegistrationIssuer)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize registration issuer: %w", err)
	}
	verifier, err := jwtx.NewSymmetricVerifierWith([]byte(cfg.JWTSecret), []string{"HS256"}, []jwtx.Option{
		jwtx.WithIssuer(RegistrationIssuer),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize registration verifier: %w", err)
	}
	return issuer, verifier, nil
}
