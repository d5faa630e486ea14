package idm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Path-Check/safeplaces-auth/pkg/cachex"
	"github.com/Path-Check/safeplaces-auth/pkg/metricsx"
)

// DefaultTimeout bounds every call to the provider.
const DefaultTimeout = 10 * time.Second

// Config wires a Connector.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string

	// Audience is the Management API identifier used for the
	// client-credentials token. Defaults to BaseURL + "/api/v2/".
	Audience string

	// APIAudience is requested on end-user logins so the access token
	// targets the SafePlaces API.
	APIAudience string

	// Realm is the database connection users live in.
	Realm string

	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *metricsx.Metrics

	// Verbose logs provider error bodies at warn.
	Verbose bool

	// Now overrides the clock for token expiry; tests only.
	Now func() time.Time
}

func (c *Config) validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base URL is required"))
	} else if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, errors.New("base URL is invalid"))
	}
	if c.ClientID == "" {
		errs = append(errs, errors.New("client ID is required"))
	}
	if c.ClientSecret == "" {
		errs = append(errs, errors.New("client secret is required"))
	}
	if c.Realm == "" {
		errs = append(errs, errors.New("realm is required"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{errors.New("idm: invalid config")}, errs...)...)
	}
	return nil
}

// Connector is safe for concurrent use.
type Connector struct {
	baseURL      string
	clientID     string
	clientSecret string
	audience     string
	apiAudience  string
	realm        string

	http    *http.Client
	logger  *slog.Logger
	metrics *metricsx.Metrics
	verbose bool
	now     func() time.Time

	token *cachex.Expiring[string]
	roles *RoleTable
}

// New validates cfg and builds a Connector. Nothing is fetched until Init
// or the first call.
func New(cfg Config) (*Connector, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Audience == "" {
		cfg.Audience = base + "/api/v2/"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Connector{
		baseURL:      base,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		audience:     cfg.Audience,
		apiAudience:  cfg.APIAudience,
		realm:        cfg.Realm,
		http:         cfg.HTTPClient,
		logger:       cfg.Logger.With("component", "idm"),
		metrics:      cfg.Metrics,
		verbose:      cfg.Verbose,
		now:          cfg.Now,
	}

	token, err := cachex.New[string](c.fetchManagementToken, cachex.Options{
		Name:    "management_token",
		Now:     cfg.Now,
		Logger:  c.logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	c.token = token
	c.roles = NewRoleTable(c.ListRoles, cfg.Metrics)

	return c, nil
}

// Init fetches the management token and loads the role table.
func (c *Connector) Init(ctx context.Context) error {
	if _, err := c.token.Refresh(ctx); err != nil {
		return err
	}
	return c.roles.Refresh(ctx)
}

// Roles exposes the cached role table.
func (c *Connector) Roles() *RoleTable {
	return c.roles
}

// Realm is the connection users are created in.
func (c *Connector) Realm() string {
	return c.realm
}

// Close waits for background token refreshes to finish.
func (c *Connector) Close() {
	c.token.Wait()
}

// Ready reports whether a management token is cached and unexpired.
func (c *Connector) Ready() bool {
	exp := c.token.ExpiresAt()
	return !exp.IsZero() && c.now().Before(exp)
}
