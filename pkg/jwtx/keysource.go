package jwtx

import (
	"context"
	"crypto"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultJWKSTimeout  = 5 * time.Second
	maxJWKSResponseSize = 1 << 20

	DefaultKeyCacheSize = 16
	DefaultKeyCacheTTL  = 10 * time.Minute
)

// RemoteKeySource fetches keys from a JWKS endpoint on every lookup. Wrap it
// in a CachedKeySource unless you enjoy hammering the IDM.
type RemoteKeySource struct {
	url    string
	client *http.Client
}

// RemoteOption configures a RemoteKeySource.
type RemoteOption func(*remoteConfig)

type remoteConfig struct {
	client        *http.Client
	allowInsecure bool
}

// WithHTTPClient overrides the client used to fetch the JWKS.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(rc *remoteConfig) { rc.client = c }
}

// AllowInsecure permits a plain http JWKS URL. Only for local dev and tests.
func AllowInsecure() RemoteOption {
	return func(rc *remoteConfig) { rc.allowInsecure = true }
}

// NewRemoteKeySource validates the JWKS URL and returns a source for it.
func NewRemoteKeySource(jwksURL string, opts ...RemoteOption) (*RemoteKeySource, error) {
	rc := remoteConfig{}
	for _, opt := range opts {
		opt(&rc)
	}

	u, err := url.Parse(jwksURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("jwtx: invalid jwks url %q", jwksURL)
	}
	if u.Scheme != "https" && !(rc.allowInsecure && u.Scheme == "http") {
		return nil, fmt.Errorf("jwtx: jwks url must use https, got %q", u.Scheme)
	}

	client := rc.client
	if client == nil {
		client = &http.Client{Timeout: defaultJWKSTimeout}
	}

	return &RemoteKeySource{url: u.String(), client: client}, nil
}

// Fetch downloads and decodes the JWKS document.
func (s *RemoteKeySource) Fetch(ctx context.Context) (jose.JSONWebKeySet, error) {
	var set jose.JSONWebKeySet

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return set, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return set, fmt.Errorf("jwtx: fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return set, fmt.Errorf("jwtx: fetch jwks: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSResponseSize))
	if err != nil {
		return set, fmt.Errorf("jwtx: read jwks: %w", err)
	}
	if err := json.Unmarshal(body, &set); err != nil {
		return set, fmt.Errorf("jwtx: decode jwks: %w", err)
	}
	return set, nil
}

// SigningKey fetches the JWKS and returns the signing key matching kid.
func (s *RemoteKeySource) SigningKey(ctx context.Context, kid string) (crypto.PublicKey, error) {
	set, err := s.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	for _, jwk := range set.Key(kid) {
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}
		if !jwk.Valid() {
			continue
		}
		return jwk.Public().Key, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKID, kid)
}

// CachedKeySource memoizes successful lookups of another source for a
// bounded time. Failures are never cached so a rotated key shows up on the
// next request.
type CachedKeySource struct {
	src   KeySource
	cache *expirable.LRU[string, crypto.PublicKey]
}

// NewCachedKeySource wraps src. Non-positive size or ttl fall back to the
// package defaults.
func NewCachedKeySource(src KeySource, size int, ttl time.Duration) *CachedKeySource {
	if size <= 0 {
		size = DefaultKeyCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultKeyCacheTTL
	}
	return &CachedKeySource{
		src:   src,
		cache: expirable.NewLRU[string, crypto.PublicKey](size, nil, ttl),
	}
}

// SigningKey implements KeySource.
func (c *CachedKeySource) SigningKey(ctx context.Context, kid string) (crypto.PublicKey, error) {
	if key, ok := c.cache.Get(kid); ok {
		return key, nil
	}

	key, err := c.src.SigningKey(ctx, kid)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, errors.New("jwtx: key source returned nil key")
	}

	c.cache.Add(kid, key)
	return key, nil
}

// Purge drops every cached key.
func (c *CachedKeySource) Purge() {
	c.cache.Purge()
}
