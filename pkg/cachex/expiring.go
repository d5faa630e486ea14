// Package cachex provides a single-value cache that refreshes itself as its
// value approaches expiry.
//
// Reads fall into three bands measured by the time left before expiry:
//
//	remaining < Hard            refresh synchronously, return the new value
//	Hard <= remaining < Soft    return the current value, refresh in background
//	remaining >= Soft           return the current value
//
// Refreshes are best-effort. At most one background refresh runs at a time,
// but synchronous refreshes from concurrent callers are not coalesced, so two
// requests landing inside the hard window may both hit the refresher. The
// refreshers used here (token grants, role listings) are idempotent.
package cachex

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Path-Check/safeplaces-auth/pkg/metricsx"
)

// Default thresholds for IDM management tokens.
const (
	DefaultHardThreshold = 2 * time.Minute
	DefaultSoftThreshold = 30 * time.Minute

	// DefaultBackgroundTimeout bounds a detached refresh.
	DefaultBackgroundTimeout = 30 * time.Second
)

// ErrNoRefresher is returned by New when no refresher is supplied.
var ErrNoRefresher = errors.New("cachex: refresher is required")

// Refresher fetches a fresh value and reports when it expires.
type Refresher[T any] func(ctx context.Context) (T, time.Time, error)

// Options tunes when Get refreshes. Zero values take the defaults.
type Options struct {
	// Name labels log lines and metrics.
	Name string

	Hard time.Duration
	Soft time.Duration

	// BackgroundTimeout bounds refreshes started from the soft band.
	BackgroundTimeout time.Duration

	// Now is the clock; defaults to time.Now.
	Now func() time.Time

	Logger  *slog.Logger
	Metrics *metricsx.Metrics
}

// Expiring caches one value of type T alongside its expiry.
type Expiring[T any] struct {
	refresh Refresher[T]
	opts    Options

	mu        sync.RWMutex
	value     T
	expiresAt time.Time

	// background guards against piling up detached refreshes.
	background atomic.Bool
	wg         sync.WaitGroup
}

// New returns an empty cache. An empty cache has a zero expiry, so the first
// Get always refreshes synchronously.
func New[T any](refresh Refresher[T], opts Options) (*Expiring[T], error) {
	if refresh == nil {
		return nil, ErrNoRefresher
	}
	if opts.Hard <= 0 {
		opts.Hard = DefaultHardThreshold
	}
	if opts.Soft <= 0 {
		opts.Soft = DefaultSoftThreshold
	}
	if opts.Soft < opts.Hard {
		opts.Soft = opts.Hard
	}
	if opts.BackgroundTimeout <= 0 {
		opts.BackgroundTimeout = DefaultBackgroundTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Name == "" {
		opts.Name = "value"
	}

	return &Expiring[T]{refresh: refresh, opts: opts}, nil
}

// Get returns the cached value, refreshing according to the band the
// remaining lifetime falls into.
func (c *Expiring[T]) Get(ctx context.Context) (T, error) {
	c.mu.RLock()
	value, expiresAt := c.value, c.expiresAt
	c.mu.RUnlock()

	remaining := expiresAt.Sub(c.opts.Now())

	switch {
	case remaining < c.opts.Hard:
		return c.Refresh(ctx)
	case remaining < c.opts.Soft:
		c.refreshInBackground(ctx)
	}

	return value, nil
}

// Refresh fetches a new value synchronously and stores it.
func (c *Expiring[T]) Refresh(ctx context.Context) (T, error) {
	value, err := c.store(ctx)
	c.opts.Metrics.ObserveCacheRefresh(c.opts.Name, metricsx.ModeSync, err)
	if err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}

// ExpiresAt reports the expiry of the cached value.
func (c *Expiring[T]) ExpiresAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.expiresAt
}

// Wait blocks until any in-flight background refresh finishes.
func (c *Expiring[T]) Wait() {
	c.wg.Wait()
}

func (c *Expiring[T]) store(ctx context.Context) (T, error) {
	value, expiresAt, err := c.refresh(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	c.mu.Lock()
	c.value = value
	c.expiresAt = expiresAt
	c.mu.Unlock()

	return value, nil
}

func (c *Expiring[T]) refreshInBackground(ctx context.Context) {
	if !c.background.CompareAndSwap(false, true) {
		return
	}

	// Detach from the caller so a finished request doesn't cancel the refresh.
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.BackgroundTimeout)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.background.Store(false)
		defer cancel()

		_, err := c.store(bg)
		c.opts.Metrics.ObserveCacheRefresh(c.opts.Name, metricsx.ModeBackground, err)
		if err != nil {
			c.opts.Logger.Warn("background cache refresh failed",
				"cache", c.opts.Name,
				"error", err,
			)
		}
	}()
}
