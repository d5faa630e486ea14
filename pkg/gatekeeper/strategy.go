package gatekeeper

import (
	"errors"
	"net/http"

	"github.com/Path-Check/safeplaces-auth/pkg/jwtx"
)

// Strategy picks the verifier for a request.
type Strategy interface {
	Resolve(r *http.Request) (jwtx.Verifier, error)
}

type staticStrategy struct {
	v jwtx.Verifier
}

// Static always returns v.
func Static(v jwtx.Verifier) Strategy {
	return staticStrategy{v: v}
}

func (s staticStrategy) Resolve(*http.Request) (jwtx.Verifier, error) {
	if s.v == nil {
		return nil, errors.New("no verifier configured")
	}
	return s.v, nil
}

// StrategyFunc is a Strategy computed per request.
type StrategyFunc func(r *http.Request) (jwtx.Verifier, error)

func (f StrategyFunc) Resolve(r *http.Request) (jwtx.Verifier, error) {
	return f(r)
}

// Dynamic calls fn once per request, e.g. to choose a tenant's key set.
func Dynamic(fn func(r *http.Request) (jwtx.Verifier, error)) Strategy {
	return StrategyFunc(fn)
}
