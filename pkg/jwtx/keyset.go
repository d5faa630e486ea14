package jwtx

import (
	"context"
	"crypto"
	"fmt"
	"sync"

	"github.com/go-jose/go-jose/v4"
)

// KeySource resolves the public key for a key id. Lookups can hit the
// network, so they take a context.
type KeySource interface {
	SigningKey(ctx context.Context, kid string) (crypto.PublicKey, error)
}

// KeySourceFunc adapts a function to KeySource.
type KeySourceFunc func(ctx context.Context, kid string) (crypto.PublicKey, error)

func (f KeySourceFunc) SigningKey(ctx context.Context, kid string) (crypto.PublicKey, error) {
	return f(ctx, kid)
}

// KeySet is an in-memory KeySource. Handy for tests and for pinning keys
// that don't rotate.
type KeySet struct {
	mu  sync.RWMutex
	pub map[string]crypto.PublicKey
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{pub: make(map[string]crypto.PublicKey)}
}

// Add registers a public key under kid, replacing any previous one.
func (k *KeySet) Add(kid string, key crypto.PublicKey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pub[kid] = key
}

// AddJWKS loads every signing key of a JWKS document.
func (k *KeySet) AddJWKS(set jose.JSONWebKeySet) error {
	for _, jwk := range set.Keys {
		if jwk.Use != "" && jwk.Use != "sig" {
			continue
		}
		if !jwk.Valid() {
			return fmt.Errorf("jwtx: invalid jwk %q", jwk.KeyID)
		}
		pub := jwk.Public()
		k.Add(jwk.KeyID, pub.Key)
	}
	return nil
}

// SigningKey implements KeySource.
func (k *KeySet) SigningKey(_ context.Context, kid string) (crypto.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if pk, ok := k.pub[kid]; ok {
		return pk, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKID, kid)
}

// Len reports how many keys are loaded.
func (k *KeySet) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.pub)
}
