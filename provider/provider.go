// Package provider defines the contract external identity providers implement
// and a registry to look them up by name.
//
// Implementations return identity facts only. Account lookup, linking, and
// session creation are authgate.Engine responsibilities.
package provider

import (
	"context"
	"fmt"

	"github.com/rlvait/authgate"
)

// OAuthProvider is implemented by every federated login backend.
type OAuthProvider interface {
	// Name returns the provider identifier ("google").
	Name() string

	// AuthCodeURL returns the provider's authorization URL for the given
	// anti-forgery state.
	AuthCodeURL(state string) string

	// ExchangeCode trades the authorization code for provider credentials,
	// verifies them, and returns the normalized identity facts.
	ExchangeCode(ctx context.Context, code string) (authgate.FederatedIdentity, error)
}

// Registry holds configured providers, keyed by name.
type Registry struct {
	providers map[string]OAuthProvider
}

// NewRegistry registers the given providers. Names must be unique; a later
// provider with a duplicate name wins.
func NewRegistry(list ...OAuthProvider) *Registry {
	m := make(map[string]OAuthProvider, len(list))
	for _, p := range list {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get returns the provider by name.
func (r *Registry) Get(name string) (OAuthProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown oauth provider: %s", name)
	}
	return p, nil
}
