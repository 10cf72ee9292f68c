// Package google implements the authgate OAuth provider contract for Google
// sign-in via OpenID Connect.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rlvait/authgate"
	"golang.org/x/oauth2"
)

const providerName = "google"

const issuerURL = "https://accounts.google.com"

// Provider performs the Google OAuth code flow and verifies the returned
// id_token against Google's published keys.
type Provider struct {
	oauthConfig *oauth2.Config
	verifier    *oidc.IDTokenVerifier
}

// New runs OIDC discovery against Google and returns a ready Provider.
func New(ctx context.Context, clientID, clientSecret, redirectURL string) (*Provider, error) {
	if clientID == "" || clientSecret == "" || redirectURL == "" {
		return nil, errors.New("google: client id, client secret, and redirect url are required")
	}

	oidcProvider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("google: oidc discovery: %w", err)
	}

	verifier := oidcProvider.Verifier(&oidc.Config{ClientID: clientID})

	oauthCfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     oidcProvider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	return &Provider{
		oauthConfig: oauthCfg,
		verifier:    verifier,
	}, nil
}

func (p *Provider) Name() string {
	return providerName
}

func (p *Provider) AuthCodeURL(state string) string {
	return p.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// ExchangeCode trades the authorization code for tokens, verifies the
// id_token, and extracts the identity facts the engine needs.
func (p *Provider) ExchangeCode(ctx context.Context, code string) (authgate.FederatedIdentity, error) {
	token, err := p.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return authgate.FederatedIdentity{}, fmt.Errorf("google: token exchange: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return authgate.FederatedIdentity{}, errors.New("google: no id_token in token response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return authgate.FederatedIdentity{}, fmt.Errorf("google: id_token verification: %w", err)
	}

	var claims struct {
		Subject       string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return authgate.FederatedIdentity{}, fmt.Errorf("google: id_token claims: %w", err)
	}

	if claims.Subject == "" {
		return authgate.FederatedIdentity{}, errors.New("google: id_token missing subject")
	}

	// An unverified email must not link to an existing account by address;
	// dropping it forces the engine down the subject-only path.
	email := claims.Email
	if !claims.EmailVerified {
		email = ""
	}

	return authgate.FederatedIdentity{
		Provider: providerName,
		Subject:  claims.Subject,
		Email:    email,
		Name:     claims.Name,
	}, nil
}
