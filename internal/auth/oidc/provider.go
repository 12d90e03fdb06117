// Package oidc implements the optional single sign-on login. It discovers the
// issuer, builds the authorization URL, exchanges the code and returns the
// identity claims Sharebook needs to find or create an account.
package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/sharebook/sharebook/internal/config"
)

// Identity is the subset of ID token claims used to resolve a Sharebook user.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// tokenVerifier is satisfied by *oidc.IDTokenVerifier.
type tokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// Provider wraps a discovered OIDC issuer and its OAuth2 client.
type Provider struct {
	verifier tokenVerifier
	config   *oauth2.Config
}

// NewProvider discovers the issuer. ctx bounds the discovery request.
func NewProvider(ctx context.Context, cfg *config.OIDCConfig) (*Provider, error) {
	if !cfg.Enabled {
		return nil, errors.New("OIDC is not enabled")
	}
	if cfg.IssuerURL == "" {
		return nil, errors.New("OIDC issuer URL is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("OIDC client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("OIDC client secret is required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}

	return &Provider{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
	}, nil
}

// AuthURL returns the authorization URL carrying state.
func (p *Provider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Authenticate exchanges an authorization code and verifies the returned ID token.
func (p *Provider) Authenticate(ctx context.Context, code string) (*Identity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("token response has no id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}
	return identityFromToken(idToken)
}

// claimsSource is satisfied by *oidc.IDToken.
type claimsSource interface {
	Claims(v interface{}) error
}

func identityFromToken(tok claimsSource) (*Identity, error) {
	var claims struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified *bool  `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := tok.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse ID token claims: %w", err)
	}

	if claims.Sub == "" {
		return nil, errors.New("ID token missing 'sub' claim")
	}
	if claims.Email == "" {
		return nil, errors.New("ID token missing 'email' claim")
	}
	// Accounts are linked by email, so an address the issuer marks unverified is refused.
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return nil, errors.New("ID token email is not verified")
	}
	if claims.Name == "" {
		claims.Name = claims.Email
	}

	return &Identity{Subject: claims.Sub, Email: claims.Email, Name: claims.Name}, nil
}
