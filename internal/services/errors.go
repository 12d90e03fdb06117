// Package services holds the Sharebook domain logic: credentials, projects,
// chapters, assets, settings, the AI assistant and PDF export orchestration.
//
// Services return the sentinel errors below, wrapped with context. The API layer
// maps them to HTTP status codes with errors.Is.
package services

import "errors"

var (
	// ErrValidation marks bad caller input (400).
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a missing resource (404).
	ErrNotFound = errors.New("not found")
	// ErrAccessDenied marks an ownership or visibility violation (403).
	ErrAccessDenied = errors.New("access denied")
	// ErrUpstream marks a failure of the AI provider or another remote dependency (502).
	ErrUpstream = errors.New("upstream service failed")
	// ErrConfiguration marks missing server-side or per-user configuration (503).
	ErrConfiguration = errors.New("not configured")
	// ErrUnauthenticated marks bad or missing login credentials (401).
	ErrUnauthenticated = errors.New("invalid credentials")
)
