package credentials

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	apperrors "github.com/jrsteele09/go-hubspot-connector/internal/errors"
	"golang.org/x/oauth2"
)

// Credential is the HubSpot token response as persisted for a tenant/user pair.
// This is the standard OAuth2 token endpoint response format as defined in RFC 6749.
type Credential struct {
	// AccessToken is sent as "Authorization: Bearer <access_token>" on CRM calls.
	AccessToken string `json:"access_token"`

	// RefreshToken is long-lived and only present when the provider issued one.
	RefreshToken string `json:"refresh_token,omitempty"`

	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the access token lifetime in seconds reported by the provider.
	// It also drives how long the credential is kept in the store.
	ExpiresIn int64 `json:"expires_in,omitempty"`

	// Scope is the space separated list of granted scopes, when reported.
	Scope string `json:"scope,omitempty"`
}

// FromToken converts the result of an oauth2 code exchange.
func FromToken(tok *oauth2.Token) *Credential {
	c := &Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    int64Value(tok.Extra("expires_in")),
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		c.Scope = scope
	}
	return c
}

// Parse decodes a stored or client supplied credential payload. The payload must
// be a JSON object with a non-empty access_token.
func Parse(payload []byte) (*Credential, error) {
	var c Credential
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, apperrors.New(apperrors.ErrInvalidCredential, "credential payload is not valid JSON").WithCause(err)
	}
	if c.AccessToken == "" {
		return nil, apperrors.New(apperrors.ErrInvalidCredential, "credential has no access_token")
	}
	return &c, nil
}

// Marshal encodes the credential for storage.
func (c *Credential) Marshal() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MaxTTL caps how long a credential is kept, whatever the provider reports.
const MaxTTL = 365 * 24 * time.Hour

// TTL is how long the credential should be kept: the provider reported expiry
// capped at MaxTTL, or fallback when none was given.
func (c *Credential) TTL(fallback time.Duration) time.Duration {
	if c.ExpiresIn <= 0 {
		return fallback
	}
	if c.ExpiresIn >= int64(MaxTTL/time.Second) {
		return MaxTTL
	}
	return time.Duration(c.ExpiresIn) * time.Second
}

func int64Value(input any) int64 {
	switch v := input.(type) {
	case float64:
		if v > math.MaxInt64 || v < 0 {
			return 0
		}
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
