package oauthflow

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

const (
	stateVersion    = "1.0"
	stateTokenBytes = 32
)

// State is the anti-forgery record stored while the user is at HubSpot. The
// same payload is round-tripped, base64url encoded, in the state parameter.
type State struct {
	Token    string    `json:"state"`
	TenantID string    `json:"org_id"`
	UserID   string    `json:"user_id"`
	IssuedAt time.Time `json:"timestamp"`
	Version  string    `json:"version"`
}

// newStateToken returns 32 bytes from crypto/rand, base64url encoded.
func newStateToken() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// EncodeState serializes s into the value sent as the state query parameter.
func EncodeState(s State) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// DecodeState reverses EncodeState. Padded and unpadded input are both accepted.
func DecodeState(encoded string) (State, error) {
	var s State
	b, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(encoded)
		if err != nil {
			return s, fmt.Errorf("decode state: %w", err)
		}
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("parse state: %w", err)
	}
	if s.Token == "" || s.TenantID == "" || s.UserID == "" {
		return s, fmt.Errorf("state is missing token, org_id or user_id")
	}
	return s, nil
}
