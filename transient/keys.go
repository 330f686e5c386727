package transient

import "net/url"

// KeyKind namespaces the keyspace. Keys have the form
// {prefix}{kind}:{tenantID}:{userID} with both ids query-escaped, so ids
// containing ':' cannot collide with one another.
type KeyKind string

const (
	KindState      KeyKind = "state"
	KindCredential KeyKind = "credential"
)

// Key builds the key of the given kind for a tenant/user pair.
func Key(kind KeyKind, tenantID, userID string) string {
	return string(kind) + ":" + url.QueryEscape(tenantID) + ":" + url.QueryEscape(userID)
}

// StateKey is the key of the pending authorization state.
func StateKey(tenantID, userID string) string {
	return Key(KindState, tenantID, userID)
}

// CredentialKey is the key of the persisted credential.
func CredentialKey(tenantID, userID string) string {
	return Key(KindCredential, tenantID, userID)
}

// Prefixed wraps a Store so every key is placed under prefix.
func Prefixed(s Store, prefix string) Store {
	if prefix == "" {
		return s
	}
	return prefixedStore{store: s, prefix: prefix}
}
