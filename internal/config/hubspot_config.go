package config

import (
	"strconv"
	"strings"
	"time"
)

const (
	clientIDVar     = "HUBSPOT_CLIENT_ID"
	clientSecretVar = "HUBSPOT_CLIENT_SECRET"
	redirectURIVar  = "HUBSPOT_REDIRECT_URI"
	scopesVar       = "HUBSPOT_SCOPES"
	authURLVar      = "HUBSPOT_AUTH_URL"
	tokenURLVar     = "HUBSPOT_TOKEN_URL"
	apiBaseURLVar   = "HUBSPOT_API_BASE_URL"
	httpTimeoutVar  = "HTTP_TIMEOUT"
	pageLimitVar    = "HUBSPOT_PAGE_LIMIT"
	strictFetchVar  = "HUBSPOT_STRICT_FETCH"
)

// HubSpotConfig holds the provider registration. Client id, secret and
// redirect URI have no defaults and must come from the environment.
type HubSpotConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetRedirectURI() string
	GetScopes() []string
	GetAuthURL() string
	GetTokenURL() string
	GetAPIBaseURL() string
	GetHTTPTimeout() time.Duration
	GetPageLimit() int
	GetStrictFetch() bool
}

type HubSpot struct{}

var _ HubSpotConfig = HubSpot{}

func (HubSpot) GetClientID() string {
	return GetEnv(clientIDVar, "")
}

func (HubSpot) GetClientSecret() string {
	return GetEnv(clientSecretVar, "")
}

func (HubSpot) GetRedirectURI() string {
	return GetEnv(redirectURIVar, "")
}

func (HubSpot) GetScopes() []string {
	return strings.Fields(strings.ReplaceAll(GetEnv(scopesVar, "oauth"), ",", " "))
}

func (HubSpot) GetAuthURL() string {
	return GetEnv(authURLVar, "https://app.hubspot.com/oauth/authorize")
}

func (HubSpot) GetTokenURL() string {
	return GetEnv(tokenURLVar, "https://api.hubapi.com/oauth/v1/token")
}

func (HubSpot) GetAPIBaseURL() string {
	return strings.TrimRight(GetEnv(apiBaseURLVar, "https://api.hubapi.com"), "/")
}

func (HubSpot) GetHTTPTimeout() time.Duration {
	return getDuration(httpTimeoutVar, 10*time.Second)
}

func (HubSpot) GetPageLimit() int {
	n, err := strconv.Atoi(GetEnv(pageLimitVar, "100"))
	if err != nil || n <= 0 {
		return 100
	}
	return n
}

// GetStrictFetch switches record fetching from best-effort to failing the
// whole call when any collection returns a non-success status.
func (HubSpot) GetStrictFetch() bool {
	strict, err := strconv.ParseBool(GetEnv(strictFetchVar, "false"))
	return err == nil && strict
}

func getDuration(envVar string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(GetEnv(envVar, ""))
	if err != nil {
		return defaultValue
	}
	return d
}
