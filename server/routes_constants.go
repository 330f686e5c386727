package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// HubSpot integration routes
	RouteHubSpotAuthorize   = "/integrations/hubspot/authorize"
	RouteHubSpotCallback    = "/integrations/hubspot/oauth2callback"
	RouteHubSpotCredentials = "/integrations/hubspot/credentials"
	RouteHubSpotRevoke      = "/integrations/hubspot/credentials/revoke"
	RouteHubSpotLoad        = "/integrations/hubspot/load"

	// Operational routes
	RouteHealth = "/healthz"
)
