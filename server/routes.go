package server

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())

	// The provider redirects the user's browser here; the response is an HTML page.
	s.RegisterRouteHandler("GET "+RouteHubSpotCallback, ChainMiddleware(s.CallbackHandler(), s.HTMLMiddleWare()...))

	// API routes called by the application frontend
	s.RegisterRouteHandler("POST "+RouteHubSpotAuthorize, ChainMiddleware(s.AuthorizeHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteHubSpotCredentials, ChainMiddleware(s.CredentialsHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteHubSpotRevoke, ChainMiddleware(s.RevokeHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteHubSpotLoad, ChainMiddleware(s.LoadItemsHandler(), s.APIMiddleware()...))

	// CORS preflight
	s.RegisterRouteHandler("OPTIONS /integrations/hubspot/", ChainMiddleware(noContent, s.APIMiddleware()...))
}
