package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-hubspot-connector/credentials"
	"github.com/jrsteele09/go-hubspot-connector/integration"
	"github.com/jrsteele09/go-hubspot-connector/internal/config"
	"github.com/jrsteele09/go-hubspot-connector/oauthflow"
	"github.com/rs/zerolog"
)

// AuthorizationFlow is the HubSpot OAuth handshake the handlers drive.
type AuthorizationFlow interface {
	InitiateAuthorization(ctx context.Context, tenantID, userID string) (string, error)
	CompleteAuthorization(ctx context.Context, params oauthflow.CallbackParams) (*credentials.Credential, error)
	RetrieveCredential(ctx context.Context, tenantID, userID string) (*credentials.Credential, error)
	RevokeCredential(ctx context.Context, tenantID, userID string) error
}

// RecordFetcher loads normalized CRM records with a credential payload.
type RecordFetcher interface {
	FetchRecords(ctx context.Context, credentialPayload []byte) ([]integration.Item, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	flow    AuthorizationFlow
	records RecordFetcher
	health  Pinger
	logger  zerolog.Logger
}

type Option func(*Server)

// WithLogger sets the logger used for access logs and handler errors.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithHealthCheck makes /healthz report the given dependency.
func WithHealthCheck(p Pinger) Option {
	return func(s *Server) { s.health = p }
}

func New(config config.Config, flow AuthorizationFlow, records RecordFetcher, opts ...Option) (*Server, error) {
	if flow == nil || records == nil {
		return nil, fmt.Errorf("[Server New] authorization flow and record fetcher are required")
	}

	s := &Server{
		mux:     http.NewServeMux(),
		config:  config,
		flow:    flow,
		records: records,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.env = config.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes returns the registered route patterns.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.Routes() {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	s.logger.Info().Msgf("[%-19s] %s", displayMethod, path)
}
