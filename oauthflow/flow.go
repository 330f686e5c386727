package oauthflow

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-hubspot-connector/credentials"
	apperrors "github.com/jrsteele09/go-hubspot-connector/internal/errors"
	"github.com/jrsteele09/go-hubspot-connector/transient"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	defaultStateTTL      = 600 * time.Second
	defaultCredentialTTL = time.Hour
	defaultHTTPTimeout   = 10 * time.Second

	maxErrorBodyLen = 512
)

// Config is the HubSpot app registration and flow timing, built once at startup.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	AuthURL      string
	TokenURL     string

	StateTTL             time.Duration
	DefaultCredentialTTL time.Duration
	HTTPTimeout          time.Duration
}

// CallbackParams are the query parameters HubSpot sends to the redirect URI.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// CallbackParamsFromQuery extracts the callback parameters from a query string.
func CallbackParamsFromQuery(q url.Values) CallbackParams {
	return CallbackParams{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}
}

// Flow runs the authorization-code handshake. It holds no per-request state;
// everything that spans requests lives in the transient store.
type Flow struct {
	config     Config
	oauth      *oauth2.Config
	store      transient.Store
	httpClient *http.Client
	logger     zerolog.Logger
	now        func() time.Time
}

type Option func(*Flow)

// WithLogger sets the logger used for flow events.
func WithLogger(l zerolog.Logger) Option {
	return func(f *Flow) { f.logger = l }
}

// WithHTTPClient sets the client used for the token exchange.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Flow) { f.httpClient = c }
}

// WithClock overrides time.Now, used for the state timestamp.
func WithClock(now func() time.Time) Option {
	return func(f *Flow) { f.now = now }
}

// New creates a Flow. Zero durations in cfg fall back to 600s state TTL, 1h
// credential TTL and a 10s HTTP timeout.
func New(cfg Config, store transient.Store, opts ...Option) (*Flow, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("client id and client secret are required")
	}
	if cfg.RedirectURI == "" || cfg.AuthURL == "" || cfg.TokenURL == "" {
		return nil, errors.New("redirect, authorization and token URLs are required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = defaultStateTTL
	}
	if cfg.DefaultCredentialTTL <= 0 {
		cfg.DefaultCredentialTTL = defaultCredentialTTL
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaultHTTPTimeout
	}

	f := &Flow{
		config: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		store:  store,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.httpClient == nil {
		f.httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return f, nil
}

// InitiateAuthorization stores fresh anti-forgery state for the tenant/user pair,
// replacing any pending one, and returns the HubSpot authorization URL.
func (f *Flow) InitiateAuthorization(ctx context.Context, tenantID, userID string) (string, error) {
	if tenantID == "" || userID == "" {
		return "", apperrors.New(apperrors.ErrMalformedRequest, "org_id and user_id are required")
	}

	token, err := newStateToken()
	if err != nil {
		return "", apperrors.New(apperrors.ErrInternal, "could not generate state").WithCause(err)
	}
	state := State{
		Token:    token,
		TenantID: tenantID,
		UserID:   userID,
		IssuedAt: f.now().UTC(),
		Version:  stateVersion,
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return "", apperrors.New(apperrors.ErrInternal, "could not encode state").WithCause(err)
	}
	if err := f.store.Put(ctx, transient.StateKey(tenantID, userID), string(payload), f.config.StateTTL); err != nil {
		return "", apperrors.New(apperrors.ErrInternal, "could not store state").
			WithSubject(tenantID, userID).WithCause(err)
	}

	encoded, err := EncodeState(state)
	if err != nil {
		return "", apperrors.New(apperrors.ErrInternal, "could not encode state").WithCause(err)
	}

	f.logger.Info().Str("tenant_id", tenantID).Str("user_id", userID).Msg("authorization initiated")
	return f.oauth.AuthCodeURL(encoded), nil
}

// CompleteAuthorization validates the callback against the stored state,
// exchanges the code and persists the resulting credential. The state is
// removed once the credential is stored so the same callback cannot be
// replayed. The replay guard only holds for sequential deliveries: two
// concurrent callbacks with the same state can both pass the token check
// before either removes it, leaving the provider's single-use code as the
// remaining guard.
func (f *Flow) CompleteAuthorization(ctx context.Context, params CallbackParams) (*credentials.Credential, error) {
	if params.Error != "" {
		desc := params.ErrorDescription
		if desc == "" {
			desc = params.Error
		}
		return nil, f.fail(apperrors.New(apperrors.ErrProviderDenied, desc))
	}
	if params.Code == "" || params.State == "" {
		return nil, f.fail(apperrors.New(apperrors.ErrMalformedCallback, "code and state are required"))
	}

	received, err := DecodeState(params.State)
	if err != nil {
		return nil, f.fail(apperrors.New(apperrors.ErrMalformedCallback, "state could not be decoded").WithCause(err))
	}
	tenantID, userID := received.TenantID, received.UserID
	stateKey := transient.StateKey(tenantID, userID)

	stored, err := f.loadState(ctx, stateKey)
	if err != nil {
		return nil, f.fail(withSubject(err, tenantID, userID))
	}
	if subtle.ConstantTimeCompare([]byte(received.Token), []byte(stored.Token)) != 1 {
		return nil, f.fail(apperrors.New(apperrors.ErrStateMismatch, "state token does not match, possible forgery").
			WithSubject(tenantID, userID))
	}

	cred, err := f.exchange(ctx, params.Code)
	if err != nil {
		return nil, f.fail(withSubject(err, tenantID, userID))
	}

	payload, err := cred.Marshal()
	if err != nil {
		return nil, f.fail(apperrors.New(apperrors.ErrInternal, "could not encode credential").WithCause(err))
	}
	ttl := cred.TTL(f.config.DefaultCredentialTTL)
	if err := f.store.Put(ctx, transient.CredentialKey(tenantID, userID), payload, ttl); err != nil {
		return nil, f.fail(apperrors.New(apperrors.ErrInternal, "could not store credential").
			WithSubject(tenantID, userID).WithCause(err))
	}

	if err := f.store.Delete(ctx, stateKey); err != nil {
		return nil, f.fail(apperrors.New(apperrors.ErrInternal, "could not clear state").
			WithSubject(tenantID, userID).WithCause(err))
	}

	f.logger.Info().Str("tenant_id", tenantID).Str("user_id", userID).Dur("ttl", ttl).Msg("authorization completed")
	return cred, nil
}

// RetrieveCredential returns the stored credential. Reads do not consume it;
// it stays available until it expires or is revoked.
func (f *Flow) RetrieveCredential(ctx context.Context, tenantID, userID string) (*credentials.Credential, error) {
	if tenantID == "" || userID == "" {
		return nil, apperrors.New(apperrors.ErrMalformedRequest, "org_id and user_id are required")
	}

	payload, err := f.store.Get(ctx, transient.CredentialKey(tenantID, userID))
	if errors.Is(err, transient.ErrNotFound) {
		return nil, apperrors.New(apperrors.ErrNotAuthorized, "integration not yet authorized for this org and user").
			WithSubject(tenantID, userID)
	}
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "could not load credential").
			WithSubject(tenantID, userID).WithCause(err)
	}

	cred, err := credentials.Parse([]byte(payload))
	if err != nil {
		return nil, withSubject(err, tenantID, userID)
	}
	return cred, nil
}

// RevokeCredential deletes the stored credential. Revoking a missing credential is not an error.
func (f *Flow) RevokeCredential(ctx context.Context, tenantID, userID string) error {
	if tenantID == "" || userID == "" {
		return apperrors.New(apperrors.ErrMalformedRequest, "org_id and user_id are required")
	}
	if err := f.store.Delete(ctx, transient.CredentialKey(tenantID, userID)); err != nil {
		return apperrors.New(apperrors.ErrInternal, "could not revoke credential").
			WithSubject(tenantID, userID).WithCause(err)
	}
	f.logger.Info().Str("tenant_id", tenantID).Str("user_id", userID).Msg("credential revoked")
	return nil
}

func (f *Flow) loadState(ctx context.Context, key string) (State, error) {
	var s State
	payload, err := f.store.Get(ctx, key)
	if errors.Is(err, transient.ErrNotFound) {
		return s, apperrors.New(apperrors.ErrStateNotFound, "state expired or was never issued")
	}
	if err != nil {
		return s, apperrors.New(apperrors.ErrInternal, "could not load state").WithCause(err)
	}
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return s, apperrors.New(apperrors.ErrInternal, "stored state is corrupt").WithCause(err)
	}
	return s, nil
}

func (f *Flow) exchange(ctx context.Context, code string) (*credentials.Credential, error) {
	ctx, cancel := context.WithTimeout(ctx, f.config.HTTPTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)

	tok, err := f.oauth.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		var urlErr *url.Error
		switch {
		case errors.As(err, &retrieveErr):
			fe := apperrors.New(apperrors.ErrTokenExchangeFailed, truncate(string(retrieveErr.Body)))
			if retrieveErr.Response != nil {
				fe.WithStatus(retrieveErr.Response.StatusCode)
			}
			return nil, fe
		case errors.As(err, &urlErr), errors.Is(err, context.DeadlineExceeded):
			return nil, apperrors.New(apperrors.ErrProviderUnreachable, "could not reach HubSpot token endpoint").WithCause(err)
		default:
			return nil, apperrors.New(apperrors.ErrTokenExchangeFailed, err.Error())
		}
	}
	return credentials.FromToken(tok), nil
}

// fail logs the error with its kind. A state mismatch is logged at warn level
// under its own event so it can be alerted on apart from benign expiry.
func (f *Flow) fail(err *apperrors.FlowError) error {
	event := f.logger.Info()
	if apperrors.Is(err, apperrors.ErrStateMismatch) {
		event = f.logger.Warn().Str("event", "oauth_state_mismatch")
	} else if apperrors.Is(err, apperrors.ErrInternal) || apperrors.Is(err, apperrors.ErrProviderUnreachable) {
		event = f.logger.Error()
	}
	event.
		Str("error_kind", apperrors.KindName(err)).
		Str("tenant_id", err.TenantID).
		Str("user_id", err.UserID).
		Int("upstream_status", err.StatusCode).
		Msg("authorization callback failed")
	return err
}

func withSubject(err error, tenantID, userID string) *apperrors.FlowError {
	var fe *apperrors.FlowError
	if !apperrors.As(err, &fe) {
		fe = apperrors.New(apperrors.ErrInternal, "").WithCause(err)
	}
	return fe.WithSubject(tenantID, userID)
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorBodyLen {
		return s[:maxErrorBodyLen] + "..."
	}
	return s
}
