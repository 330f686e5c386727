package server

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-hubspot-connector/internal/errors"
	"github.com/jrsteele09/go-hubspot-connector/oauthflow"
	"github.com/rs/zerolog"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"

	maxCredentialBodyBytes = 64 << 10
)

// AuthorizeHandler starts the flow and returns the HubSpot authorization URL
// the frontend opens in a popup.
func (s *Server) AuthorizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, userID := subjectFromRequest(r)
		authURL, err := s.flow.InitiateAuthorization(r.Context(), tenantID, userID)
		if err != nil {
			s.writeFlowError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"authorization_url": authURL})
	}
}

// CallbackHandler receives the provider redirect and answers with a page that
// closes the popup.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := oauthflow.CallbackParamsFromQuery(r.URL.Query())
		if _, err := s.flow.CompleteAuthorization(r.Context(), params); err != nil {
			s.writeFlowError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", contentTypeHTML)
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, oauthflow.ConfirmationPage)
	}
}

// CredentialsHandler returns the stored credential for the org and user.
func (s *Server) CredentialsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, userID := subjectFromRequest(r)
		cred, err := s.flow.RetrieveCredential(r.Context(), tenantID, userID)
		if err != nil {
			s.writeFlowError(w, r, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, cred)
	}
}

func (s *Server) RevokeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, userID := subjectFromRequest(r)
		if err := s.flow.RevokeCredential(r.Context(), tenantID, userID); err != nil {
			s.writeFlowError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// LoadItemsHandler fetches CRM records. The credential comes either as the
// "credentials" form field or as a JSON request body.
func (s *Server) LoadItemsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := credentialPayload(r)
		if err != nil {
			s.writeFlowError(w, r, err)
			return
		}
		items, err := s.records.FetchRecords(r.Context(), payload)
		if err != nil {
			s.writeFlowError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.health != nil {
			if err := s.health.Ping(r.Context()); err != nil {
				s.logger.Error().Err(err).Msg("health check failed")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// subjectFromRequest reads org_id and user_id from the form body or query string.
func subjectFromRequest(r *http.Request) (tenantID, userID string) {
	return strings.TrimSpace(r.FormValue("org_id")), strings.TrimSpace(r.FormValue("user_id"))
}

func credentialPayload(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxCredentialBodyBytes))
		if err != nil {
			return nil, apperrors.New(apperrors.ErrMalformedRequest, "could not read request body").WithCause(err)
		}
		return body, nil
	}
	creds := r.FormValue("credentials")
	if creds == "" {
		return nil, apperrors.New(apperrors.ErrInvalidCredential, "credentials are required")
	}
	return []byte(creds), nil
}

// statusFor maps an error kind to the HTTP status returned to the caller.
func statusFor(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.ErrProviderDenied,
		apperrors.ErrMalformedCallback,
		apperrors.ErrStateNotFound,
		apperrors.ErrInvalidCredential,
		apperrors.ErrMalformedRequest:
		return http.StatusBadRequest
	case apperrors.ErrStateMismatch:
		return http.StatusForbidden
	case apperrors.ErrNotAuthorized:
		return http.StatusNotFound
	case apperrors.ErrTokenExchangeFailed,
		apperrors.ErrProviderUnreachable,
		apperrors.ErrRemoteUnavailable,
		apperrors.ErrPartialFetchFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeFlowError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	description := "internal server error"
	var fe *apperrors.FlowError
	if apperrors.As(err, &fe) && status != http.StatusInternalServerError {
		description = fe.Error()
	}
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
	}
	writeJSONError(w, apperrors.KindName(err), description, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes an error response
func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
