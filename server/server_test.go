package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-hubspot-connector/crm"
	"github.com/jrsteele09/go-hubspot-connector/integration"
	"github.com/jrsteele09/go-hubspot-connector/internal/config"
	"github.com/jrsteele09/go-hubspot-connector/oauthflow"
	"github.com/jrsteele09/go-hubspot-connector/server"
	"github.com/jrsteele09/go-hubspot-connector/transient"
	"github.com/stretchr/testify/require"
)

const (
	testTenantID = "org-1"
	testUserID   = "user-1"
)

type testFixture struct {
	hubspot *httptest.Server
	server  *server.Server
}

// setupTestFixture wires the real flow and CRM client against a stubbed HubSpot
func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")

	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.FormValue("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"status":"BAD_AUTH_CODE"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"access-1","refresh_token":"refresh-1","expires_in":1800}`))
	})
	mux.HandleFunc("GET /crm/v3/objects/contacts", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"id":"1","properties":{"name":"Ada"}},{"id":"2","properties":{"name":"Grace"}}]}`))
	})
	mux.HandleFunc("GET /crm/v3/objects/companies", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"id":"1","properties":{"name":"Acme"}}]}`))
	})
	mux.HandleFunc("GET /crm/v3/objects/deals", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	})
	hubspot := httptest.NewServer(mux)
	t.Cleanup(hubspot.Close)

	flow, err := oauthflow.New(oauthflow.Config{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		RedirectURI:  "http://localhost:8000" + server.RouteHubSpotCallback,
		Scopes:       []string{"oauth"},
		AuthURL:      hubspot.URL + "/oauth/authorize",
		TokenURL:     hubspot.URL + "/oauth/v1/token",
		HTTPTimeout:  2 * time.Second,
	}, transient.NewInMemoryStore())
	require.NoError(t, err)

	records := crm.NewClient(crm.Options{BaseURL: hubspot.URL, Timeout: 2 * time.Second})

	s, err := server.New(config.New(), flow, records)
	require.NoError(t, err)
	return &testFixture{hubspot: hubspot, server: s}
}

func (f *testFixture) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func (f *testFixture) authorize(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, server.RouteHubSpotAuthorize, url.Values{"org_id": {testTenantID}, "user_id": {testUserID}})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	u, err := url.Parse(body["authorization_url"])
	require.NoError(t, err)
	return u.Query().Get("state")
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestServer_FullFlow(t *testing.T) {
	f := setupTestFixture(t)
	state := f.authorize(t)

	rec := f.do(t, http.MethodGet, server.RouteHubSpotCallback+"?"+url.Values{"code": {"good-code"}, "state": {state}}.Encode(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	require.Contains(t, rec.Body.String(), "window.close()")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = f.do(t, http.MethodPost, server.RouteHubSpotCredentials, url.Values{"org_id": {testTenantID}, "user_id": {testUserID}})
	require.Equal(t, http.StatusOK, rec.Code)
	credential := rec.Body.String()
	require.Contains(t, credential, `"access_token":"access-1"`)

	rec = f.do(t, http.MethodPost, server.RouteHubSpotLoad, url.Values{"credentials": {credential}})
	require.Equal(t, http.StatusOK, rec.Code)

	var items []integration.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 3)
	require.Equal(t, "1_Contact", items[0].ID)
	require.Equal(t, "2_Contact", items[1].ID)
	require.Equal(t, "1_Company", items[2].ID)

	// replaying the callback is rejected
	rec = f.do(t, http.MethodGet, server.RouteHubSpotCallback+"?"+url.Values{"code": {"good-code"}, "state": {state}}.Encode(), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "state_not_found", decodeError(t, rec))
}

func TestServer_LoadAcceptsJSONBody(t *testing.T) {
	f := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodPost, server.RouteHubSpotLoad, strings.NewReader(`{"access_token":"access-1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var items []integration.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 3)
}

func TestServer_ErrorStatuses(t *testing.T) {
	f := setupTestFixture(t)

	t.Run("credentials before authorization", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, server.RouteHubSpotCredentials, url.Values{"org_id": {testTenantID}, "user_id": {testUserID}})
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, "not_authorized", decodeError(t, rec))
	})

	t.Run("authorize without ids", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, server.RouteHubSpotAuthorize, url.Values{})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "malformed_request", decodeError(t, rec))
	})

	t.Run("provider denied", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, server.RouteHubSpotCallback+"?error=access_denied&error_description=User+said+no", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "provider_denied", decodeError(t, rec))
		require.Contains(t, rec.Body.String(), "User said no")
	})

	t.Run("missing code", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, server.RouteHubSpotCallback+"?state=abc", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "malformed_callback", decodeError(t, rec))
	})

	t.Run("forged state", func(t *testing.T) {
		state, err := oauthflow.DecodeState(f.authorize(t))
		require.NoError(t, err)
		state.Token = "forged"
		forged, err := oauthflow.EncodeState(state)
		require.NoError(t, err)

		rec := f.do(t, http.MethodGet, server.RouteHubSpotCallback+"?"+url.Values{"code": {"good-code"}, "state": {forged}}.Encode(), nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "state_mismatch", decodeError(t, rec))
	})

	t.Run("token exchange failed", func(t *testing.T) {
		state := f.authorize(t)
		rec := f.do(t, http.MethodGet, server.RouteHubSpotCallback+"?"+url.Values{"code": {"bad-code"}, "state": {state}}.Encode(), nil)
		require.Equal(t, http.StatusBadGateway, rec.Code)
		require.Equal(t, "token_exchange_failed", decodeError(t, rec))
		require.NotContains(t, rec.Body.String(), "secret-1")
	})

	t.Run("load without credentials", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, server.RouteHubSpotLoad, url.Values{})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "invalid_credential", decodeError(t, rec))
	})

	t.Run("load with malformed credential", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, server.RouteHubSpotLoad, url.Values{"credentials": {`{"refresh_token":"r"}`}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "invalid_credential", decodeError(t, rec))
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, server.RouteHubSpotAuthorize, nil)
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestServer_Revoke(t *testing.T) {
	f := setupTestFixture(t)
	state := f.authorize(t)
	rec := f.do(t, http.MethodGet, server.RouteHubSpotCallback+"?"+url.Values{"code": {"good-code"}, "state": {state}}.Encode(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	subject := url.Values{"org_id": {testTenantID}, "user_id": {testUserID}}
	rec = f.do(t, http.MethodPost, server.RouteHubSpotRevoke, subject)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPost, server.RouteHubSpotCredentials, subject)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CorsPreflight(t *testing.T) {
	f := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodOptions, server.RouteHubSpotAuthorize, nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, server.RouteHubSpotAuthorize, nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_Health(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(t, http.MethodGet, server.RouteHealth, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_Routes(t *testing.T) {
	f := setupTestFixture(t)

	routes := f.server.Routes()
	require.Contains(t, routes, "GET "+server.RouteHealth)
	require.Contains(t, routes, "GET "+server.RouteHubSpotCallback)
	require.Contains(t, routes, "POST "+server.RouteHubSpotAuthorize)
	require.Contains(t, routes, "POST "+server.RouteHubSpotCredentials)
	require.Contains(t, routes, "POST "+server.RouteHubSpotRevoke)
	require.Contains(t, routes, "POST "+server.RouteHubSpotLoad)

	routes[0] = "mutated"
	require.NotEqual(t, "mutated", f.server.Routes()[0])
}
