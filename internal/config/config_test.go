package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-hubspot-connector/internal/config"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("HUBSPOT_CLIENT_ID", "client-id")
	t.Setenv("HUBSPOT_CLIENT_SECRET", "client-secret")
	t.Setenv("HUBSPOT_REDIRECT_URI", "http://localhost:8000/integrations/hubspot/oauth2callback")
}

func TestConfig_Defaults(t *testing.T) {
	setRequired(t)
	c := config.New()

	require.NoError(t, c.Validate())
	require.Equal(t, ":8000", c.GetPort())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, []string{"oauth"}, c.GetScopes())
	require.Equal(t, "https://app.hubspot.com/oauth/authorize", c.GetAuthURL())
	require.Equal(t, "https://api.hubapi.com/oauth/v1/token", c.GetTokenURL())
	require.Equal(t, 10*time.Second, c.GetHTTPTimeout())
	require.Equal(t, 600*time.Second, c.GetStateTTL())
	require.Equal(t, time.Hour, c.GetDefaultCredentialTTL())
	require.Equal(t, config.StoreDriverRedis, c.GetStoreDriver())
	require.Equal(t, 100, c.GetPageLimit())
	require.False(t, c.GetStrictFetch())
}

func TestConfig_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", ":9090")
	t.Setenv("HUBSPOT_SCOPES", "oauth, crm.objects.contacts.read")
	t.Setenv("HUBSPOT_API_BASE_URL", "http://127.0.0.1:1234/")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("STATE_TTL", "bogus")
	t.Setenv("HUBSPOT_STRICT_FETCH", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	c := config.New()

	require.Equal(t, ":9090", c.GetPort())
	require.Equal(t, []string{"oauth", "crm.objects.contacts.read"}, c.GetScopes())
	require.Equal(t, "http://127.0.0.1:1234", c.GetAPIBaseURL())
	require.Equal(t, 3*time.Second, c.GetHTTPTimeout())
	require.Equal(t, 600*time.Second, c.GetStateTTL())
	require.True(t, c.GetStrictFetch())
	require.True(t, c.GetAllowedOrigins().IsAllowedOrigin("https://b.example"))
	require.False(t, c.GetAllowedOrigins().IsAllowedOrigin("https://c.example"))
}

func TestConfig_ValidateMissingSecrets(t *testing.T) {
	t.Setenv("HUBSPOT_CLIENT_ID", "")
	t.Setenv("HUBSPOT_CLIENT_SECRET", "")
	t.Setenv("HUBSPOT_REDIRECT_URI", "")

	err := config.New().Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "HUBSPOT_CLIENT_ID")
	require.Contains(t, err.Error(), "HUBSPOT_CLIENT_SECRET")
	require.Contains(t, err.Error(), "HUBSPOT_REDIRECT_URI")
}

func TestConfig_ValidateStoreDriver(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_DRIVER", "etcd")

	require.Error(t, config.New().Validate())
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("HUBSPOT_TEST_ONLY_VAR=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("HUBSPOT_TEST_ONLY_VAR") })

	config.LoadEnvFiles(filepath.Join(dir, "missing.env"), file)

	require.Equal(t, "from-file", config.GetEnv("HUBSPOT_TEST_ONLY_VAR", ""))
}
