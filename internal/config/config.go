package config

import (
	"errors"
	"fmt"
	"strings"
)

type Config interface {
	EnvConfig
	CorsConfig
	HubSpotConfig
	StoreConfig
	Validate() error
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	HubSpot
	Store
}

func New() Config {
	return mainConfig{}
}

// Validate reports every missing required setting at once so a misconfigured
// deployment fails at startup rather than on the first callback.
func (c mainConfig) Validate() error {
	var missing []string
	if c.GetClientID() == "" {
		missing = append(missing, clientIDVar)
	}
	if c.GetClientSecret() == "" {
		missing = append(missing, clientSecretVar)
	}
	if c.GetRedirectURI() == "" {
		missing = append(missing, redirectURIVar)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	switch c.GetStoreDriver() {
	case StoreDriverRedis, StoreDriverMemory:
	default:
		return errors.New("STORE_DRIVER must be 'redis' or 'memory'")
	}
	if c.GetHTTPTimeout() <= 0 {
		return errors.New("HTTP_TIMEOUT must be positive")
	}
	return nil
}
