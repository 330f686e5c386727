package config

import (
	"strconv"
	"time"
)

const (
	StoreDriverRedis  = "redis"
	StoreDriverMemory = "memory"
)

type StoreConfig interface {
	GetStoreDriver() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetKeyPrefix() string
	GetStateTTL() time.Duration
	GetDefaultCredentialTTL() time.Duration
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetStoreDriver() string {
	return GetEnv("STORE_DRIVER", StoreDriverRedis)
}

func (Store) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Store) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Store) GetRedisDB() int {
	db, err := strconv.Atoi(GetEnv("REDIS_DB", "0"))
	if err != nil {
		return 0
	}
	return db
}

func (Store) GetKeyPrefix() string {
	return GetEnv("STORE_KEY_PREFIX", "hubspot:")
}

func (Store) GetStateTTL() time.Duration {
	return getDuration("STATE_TTL", 600*time.Second)
}

// GetDefaultCredentialTTL applies when the token response carries no expires_in.
func (Store) GetDefaultCredentialTTL() time.Duration {
	return getDuration("CREDENTIAL_DEFAULT_TTL", time.Hour)
}
