package transient

import (
	"context"
	"time"
)

type prefixedStore struct {
	store  Store
	prefix string
}

func (p prefixedStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return p.store.Put(ctx, p.prefix+key, value, ttl)
}

func (p prefixedStore) Get(ctx context.Context, key string) (string, error) {
	return p.store.Get(ctx, p.prefix+key)
}

func (p prefixedStore) Delete(ctx context.Context, key string) error {
	return p.store.Delete(ctx, p.prefix+key)
}
