package secrets

import "context"

// Repository stores opaque (already encrypted) values under namespaced keys.
// Get returns (nil, nil) when the key is absent.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}
