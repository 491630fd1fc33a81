package storage

import "context"

// KeyValue is the durable key-value persistence service backing cached
// collections and the auth token. Keys are independent; there is no
// cross-key transactional guarantee.
type KeyValue interface {
	// Get returns the stored value, or "" if the key does not exist.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Well-known keys. Each domain store is the sole writer of its cache key.
const (
	KeyAuthToken      = "auth_token"
	KeyOrdersCache    = "orders_cache"
	KeyAddressesCache = "addresses_cache"
	KeyCartCache      = "cart_cache"
	KeyWishlistCache  = "wishlist_cache"
)
