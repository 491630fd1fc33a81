package syncx

import (
	"context"
	"time"

	"storefront_go/internal/api"
	"storefront_go/internal/domain"
	"storefront_go/internal/storage"
)

// ActionWishlistChanged is published after wishlist mutations.
const ActionWishlistChanged = "wishlist_changed"

// WishlistStore synchronizes the user's saved products.
type WishlistStore struct {
	*Collection[domain.WishlistItem]
}

// NewWishlistStore creates the wishlist store.
func NewWishlistStore(client *api.Client, kv storage.KeyValue, freshness time.Duration) *WishlistStore {
	c := NewCollection[domain.WishlistItem](CollectionConfig{
		Name:         "wishlist",
		CacheKey:     storage.KeyWishlistCache,
		Endpoint:     api.EndpointWishlist,
		RequiresAuth: true,
		Freshness:    freshness,
	}, client, kv)
	return &WishlistStore{Collection: c}
}

// Add saves a product to the wishlist.
func (s *WishlistStore) Add(ctx context.Context, item domain.WishlistItem) (domain.WishlistItem, error) {
	return s.Create(ctx, item)
}

// Remove drops a product from the wishlist.
func (s *WishlistStore) Remove(ctx context.Context, productID string) error {
	return s.Delete(ctx, productID)
}

// Contains checks whether a product is saved. Local lookup only.
func (s *WishlistStore) Contains(productID string) bool {
	_, ok := s.GetByID(productID)
	return ok
}
