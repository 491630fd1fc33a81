package syncx

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"storefront_go/internal/api"
	"storefront_go/internal/domain"
	"storefront_go/internal/storage"
)

// ActionCartChanged is published after cart mutations and listened for as a
// cross-session hint.
const ActionCartChanged = "cart_changed"

// CartStore synchronizes the user's cart. A product appears at most once;
// the product id is the entity id.
type CartStore struct {
	*Collection[domain.CartItem]
}

// NewCartStore creates the cart store.
func NewCartStore(client *api.Client, kv storage.KeyValue, freshness time.Duration) *CartStore {
	c := NewCollection[domain.CartItem](CollectionConfig{
		Name:         "cart",
		CacheKey:     storage.KeyCartCache,
		Endpoint:     api.EndpointCart,
		RequiresAuth: true,
		Freshness:    freshness,
	}, client, kv)
	return &CartStore{Collection: c}
}

// AddItem puts a product in the cart. Adding a product already present is a
// server-side quantity merge; the response reflects the merged line.
func (s *CartStore) AddItem(ctx context.Context, item domain.CartItem) (domain.CartItem, error) {
	if item.Quantity <= 0 {
		return domain.CartItem{}, &domain.ValidationError{Field: "quantity", Reason: "quantity must be positive"}
	}
	return s.Create(ctx, item)
}

// SetQuantity changes the quantity of a cart line. Use Remove to take a
// product out; zero is not a valid quantity.
func (s *CartStore) SetQuantity(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return &domain.ValidationError{Field: "quantity", Reason: "quantity must be positive"}
	}
	_, err := s.Update(ctx, productID, map[string]any{"quantity": qty})
	return err
}

// Remove deletes a product from the cart.
func (s *CartStore) Remove(ctx context.Context, productID string) error {
	return s.Delete(ctx, productID)
}

// Subtotal recomputes the cart total on demand.
func (s *CartStore) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.Items() {
		total = total.Add(it.Subtotal())
	}
	return total
}
