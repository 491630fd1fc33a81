package syncx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront_go/internal/api"
	"storefront_go/internal/domain"
	"storefront_go/internal/storage"
)

// Channel actions for the orders domain.
const (
	ActionOrderPlaced  = "order_placed"
	ActionOrderUpdated = "order_updated"
)

// OrdersStore synchronizes the user's order history. Order status is
// server-authoritative: the store only ever reflects the last fetched value.
type OrdersStore struct {
	*Collection[domain.Order]
	client *api.Client
}

// NewOrdersStore creates the orders store.
func NewOrdersStore(client *api.Client, kv storage.KeyValue, freshness time.Duration) *OrdersStore {
	c := NewCollection[domain.Order](CollectionConfig{
		Name:         "orders",
		CacheKey:     storage.KeyOrdersCache,
		Endpoint:     api.EndpointOrders,
		RequiresAuth: true,
		Freshness:    freshness,
	}, client, kv)
	// Placing an order is a distinct hint from status changes; other
	// sessions can tell a new order from an update to a known one.
	c.SetCreateHint(ActionOrderPlaced)
	return &OrdersStore{Collection: c, client: client}
}

// Checkout validates and places an order. A fresh idempotency key makes the
// create safe to submit again after an ambiguous network failure.
func (s *OrdersStore) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.Order, error) {
	if err := req.Validate(); err != nil {
		return domain.Order{}, err
	}
	return s.Create(ctx, req, api.WithHeader("Idempotency-Key", uuid.NewString()))
}

// CancelRequest asks the server to cancel a pending order. The new status
// arrives in the response; terminal orders are rejected locally first.
func (s *OrdersStore) CancelRequest(ctx context.Context, id string) (domain.Order, error) {
	if order, ok := s.GetByID(id); ok && order.Status.Terminal() {
		return domain.Order{}, &domain.ValidationError{Field: "status", Reason: fmt.Sprintf("order is already %s", order.Status)}
	}
	return s.Update(ctx, id, map[string]any{"status": string(domain.StatusCancelled)})
}

// AdminDelete removes an order through the admin back-office endpoint. The
// local item goes away only when the server confirms.
func (s *OrdersStore) AdminDelete(ctx context.Context, id string) error {
	if err := s.client.RequireToken(ctx); err != nil {
		return err
	}

	data, err := s.client.Delete(ctx, api.EndpointAdminOrders+"/"+id)
	if err != nil {
		return fmt.Errorf("failed to delete order %s: %w", id, err)
	}
	if !deleteConfirmed(data) {
		return fmt.Errorf("server declined to delete order %s", id)
	}

	s.removeLocal(ctx, id)
	s.publishHint(false)
	return nil
}

// AmountOwed recomputes the outstanding total across non-terminal orders on
// demand. Never cached: cross-cutting totals always derive from line items.
func (s *OrdersStore) AmountOwed() string {
	total := decimal.Zero
	for _, o := range s.Items() {
		if !o.Status.Terminal() {
			total = total.Add(o.Total())
		}
	}
	return total.StringFixed(2)
}
