package syncx

import (
	"context"
	"time"

	"storefront_go/internal/api"
	"storefront_go/internal/domain"
	"storefront_go/internal/storage"
)

// ActionAddressChanged is published after address mutations.
const ActionAddressChanged = "address_changed"

// AddressStore synchronizes the user's delivery addresses. The exactly-one-
// default invariant is enforced optimistically: before the server answers a
// SetDefault, the flag has already moved to the target locally. A failed
// call is not rolled back; the next fetch repairs any divergence. Low
// stakes, self-healing.
type AddressStore struct {
	*Collection[domain.Address]
}

// NewAddressStore creates the address store.
func NewAddressStore(client *api.Client, kv storage.KeyValue, freshness time.Duration) *AddressStore {
	c := NewCollection[domain.Address](CollectionConfig{
		Name:         "addresses",
		CacheKey:     storage.KeyAddressesCache,
		Endpoint:     api.EndpointAddresses,
		RequiresAuth: true,
		Freshness:    freshness,
	}, client, kv)

	c.SetPreUpdateHook(func(items []domain.Address, id string, patch map[string]any) {
		if def, ok := patch["is_default"].(bool); ok && def {
			// Move the flag to the target in one pass so exactly one
			// default exists at every observable moment.
			for i := range items {
				items[i].IsDefault = items[i].ID == id
			}
		}
	})

	return &AddressStore{Collection: c}
}

// Add validates and creates an address. The server assigns the id.
func (s *AddressStore) Add(ctx context.Context, addr domain.Address) (domain.Address, error) {
	if err := addr.Validate(); err != nil {
		return domain.Address{}, err
	}
	return s.Create(ctx, addr)
}

// SetDefault makes id the sole default address.
func (s *AddressStore) SetDefault(ctx context.Context, id string) error {
	_, err := s.Update(ctx, id, map[string]any{"is_default": true})
	return err
}

// Default returns the current default address, if any.
func (s *AddressStore) Default() (domain.Address, bool) {
	for _, a := range s.Items() {
		if a.IsDefault {
			return a, true
		}
	}
	return domain.Address{}, false
}
