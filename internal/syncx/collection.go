// Package syncx implements the client-side data synchronization layer: a
// cached, periodically refreshed collection per domain, persisted to the
// key-value store and reconciled with the remote API.
//
// One generic Collection carries the freshness window, single-flight guard
// and persistence logic for every domain; the per-domain stores in this
// package only add endpoints and invariants.
package syncx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"storefront_go/internal/api"
	"storefront_go/internal/domain"
	"storefront_go/internal/realtime"
	"storefront_go/internal/storage"
)

// PreUpdateHook mutates local items before an update is sent, typically to
// optimistically maintain a uniqueness invariant (a new default address
// takes the flag from every other address). Hooks are never rolled back on
// failure: the next full fetch repairs any divergence.
type PreUpdateHook[T domain.Entity] func(items []T, id string, patch map[string]any)

// CollectionConfig describes one synchronized domain.
type CollectionConfig struct {
	// Name is the collection field inside the persisted envelope.
	Name string
	// CacheKey is this collection's key in the key-value store. The
	// collection is the sole writer of that key.
	CacheKey string
	// Endpoint is the REST base path; item paths are Endpoint + "/" + id.
	Endpoint string
	// RequiresAuth short-circuits every operation with ErrAuthRequired when
	// no token is stored.
	RequiresAuth bool
	// Freshness is how long a successful fetch suppresses the next one.
	Freshness time.Duration
}

// Collection is a cached remote collection of T. All exported methods are
// safe for concurrent use.
type Collection[T domain.Entity] struct {
	cfg    CollectionConfig
	client *api.Client
	kv     storage.KeyValue

	mu         sync.Mutex
	items      []T
	lastFetch  time.Time
	lastFailed bool
	fetching   bool

	initOnce sync.Once
	initErr  error

	preUpdate PreUpdateHook[T]

	ch        *realtime.Channel
	pubOn     string
	pubCreate string
	unhint    func()

	now func() time.Time // injectable clock
}

// NewCollection creates a collection. It performs no I/O; call Init to
// hydrate from the persisted envelope or the network.
func NewCollection[T domain.Entity](cfg CollectionConfig, client *api.Client, kv storage.KeyValue) *Collection[T] {
	if cfg.Freshness <= 0 {
		cfg.Freshness = 5 * time.Minute
	}
	return &Collection[T]{
		cfg:    cfg,
		client: client,
		kv:     kv,
		now:    time.Now,
	}
}

// SetPreUpdateHook installs the optimistic invariant hook.
func (c *Collection[T]) SetPreUpdateHook(fn PreUpdateHook[T]) {
	c.preUpdate = fn
}

// SetCreateHint overrides the action published after Create. Updates and
// deletes keep publishing the Bind action.
func (c *Collection[T]) SetCreateHint(action string) {
	c.mu.Lock()
	c.pubCreate = action
	c.mu.Unlock()
}

// Init runs at most once per collection instance. It hydrates from a
// previously persisted envelope when one exists and is still fresh;
// otherwise it fetches. Repeated calls return the first outcome, which
// prevents fetch-on-mount storms.
func (c *Collection[T]) Init(ctx context.Context) error {
	c.initOnce.Do(func() {
		raw, err := c.kv.Get(ctx, c.cfg.CacheKey)
		if err != nil {
			slog.Warn("Cache read failed", slog.String("collection", c.cfg.Name), slog.Any("error", err))
		}

		items, ts, err := storage.DecodeEnvelope[T](c.cfg.Name, raw)
		if err != nil {
			slog.Warn("Discarding unreadable cache envelope", slog.String("collection", c.cfg.Name), slog.Any("error", err))
		} else if len(items) > 0 && c.now().Sub(ts) < c.cfg.Freshness {
			c.mu.Lock()
			c.items = items
			c.lastFetch = ts
			c.mu.Unlock()
			slog.Debug("Hydrated from cache", slog.String("collection", c.cfg.Name), slog.Int("items", len(items)))
			return
		}

		c.initErr = c.FetchAll(ctx)
	})
	return c.initErr
}

// FetchAll refreshes the collection from the remote API.
//
// It is a no-op while the cached copy is fresh and non-empty, and while
// another fetch is already in flight (the concurrent call is dropped, not
// queued). On failure the collection degrades to empty rather than stale,
// and the fetch timestamp still advances to suppress retry storms.
func (c *Collection[T]) FetchAll(ctx context.Context) error {
	c.mu.Lock()
	if c.fetching {
		c.mu.Unlock()
		return nil
	}
	// Cache hit: fresh and populated. A failed fetch also counts as fresh
	// (with empty items) so an outage doesn't turn every render into a
	// retry storm. A successful fetch that returned nothing refetches.
	if !c.lastFetch.IsZero() && c.now().Sub(c.lastFetch) < c.cfg.Freshness &&
		(len(c.items) > 0 || c.lastFailed) {
		c.mu.Unlock()
		return nil
	}
	c.fetching = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.fetching = false
		c.mu.Unlock()
	}()

	if err := c.authCheck(ctx); err != nil {
		return err
	}

	data, fetchErr := c.client.Get(ctx, c.cfg.Endpoint)

	var fetched []T
	if fetchErr == nil {
		if err := json.Unmarshal(data, &fetched); err != nil {
			fetchErr = &api.ParseError{Endpoint: c.cfg.Endpoint, Err: err}
		}
	}

	now := c.now()
	if fetchErr != nil {
		c.mu.Lock()
		c.items = nil
		c.lastFetch = now
		c.lastFailed = true
		c.mu.Unlock()
		return fmt.Errorf("failed to fetch %s: %w", c.cfg.Name, fetchErr)
	}

	c.mu.Lock()
	c.items = dedupe(fetched)
	c.lastFetch = now
	c.lastFailed = false
	c.mu.Unlock()

	c.persist(ctx)
	return nil
}

// Create POSTs the body and appends the server-returned entity. There is no
// optimistic insert: the server assigns the id.
func (c *Collection[T]) Create(ctx context.Context, body any, opts ...api.ReqOption) (T, error) {
	var zero T

	if err := c.authCheck(ctx); err != nil {
		return zero, err
	}

	data, err := c.client.Post(ctx, c.cfg.Endpoint, body, opts...)
	if err != nil {
		return zero, fmt.Errorf("failed to create %s entry: %w", c.cfg.Name, err)
	}

	var created T
	if err := json.Unmarshal(data, &created); err != nil {
		return zero, &api.ParseError{Endpoint: c.cfg.Endpoint, Err: err}
	}

	c.mu.Lock()
	c.upsertLocked(created)
	c.mu.Unlock()

	c.persist(ctx)
	c.publishHint(true)
	return created, nil
}

// Update PUTs a patch for id, then merges the server's entity into the
// matching local item. The pre-update hook runs optimistically first and is
// not rolled back on failure; the next fetch self-heals.
func (c *Collection[T]) Update(ctx context.Context, id string, patch map[string]any) (T, error) {
	var zero T

	if err := c.authCheck(ctx); err != nil {
		return zero, err
	}

	if c.preUpdate != nil {
		c.mu.Lock()
		c.preUpdate(c.items, id, patch)
		c.mu.Unlock()
		c.persist(ctx)
	}

	data, err := c.client.Put(ctx, c.cfg.Endpoint+"/"+id, patch)
	if err != nil {
		return zero, fmt.Errorf("failed to update %s %s: %w", c.cfg.Name, id, err)
	}

	var updated T
	if err := json.Unmarshal(data, &updated); err != nil {
		return zero, &api.ParseError{Endpoint: c.cfg.Endpoint, Err: err}
	}

	c.mu.Lock()
	c.upsertLocked(updated)
	c.mu.Unlock()

	c.persist(ctx)
	c.publishHint(false)
	return updated, nil
}

// Delete removes id remotely, then locally only when the server confirms.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	if err := c.authCheck(ctx); err != nil {
		return err
	}

	data, err := c.client.Delete(ctx, c.cfg.Endpoint+"/"+id)
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", c.cfg.Name, id, err)
	}
	if !deleteConfirmed(data) {
		return fmt.Errorf("server declined to delete %s %s", c.cfg.Name, id)
	}

	c.removeLocal(ctx, id)
	c.publishHint(false)
	return nil
}

// GetByID is a pure local lookup. Collections hold tens of items; the linear
// scan is fine.
func (c *Collection[T]) GetByID(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, it := range c.items {
		if it.EntityID() == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Items returns a copy of the current collection in server order.
func (c *Collection[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// LastFetch returns the last fetch instant (successful or failed).
func (c *Collection[T]) LastFetch() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFetch
}

// Invalidate zeroes the freshness timestamp so the next FetchAll hits the
// network.
func (c *Collection[T]) Invalidate() {
	c.mu.Lock()
	c.lastFetch = time.Time{}
	c.lastFailed = false
	c.mu.Unlock()
}

// Bind connects the collection to the real-time channel. Mutations publish
// publishAction as a fire-and-forget hint; inbound updates matching one of
// hintActions invalidate freshness and trigger a refetch. Hints are an
// optimization only: dropped messages cost nothing but staleness until the
// next fetch.
func (c *Collection[T]) Bind(ctx context.Context, ch *realtime.Channel, publishAction string, hintActions ...string) {
	actions := make(map[string]bool, len(hintActions))
	for _, a := range hintActions {
		actions[a] = true
	}

	unhint := ch.Subscribe(func(msg realtime.Message) {
		if msg.Type != realtime.MsgUpdate || !actions[msg.Action] {
			return
		}
		c.Invalidate()
		go func() {
			if err := c.FetchAll(ctx); err != nil {
				slog.Debug("Hint-triggered refetch failed", slog.String("collection", c.cfg.Name), slog.Any("error", err))
			}
		}()
	})

	c.mu.Lock()
	c.ch = ch
	c.pubOn = publishAction
	c.unhint = unhint
	c.mu.Unlock()
}

// Unbind detaches the collection from the channel.
func (c *Collection[T]) Unbind() {
	c.mu.Lock()
	unhint := c.unhint
	c.unhint = nil
	c.ch = nil
	c.mu.Unlock()

	if unhint != nil {
		unhint()
	}
}

func (c *Collection[T]) authCheck(ctx context.Context) error {
	if !c.cfg.RequiresAuth {
		return nil
	}
	return c.client.RequireToken(ctx)
}

// upsertLocked replaces the item with a matching id or appends. Keeps the
// no-duplicate-id invariant. Caller holds mu.
func (c *Collection[T]) upsertLocked(item T) {
	for i, it := range c.items {
		if it.EntityID() == item.EntityID() {
			c.items[i] = item
			return
		}
	}
	c.items = append(c.items, item)
}

func (c *Collection[T]) removeLocal(ctx context.Context, id string) {
	c.mu.Lock()
	kept := c.items[:0]
	for _, it := range c.items {
		if it.EntityID() != id {
			kept = append(kept, it)
		}
	}
	c.items = kept
	c.mu.Unlock()

	c.persist(ctx)
}

// persist writes the envelope snapshot. Persistence is best-effort: a failed
// write costs a refetch on next start, never a failed operation.
func (c *Collection[T]) persist(ctx context.Context) {
	c.mu.Lock()
	items := make([]T, len(c.items))
	copy(items, c.items)
	ts := c.lastFetch
	c.mu.Unlock()

	raw, err := storage.EncodeEnvelope(c.cfg.Name, items, ts)
	if err != nil {
		slog.Warn("Envelope encode failed", slog.String("collection", c.cfg.Name), slog.Any("error", err))
		return
	}
	if err := c.kv.Set(ctx, c.cfg.CacheKey, raw); err != nil {
		slog.Warn("Envelope persist failed", slog.String("collection", c.cfg.Name), slog.Any("error", err))
	}
}

// publishHint sends the fire-and-forget change hint. onCreate selects the
// create action when one is configured.
func (c *Collection[T]) publishHint(onCreate bool) {
	c.mu.Lock()
	ch := c.ch
	action := c.pubOn
	if onCreate && c.pubCreate != "" {
		action = c.pubCreate
	}
	c.mu.Unlock()

	if ch == nil || action == "" {
		return
	}
	ch.Publish(action, map[string]any{"collection": c.cfg.Name})
}

func dedupe[T domain.Entity](items []T) []T {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, it := range items {
		if seen[it.EntityID()] {
			continue
		}
		seen[it.EntityID()] = true
		out = append(out, it)
	}
	return out
}

// deleteConfirmed interprets the delete response body. An empty 2xx body or
// {"success": true} confirms; an explicit {"success": false} declines.
func deleteConfirmed(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	var body struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return true // non-JSON 2xx body still counts as success
	}
	return body.Success == nil || *body.Success
}
