package syncx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"storefront_go/internal/api"
	"storefront_go/internal/domain"
	"storefront_go/internal/realtime"
	"storefront_go/internal/storage"
)

func newBindWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestBindRefetchesOnHint(t *testing.T) {
	var gets int32
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&gets, 1)
		writeJSON(t, w, testAddresses())
	}))
	defer apiSrv.Close()

	wsSrv := newBindWSServer(t, func(conn *websocket.Conn) {
		// Drain auth and sync request, then push a hint from another
		// session of the same user.
		for i := 0; i < 2; i++ {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
		hint := realtime.Message{
			Type:      realtime.MsgUpdate,
			UserID:    "user-1",
			SessionID: "other-session",
			Action:    ActionAddressChanged,
		}
		raw, _ := json.Marshal(hint)
		if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			return
		}
		time.Sleep(2 * time.Second)
	})
	defer wsSrv.Close()

	col, _, _ := newAddressCollection(t, apiSrv.URL)

	ch := realtime.NewChannel(strings.Replace(wsSrv.URL, "http://", "ws://", 1),
		"user-1", realtime.SyncDomains{Cart: true, Wishlist: true, Profile: true}, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bind before starting so the hint cannot race the subscription.
	col.Bind(ctx, ch, ActionAddressChanged, ActionAddressChanged)
	defer col.Unbind()

	ch.Start(ctx)
	defer ch.Stop()

	waitUntil(t, 3*time.Second, func() bool { return atomic.LoadInt32(&gets) >= 1 })
	waitUntil(t, 3*time.Second, func() bool { return len(col.Items()) == 2 })
}

func TestMutationPublishesHint(t *testing.T) {
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(t, w, []domain.Address{})
		case http.MethodPost:
			var in domain.Address
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
				t.Errorf("decode create body: %v", err)
			}
			in.ID = "a9"
			writeJSON(t, w, in)
		}
	}))
	defer apiSrv.Close()

	var mu sync.Mutex
	var updates []realtime.Message
	wsSrv := newBindWSServer(t, func(conn *websocket.Conn) {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg realtime.Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Errorf("client sent bad JSON: %v", err)
				return
			}
			if msg.Type == realtime.MsgUpdate {
				mu.Lock()
				updates = append(updates, msg)
				mu.Unlock()
			}
		}
	})
	defer wsSrv.Close()

	kv := storage.NewMemoryStore()
	if err := kv.Set(context.Background(), storage.KeyAuthToken, "test-token"); err != nil {
		t.Fatalf("seed token: %v", err)
	}
	client := api.NewClient(api.Options{BaseURL: apiSrv.URL, Timeout: 5 * time.Second}, kv)
	store := NewAddressStore(client, kv, 5*time.Minute)

	ch := realtime.NewChannel(strings.Replace(wsSrv.URL, "http://", "ws://", 1),
		"user-1", realtime.SyncDomains{Profile: true}, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch.Start(ctx)
	defer ch.Stop()

	waitUntil(t, 2*time.Second, func() bool { return ch.State() == realtime.StateAuthenticated })

	store.Bind(ctx, ch, ActionAddressChanged)
	defer store.Unbind()

	if _, err := store.Add(ctx, testAddresses()[0]); err != nil {
		t.Fatalf("add: %v", err)
	}

	waitUntil(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(updates) >= 1
	})

	mu.Lock()
	defer mu.Unlock()
	if updates[0].Action != ActionAddressChanged {
		t.Errorf("expected %s hint, got %q", ActionAddressChanged, updates[0].Action)
	}
}

func TestCheckoutAndCancelPublishDistinctHints(t *testing.T) {
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(t, w, []domain.Order{})
		case http.MethodPost:
			var req domain.CheckoutRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode checkout: %v", err)
			}
			writeJSON(t, w, domain.Order{
				ID: "o1", Items: req.Items, Status: domain.StatusPending,
				PaymentMethod: req.PaymentMethod, ShippingAddress: req.ShippingAddress,
			})
		case http.MethodPut:
			writeJSON(t, w, domain.Order{ID: "o1", Status: domain.StatusCancelled})
		}
	}))
	defer apiSrv.Close()

	var mu sync.Mutex
	var actions []string
	wsSrv := newBindWSServer(t, func(conn *websocket.Conn) {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg realtime.Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Errorf("client sent bad JSON: %v", err)
				return
			}
			if msg.Type == realtime.MsgUpdate {
				mu.Lock()
				actions = append(actions, msg.Action)
				mu.Unlock()
			}
		}
	})
	defer wsSrv.Close()

	kv := storage.NewMemoryStore()
	if err := kv.Set(context.Background(), storage.KeyAuthToken, "test-token"); err != nil {
		t.Fatalf("seed token: %v", err)
	}
	client := api.NewClient(api.Options{BaseURL: apiSrv.URL, Timeout: 5 * time.Second}, kv)
	store := NewOrdersStore(client, kv, 5*time.Minute)

	ch := realtime.NewChannel(strings.Replace(wsSrv.URL, "http://", "ws://", 1),
		"user-1", realtime.SyncDomains{Profile: true}, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch.Start(ctx)
	defer ch.Stop()

	waitUntil(t, 2*time.Second, func() bool { return ch.State() == realtime.StateAuthenticated })

	store.Bind(ctx, ch, ActionOrderUpdated, ActionOrderPlaced, ActionOrderUpdated)
	defer store.Unbind()

	req := domain.CheckoutRequest{
		Items:           []domain.OrderLineItem{{ProductID: "p1", Quantity: 1}},
		PaymentMethod:   "cod",
		ShippingAddress: testAddresses()[0],
	}
	if _, err := store.Checkout(ctx, req); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if _, err := store.CancelRequest(ctx, "o1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	waitUntil(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(actions) >= 2
	})

	mu.Lock()
	defer mu.Unlock()
	if actions[0] != ActionOrderPlaced {
		t.Errorf("expected checkout to publish %s, got %q", ActionOrderPlaced, actions[0])
	}
	if actions[1] != ActionOrderUpdated {
		t.Errorf("expected cancel to publish %s, got %q", ActionOrderUpdated, actions[1])
	}
}

func TestBindUnbindConcurrentWithHints(t *testing.T) {
	col, _, _ := newAddressCollection(t, "http://127.0.0.1:1")
	ch := realtime.NewChannel("ws://127.0.0.1:1", "user-1", realtime.SyncDomains{}, time.Second)
	ctx := context.Background()

	// Bind, unbind and hint publishing race from different goroutines; the
	// channel is never started, so hints go nowhere and only the
	// collection's own state is exercised.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				col.Bind(ctx, ch, ActionAddressChanged, ActionAddressChanged)
				col.publishHint(false)
				col.publishHint(true)
				col.Unbind()
			}
		}()
	}
	wg.Wait()

	col.Unbind() // idempotent
}
