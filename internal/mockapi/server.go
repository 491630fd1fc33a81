// Package mockapi is an in-memory storefront backend for development and
// integration testing. It speaks the same REST and WebSocket protocol as the
// hosted API but keeps everything in process memory; restarting it resets
// all state.
package mockapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"storefront_go/internal/domain"
)

// Server holds the mock backend state. All handlers share one mutex; the
// mock is for development, not load.
type Server struct {
	mu     sync.Mutex
	tokens map[string]string // bearer token -> user id

	orders    []domain.Order
	addresses []domain.Address
	cart      []domain.CartItem
	wishlist  []domain.WishlistItem

	// placed maps Idempotency-Key values to the order id they created, so a
	// resubmitted checkout returns the original order instead of a duplicate.
	placed map[string]string

	hub    *hub
	router chi.Router
}

// NewServer creates a mock backend with an empty catalog of user data.
func NewServer() *Server {
	s := &Server{
		tokens: make(map[string]string),
		placed: make(map[string]string),
		hub:    newHub(),
	}
	s.routes()
	return s
}

// Handler returns the root http handler, REST routes plus the /ws upgrade.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWS)

	r.Post("/api/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/api/orders", s.handleListOrders)
		r.Post("/api/orders", s.handleCreateOrder)
		r.Put("/api/orders/{id}", s.handleUpdateOrder)
		r.Delete("/api/admin/orders/{id}", s.handleAdminDeleteOrder)

		r.Get("/api/addresses", s.handleListAddresses)
		r.Post("/api/addresses", s.handleCreateAddress)
		r.Put("/api/addresses/{id}", s.handleUpdateAddress)
		r.Delete("/api/addresses/{id}", s.handleDeleteAddress)

		r.Get("/api/cart", s.handleListCart)
		r.Post("/api/cart", s.handleAddCartItem)
		r.Put("/api/cart/{id}", s.handleUpdateCartItem)
		r.Delete("/api/cart/{id}", s.handleDeleteCartItem)

		r.Get("/api/wishlist", s.handleListWishlist)
		r.Post("/api/wishlist", s.handleAddWishlistItem)
		r.Delete("/api/wishlist/{id}", s.handleDeleteWishlistItem)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLogin accepts any email/password pair and issues a bearer token.
// The mock has no account database.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		respondErr(w, http.StatusBadRequest, "email and password are required")
		return
	}

	token := uuid.NewString()
	userID := "user-" + strings.SplitN(req.Email, "@", 2)[0]

	s.mu.Lock()
	s.tokens[token] = userID
	s.mu.Unlock()

	slog.Info("Mock login", slog.String("user", userID))
	respond(w, http.StatusOK, map[string]string{"token": token, "user_id": userID})
}

// requireAuth rejects requests without a known bearer token.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			respondErr(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		s.mu.Lock()
		_, ok := s.tokens[token]
		s.mu.Unlock()
		if !ok {
			respondErr(w, http.StatusUnauthorized, "unknown token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Orders

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := append([]domain.Order(nil), s.orders...)
	s.mu.Unlock()
	respond(w, http.StatusOK, out)
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErr(w, http.StatusBadRequest, "malformed checkout payload")
		return
	}
	if err := req.Validate(); err != nil {
		respondErr(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")

	s.mu.Lock()
	defer s.mu.Unlock()

	// A resubmission after an ambiguous failure replays the original order.
	if idemKey != "" {
		if id, ok := s.placed[idemKey]; ok {
			for _, o := range s.orders {
				if o.ID == id {
					respond(w, http.StatusOK, o)
					return
				}
			}
		}
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:              uuid.NewString(),
		UserID:          s.userForLocked(r),
		Items:           req.Items,
		PaymentMethod:   req.PaymentMethod,
		Status:          domain.StatusPending,
		ShippingAddress: req.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	order.TotalAmount = order.Total()

	s.orders = append(s.orders, order)
	if idemKey != "" {
		s.placed[idemKey] = order.ID
	}

	respond(w, http.StatusCreated, order)
}

// userForLocked resolves the requesting user from the bearer token. Caller
// holds mu; requireAuth already guaranteed the token is known.
func (s *Server) userForLocked(r *http.Request) string {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return s.tokens[token]
}

func (s *Server) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch struct {
		Status domain.OrderStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil || !patch.Status.Valid() {
		respondErr(w, http.StatusBadRequest, "unknown order status")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID != id {
			continue
		}
		if s.orders[i].Status.Terminal() {
			respondErr(w, http.StatusConflict, "order is already "+string(s.orders[i].Status))
			return
		}
		s.orders[i].Status = patch.Status
		s.orders[i].UpdatedAt = time.Now().UTC()
		respond(w, http.StatusOK, s.orders[i])
		return
	}
	respondErr(w, http.StatusNotFound, "order not found")
}

func (s *Server) handleAdminDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID == id {
			s.orders = append(s.orders[:i], s.orders[i+1:]...)
			respond(w, http.StatusOK, map[string]bool{"success": true})
			return
		}
	}
	respondErr(w, http.StatusNotFound, "order not found")
}

// Addresses

func (s *Server) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := append([]domain.Address(nil), s.addresses...)
	s.mu.Unlock()
	respond(w, http.StatusOK, out)
}

func (s *Server) handleCreateAddress(w http.ResponseWriter, r *http.Request) {
	var addr domain.Address
	if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
		respondErr(w, http.StatusBadRequest, "malformed address payload")
		return
	}
	if err := addr.Validate(); err != nil {
		respondErr(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	addr.ID = uuid.NewString()

	s.mu.Lock()
	if addr.IsDefault {
		for i := range s.addresses {
			s.addresses[i].IsDefault = false
		}
	}
	if len(s.addresses) == 0 {
		addr.IsDefault = true // first address becomes the default
	}
	s.addresses = append(s.addresses, addr)
	s.mu.Unlock()

	respond(w, http.StatusCreated, addr)
}

func (s *Server) handleUpdateAddress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondErr(w, http.StatusBadRequest, "malformed address patch")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.addresses {
		if s.addresses[i].ID != id {
			continue
		}
		if def, ok := patch["is_default"].(bool); ok && def {
			for j := range s.addresses {
				s.addresses[j].IsDefault = false
			}
			s.addresses[i].IsDefault = true
		}
		if name, ok := patch["full_name"].(string); ok && name != "" {
			s.addresses[i].FullName = name
		}
		if phone, ok := patch["phone_number"].(string); ok && phone != "" {
			s.addresses[i].PhoneNumber = phone
		}
		respond(w, http.StatusOK, s.addresses[i])
		return
	}
	respondErr(w, http.StatusNotFound, "address not found")
}

func (s *Server) handleDeleteAddress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.addresses {
		if s.addresses[i].ID == id {
			s.addresses = append(s.addresses[:i], s.addresses[i+1:]...)
			respond(w, http.StatusOK, map[string]bool{"success": true})
			return
		}
	}
	respondErr(w, http.StatusNotFound, "address not found")
}

// Cart

func (s *Server) handleListCart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := append([]domain.CartItem(nil), s.cart...)
	s.mu.Unlock()
	respond(w, http.StatusOK, out)
}

// handleAddCartItem merges a duplicate product into the existing line.
func (s *Server) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var item domain.CartItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil || item.ProductID == "" {
		respondErr(w, http.StatusBadRequest, "malformed cart payload")
		return
	}
	if item.Quantity <= 0 {
		respondErr(w, http.StatusUnprocessableEntity, "quantity must be positive")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cart {
		if s.cart[i].ProductID == item.ProductID {
			s.cart[i].Quantity += item.Quantity
			respond(w, http.StatusOK, s.cart[i])
			return
		}
	}
	s.cart = append(s.cart, item)
	respond(w, http.StatusCreated, item)
}

func (s *Server) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil || patch.Quantity <= 0 {
		respondErr(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cart {
		if s.cart[i].ProductID == id {
			s.cart[i].Quantity = patch.Quantity
			respond(w, http.StatusOK, s.cart[i])
			return
		}
	}
	respondErr(w, http.StatusNotFound, "product not in cart")
}

func (s *Server) handleDeleteCartItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cart {
		if s.cart[i].ProductID == id {
			s.cart = append(s.cart[:i], s.cart[i+1:]...)
			respond(w, http.StatusOK, map[string]bool{"success": true})
			return
		}
	}
	respondErr(w, http.StatusNotFound, "product not in cart")
}

// Wishlist

func (s *Server) handleListWishlist(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := append([]domain.WishlistItem(nil), s.wishlist...)
	s.mu.Unlock()
	respond(w, http.StatusOK, out)
}

func (s *Server) handleAddWishlistItem(w http.ResponseWriter, r *http.Request) {
	var item domain.WishlistItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil || item.ProductID == "" {
		respondErr(w, http.StatusBadRequest, "malformed wishlist payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.wishlist {
		if it.ProductID == item.ProductID {
			respond(w, http.StatusOK, it) // idempotent save
			return
		}
	}
	s.wishlist = append(s.wishlist, item)
	respond(w, http.StatusCreated, item)
}

func (s *Server) handleDeleteWishlistItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.wishlist {
		if s.wishlist[i].ProductID == id {
			s.wishlist = append(s.wishlist[:i], s.wishlist[i+1:]...)
			respond(w, http.StatusOK, map[string]bool{"success": true})
			return
		}
	}
	respondErr(w, http.StatusNotFound, "product not in wishlist")
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Response encode failed", slog.Any("error", err))
	}
}

func respondErr(w http.ResponseWriter, status int, msg string) {
	respond(w, status, map[string]string{"error": msg})
}
