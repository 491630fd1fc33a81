package domain

import "github.com/shopspring/decimal"

// CartItem is one product line in the user's cart. The product id doubles as
// the entity id: a product appears at most once, quantity carries the count.
type CartItem struct {
	ProductID       string          `json:"product_id"`
	ProductName     string          `json:"product_name"`
	Quantity        int             `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	Variant         string          `json:"variant,omitempty"`
	ImageURL        string          `json:"image_url,omitempty"`
	OfferPercentage decimal.Decimal `json:"offer_percentage,omitempty"`
}

func (c CartItem) EntityID() string { return c.ProductID }

// Subtotal is price times quantity for this line.
func (c CartItem) Subtotal() decimal.Decimal {
	return c.Price.Mul(decimal.NewFromInt(int64(c.Quantity)))
}

// WishlistItem is a saved product reference.
type WishlistItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url,omitempty"`
	InStock     bool            `json:"in_stock"`
}

func (w WishlistItem) EntityID() string { return w.ProductID }
