package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is server-authoritative. The client only reflects the last
// known value until the next fetch; it never advances a status locally.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the order can no longer change state.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// OrderLineItem is an immutable snapshot of product state at order time.
// It is never re-fetched from the live product catalog.
type OrderLineItem struct {
	ProductID       string          `json:"product_id"`
	ProductName     string          `json:"product_name"`
	Quantity        int             `json:"quantity"`
	PriceAtTime     decimal.Decimal `json:"price_at_time"`
	Variant         string          `json:"variant,omitempty"`
	ImageURL        string          `json:"image_url,omitempty"`
	Category        string          `json:"category,omitempty"`
	Description     string          `json:"description,omitempty"`
	OfferPercentage decimal.Decimal `json:"offer_percentage,omitempty"`
}

// Order is created server-side on checkout and surfaced to the client via
// fetch or the creation response.
type Order struct {
	ID                   string          `json:"id"`
	UserID               string          `json:"user_id"`
	Items                []OrderLineItem `json:"items"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	PaymentMethod        string          `json:"payment_method"`
	PaymentMethodDisplay string          `json:"payment_method_display,omitempty"`
	Status               OrderStatus     `json:"status"`
	ShippingAddress      Address         `json:"shipping_address"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
	DiscountAmount       decimal.Decimal `json:"discount_amount,omitempty"`
	DeliveryCharge       decimal.Decimal `json:"delivery_charge,omitempty"`
}

func (o Order) EntityID() string { return o.ID }

// Total recomputes the payable amount from line items plus delivery minus
// discount. Recomputed on demand, never cached across contexts.
func (o Order) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.PriceAtTime.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum.Add(o.DeliveryCharge).Sub(o.DiscountAmount)
}

// PaymentMethods accepted at checkout.
var PaymentMethods = map[string]string{
	"cod":    "Cash on Delivery",
	"card":   "Credit / Debit Card",
	"upi":    "UPI",
	"wallet": "Wallet",
}

// CheckoutRequest is the client payload for order creation. The server
// assigns the id, so creates are never applied optimistically.
type CheckoutRequest struct {
	Items           []OrderLineItem `json:"items"`
	PaymentMethod   string          `json:"payment_method"`
	ShippingAddress Address         `json:"shipping_address"`
	CouponCode      string          `json:"coupon_code,omitempty"`
}

// Validate runs client-side checks before any network call.
func (r CheckoutRequest) Validate() error {
	if len(r.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "order must contain at least one item"}
	}
	for _, it := range r.Items {
		if it.Quantity <= 0 {
			return &ValidationError{Field: "quantity", Reason: "quantity must be positive"}
		}
	}
	if _, ok := PaymentMethods[r.PaymentMethod]; !ok {
		return &ValidationError{Field: "payment_method", Reason: "unknown payment method: " + r.PaymentMethod}
	}
	return r.ShippingAddress.Validate()
}
