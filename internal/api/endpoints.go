package api

// Versioned endpoint paths, relative to the resolved base URL.
const (
	EndpointHealth = "/health"
	EndpointWS     = "/ws"

	EndpointLogin    = "/api/auth/login"
	EndpointRegister = "/api/auth/register"
	EndpointProfile  = "/api/auth/profile"

	EndpointProducts   = "/api/products"
	EndpointCategories = "/api/categories"

	EndpointCart          = "/api/cart"
	EndpointWishlist      = "/api/wishlist"
	EndpointOrders        = "/api/orders"
	EndpointAdminOrders   = "/api/admin/orders"
	EndpointAddresses     = "/api/addresses"
	EndpointNotifications = "/api/notifications"
	EndpointCoupons       = "/api/coupons"
	EndpointPayments      = "/api/payments"
)
