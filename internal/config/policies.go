package config

import (
	"time"

	"product-catalog/internal/resilience"
)

// Operation names. They key the policy table, metrics labels and log fields.
const (
	OpGetProduct    = "getProduct"
	OpGetProducts   = "getProducts"
	OpAddProduct    = "addProduct"
	OpUpdateRating  = "updateProductRating"
	OpDeleteProduct = "deleteProduct"
)

// Fallback policy values for operations missing from the table.
const (
	DefaultTimeout    = 2 * time.Second
	DefaultMaxRetries = 3
	DefaultBulkhead   = 5
)

// DefaultPolicies returns the built-in policy of every catalog operation.
func DefaultPolicies() map[string]resilience.Policy {
	return map[string]resilience.Policy{
		OpGetProduct:    resilience.NewPolicy(OpGetProduct, 2*time.Second, 3, 5),
		OpGetProducts:   resilience.NewPolicy(OpGetProducts, 5*time.Second, 3, 10),
		OpAddProduct:    resilience.NewPolicy(OpAddProduct, 2*time.Second, 3, 5),
		OpUpdateRating:  resilience.NewPolicy(OpUpdateRating, 2*time.Second, 3, 5),
		OpDeleteProduct: resilience.NewPolicy(OpDeleteProduct, 2*time.Second, 3, 5),
	}
}
