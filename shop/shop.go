// Package shop defines the catalog and order collaborators the agent's
// capabilities mutate. The durable implementation lives in store/sqlite; the
// in-memory one here backs tests and demos.
package shop

import (
	"context"
	"errors"
	"time"
)

// ErrOrderNotFound is returned by UpdateStatus for unknown order ids.
var ErrOrderNotFound = errors.New("order not found")

// Product is one catalog record.
type Product struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Price             float64   `json:"price"`
	ImageURL          string    `json:"image_url,omitempty"`
	PrintfulProductID string    `json:"printful_product_id,omitempty"`
	SKU               string    `json:"sku,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Order is one customer order record.
type Order struct {
	ID            string    `json:"id"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	Status        string    `json:"status"`
	Total         float64   `json:"total"`
	CreatedAt     time.Time `json:"created_at"`
}

// Catalog reads and mutates product records.
type Catalog interface {
	ListProducts(ctx context.Context) ([]Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
}

// Orders reads and mutates order records.
type Orders interface {
	ListOrders(ctx context.Context) ([]Order, error)
	UpdateStatus(ctx context.Context, id, status string) (Order, error)
}
