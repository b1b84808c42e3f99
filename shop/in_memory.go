package shop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemory implements Catalog and Orders with process-local slices. Safe for
// concurrent use.
type InMemory struct {
	mu       sync.RWMutex
	products []Product
	orders   []Order
}

// NewInMemory constructs an empty in-memory shop.
func NewInMemory() *InMemory { return &InMemory{} }

// SeedOrder inserts an order directly, bypassing any business rules. Test
// and demo helper.
func (s *InMemory) SeedOrder(o Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	s.orders = append(s.orders, o)
}

// ListProducts implements Catalog.
func (s *InMemory) ListProducts(ctx context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

// CreateProduct implements Catalog.
func (s *InMemory) CreateProduct(ctx context.Context, p Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.SKU == "" {
		p.SKU = fmt.Sprintf("KB-%d", time.Now().UnixMilli())
	}
	s.products = append(s.products, p)
	return p, nil
}

// ListOrders implements Orders.
func (s *InMemory) ListOrders(ctx context.Context) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Order, len(s.orders))
	copy(out, s.orders)
	return out, nil
}

// UpdateStatus implements Orders.
func (s *InMemory) UpdateStatus(ctx context.Context, id, status string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID == id {
			s.orders[i].Status = status
			return s.orders[i], nil
		}
	}
	return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
}

var (
	_ Catalog = (*InMemory)(nil)
	_ Orders  = (*InMemory)(nil)
)
