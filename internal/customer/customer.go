// Package customer is the read-only loyalty collaborator: it resolves a
// customer id to the points balance and tier the pricing engine checks.
package customer

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/roach88/till/internal/pricing"
)

// ErrNotFound is returned for an unknown customer id.
var ErrNotFound = errors.New("customer not found")

// Directory looks up customers.
type Directory interface {
	Lookup(ctx context.Context, id string) (*pricing.Customer, error)
}

// Memory is a Directory backed by a map. It is safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	customers map[string]pricing.Customer
}

// NewMemory returns a directory holding customers.
func NewMemory(customers ...pricing.Customer) *Memory {
	m := &Memory{customers: make(map[string]pricing.Customer, len(customers))}
	for _, c := range customers {
		m.customers[c.ID] = c
	}
	return m
}

// Put adds or replaces a customer.
func (m *Memory) Put(c pricing.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = c
}

// Lookup returns a copy of the customer.
func (m *Memory) Lookup(_ context.Context, id string) (*pricing.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

// Resolve looks up id, treating an empty id as an anonymous sale.
func Resolve(ctx context.Context, dir Directory, id string) (*pricing.Customer, error) {
	if strings.TrimSpace(id) == "" || dir == nil {
		return nil, nil
	}
	return dir.Lookup(ctx, id)
}
