package order

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

type MemStore struct {
	mu     sync.RWMutex
	cart   map[string][]CartItem
	orders map[string]Order
}

func NewMemStore() *MemStore {
	return &MemStore{
		cart:   map[string][]CartItem{},
		orders: map[string]Order{},
	}
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) AddCartItem(ctx context.Context, it CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart[it.UserID] = append(s.cart[it.UserID], it)
	return nil
}

func (s *MemStore) CartItems(ctx context.Context, userID string) ([]CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.cart[userID]), nil
}

func (s *MemStore) RemoveCartItem(ctx context.Context, userID, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.cart[userID]
	i := slices.IndexFunc(lines, func(l CartItem) bool { return l.ID == id })
	if i < 0 {
		return false, nil
	}
	s.cart[userID] = slices.Delete(lines, i, i+1)
	return true, nil
}

func (s *MemStore) Checkout(ctx context.Context, userID, orderID string, now time.Time) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := NewOrder(orderID, userID, s.cart[userID], now)
	if err != nil {
		return Order{}, err
	}
	s.orders[o.ID] = o
	delete(s.cart, userID)
	return o, nil
}

func (s *MemStore) Orders(ctx context.Context, userID string) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Order, 0)
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *MemStore) Get(ctx context.Context, id string) (Order, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	return o, ok, nil
}
