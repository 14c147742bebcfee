package core

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sync"

	"afyacare.app/client/internal/backend"
	"afyacare.app/client/internal/store"
)

// CartService keeps the web cart in the token store under cartItems.
type CartService struct {
	catalog *CatalogService
	kv      store.TokenStore
	logger  *slog.Logger

	// serialises read-modify-write of the stored array
	mu sync.Mutex
}

func NewCartService(catalog *CatalogService, kv store.TokenStore, logger *slog.Logger) *CartService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartService{catalog: catalog, kv: kv, logger: logger}
}

func (s *CartService) load(ctx context.Context) ([]store.CartItem, error) {
	var items []store.CartItem
	if _, err := store.GetJSON(ctx, s.kv, store.KeyCartItems, &items); err != nil {
		// A corrupt cart is dropped rather than blocking the shop.
		s.logger.Warn("Stored cart unreadable, starting empty", "error", err)
		return []store.CartItem{}, nil
	}
	if items == nil {
		items = []store.CartItem{}
	}
	return items, nil
}

func (s *CartService) save(ctx context.Context, items []store.CartItem) error {
	if err := store.SetJSON(ctx, s.kv, store.KeyCartItems, items); err != nil {
		return fmt.Errorf("failed to store cart: %w", err)
	}
	return nil
}

func (s *CartService) Items(ctx context.Context) ([]store.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Add puts qty of m in the cart, merging with an existing line.
func (s *CartService) Add(ctx context.Context, m store.Medicine, qty int) ([]store.CartItem, error) {
	if qty <= 0 {
		return nil, &backend.ValidationError{Field: "quantity", Message: "must be at least 1"}
	}
	if m.ID == 0 {
		return nil, &backend.ValidationError{Field: "id", Message: "unknown medicine"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	merged := false
	for i := range items {
		if items[i].MedicineID == m.ID {
			items[i].Quantity += qty
			merged = true
			break
		}
	}
	if !merged {
		items = append(items, store.CartItem{MedicineID: m.ID, Name: m.Name, Price: m.Price, Quantity: qty})
	}
	if err := s.save(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// SetQuantity changes a line's quantity; zero or less removes it.
func (s *CartService) SetQuantity(ctx context.Context, medicineID int64, qty int) ([]store.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := items[:0]
	for _, it := range items {
		if it.MedicineID == medicineID {
			if qty <= 0 {
				continue
			}
			it.Quantity = qty
		}
		out = append(out, it)
	}
	if err := s.save(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *CartService) Remove(ctx context.Context, medicineID int64) ([]store.CartItem, error) {
	return s.SetQuantity(ctx, medicineID, 0)
}

func (s *CartService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, store.KeyCartItems); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// Total is the sum of price times quantity, rounded to cents.
func Total(items []store.CartItem) float64 {
	var sum float64
	for _, it := range items {
		sum += it.Price * float64(it.Quantity)
	}
	return math.Round(sum*100) / 100
}

func (s *CartService) Total(ctx context.Context) (float64, error) {
	items, err := s.Items(ctx)
	if err != nil {
		return 0, err
	}
	return Total(items), nil
}

// Checkout posts the cart as an order. The cart is cleared only once the
// backend has accepted it.
func (s *CartService) Checkout(ctx context.Context) (*store.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &backend.ValidationError{Message: "cart is empty"}
	}

	order := store.Order{Items: items, Total: Total(items)}
	var placed store.Order
	if err := s.catalog.call(ctx, backend.Request{Method: http.MethodPost, Path: "/api/order/", Body: order}, &placed); err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}
	if placed.Items == nil {
		placed.Items = order.Items
	}
	if placed.Total == 0 {
		placed.Total = order.Total
	}

	if err := s.kv.Delete(ctx, store.KeyCartItems); err != nil {
		s.logger.Error("Order placed but cart could not be cleared", "order_id", placed.ID, "error", err)
	}
	s.logger.Info("Order placed", "order_id", placed.ID, "items", len(items), "total", placed.Total)
	return &placed, nil
}
