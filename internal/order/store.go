package order

import (
	"context"
	"errors"
	"time"
)

const (
	StatusConfirmed = "confirmed"

	// PriceLockTTL is shown to shoppers; the locked price itself never expires.
	PriceLockTTL = 10 * time.Minute
)

var ErrEmptyCart = errors.New("cart is empty")

type CartItem struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ProductID   string    `json:"product_id"`
	Name        string    `json:"product_name"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"image_url,omitempty"`
	Quantity    int       `json:"quantity"`
	LockedPrice float64   `json:"locked_price"`
	LockedUntil time.Time `json:"locked_until"`
	CreatedAt   time.Time `json:"created_at"`
}

type Cart struct {
	Items []CartItem `json:"items"`
	Total float64    `json:"total"`
}

type OrderItem struct {
	ProductID       string  `json:"product_id"`
	Name            string  `json:"product_name"`
	Quantity        int     `json:"quantity"`
	PriceAtPurchase float64 `json:"price_at_purchase"`
}

type Order struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Items       []OrderItem `json:"items"`
	TotalAmount float64     `json:"total_amount"`
	Status      string      `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
}

// NewOrder builds a confirmed order from the cart lines, carrying each
// locked price as the purchase price.
func NewOrder(id, userID string, lines []CartItem, now time.Time) (Order, error) {
	if len(lines) == 0 {
		return Order{}, ErrEmptyCart
	}

	items := make([]OrderItem, len(lines))
	for i, l := range lines {
		items[i] = OrderItem{
			ProductID:       l.ProductID,
			Name:            l.Name,
			Quantity:        l.Quantity,
			PriceAtPurchase: l.LockedPrice,
		}
	}

	return Order{
		ID:          id,
		UserID:      userID,
		Items:       items,
		TotalAmount: CartTotal(lines).InexactFloat64(),
		Status:      StatusConfirmed,
		CreatedAt:   now,
	}, nil
}

type Store interface {
	Ping(ctx context.Context) error

	AddCartItem(ctx context.Context, it CartItem) error
	CartItems(ctx context.Context, userID string) ([]CartItem, error)
	// RemoveCartItem reports false when the line does not exist or belongs
	// to another user.
	RemoveCartItem(ctx context.Context, userID, id string) (bool, error)

	// Checkout turns the user's cart into an order and empties the cart.
	// It returns ErrEmptyCart when there is nothing to buy.
	Checkout(ctx context.Context, userID, orderID string, now time.Time) (Order, error)
	Orders(ctx context.Context, userID string) ([]Order, error)
	Get(ctx context.Context, id string) (Order, bool, error)
}

func NewStore() Store {
	return NewMemStore()
}
