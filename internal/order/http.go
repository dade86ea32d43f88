package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"FomoStore/internal/catalog"
	"FomoStore/internal/fomo"
	"FomoStore/pkg/kit"
)

const maxQuantity = 99

// ProductSource looks up catalog products. *catalog.Client satisfies it.
type ProductSource interface {
	Get(ctx context.Context, id string) (catalog.Product, error)
}

type Server struct {
	Store   Store
	Catalog ProductSource
	Log     *zap.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

type addCartReq struct {
	ProductID   string  `json:"product_id"`
	Quantity    *int    `json:"quantity"`
	LockedPrice float64 `json:"locked_price"`
}

var (
	errBadItem         = errors.New("bad item")
	errInvalidProduct  = errors.New("invalid product_id")
	errInactiveProduct = errors.New("product is not on sale")
	errPriceOutOfRange = errors.New("locked_price out of range")
	errCatalogDown     = errors.New("catalog unavailable")
	errCatalogUpstream = errors.New("catalog error")
)

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return
	}

	var req addCartReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	pid := strings.TrimSpace(req.ProductID)
	if pid == "" || qty <= 0 || qty > maxQuantity {
		s.writeCartError(w, r, errBadItem)
		return
	}

	p, err := s.lookup(r.Context(), pid)
	if err != nil {
		s.writeCartError(w, r, err)
		return
	}
	if err := checkLockedPrice(p, req.LockedPrice); err != nil {
		s.writeCartError(w, r, err)
		return
	}

	now := s.now()
	it := CartItem{
		ID:          "c_" + uuid.NewString(),
		UserID:      u.ID,
		ProductID:   p.ID,
		Name:        p.Name,
		Category:    p.Category,
		ImageURL:    p.ImageURL,
		Quantity:    qty,
		LockedPrice: fomo.Round2(req.LockedPrice),
		LockedUntil: now.Add(PriceLockTTL),
		CreatedAt:   now,
	}

	if err := s.Store.AddCartItem(r.Context(), it); err != nil {
		s.writeStoreError(w, r, "add cart item", err)
		return
	}

	s.logger().Info("price locked",
		zap.String("user_id", u.ID),
		zap.String("product_id", p.ID),
		zap.Float64("locked_price", it.LockedPrice),
		zap.Int("quantity", qty),
	)
	kit.WriteJSON(w, http.StatusCreated, it)
}

func (s *Server) lookup(ctx context.Context, id string) (catalog.Product, error) {
	p, err := s.Catalog.Get(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, catalog.ErrNotFound):
		return catalog.Product{}, errInvalidProduct
	case errors.Is(err, catalog.ErrUnavailable):
		return catalog.Product{}, errCatalogDown
	default:
		s.logger().Warn("catalog error", zap.Error(err), zap.String("product_id", id))
		return catalog.Product{}, errCatalogUpstream
	}

	if !p.IsActive {
		return catalog.Product{}, errInactiveProduct
	}
	return p, nil
}

// checkLockedPrice accepts any price the simulator could have displayed:
// from the base price up to the cap.
func checkLockedPrice(p catalog.Product, price float64) error {
	if price < p.BasePrice || price > fomo.PriceCap(p.BasePrice) {
		return fmt.Errorf("%w: %.2f not in [%.2f, %.2f]",
			errPriceOutOfRange, price, p.BasePrice, fomo.PriceCap(p.BasePrice))
	}
	return nil
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return
	}

	lines, err := s.Store.CartItems(r.Context(), u.ID)
	if err != nil {
		s.writeStoreError(w, r, "list cart", err)
		return
	}

	kit.WriteJSON(w, http.StatusOK, Cart{Items: lines, Total: CartTotal(lines).InexactFloat64()})
}

func (s *Server) removeFromCart(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return
	}

	id := chi.URLParam(r, "id")
	found, err := s.Store.RemoveCartItem(r.Context(), u.ID, id)
	if err != nil {
		s.writeStoreError(w, r, "remove cart item", err)
		return
	}
	if !found {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return
	}

	o, err := s.Store.Checkout(r.Context(), u.ID, "o_"+uuid.NewString(), s.now())
	if errors.Is(err, ErrEmptyCart) {
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err != nil {
		s.writeStoreError(w, r, "checkout", err)
		return
	}

	s.logger().Info("order confirmed",
		zap.String("order_id", o.ID),
		zap.String("user_id", u.ID),
		zap.Int("lines", len(o.Items)),
		zap.Float64("total_amount", o.TotalAmount),
	)
	kit.WriteJSON(w, http.StatusCreated, o)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return
	}

	orders, err := s.Store.Orders(r.Context(), u.ID)
	if err != nil {
		s.writeStoreError(w, r, "list orders", err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, orders)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		kit.WriteError(w, r, http.StatusUnauthorized, "no user", nil)
		return
	}

	id := chi.URLParam(r, "id")
	o, found, err := s.Store.Get(r.Context(), id)
	if err != nil {
		s.logger().Error("store get order failed", zap.Error(err), zap.String("order_id", id))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	if !found {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	if o.UserID != u.ID {
		kit.WriteError(w, r, http.StatusForbidden, "forbidden", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, o)
}

func (s *Server) writeCartError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errBadItem):
		kit.WriteError(w, r, http.StatusBadRequest, "bad item", map[string]any{"max_quantity": maxQuantity})
	case errors.Is(err, errInvalidProduct):
		kit.WriteError(w, r, http.StatusBadRequest, "invalid product_id", nil)
	case errors.Is(err, errInactiveProduct):
		kit.WriteError(w, r, http.StatusConflict, "product is not on sale", nil)
	case errors.Is(err, errPriceOutOfRange):
		kit.WriteError(w, r, http.StatusBadRequest, "locked_price out of range", map[string]any{"cause": err.Error()})
	case errors.Is(err, errCatalogDown):
		kit.WriteError(w, r, http.StatusServiceUnavailable, "catalog unavailable", nil)
	case errors.Is(err, errCatalogUpstream):
		kit.WriteError(w, r, http.StatusBadGateway, "catalog error", nil)
	default:
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if isTimeoutErr(err) {
		kit.WriteError(w, r, http.StatusGatewayTimeout, "timeout", nil)
		return
	}
	s.logger().Error(op+" failed", zap.Error(err))
	kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func isTimeoutErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
