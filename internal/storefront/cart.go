package storefront

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"FomoStore/pkg/kit"
)

type addCartReq struct {
	SessionID string `json:"session_id"`
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

type lockedCartReq struct {
	ProductID   string  `json:"product_id"`
	Quantity    *int    `json:"quantity,omitempty"`
	LockedPrice float64 `json:"locked_price"`
}

// addToCart locks the price the shopper is looking at in their session and
// hands the line to the order service.
func addToCart(sessions *Sessions, orders http.Handler, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addCartReq
		if err := kit.DecodeJSON(w, r, &req); err != nil {
			kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
			return
		}

		req.SessionID = strings.TrimSpace(req.SessionID)
		req.ProductID = strings.TrimSpace(req.ProductID)
		if req.SessionID == "" || req.ProductID == "" {
			kit.WriteError(w, r, http.StatusBadRequest, "session_id/product_id required", nil)
			return
		}

		sess, err := sessions.Get(req.SessionID)
		if err != nil {
			kit.WriteError(w, r, http.StatusNotFound, err.Error(), nil)
			return
		}
		it, ok := sess.Sim.Item(req.ProductID)
		if !ok {
			kit.WriteError(w, r, http.StatusNotFound, "item not in session", map[string]any{"product_id": req.ProductID})
			return
		}

		body, err := json.Marshal(lockedCartReq{
			ProductID:   it.ID,
			Quantity:    req.Quantity,
			LockedPrice: it.DisplayPrice,
		})
		if err != nil {
			kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
			return
		}

		if c, ok := ClaimsFromContext(r.Context()); ok {
			log.Debug("locking price",
				zap.String("user_id", c.UserID),
				zap.String("session_id", sess.ID),
				zap.String("product_id", it.ID),
				zap.Float64("display_price", it.DisplayPrice),
			)
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		r.ContentLength = int64(len(body))
		r.Header.Set("Content-Length", strconv.Itoa(len(body)))
		r.Header.Set("Content-Type", "application/json")

		orders.ServeHTTP(w, r)
	}
}
