package storefront

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"FomoStore/internal/catalog"
	"FomoStore/internal/fomo"
	"FomoStore/pkg/kit"
)

const (
	streamBuffer    = 16
	streamKeepAlive = 15 * time.Second
	snapshotTimeout = 5 * time.Second
)

// LiveItem is a simulated item with the badges the product page shows.
type LiveItem struct {
	fomo.SimulatedItem

	SurgePercent int     `json:"surge_percent"`
	StockPercent float64 `json:"stock_percent"`
}

type liveView struct {
	SessionID string     `json:"session_id"`
	Items     []LiveItem `json:"items"`
}

type liveEvent struct {
	Kind   fomo.UpdateKind `json:"kind"`
	Surged string          `json:"surged,omitempty"`
	Items  []LiveItem      `json:"items"`
}

func toLive(items []fomo.SimulatedItem, category string) []LiveItem {
	out := make([]LiveItem, 0, len(items))
	for _, it := range items {
		if category != "" && !strings.EqualFold(it.Category, category) {
			continue
		}
		out = append(out, LiveItem{
			SimulatedItem: it,
			SurgePercent:  fomo.SurgePercent(it.DisplayPrice, it.BasePrice),
			StockPercent:  fomo.StockPercent(it.RemainingStock, it.TotalStock),
		})
	}
	return out
}

func categoryFilter(r *http.Request) string {
	c := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("category")))
	if c == "all" {
		return ""
	}
	return c
}

type liveHandlers struct {
	sessions *Sessions
	catalog  ProductLister
	log      *zap.Logger
}

func (h *liveHandlers) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, err := h.sessions.Get(chi.URLParam(r, "sid"))
	if err != nil {
		kit.WriteError(w, r, http.StatusNotFound, err.Error(), nil)
		return nil, false
	}
	return sess, true
}

func (h *liveHandlers) open(w http.ResponseWriter, r *http.Request) {
	q, err := catalog.ParseQuery(r.URL.Query())
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	items, ok := h.snapshot(w, r, q)
	if !ok {
		return
	}

	sess := h.sessions.Open(q, items)
	kit.WriteJSON(w, http.StatusCreated, liveView{
		SessionID: sess.ID,
		Items:     toLive(sess.Sim.View(), ""),
	})
}

func (h *liveHandlers) view(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	kit.WriteJSON(w, http.StatusOK, liveView{
		SessionID: sess.ID,
		Items:     toLive(sess.Sim.View(), categoryFilter(r)),
	})
}

func (h *liveHandlers) item(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	it, found := sess.Sim.Item(id)
	if !found {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	kit.WriteJSON(w, http.StatusOK, toLive([]fomo.SimulatedItem{it}, "")[0])
}

func (h *liveHandlers) refresh(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	items, ok := h.snapshot(w, r, sess.Query)
	if !ok {
		return
	}

	sess.Sim.Replace(items)
	kit.WriteJSON(w, http.StatusOK, liveView{
		SessionID: sess.ID,
		Items:     toLive(sess.Sim.View(), ""),
	})
}

func (h *liveHandlers) resetFlash(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Sim.ResetFlash(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *liveHandlers) close(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.Close(chi.URLParam(r, "sid")) {
		kit.WriteError(w, r, http.StatusNotFound, ErrSessionNotFound.Error(), nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// stream sends the current view, then one update event per change until the
// client goes away or the session is closed.
func (h *liveHandlers) stream(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	category := categoryFilter(r)

	updates, cancel := sess.Sim.Subscribe(streamBuffer)
	defer cancel()

	f, ok := kit.StartEventStream(w)
	if !ok {
		kit.WriteError(w, r, http.StatusInternalServerError, "streaming unsupported", nil)
		return
	}

	first := liveEvent{Kind: fomo.UpdateReset, Items: toLive(sess.Sim.View(), category)}
	if err := kit.WriteEvent(w, f, "update", first); err != nil {
		return
	}

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			f.Flush()
		case u, open := <-updates:
			if !open {
				_ = kit.WriteEvent(w, f, "closed", map[string]string{"session_id": sess.ID})
				return
			}
			ev := liveEvent{Kind: u.Kind, Surged: u.Surged, Items: toLive(u.Items, category)}
			if err := kit.WriteEvent(w, f, "update", ev); err != nil {
				h.log.Debug("stream write failed", zap.String("session_id", sess.ID), zap.Error(err))
				return
			}
		}
	}
}

func (h *liveHandlers) snapshot(w http.ResponseWriter, r *http.Request, q catalog.Query) ([]fomo.Item, bool) {
	items, err := fetchSnapshotTimeout(r, h.catalog, q, h.log)
	switch {
	case err == nil:
		return items, true
	case errors.Is(err, catalog.ErrUnavailable):
		kit.WriteError(w, r, http.StatusServiceUnavailable, "catalog unavailable", nil)
	default:
		h.log.Warn("catalog snapshot failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusBadGateway, "catalog error", nil)
	}
	return nil, false
}
