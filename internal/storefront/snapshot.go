package storefront

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"FomoStore/internal/catalog"
	"FomoStore/internal/fomo"
)

// ProductLister is the read side of the catalog. *catalog.Client satisfies it.
type ProductLister interface {
	List(ctx context.Context, q catalog.Query) ([]catalog.Product, error)
}

// fetchSnapshot loads the products a live session simulates. Products
// without stock are skipped: the simulator requires TotalStock > 0.
func fetchSnapshot(ctx context.Context, src ProductLister, q catalog.Query, log *zap.Logger) ([]fomo.Item, error) {
	ps, err := src.List(ctx, q)
	if err != nil {
		return nil, err
	}

	items := make([]fomo.Item, 0, len(ps))
	for _, p := range ps {
		if p.TotalStock <= 0 {
			log.Warn("skipping product without stock", zap.String("product_id", p.ID))
			continue
		}
		items = append(items, toItem(p))
	}
	return items, nil
}

func toItem(p catalog.Product) fomo.Item {
	return fomo.Item{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Category:       p.Category,
		BasePrice:      p.BasePrice,
		CurrentPrice:   p.CurrentPrice,
		TotalStock:     p.TotalStock,
		RemainingStock: p.RemainingStock,
		Viewers:        p.Viewers,
		Active:         p.IsActive,
		ImageURL:       p.ImageURL,
	}
}

func fetchSnapshotTimeout(r *http.Request, src ProductLister, q catalog.Query, log *zap.Logger) ([]fomo.Item, error) {
	ctx, cancel := context.WithTimeout(r.Context(), snapshotTimeout)
	defer cancel()
	return fetchSnapshot(ctx, src, q, log)
}
