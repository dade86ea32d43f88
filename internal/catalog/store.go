package catalog

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Product struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	BasePrice      float64   `json:"base_price"`
	CurrentPrice   float64   `json:"current_price"`
	TotalStock     int       `json:"total_stock"`
	RemainingStock int       `json:"remaining_stock"`
	Viewers        int       `json:"viewers"`
	IsActive       bool      `json:"is_active"`
	ImageURL       string    `json:"image_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type Sort string

const (
	SortNewest   Sort = "newest"
	SortTrending Sort = "trending"

	MaxLimit = 100
)

var (
	ErrBadSort  = errors.New("sort must be newest or trending")
	ErrBadLimit = errors.New("limit must be between 1 and 100")
)

// Query selects active products. A zero Limit means no limit. A non-empty
// Search ranks fuzzy name matches ahead of Sort.
type Query struct {
	Category string
	Sort     Sort
	Limit    int
	Search   string
}

func ParseQuery(v url.Values) (Query, error) {
	q := Query{
		Category: strings.ToLower(strings.TrimSpace(v.Get("category"))),
		Sort:     SortNewest,
		Search:   strings.TrimSpace(v.Get("q")),
	}
	if q.Category == "all" {
		q.Category = ""
	}

	switch s := Sort(v.Get("sort")); s {
	case "":
	case SortNewest, SortTrending:
		q.Sort = s
	default:
		return Query{}, ErrBadSort
	}

	if raw := v.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxLimit {
			return Query{}, ErrBadLimit
		}
		q.Limit = n
	}

	return q, nil
}

type Store interface {
	Ping(ctx context.Context) error
	List(ctx context.Context, q Query) ([]Product, error)
	Get(ctx context.Context, id string) (Product, bool, error)
	Categories(ctx context.Context) ([]string, error)
}

func NewStore() Store {
	return NewMemStore()
}
