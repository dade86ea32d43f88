package catalog

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemStore struct {
	mu sync.RWMutex
	m  map[string]Product
}

func NewMemStore(seed ...Product) *MemStore {
	if len(seed) == 0 {
		seed = SeedProducts(time.Now().UTC())
	}
	s := &MemStore{m: make(map[string]Product, len(seed))}
	for _, p := range seed {
		s.m[p.ID] = p
	}
	return s
}

// SeedProducts is the demo event lineup, newest last.
func SeedProducts(now time.Time) []Product {
	ps := []Product{
		{ID: "evt-comedy-night", Name: "Comedy Night Live", Description: "Two hours of stand-up from the city's sharpest new voices.", Category: "comedy", BasePrice: 499, CurrentPrice: 540, TotalStock: 120, RemainingStock: 41, Viewers: 89},
		{ID: "evt-tech-summit", Name: "Tech Summit 2026", Description: "Keynotes, workshops and demos on everything shipping next year.", Category: "tech", BasePrice: 2999, CurrentPrice: 2999, TotalStock: 400, RemainingStock: 230, Viewers: 64},
		{ID: "evt-midnight-food", Name: "Midnight Food Fest", Description: "Forty street-food stalls open until 3 a.m.", Category: "food", BasePrice: 799, CurrentPrice: 860, TotalStock: 300, RemainingStock: 135, Viewers: 47},
		{ID: "evt-rooftop-jazz", Name: "Rooftop Jazz Sessions", Description: "A quartet, a skyline and a sunset set.", Category: "music", BasePrice: 1499, CurrentPrice: 1499, TotalStock: 80, RemainingStock: 52, Viewers: 23},
		{ID: "evt-startup-pitch", Name: "Startup Pitch Night", Description: "Ten founders, five minutes each, one live-voted winner.", Category: "startup", BasePrice: 1999, CurrentPrice: 2050, TotalStock: 150, RemainingStock: 38, Viewers: 31},
		{ID: "evt-coffee-masterclass", Name: "Artisan Coffee Masterclass", Description: "Brew methods, tasting notes and latte art with a roaster.", Category: "coffee", BasePrice: 599, CurrentPrice: 640, TotalStock: 30, RemainingStock: 12, Viewers: 18},
		{ID: "evt-yoga-retreat", Name: "Weekend Yoga Retreat", Description: "Two days of guided practice and breathwork.", Category: "yoga", BasePrice: 2499, CurrentPrice: 2699, TotalStock: 40, RemainingStock: 17, Viewers: 26},
		{ID: "evt-cyber-bootcamp", Name: "Cybersecurity Bootcamp", Description: "Hands-on red team and blue team labs.", Category: "cyber", BasePrice: 3999, CurrentPrice: 3999, TotalStock: 60, RemainingStock: 22, Viewers: 72},
	}

	for i := range ps {
		ps[i].IsActive = true
		ps[i].ImageURL = ps[i].Category
		ps[i].CreatedAt = now.Add(-time.Duration(len(ps)-i) * time.Hour)
	}
	return ps
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) List(ctx context.Context, q Query) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Product, 0, len(s.m))
	for _, p := range s.m {
		if !p.IsActive {
			continue
		}
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return less(q.Sort, out[i], out[j]) })

	return applyLimit(search(out, q.Search), q.Limit), nil
}

func less(by Sort, a, b Product) bool {
	if by == SortTrending && a.Viewers != b.Viewers {
		return a.Viewers > b.Viewers
	}
	if by != SortTrending && !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (s *MemStore) Get(ctx context.Context, id string) (Product, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.m[id]
	return p, ok, nil
}

func (s *MemStore) Categories(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, p := range s.m {
		if p.IsActive {
			seen[p.Category] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}
