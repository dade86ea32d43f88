package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	seed := SeedProducts(now)
	seed = append(seed, Product{
		ID: "evt-archived", Name: "Last Year's Gala", Category: "music",
		BasePrice: 100, CurrentPrice: 100, TotalStock: 10, RemainingStock: 0,
		Viewers: 999, IsActive: false, CreatedAt: now,
	})

	s := &Server{Store: NewMemStore(seed...), Log: zap.NewNop()}
	ts := httptest.NewServer(NewHandler(s, HTTPDeps{
		Log:            zap.NewNop(),
		Service:        "catalog",
		Registry:       prometheus.NewRegistry(),
		MetricsEnabled: true,
		MetricsToken:   "tok",
	}))
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

func TestCatalog_ListNewestFirst(t *testing.T) {
	ts := newTestServer(t)

	var ps []Product
	if code := getJSON(t, ts.URL+"/products", &ps); code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	if len(ps) != 8 {
		t.Fatalf("len=%d want 8 active", len(ps))
	}
	for i := 1; i < len(ps); i++ {
		if ps[i].CreatedAt.After(ps[i-1].CreatedAt) {
			t.Fatalf("not newest first at %d", i)
		}
	}
	for _, p := range ps {
		if !p.IsActive {
			t.Fatalf("inactive product %s listed", p.ID)
		}
	}
}

func TestCatalog_Trending(t *testing.T) {
	ts := newTestServer(t)

	var ps []Product
	if code := getJSON(t, ts.URL+"/products?sort=trending&limit=4", &ps); code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	if len(ps) != 4 {
		t.Fatalf("len=%d want 4", len(ps))
	}
	if ps[0].ID != "evt-comedy-night" || ps[1].ID != "evt-cyber-bootcamp" {
		t.Fatalf("order=%s,%s", ps[0].ID, ps[1].ID)
	}
}

func TestCatalog_CategoryFilter(t *testing.T) {
	ts := newTestServer(t)

	var ps []Product
	getJSON(t, ts.URL+"/products?category=Music", &ps)
	if len(ps) != 1 || ps[0].ID != "evt-rooftop-jazz" {
		t.Fatalf("got %+v", ps)
	}

	var cs []string
	getJSON(t, ts.URL+"/categories", &cs)
	if len(cs) != 8 || cs[0] != "coffee" {
		t.Fatalf("categories=%v", cs)
	}
}

func TestCatalog_BadQuery(t *testing.T) {
	ts := newTestServer(t)

	for _, q := range []string{"?sort=cheapest", "?limit=0", "?limit=abc", "?limit=101"} {
		if code := getJSON(t, ts.URL+"/products"+q, nil); code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d want 400", q, code)
		}
	}
}

func TestCatalog_Get(t *testing.T) {
	ts := newTestServer(t)

	var p Product
	if code := getJSON(t, ts.URL+"/products/evt-tech-summit", &p); code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	if p.BasePrice != 2999 || p.TotalStock != 400 {
		t.Fatalf("product=%+v", p)
	}

	if code := getJSON(t, ts.URL+"/products/nope", nil); code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", code)
	}
}

func TestCatalog_MetricsRequiresToken(t *testing.T) {
	ts := newTestServer(t)

	if code := getJSON(t, ts.URL+"/metrics", nil); code != http.StatusForbidden {
		t.Fatalf("status=%d want 403", code)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/metrics", nil)
	req.Header.Set("Authorization", "Bearer tok")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestClient_GetAndList(t *testing.T) {
	ts := newTestServer(t)
	c := NewClient(ts.URL + "/")

	p, err := c.Get(t.Context(), "evt-tech-summit")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Name == "" || !p.IsActive {
		t.Fatalf("unexpected product %+v", p)
	}

	if _, err := c.Get(t.Context(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}

	ps, err := c.List(t.Context(), Query{Sort: SortTrending, Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ps) != 2 || ps[0].Viewers < ps[1].Viewers {
		t.Fatalf("unexpected trending list %+v", ps)
	}

	if err := c.Ping(t.Context()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestClient_Unavailable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	if _, err := NewClient(url).List(t.Context(), Query{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err=%v want ErrUnavailable", err)
	}
}

func TestCatalog_FuzzySearch(t *testing.T) {
	ts := newTestServer(t)

	var ps []Product
	if code := getJSON(t, ts.URL+"/products?q=jazz", &ps); code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	if len(ps) != 1 || ps[0].ID != "evt-rooftop-jazz" {
		t.Fatalf("unexpected results %+v", ps)
	}

	if code := getJSON(t, ts.URL+"/products?q=zzzzqx", &ps); code != http.StatusOK || len(ps) != 0 {
		t.Fatalf("status=%d len=%d want no matches", code, len(ps))
	}
}
