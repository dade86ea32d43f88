package fomo

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	viewerEvery = 3 * time.Second
	surgeEvery  = 8 * time.Second
)

type fakeClock struct {
	mu      sync.Mutex
	tickers map[time.Duration][]*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{tickers: map[time.Duration][]*fakeTicker{}}
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	t := &fakeTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	c.mu.Lock()
	c.tickers[d] = append(c.tickers[d], t)
	c.mu.Unlock()
	return t
}

func (c *fakeClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ts := range c.tickers {
		n += len(ts)
	}
	return n
}

// fire delivers one tick to the newest ticker for d. It reports whether a
// running process received it.
func (c *fakeClock) fire(d time.Duration) bool {
	c.mu.Lock()
	ts := c.tickers[d]
	c.mu.Unlock()
	if len(ts) == 0 {
		return false
	}
	return ts[len(ts)-1].deliver()
}

func (c *fakeClock) fireOldest(d time.Duration) bool {
	c.mu.Lock()
	ts := c.tickers[d]
	c.mu.Unlock()
	if len(ts) == 0 {
		return false
	}
	return ts[0].deliver()
}

type fakeTicker struct {
	ch      chan time.Time
	once    sync.Once
	stopped chan struct{}
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.once.Do(func() { close(t.stopped) }) }

func (t *fakeTicker) deliver() bool {
	select {
	case <-t.stopped:
		return false
	default:
	}
	select {
	case t.ch <- time.Time{}:
		return true
	case <-t.stopped:
		return false
	case <-time.After(time.Second):
		return false
	}
}

// seqRand replays vals, each reduced modulo n.
type seqRand struct {
	vals []int
	i    int
}

func (r *seqRand) IntN(n int) int {
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v % n
}

func scenarioItem(id string) Item {
	return Item{
		ID:             id,
		Name:           "Comedy Night Live",
		Category:       "comedy",
		BasePrice:      100,
		CurrentPrice:   100,
		TotalStock:     100,
		RemainingStock: 50,
		Viewers:        25,
		Active:         true,
	}
}

func newTestSim(t *testing.T, items []Item, rng Rand) (*Simulator, *fakeClock, <-chan Update) {
	t.Helper()

	clk := newFakeClock()
	s := New(items,
		WithClock(clk),
		WithRand(rng),
		WithLogger(zap.NewNop()),
	)
	t.Cleanup(s.Shutdown)

	updates, cancel := s.Subscribe(64)
	t.Cleanup(cancel)
	return s, clk, updates
}

func tick(t *testing.T, clk *fakeClock, updates <-chan Update, d time.Duration) Update {
	t.Helper()

	if !clk.fire(d) {
		t.Fatalf("tick %v not delivered", d)
	}
	select {
	case u := <-updates:
		return u
	case <-time.After(2 * time.Second):
		t.Fatalf("no update after tick %v", d)
	}
	return Update{}
}

func TestSimulator_InitialView(t *testing.T) {
	items := []Item{scenarioItem("a"), scenarioItem("b")}
	items[1].CurrentPrice = 120
	items[1].Viewers = 40

	s, clk, _ := newTestSim(t, items, &seqRand{vals: []int{0}})

	view := s.View()
	if len(view) != 2 {
		t.Fatalf("len=%d want 2", len(view))
	}
	for i, it := range view {
		if it.ID != items[i].ID {
			t.Fatalf("order: got %s at %d", it.ID, i)
		}
		if it.DisplayPrice != items[i].CurrentPrice {
			t.Fatalf("display_price=%v want %v", it.DisplayPrice, items[i].CurrentPrice)
		}
		if it.DisplayViewers != items[i].Viewers {
			t.Fatalf("display_viewers=%d want %d", it.DisplayViewers, items[i].Viewers)
		}
		if it.PriceJustIncreased {
			t.Fatalf("flash set on init")
		}
	}
	if clk.count() != 2 {
		t.Fatalf("tickers=%d want 2", clk.count())
	}
}

func TestSimulator_EmptySnapshotSchedulesNothing(t *testing.T) {
	s, clk, _ := newTestSim(t, nil, &seqRand{vals: []int{0}})

	if len(s.View()) != 0 {
		t.Fatalf("want empty view")
	}
	if clk.count() != 0 {
		t.Fatalf("tickers=%d want 0", clk.count())
	}
}

func TestSimulator_SurgeRaisesOneItem(t *testing.T) {
	s, clk, updates := newTestSim(t, []Item{scenarioItem("a")}, &seqRand{vals: []int{0}})

	u := tick(t, clk, updates, surgeEvery)
	if u.Kind != UpdateSurge || u.Surged != "a" {
		t.Fatalf("update=%+v", u)
	}

	it, ok := s.Item("a")
	if !ok {
		t.Fatalf("item missing")
	}
	if it.DisplayPrice != 104.0 {
		t.Fatalf("display_price=%v want 104", it.DisplayPrice)
	}
	if !it.PriceJustIncreased {
		t.Fatalf("want flash after surge")
	}
	if it.CurrentPrice != 100 {
		t.Fatalf("source current_price mutated: %v", it.CurrentPrice)
	}
}

func TestSimulator_SurgeClampsAtCap(t *testing.T) {
	s, clk, updates := newTestSim(t, []Item{scenarioItem("a")}, &seqRand{vals: []int{0}})

	prev := 100.0
	for i := 0; i < 60; i++ {
		tick(t, clk, updates, surgeEvery)
		it, _ := s.Item("a")
		if it.DisplayPrice < prev {
			t.Fatalf("tick %d: price decreased %v -> %v", i, prev, it.DisplayPrice)
		}
		if it.DisplayPrice > 250 {
			t.Fatalf("tick %d: price %v above cap", i, it.DisplayPrice)
		}
		prev = it.DisplayPrice
	}

	if prev != 250 {
		t.Fatalf("final price=%v want 250", prev)
	}
}

func TestSimulator_ViewerDrift(t *testing.T) {
	// deltas: IntN(5) 0 -> -1, 4 -> +3
	s, clk, updates := newTestSim(t, nil, &seqRand{vals: []int{0, 4}})

	a := scenarioItem("a")
	a.Viewers = 5
	b := scenarioItem("b")
	b.Viewers = 20
	b.CurrentPrice = 130
	s.Replace([]Item{a, b})

	if u := <-updates; u.Kind != UpdateReset || len(u.Items) != 2 {
		t.Fatalf("want reset update with 2 items, got %+v", u)
	}

	u := tick(t, clk, updates, viewerEvery)
	if u.Kind != UpdateViewers {
		t.Fatalf("kind=%s", u.Kind)
	}

	view := s.View()
	if view[0].DisplayViewers != 5 {
		t.Fatalf("a viewers=%d want floor 5", view[0].DisplayViewers)
	}
	if view[1].DisplayViewers != 23 {
		t.Fatalf("b viewers=%d want 23", view[1].DisplayViewers)
	}
	if view[0].DisplayPrice != 100 || view[1].DisplayPrice != 130 {
		t.Fatalf("prices changed: %v %v", view[0].DisplayPrice, view[1].DisplayPrice)
	}
	if view[0].PriceJustIncreased || view[1].PriceJustIncreased {
		t.Fatalf("flash set by viewer drift")
	}
}

func TestSimulator_ResetFlash(t *testing.T) {
	s, clk, updates := newTestSim(t, []Item{scenarioItem("a"), scenarioItem("b")}, &seqRand{vals: []int{1}})

	tick(t, clk, updates, surgeEvery)
	before, _ := s.Item("b")
	if !before.PriceJustIncreased {
		t.Fatalf("want flash on b")
	}
	other, _ := s.Item("a")

	s.ResetFlash("b")

	after, _ := s.Item("b")
	if after.PriceJustIncreased {
		t.Fatalf("flash not cleared")
	}
	before.PriceJustIncreased = false
	if after != before {
		t.Fatalf("other fields changed: %+v vs %+v", after, before)
	}
	if got, _ := s.Item("a"); got != other {
		t.Fatalf("unrelated item changed")
	}
}

func TestSimulator_ResetFlashUnknownIDIsNoop(t *testing.T) {
	s, _, _ := newTestSim(t, []Item{scenarioItem("a")}, &seqRand{vals: []int{0}})

	before := s.View()
	s.ResetFlash("missing")
	after := s.View()

	if before[0] != after[0] {
		t.Fatalf("view changed")
	}
}

func TestSimulator_Shutdown(t *testing.T) {
	s, clk, updates := newTestSim(t, []Item{scenarioItem("a"), scenarioItem("b")}, &seqRand{vals: []int{0, 3}})

	tick(t, clk, updates, surgeEvery)
	tick(t, clk, updates, viewerEvery)
	before := s.View()

	s.Shutdown()
	s.Shutdown()

	if clk.fire(surgeEvery) || clk.fire(viewerEvery) {
		t.Fatalf("tick delivered after shutdown")
	}

	after := s.View()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("item %d changed after shutdown: %+v -> %+v", i, before[i], after[i])
		}
	}

	for range updates {
	}

	s.Replace([]Item{scenarioItem("c")})
	if s.Len() != 2 {
		t.Fatalf("replace after shutdown must be ignored")
	}
}

func TestSimulator_SingleFlashPerSurge(t *testing.T) {
	items := []Item{scenarioItem("a"), scenarioItem("b"), scenarioItem("c")}
	s, clk, updates := newTestSim(t, items, &seqRand{vals: []int{0, 2}})

	tick(t, clk, updates, surgeEvery)
	u := tick(t, clk, updates, surgeEvery)
	if u.Surged != "c" {
		t.Fatalf("surged=%s want c", u.Surged)
	}

	flashed := 0
	for _, it := range s.View() {
		if it.PriceJustIncreased {
			flashed++
			if it.ID != "c" {
				t.Fatalf("flash on %s", it.ID)
			}
		}
	}
	if flashed != 1 {
		t.Fatalf("flashed=%d want 1", flashed)
	}

	a, _ := s.Item("a")
	if a.DisplayPrice != 104 {
		t.Fatalf("a kept price %v want 104", a.DisplayPrice)
	}
}

func TestSimulator_ReplaceResets(t *testing.T) {
	s, clk, updates := newTestSim(t, []Item{scenarioItem("a")}, &seqRand{vals: []int{0, 4}})

	tick(t, clk, updates, surgeEvery)
	tick(t, clk, updates, viewerEvery)

	fresh := []Item{scenarioItem("x"), scenarioItem("y")}
	fresh[1].CurrentPrice = 180
	fresh[1].Viewers = 9
	s.Replace(fresh)

	if clk.fireOldest(surgeEvery) || clk.fireOldest(viewerEvery) {
		t.Fatalf("stale process still running")
	}

	view := s.View()
	if len(view) != 2 {
		t.Fatalf("len=%d want 2", len(view))
	}
	if _, ok := s.Item("a"); ok {
		t.Fatalf("removed item resurrected")
	}
	for i, it := range view {
		if it.DisplayPrice != fresh[i].CurrentPrice || it.DisplayViewers != fresh[i].Viewers || it.PriceJustIncreased {
			t.Fatalf("item %s not reset: %+v", it.ID, it)
		}
	}

	<-updates // reset
	u := tick(t, clk, updates, surgeEvery)
	if u.Surged != "x" {
		t.Fatalf("surged=%s want x", u.Surged)
	}
}

func TestSimulator_Invariants(t *testing.T) {
	items := []Item{scenarioItem("a"), scenarioItem("b"), scenarioItem("c")}
	items[1].RemainingStock = 3
	items[1].Viewers = 90
	items[2].BasePrice = 49.99
	items[2].CurrentPrice = 52.5
	items[2].Viewers = 5

	rng := rand.New(rand.NewPCG(7, 11))
	s, clk, updates := newTestSim(t, items, rng)

	last := map[string]float64{}
	for _, it := range s.View() {
		last[it.ID] = it.DisplayPrice
	}

	for i := 0; i < 300; i++ {
		d := viewerEvery
		if i%3 == 0 {
			d = surgeEvery
		}
		u := tick(t, clk, updates, d)

		flashed := 0
		for _, it := range u.Items {
			if it.DisplayPrice < it.BasePrice || it.DisplayPrice > PriceCap(it.BasePrice) {
				t.Fatalf("%s price %v outside [%v, %v]", it.ID, it.DisplayPrice, it.BasePrice, PriceCap(it.BasePrice))
			}
			if it.DisplayPrice < last[it.ID] {
				t.Fatalf("%s price decreased %v -> %v", it.ID, last[it.ID], it.DisplayPrice)
			}
			if it.DisplayViewers < ViewerFloor {
				t.Fatalf("%s viewers below floor: %d", it.ID, it.DisplayViewers)
			}
			if it.PriceJustIncreased {
				flashed++
			}
			last[it.ID] = it.DisplayPrice
		}
		if u.Kind == UpdateSurge && flashed != 1 {
			t.Fatalf("flashed=%d after surge, want 1", flashed)
		}
	}
}

func TestSimulator_SubscribeAfterShutdown(t *testing.T) {
	s := New(nil, WithClock(newFakeClock()))
	s.Shutdown()

	ch, cancel := s.Subscribe(1)
	defer cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("want closed channel")
	}
}

func TestSimulator_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	clk := newFakeClock()
	s := New([]Item{scenarioItem("a")}, WithClock(clk), WithRand(&seqRand{vals: []int{0}}), WithMetrics(m))
	defer s.Shutdown()

	updates, cancel := s.Subscribe(8)
	defer cancel()

	tick(t, clk, updates, surgeEvery)
	tick(t, clk, updates, viewerEvery)
	s.Replace([]Item{scenarioItem("b")})

	for name, want := range map[string]float64{
		"fomo_surges_total":                1,
		"fomo_surges_capped_total":         0,
		"fomo_viewer_ticks_total":          1,
		"fomo_snapshot_replacements_total": 1,
	} {
		if got := counterValue(t, reg, name); got != want {
			t.Fatalf("%s=%v want %v", name, got, want)
		}
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}
