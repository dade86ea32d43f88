package fomo

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	ViewerInterval time.Duration
	SurgeInterval  time.Duration
}

func DefaultConfig() Config {
	return Config{
		ViewerInterval: 3 * time.Second,
		SurgeInterval:  8 * time.Second,
	}
}

type Option func(*Simulator)

func WithConfig(c Config) Option      { return func(s *Simulator) { s.cfg = c } }
func WithClock(c Clock) Option        { return func(s *Simulator) { s.clock = c } }
func WithRand(r Rand) Option          { return func(s *Simulator) { s.rng = r } }
func WithLogger(l *zap.Logger) Option { return func(s *Simulator) { s.log = l } }
func WithMetrics(m *Metrics) Option   { return func(s *Simulator) { s.metrics = m } }

// Simulator owns the simulated view of one catalog snapshot.
//
// Every tick runs under a single mutex and readers only ever receive copies,
// so a reader sees either the pre-tick or the post-tick state. Each snapshot
// gets a new generation; ticks scheduled for an older generation are dropped.
type Simulator struct {
	cfg     Config
	clock   Clock
	rng     Rand
	log     *zap.Logger
	metrics *Metrics

	// life serializes Replace and Shutdown.
	life   sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool

	mu         sync.RWMutex
	gen        uint64
	items      []SimulatedItem
	index      map[string]int
	subs       map[int]chan Update
	nextSub    int
	subsClosed bool
}

// New initializes the view from items and, when items is non-empty, starts
// viewer drift and price surge.
func New(items []Item, opts ...Option) *Simulator {
	s := &Simulator{
		cfg:   DefaultConfig(),
		clock: realClock{},
		rng:   globalRand{},
		subs:  make(map[int]chan Update),
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}

	s.life.Lock()
	defer s.life.Unlock()

	gen, n := s.reset(items)
	s.start(gen, n)
	return s
}

// Replace swaps in a new snapshot. Both processes are stopped, and any tick
// in flight has returned, before the new items exist. No drift carries over.
func (s *Simulator) Replace(items []Item) {
	s.life.Lock()
	defer s.life.Unlock()

	if s.closed {
		return
	}

	s.stop()
	gen, n := s.reset(items)
	if s.metrics != nil {
		s.metrics.Replacements.Inc()
	}
	s.start(gen, n)
}

// Shutdown stops both processes and closes every subscription. It is safe
// to call more than once.
func (s *Simulator) Shutdown() {
	s.life.Lock()
	defer s.life.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.stop()

	s.mu.Lock()
	s.gen++
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subsClosed = true
	s.mu.Unlock()

	s.log.Debug("simulator shut down")
}

func (s *Simulator) View() []SimulatedItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyItems()
}

func (s *Simulator) Item(id string) (SimulatedItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return SimulatedItem{}, false
	}
	return s.items[i], true
}

func (s *Simulator) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// ResetFlash clears PriceJustIncreased on one item. Unknown ids are ignored.
func (s *Simulator) ResetFlash(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok || !s.items[i].PriceJustIncreased {
		return
	}
	s.items[i].PriceJustIncreased = false
	s.publish(Update{Kind: UpdateFlash})
}

// Subscribe returns a channel receiving an Update after every change.
// Delivery never blocks a tick: when the buffer is full the update is
// dropped for that subscriber. The channel is closed by cancel or Shutdown.
func (s *Simulator) Subscribe(buffer int) (<-chan Update, func()) {
	ch := make(chan Update, buffer)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subsClosed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Simulator) reset(items []Item) (gen uint64, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.items = make([]SimulatedItem, len(items))
	s.index = make(map[string]int, len(items))
	for i, it := range items {
		s.items[i] = newSimulatedItem(it)
		s.index[it.ID] = i
	}
	s.publish(Update{Kind: UpdateReset})

	s.log.Debug("snapshot loaded", zap.Int("items", len(items)), zap.Uint64("generation", s.gen))
	return s.gen, len(items)
}

// start must be called with life held. Tickers are created before the
// goroutines so they exist once start returns.
func (s *Simulator) start(gen uint64, n int) {
	if n == 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	viewers := s.clock.NewTicker(s.cfg.ViewerInterval)
	surge := s.clock.NewTicker(s.cfg.SurgeInterval)

	s.wg.Add(2)
	go s.run(ctx, viewers, func() { s.driftViewers(gen) })
	go s.run(ctx, surge, func() { s.surge(gen) })
}

// stop must be called with life held.
func (s *Simulator) stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
}

func (s *Simulator) run(ctx context.Context, t Ticker, tick func()) {
	defer s.wg.Done()
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			if ctx.Err() != nil {
				return
			}
			tick()
		}
	}
}

func (s *Simulator) driftViewers(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return
	}

	for i := range s.items {
		s.items[i].DisplayViewers = DriftViewers(s.items[i].DisplayViewers, ViewerDelta(s.rng))
	}
	if s.metrics != nil {
		s.metrics.ViewerTicks.Inc()
	}
	s.publish(Update{Kind: UpdateViewers})
}

func (s *Simulator) surge(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || len(s.items) == 0 {
		return
	}

	idx := s.rng.IntN(len(s.items))
	for i := range s.items {
		if i != idx {
			s.items[i].PriceJustIncreased = false
		}
	}

	it := &s.items[idx]
	it.DisplayPrice = NextPrice(*it)
	it.PriceJustIncreased = true

	if s.metrics != nil {
		s.metrics.Surges.Inc()
		if it.DisplayPrice >= PriceCap(it.BasePrice) {
			s.metrics.CappedSurges.Inc()
		}
	}
	s.log.Debug("price surge",
		zap.String("item_id", it.ID),
		zap.Float64("display_price", it.DisplayPrice),
		zap.Int("display_viewers", it.DisplayViewers),
	)

	s.publish(Update{Kind: UpdateSurge, Surged: it.ID})
}

// publish must be called with mu held.
func (s *Simulator) publish(u Update) {
	for _, ch := range s.subs {
		u.Items = s.copyItems()
		select {
		case ch <- u:
		default:
		}
	}
}

func (s *Simulator) copyItems() []SimulatedItem {
	out := make([]SimulatedItem, len(s.items))
	copy(out, s.items)
	return out
}
