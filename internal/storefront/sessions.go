package storefront

import (
	"errors"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"FomoStore/internal/catalog"
	"FomoStore/internal/fomo"
)

const DefaultMaxSessions = 1024

var ErrSessionNotFound = errors.New("session not found")

// Session is one shopper's live view: its own simulator over the snapshot
// it was opened with.
type Session struct {
	ID        string
	Query     catalog.Query
	Sim       *fomo.Simulator
	CreatedAt time.Time
}

// Sessions bounds the number of running simulators. The least recently
// used session is shut down when the bound is reached.
type Sessions struct {
	cache *lru.Cache
	opts  []fomo.Option
	log   *zap.Logger
}

func NewSessions(size int, log *zap.Logger, opts ...fomo.Option) (*Sessions, error) {
	if size <= 0 {
		size = DefaultMaxSessions
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &Sessions{opts: opts, log: log}
	c, err := lru.NewWithEvict(size, s.onEvict)
	if err != nil {
		return nil, err
	}
	s.cache = c
	return s, nil
}

func (s *Sessions) onEvict(key, value any) {
	sess, ok := value.(*Session)
	if !ok {
		return
	}
	sess.Sim.Shutdown()
	s.log.Debug("session closed", zap.Any("session_id", key))
}

func (s *Sessions) Open(q catalog.Query, items []fomo.Item) *Session {
	sess := &Session{
		ID:        "s_" + uuid.NewString(),
		Query:     q,
		Sim:       fomo.New(items, s.opts...),
		CreatedAt: time.Now().UTC(),
	}
	s.cache.Add(sess.ID, sess)

	s.log.Info("session opened",
		zap.String("session_id", sess.ID),
		zap.String("category", q.Category),
		zap.Int("items", len(items)),
	)
	return sess
}

func (s *Sessions) Get(id string) (*Session, error) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return v.(*Session), nil
}

// Close shuts the session's simulator down and forgets it.
func (s *Sessions) Close(id string) bool {
	return s.cache.Remove(id)
}

func (s *Sessions) Len() int {
	return s.cache.Len()
}

// CloseAll shuts every simulator down. Open stays usable afterwards.
func (s *Sessions) CloseAll() {
	s.cache.Purge()
}

func (s *Sessions) register(reg prometheus.Registerer) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "fomo_live_sessions",
		Help: "Live pricing sessions currently running",
	}, func() float64 { return float64(s.Len()) }))
}
