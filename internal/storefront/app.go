package storefront

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"FomoStore/internal/auth"
	"FomoStore/internal/catalog"
	"FomoStore/internal/fomo"
	"FomoStore/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string
}

type Deps struct {
	AuthURL    string
	CatalogURL string
	OrderURL   string
	JWTSecret  string

	Sim         fomo.Config
	MaxSessions int
	// SimOptions are applied to every session's simulator after Sim.
	SimOptions []fomo.Option
}

const (
	readyTimeout      = 2 * time.Second
	readyProbeTimeout = 700 * time.Millisecond
)

var readyClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
	},
}

// App is the storefront's HTTP handler. Close ends every live session.
type App struct {
	http.Handler

	Sessions *Sessions
	Deny     *auth.Denylist
}

func (a *App) Close() {
	a.Sessions.CloseAll()
}

func NewHandler(deps Deps, httpDeps HTTPDeps) (*App, error) {
	if httpDeps.Log == nil {
		httpDeps.Log = zap.NewNop()
	}
	log := httpDeps.Log

	authProxy, catalogProxy, orderProxy, err := buildProxies(deps, log)
	if err != nil {
		return nil, err
	}

	if deps.Sim == (fomo.Config{}) {
		deps.Sim = fomo.DefaultConfig()
	}
	simOpts := []fomo.Option{fomo.WithConfig(deps.Sim), fomo.WithLogger(log.Named("fomo"))}
	if httpDeps.Registry != nil {
		simOpts = append(simOpts, fomo.WithMetrics(fomo.NewMetrics(httpDeps.Registry)))
	}
	simOpts = append(simOpts, deps.SimOptions...)

	sessions, err := NewSessions(deps.MaxSessions, log, simOpts...)
	if err != nil {
		return nil, err
	}
	if httpDeps.Registry != nil {
		sessions.register(httpDeps.Registry)
	}

	jwt := auth.NewTokenMaker(deps.JWTSecret)
	deny := auth.NewDenylist()
	live := &liveHandlers{sessions: sessions, catalog: catalog.NewClient(deps.CatalogURL), log: log}

	r := chi.NewRouter()
	kit.Setup(r, log)
	setupMetrics(r, httpDeps)

	r.Get("/healthz", healthz)
	r.Get("/readyz", readyz(deps, log))

	r.Post("/auth/logout", logout(jwt, deny, authProxy, log))
	r.Handle("/auth", authProxy)
	r.Handle("/auth/*", authProxy)

	r.Handle("/products", catalogProxy)
	r.Handle("/products/*", catalogProxy)
	r.Handle("/categories", catalogProxy)

	r.Route("/live/sessions", func(lr chi.Router) {
		lr.Post("/", live.open)
		lr.Get("/{sid}", live.view)
		lr.Delete("/{sid}", live.close)
		lr.Get("/{sid}/stream", live.stream)
		lr.Post("/{sid}/refresh", live.refresh)
		lr.Get("/{sid}/items/{id}", live.item)
		lr.Post("/{sid}/items/{id}/flash-reset", live.resetFlash)
	})

	orders := InjectHeaders(orderProxy)
	r.Group(func(pr chi.Router) {
		pr.Use(AuthJWT(jwt, deny))

		pr.Post("/cart", addToCart(sessions, orders, log))
		pr.Method(http.MethodGet, "/cart", orders)
		pr.Method(http.MethodDelete, "/cart/{id}", orders)
		pr.Method(http.MethodPost, "/checkout", orders)
		pr.Method(http.MethodGet, "/orders", orders)
		pr.Method(http.MethodGet, "/orders/{id}", orders)
	})

	return &App{Handler: r, Sessions: sessions, Deny: deny}, nil
}

func buildProxies(deps Deps, log *zap.Logger) (authProxy, catalogProxy, orderProxy http.Handler, err error) {
	ap, err := NewReverseProxy(deps.AuthURL, log)
	if err != nil {
		return nil, nil, nil, err
	}

	cp, err := NewReverseProxy(deps.CatalogURL, log)
	if err != nil {
		return nil, nil, nil, err
	}

	op, err := NewReverseProxy(deps.OrderURL, log)
	if err != nil {
		return nil, nil, nil, err
	}

	return ap, cp, op, nil
}

func setupMetrics(r *chi.Mux, deps HTTPDeps) {
	if deps.Registry == nil {
		return
	}

	metrics := kit.NewMetrics(deps.Registry)
	r.Use(metrics.Middleware(deps.Service, kit.RouteLabel))

	if !deps.MetricsEnabled {
		return
	}

	r.With(kit.MetricsAuth(deps.MetricsToken)).
		Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func readyz(deps Deps, log *zap.Logger) http.HandlerFunc {
	upstreams := []struct{ name, url string }{
		{"auth", deps.AuthURL},
		{"catalog", deps.CatalogURL},
		{"order", deps.OrderURL},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		g, gctx := errgroup.WithContext(ctx)
		for _, u := range upstreams {
			g.Go(func() error {
				if err := checkReady(gctx, u.url+"/readyz"); err != nil {
					return fmt.Errorf("%s not ready: %w", u.name, err)
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			log.Warn("readyz failed", zap.Error(err))
			kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", map[string]any{"cause": err.Error()})
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func checkReady(ctx context.Context, url string) error {
	cctx, cancel := context.WithTimeout(ctx, readyProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := readyClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status=%d", resp.StatusCode)
	}

	return nil
}
