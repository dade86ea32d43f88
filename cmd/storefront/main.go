package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"FomoStore/internal/fomo"
	"FomoStore/internal/storefront"
	"FomoStore/pkg/kit"
)

func main() {
	kit.LoadDotenv()

	service := "storefront"
	log := kit.NewLogger(service)
	defer func() { _ = log.Sync() }()

	port := kit.Getenv("PORT", "8080")

	jwtSecret := kit.Getenv("JWT_SECRET", "")
	if len(jwtSecret) < 32 {
		log.Fatal("JWT_SECRET is required and must be at least 32 chars")
	}

	def := fomo.DefaultConfig()
	deps := storefront.Deps{
		JWTSecret:  jwtSecret,
		AuthURL:    kit.Getenv("AUTH_URL", "http://auth:8081"),
		CatalogURL: kit.Getenv("CATALOG_URL", "http://catalog:8082"),
		OrderURL:   kit.Getenv("ORDER_URL", "http://order:8083"),
		Sim: fomo.Config{
			ViewerInterval: kit.GetenvDuration("FOMO_VIEWER_INTERVAL", def.ViewerInterval),
			SurgeInterval:  kit.GetenvDuration("FOMO_SURGE_INTERVAL", def.SurgeInterval),
		},
		MaxSessions: kit.GetenvInt("FOMO_MAX_SESSIONS", storefront.DefaultMaxSessions),
	}

	metricsToken := kit.Getenv("METRICS_TOKEN", "")
	app, err := storefront.NewHandler(deps, storefront.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       prometheus.NewRegistry(),
		MetricsEnabled: metricsToken != "",
		MetricsToken:   metricsToken,
	})
	if err != nil {
		log.Fatal("init storefront handler failed", zap.Error(err))
	}

	log.Info("live pricing configured",
		zap.Duration("viewer_interval", deps.Sim.ViewerInterval),
		zap.Duration("surge_interval", deps.Sim.SurgeInterval),
		zap.Int("max_sessions", deps.MaxSessions),
	)

	if err := kit.RunHTTPServer(":"+port, app, log, app.Close); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}
