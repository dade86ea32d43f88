package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"FomoStore/internal/catalog"
	"FomoStore/internal/order"
	"FomoStore/pkg/kit"
)

func main() {
	kit.LoadDotenv()

	service := "order"
	log := kit.NewLogger(service)
	defer func() { _ = log.Sync() }()

	port := kit.Getenv("PORT", "8083")
	catalogURL := kit.Getenv("CATALOG_URL", "http://localhost:8082")

	store := order.NewStore()
	if dsn := kit.Getenv("DATABASE_URL", ""); dsn != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		db, err := kit.OpenPostgres(ctx, dsn)
		cancel()
		if err != nil {
			log.Fatal("open postgres failed", zap.Error(err))
		}
		defer db.Close()
		store = order.NewPostgresStore(db)
	} else {
		log.Warn("DATABASE_URL not set, carts and orders are kept in memory")
	}

	s := &order.Server{
		Store:   store,
		Catalog: catalog.NewClient(catalogURL),
		Log:     log,
	}

	metricsToken := kit.Getenv("METRICS_TOKEN", "")
	h := order.NewHandler(s, order.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       prometheus.NewRegistry(),
		MetricsEnabled: metricsToken != "",
		MetricsToken:   metricsToken,
	})

	if err := kit.RunHTTPServer(":"+port, h, log); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}
