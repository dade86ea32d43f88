package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"FomoStore/internal/catalog"
	"FomoStore/pkg/kit"
)

func main() {
	kit.LoadDotenv()

	service := "catalog"
	log := kit.NewLogger(service)
	defer func() { _ = log.Sync() }()

	port := kit.Getenv("PORT", "8082")

	store := catalog.NewStore()
	if dsn := kit.Getenv("DATABASE_URL", ""); dsn != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		db, err := kit.OpenPostgres(ctx, dsn)
		cancel()
		if err != nil {
			log.Fatal("open postgres failed", zap.Error(err))
		}
		defer db.Close()
		store = catalog.NewPostgresStore(db)
	} else {
		log.Warn("DATABASE_URL not set, serving the seeded in-memory catalog")
	}

	s := &catalog.Server{Store: store, Log: log}

	metricsToken := kit.Getenv("METRICS_TOKEN", "")
	h := catalog.NewHandler(s, catalog.HTTPDeps{
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
