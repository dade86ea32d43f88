package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"FomoStore/internal/auth"
	"FomoStore/pkg/kit"
)

func main() {
	kit.LoadDotenv()

	service := "auth"
	log := kit.NewLogger(service)
	defer func() { _ = log.Sync() }()

	port := kit.Getenv("PORT", "8081")
	jwtSecret := kit.Getenv("JWT_SECRET", "")
	if len(jwtSecret) < 32 {
		log.Fatal("JWT_SECRET is required and must be at least 32 chars")
	}

	store := auth.NewStore()
	if dsn := kit.Getenv("DATABASE_URL", ""); dsn != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		db, err := kit.OpenPostgres(ctx, dsn)
		cancel()
		if err != nil {
			log.Fatal("open postgres failed", zap.Error(err))
		}
		defer db.Close()
		store = auth.NewPostgresStore(db)
	} else {
		log.Warn("DATABASE_URL not set, users are kept in memory")
	}

	s := &auth.Server{
		Log:   log,
		Store: store,
		JWT:   auth.NewTokenMaker(jwtSecret),
		Deny:  auth.NewDenylist(),
	}

	metricsToken := kit.Getenv("METRICS_TOKEN", "")
	h := auth.NewHandler(s, auth.HTTPDeps{
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
