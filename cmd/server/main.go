package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spooldash/spooldash/internal/api"
	"github.com/spooldash/spooldash/internal/catalog"
	"github.com/spooldash/spooldash/internal/config"
	"github.com/spooldash/spooldash/internal/db"
	"github.com/spooldash/spooldash/internal/events"
	"github.com/spooldash/spooldash/internal/gateway"
	"github.com/spooldash/spooldash/internal/logging"
	"github.com/spooldash/spooldash/internal/migrations"
	"github.com/spooldash/spooldash/internal/seed"
	"github.com/spooldash/spooldash/internal/session"
	"github.com/spooldash/spooldash/internal/settings"
	"github.com/spooldash/spooldash/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	defer log.Sync()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	defer database.Close()

	if err := migrations.Up(database); err != nil {
		log.Fatal("failed to run database migrations", zap.Error(err))
	}

	stats, err := seed.Run(database, cfg.SeedDemo && cfg.IsDev())
	if err != nil {
		log.Fatal("failed to run startup seed", zap.Error(err))
	}
	if stats.Inserts > 0 {
		log.Info("startup seed applied", zap.Int("inserts", stats.Inserts))
	}

	bus := events.NewBus()
	st := store.New(database, bus)
	set := settings.New(st, log)

	resolver, stopResolver := catalog.NewResolver(st, bus, log)
	defer stopResolver()

	gw, stopGateway := gateway.New(st, bus, log)
	defer stopGateway()

	sessions := session.NewManager()

	server := api.New(st, set, resolver, gw, sessions, bus, log, cfg.Currency)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		log.Info("listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
