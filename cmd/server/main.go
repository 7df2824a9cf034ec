package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledgersync/internal/config"
	"ledgersync/internal/db"
	"ledgersync/internal/handlers"
	"ledgersync/internal/services"
	"ledgersync/internal/source"
	"ledgersync/internal/source/plaidsrc"
	"ledgersync/internal/source/sim"
	"ledgersync/internal/store"
	"ledgersync/internal/websocket"
)

func main() {
	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	accounts := store.NewLinkedAccountStore(database)
	expenses := store.NewExpenseStore(database)
	categories := store.NewCategoryStore(database)
	logs := store.NewSyncLogStore(database)
	txRunner := db.NewTxRunner(database)
	hub := websocket.NewHub()

	resolver := services.NewCategoryResolver(categories)
	importer := services.NewImporter(expenses, resolver)
	service := services.NewSyncService(txRunner, accounts, logs, importer, newSource(cfg), hub, cfg.SyncWindowDays)

	handler := handlers.New(cfg, accounts, logs, service, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("sync API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}

// newSource picks the transaction source for this process. Plaid credentials
// select the live adapter; otherwise the deterministic simulator is used so
// local environments work without provider access.
func newSource(cfg config.Config) source.Source {
	if cfg.PlaidClientID != "" && cfg.PlaidSecret != "" {
		src, err := plaidsrc.New(cfg.PlaidClientID, cfg.PlaidSecret, cfg.PlaidEnv)
		if err != nil {
			log.Fatalf("failed to configure plaid source: %v", err)
		}
		log.Printf("using plaid source (%s)", cfg.PlaidEnv)
		return src
	}
	log.Printf("no provider credentials set, using simulated source")
	return sim.New()
}
