package handlers

import (
	"net/http"

	"ledgersync/internal/config"
	"ledgersync/internal/middleware"
	"ledgersync/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	cfg      config.Config
	accounts AccountStore
	logs     SyncLogStore
	service  SyncService
	hub      *websocket.Hub
}

func New(cfg config.Config, accounts AccountStore, logs SyncLogStore, service SyncService, hub *websocket.Hub) *Handler {
	return &Handler{
		cfg:      cfg,
		accounts: accounts,
		logs:     logs,
		service:  service,
		hub:      hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Route("/sync", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Post("/", h.SyncAll)
		r.Post("/accounts/{id}", h.SyncAccount)
		r.Get("/status", h.SyncStatus)
		r.Get("/history", h.SyncHistory)
		r.Get("/errors", h.SyncErrors)
		r.Get("/statistics", h.SyncStatistics)
	})
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/accounts", h.ListAccounts)
	router.Get("/ws/sync", h.WSSync)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
