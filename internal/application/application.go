package application

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ShivanshMandolia/Intervu-sub000/internal/config"
	"github.com/ShivanshMandolia/Intervu-sub000/internal/database"
	"github.com/ShivanshMandolia/Intervu-sub000/internal/handler"
	"github.com/ShivanshMandolia/Intervu-sub000/internal/mirror"
	"github.com/ShivanshMandolia/Intervu-sub000/internal/router"
	"github.com/ShivanshMandolia/Intervu-sub000/internal/service"
	"github.com/ShivanshMandolia/Intervu-sub000/pkg/auth"
)

// API is the HTTP + WebSocket collaboration application.
type API struct {
	cfg        *config.Config
	srv        *http.Server
	db         *gorm.DB
	mir        *mirror.Mirror
	dispatcher *service.Dispatcher
	log        *zap.Logger
}

// NewAPI creates the application: validates config, runs migrations,
// opens the stores, and wires the room coordination core.
func NewAPI(cfg *config.Config) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	logger, _ := zap.NewProduction()
	if cfg.AppEnv == "development" {
		logger, _ = zap.NewDevelopment()
	}

	// Activity mirror is optional: without Redis the service runs, it
	// just stops keeping history.
	var mir *mirror.Mirror
	connectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	mir, err = mirror.New(connectCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Warn("redis mirror unavailable, history disabled", zap.Error(err))
		mir = nil
	}

	verifier := auth.New(cfg.JWTSecret)
	registry := service.NewRegistry(logger)
	live := service.NewLiveStore()
	store := service.NewGormRoomStore(db)

	var activity service.ActivityMirror
	if mir != nil {
		activity = mir
	}
	dispatcher := service.NewDispatcher(cfg, logger, live, store, activity)
	admission := service.NewAdmission(cfg, logger, registry, store, live, dispatcher)
	relay := service.NewRelay(registry, logger)

	roomHandler := handler.NewRoomHandler(store, mir, logger)
	collabWS := handler.NewCollabWSHandler(cfg, logger, verifier, registry, admission, dispatcher, relay)
	health := handler.NewHealthHandler()

	r := router.New(roomHandler, collabWS, health, verifier)

	corsWrap := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllow,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           corsWrap.Handler(r),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &API{cfg: cfg, srv: srv, db: db, mir: mir, dispatcher: dispatcher, log: logger}, nil
}

// Run starts the HTTP server and the presence sweeper, blocks until ctx
// is cancelled, then shuts down gracefully.
func (a *API) Run(ctx context.Context) error {
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	log.Printf("HTTP server listening on %s", a.srv.Addr)
	log.Printf("  Health:    http://%s:%s/health", host, a.cfg.HTTPPort)
	log.Printf("  Rooms:     http://%s:%s/rooms", host, a.cfg.HTTPPort)
	log.Printf("  WebSocket: ws://%s:%s/ws?token=...", host, a.cfg.HTTPPort)

	go a.dispatcher.RunSweeper(ctx)

	go func() {
		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http: %v", err)
		}
	}()

	<-ctx.Done()
	if a.mir != nil {
		a.mir.Close()
	}
	_ = a.log.Sync()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
