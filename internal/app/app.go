package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/auth"
	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/store"
	"github.com/vovakirdan/wirechat-relay/internal/store/memory"
	"github.com/vovakirdan/wirechat-relay/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirechat-relay/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.IdentityStore
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	secret := cfg.JWTSecret
	if secret == "" {
		if secret, err = auth.GenerateSecret(); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		logger.Warn().Msg("jwt_secret is not set, using a random per-process secret; tokens will not survive restarts")
	}

	authService := auth.NewService(&auth.JWTConfig{
		Secret:   []byte(secret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})
	verifier := auth.NewBcryptVerifier(cfg.BcryptCost)

	hub := core.NewHub(st, verifier, authService, logger)
	server := transporthttp.NewServer(hub, authService, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

func openStore(cfg *config.Config, logger *zerolog.Logger) (store.IdentityStore, error) {
	switch cfg.IdentityStore {
	case config.IdentityStoreSQLite:
		st, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("sqlite identity store initialized")
		return st, nil
	case config.IdentityStoreMemory, "":
		logger.Info().Msg("in-memory identity store initialized")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown identity store %q", cfg.IdentityStore)
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		a.hub.Run(hubCtx)
		close(hubDone)
	}()

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	stop := func() {
		stopHub()
		<-hubDone
		a.cleanup()
	}

	select {
	case err := <-serverErr:
		stop()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		// Terminate sessions first so hijacked WebSocket connections close.
		stopHub()
		<-hubDone
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the identity store.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
