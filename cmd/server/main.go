package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/battlefield-lobby/internal/config"
	"github.com/DoyleJ11/battlefield-lobby/internal/credentials"
	"github.com/DoyleJ11/battlefield-lobby/internal/httpapi"
	"github.com/DoyleJ11/battlefield-lobby/internal/hub"
	"github.com/DoyleJ11/battlefield-lobby/internal/logger"
	"github.com/DoyleJ11/battlefield-lobby/internal/registry"
	"github.com/DoyleJ11/battlefield-lobby/internal/session"
	"github.com/DoyleJ11/battlefield-lobby/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}

	os.Exit(exitCode(log, run(cfg, log)))
}

// exitCode logs err and flushes log. It returns the process exit status.
func exitCode(log *zap.Logger, err error) int {
	code := 0
	if err != nil {
		log.Error("server stopped", zap.Error(err))
		code = 1
	}
	_ = log.Sync()
	return code
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openCredentials(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := registry.New()
	h := hub.NewHub(ctx, cfg.Rules, hub.WithLogger(log), hub.WithBinder(reg))
	sessions := session.NewManager(h, reg, log)

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Sessions:       sessions,
			Credentials:    store,
			WebSocket:      ws.Handler(sessions, cfg.WS, log),
			AllowedOrigins: cfg.AllowedOrigins,
			Log:            log,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down",
			zap.Int("connections", sessions.Connections()),
			zap.Int("bound", reg.Len()),
		)
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Stopping the hub closes every peer, which ends the hijacked
		// websocket handlers that Shutdown does not track.
		if rooms, err := sessions.Rooms(sctx); err == nil {
			for _, r := range rooms {
				log.Info("closing room", zap.String("room", r.Room), zap.Int("connections", r.Connections))
			}
		}
		select {
		case h.Inbox() <- hub.ShutdownHub{}:
		case <-h.Done():
		}
		select {
		case <-h.Done():
		case <-sctx.Done():
		}
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// openCredentials picks the postgres-backed store when DATABASE_URL is set and
// seeds it from CREDENTIALS; otherwise CREDENTIALS is the whole table.
func openCredentials(ctx context.Context, cfg config.Config, log *zap.Logger) (credentials.Store, func(), error) {
	entries, err := credentials.ParseEntries(cfg.Credentials)
	if err != nil {
		return nil, nil, fmt.Errorf("CREDENTIALS: %w", err)
	}
	if cfg.DatabaseURL == "" {
		s, err := credentials.NewStaticStore(entries)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using static credential table", zap.Int("entries", len(entries)))
		return s, func() {}, nil
	}

	s, err := credentials.OpenGorm(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Seed(ctx, entries); err != nil {
		_ = s.Close()
		return nil, nil, err
	}
	log.Info("using postgres credential store")
	return s, func() { _ = s.Close() }, nil
}
