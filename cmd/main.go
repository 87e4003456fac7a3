package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"townchat/backend/internal/api/handler"
	"townchat/backend/internal/auth"
	"townchat/backend/internal/chathub"
	"townchat/backend/internal/config"
	"townchat/backend/internal/logger"
	"townchat/backend/internal/resource"
	"townchat/backend/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Printf("ERROR: %v", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("townchat", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "path to a config file (yaml, json or toml)")
	addr := flags.String("addr", "", "listen address, overrides server.addr")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	closer, err := logger.Setup(cfg.Logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	logger.Infof("Starting TownChat gateway...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.OpenPostgres(cfg.Database)
	if err != nil {
		return err
	}
	if cfg.Database.AutoMigrate {
		if err := storage.Migrate(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Infof("Migrations complete")
	}
	store := storage.NewStorageService(db)

	bus, err := openBus(ctx, cfg)
	if err != nil {
		return err
	}
	defer bus.Close()

	validator := auth.NewValidator(cfg.Auth)
	hub := chathub.NewManager(validator, store, bus, chathub.SessionConfigFrom(cfg.Session, cfg.Bus))

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	handler.NewHandler(hub, store, resource.NewClient(cfg.Resources), validator, cfg.Server).Register(r)

	server := &http.Server{
		Addr:           cfg.Server.Addr,
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Infof("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Hijacked websocket connections are not tracked by the server.
		hub.Shutdown()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openBus connects the configured fan-out backend. The node id tags this
// process's publications on shared brokers.
func openBus(ctx context.Context, cfg *config.Config) (chathub.Bus, error) {
	node := uuid.NewString()

	switch cfg.Bus.Backend {
	case "memory":
		logger.Warningf("Using in-process bus; messages do not reach other instances")
		return chathub.NewMemoryBus(), nil
	case "redis":
		client, err := chathub.OpenRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return chathub.NewRedisBus(ctx, client, node), nil
	case "nats":
		conn, err := chathub.ConnectNats(cfg.Nats, "townchat-"+node)
		if err != nil {
			return nil, err
		}
		return chathub.NewNatsBus(conn, node), nil
	}
	return nil, fmt.Errorf("unknown bus backend %q", cfg.Bus.Backend)
}
