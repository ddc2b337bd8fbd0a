package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"hyperadmin/internal/auth"
	"hyperadmin/internal/config"
	"hyperadmin/internal/db"
	"hyperadmin/internal/httpserver"
	"hyperadmin/internal/logging"
	"hyperadmin/internal/media"
	"hyperadmin/internal/users"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.New(cfg.LogFormat, cfg.Debug)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	handler, cleanup, err := buildHandler(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	server := httpserver.New(cfg.HTTPAddr, handler, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// buildHandler opens the configured stores, seeds admins and assembles the
// router. cleanup releases the database connection, if any.
func buildHandler(ctx context.Context, cfg *config.Config, logger *slog.Logger) (http.Handler, func(), error) {
	var (
		userStore  users.Store
		adminStore auth.CredentialStore
		cleanup    = func() {}
	)

	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		userStore = users.NewMemoryStore()
		adminStore = auth.NewMemoryStore()
	default:
		conn, err := openDB(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigrations(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		cleanup = func() { _ = conn.Close() }
		userStore = users.NewPostgresStore(conn)
		adminStore = auth.NewStore(conn)
	}

	if err := seedAdmins(ctx, cfg, adminStore); err != nil {
		cleanup()
		return nil, nil, err
	}

	authSvc, err := auth.NewService(adminStore, cfg.SecretKey, cfg.Algorithm, cfg.TokenTTL())
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	opts := []users.Option{users.WithLogger(logger)}
	if cfg.CardUploadsEnabled() {
		cards, err := media.NewS3Storage(ctx, media.Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Endpoint:        cfg.S3Endpoint,
			BaseURL:         cfg.S3BaseURL,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		opts = append(opts, users.WithCardStorage(cards))
		logger.Info("card uploads enabled", "bucket", cfg.S3Bucket)
	}
	userSvc := users.NewService(userStore, cfg.StoreTimeout, opts...)

	handler := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:         logger,
		APIPrefix:      cfg.APIPrefix,
		CORSOrigins:    cfg.CORSOrigins,
		LoginRateLimit: cfg.LoginRateLimit,
		Auth:           authSvc,
		Users:          userSvc,
	})
	return handler, cleanup, nil
}

func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	defer cancel()
	conn, err := db.Open(pingCtx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return conn, nil
}

func seedAdmins(ctx context.Context, cfg *config.Config, store auth.CredentialStore) error {
	if cfg.AdminsPath != "" {
		if err := auth.SeedFromFile(ctx, store, cfg.AdminsPath); err != nil {
			return fmt.Errorf("seed admins: %w", err)
		}
	}
	if cfg.AdminUsername != "" && cfg.AdminPassword != "" {
		if err := auth.SeedAdmin(ctx, store, cfg.AdminUsername, cfg.AdminPassword, auth.RoleAdmin); err != nil {
			return fmt.Errorf("seed admin %q: %w", cfg.AdminUsername, err)
		}
	}
	return nil
}
