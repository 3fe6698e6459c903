package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erazemk/catalog/internal/blob"
	"github.com/erazemk/catalog/internal/config"
	"github.com/erazemk/catalog/internal/db"
	"github.com/erazemk/catalog/internal/identity"
	"github.com/erazemk/catalog/internal/imaging"
	"github.com/erazemk/catalog/internal/obs"
	"github.com/erazemk/catalog/internal/session"
	"github.com/erazemk/catalog/internal/store"
	"github.com/erazemk/catalog/internal/web"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. If logPath is non-empty, all levels are also written to that file.
// Returns a cleanup function that closes the log file (if opened).
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var cleanup func()

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	handler := &levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

func main() {
	cfg, err := config.Load(os.Args[1:], os.Stdout)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := setupLogger(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		if closeLog != nil {
			closeLog()
		}
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	database, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(ctx, database); err != nil {
		return err
	}
	slog.Info("database ready", "dialect", database.Dialect)

	if n, err := store.DeleteExpiredSessions(ctx, database, time.Now()); err != nil {
		slog.Warn("failed to delete expired sessions", "error", err)
	} else if n > 0 {
		slog.Info("deleted expired sessions", "count", n)
	}

	// Session signing key is generated on first run and kept in the database.
	sessionKey, err := store.GetSessionKey(ctx, database)
	if err != nil {
		return err
	}

	var blobs blob.Store = blob.NewDBStore(database)
	if cfg.S3.Bucket != "" {
		blobs, err = blob.NewS3Store(ctx, blob.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			return err
		}
		slog.Info("storing pictures in s3", "bucket", cfg.S3.Bucket)
	}

	if cfg.ClientID == "" {
		slog.Warn("no Login with Amazon client ID configured, logins will fail")
	}

	obs.Init()

	router, err := web.NewRouter(web.Deps{
		DB: database,
		Sessions: session.NewManager(database, sessionKey, session.Options{
			MaxAge: time.Duration(cfg.SessionMaxAge),
			Secure: cfg.SecureCookies,
		}),
		Verifier: identity.NewAmazon(identity.Config{
			ClientID:     cfg.ClientID,
			TokenInfoURL: cfg.TokenInfoURL,
			ProfileURL:   cfg.ProfileURL,
			Timeout:      time.Duration(cfg.VerifierTimeout),
		}),
		Blobs:        blobs,
		Images:       &imaging.Processor{MaxDimension: cfg.ImageMaxSize, Quality: imaging.DefaultQuality},
		ClientID:     cfg.ClientID,
		LatestItems:  cfg.LatestItems,
		MaxBodyBytes: cfg.MaxBodyBytes,
		LoginRate:    cfg.LoginRate,
		LoginBurst:   cfg.LoginBurst,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           obs.RequestID(obs.LoggingMiddleware(router)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	slog.Info("server stopped, closing database")
	return nil
}
