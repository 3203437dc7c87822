package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/DadGPT/halloween/blob"
	"github.com/DadGPT/halloween/cliparse"
	"github.com/DadGPT/halloween/db"
	"github.com/DadGPT/halloween/live"
	"github.com/DadGPT/halloween/middleware"
	"github.com/DadGPT/halloween/router"
)

func main() {
	var err error

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	if cfg.IsProduction() {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	dialect, err := db.ParseDialect(cfg.DatabaseType)
	if err != nil {
		slog.Error("invalid database type", "error", err)
		os.Exit(1)
	}

	// Connect and verify
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	conn, err := db.Open(ctx, dialect, cfg.DatabaseURL)
	if err != nil {
		cancel()
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Create schema (tables)
	err = conn.CreateSchema(ctx)
	cancel()
	if err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "dialect", dialect)

	// Image storage: the configured backend first, the other as a
	// development fallback
	dbBlobs, diskBlobs := blob.Store(blob.NewDBStore(conn)), blob.Store(blob.NewDiskStore(cfg.UploadDir))
	images := &blob.Fallback{Primary: dbBlobs, Secondary: diskBlobs, AllowFallback: !cfg.IsProduction()}
	if cfg.BlobBackend == cliparse.BlobBackendDisk {
		images.Primary, images.Secondary = diskBlobs, dbBlobs
	}

	hub := live.NewHub()

	// Create router
	mux := router.NewRouter(conn, images, hub, cfg)

	// Create server
	server := http.Server{
		Handler:           middleware.CORS(mux),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("graceful shutdown failed", "error", err)
			server.Close()
		}
		hub.Close()
	}()

	// Start server
	slog.Info("Listening",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"blob_backend", cfg.BlobBackend,
		"timezone", cfg.Timezone,
	)
	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed")
	}
}
