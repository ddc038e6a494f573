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

	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"

	"github.com/splitget/splitget/internal/api"
	"github.com/splitget/splitget/internal/app"
	"github.com/splitget/splitget/internal/engine"
	"github.com/splitget/splitget/internal/fetch"
	"github.com/splitget/splitget/internal/infra/config"
	"github.com/splitget/splitget/internal/infra/logger"
	"github.com/splitget/splitget/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the queue daemon with the REST API",
	Long: `serve keeps a persistent job queue and exposes it over HTTP.
Jobs run one at a time; interrupted jobs restart when the daemon comes back.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	appCtx := app.NewContext(cfg, log)

	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()
	appCtx.Store = st

	downloader := engine.NewDownloader(fetch.NewClient(fetch.DefaultOptions()), log, engine.Options{
		Connections:      cfg.Download.Connections,
		SplitThreshold:   cfg.Download.SplitThreshold,
		StreamRetries:    cfg.Download.StreamRetries,
		ProgressInterval: cfg.Download.ProgressInterval,
	})

	queue := engine.NewQueueManager(appCtx, downloader, true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go queue.Start(ctx)

	e := echo.New()
	api.RegisterRoutes(e, appCtx, queue)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: e,
	}

	go func() {
		log.Info("API listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("API server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// openStore picks the store backend from config. The default is a local
// sqlite file next to the process.
func openStore(ctx context.Context, cfg *config.Config) (app.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgresStore(ctx, cfg.Store.PostgresDSN)
	default:
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "splitget.db"
		}
		return store.NewPersistentStore(path)
	}
}
