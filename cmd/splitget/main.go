package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/splitget/splitget/internal/domain"
	"github.com/splitget/splitget/internal/engine"
	"github.com/splitget/splitget/internal/fetch"
	"github.com/splitget/splitget/internal/infra/config"
	"github.com/splitget/splitget/internal/infra/logger"
	"github.com/splitget/splitget/internal/store"
)

var (
	connections int
	output      string
	configPath  string
	quiet       bool
)

var rootCmd = &cobra.Command{
	Use:   "splitget [url]",
	Short: "A parallel segmented download manager",
	Long: `splitget downloads a file over several HTTP range requests at once.
Connections that finish early steal work from the slowest segment, so all
of them stay busy until the last byte lands.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDownload(cmd, args[0])
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default splitget.yaml when present)")
	rootCmd.Flags().IntVarP(&connections, "connections", "n", config.DefaultConnections, "Number of parallel connections")
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (default: URL basename in out_dir)")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress the progress line")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// runDownload is the one-shot path: a single job, progress on stdout,
// no daemon. A store row is written only when the config names a store.
func runDownload(cmd *cobra.Command, rawURL string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("connections") {
		cfg.Download.Connections = connections
	}

	// Progress owns stdout, so the CLI logs to stderr or the config file.
	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), false)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	job := domain.NewDownloadJob(ksuid.New().String(), rawURL, cfg.Download.OutDir)
	job.Connections = cfg.Download.Connections
	if output != "" {
		job.Name = filepath.Base(output)
		job.FinalPath = output
		job.PartPath = output + ".part"
	}

	opts := engine.Options{
		Connections:      cfg.Download.Connections,
		SplitThreshold:   cfg.Download.SplitThreshold,
		StreamRetries:    cfg.Download.StreamRetries,
		ProgressInterval: cfg.Download.ProgressInterval,
	}
	if !quiet {
		opts.ProgressOutput = os.Stdout
	}

	downloader := engine.NewDownloader(fetch.NewClient(fetch.DefaultOptions()), log, opts)

	// History is optional for one-shot runs. A failure to open the store
	// should never stop the download itself.
	var history *store.PersistentStore
	if cfg.Store.Driver == "sqlite" && cfg.Store.SQLitePath != "" {
		history, err = store.NewPersistentStore(cfg.Store.SQLitePath)
		if err != nil {
			log.Warn("Could not open history store: %v", err)
			history = nil
		} else {
			defer history.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	job.Status = domain.StatusDownloading
	saveHistory(history, job, log)

	dlErr := downloader.Download(ctx, job)

	job.FinishedAt = time.Now()
	switch {
	case dlErr == nil:
		job.Status = domain.StatusCompleted
		job.BytesWritten.Store(job.TotalBytes)
	case errors.Is(dlErr, context.Canceled):
		job.Status = domain.StatusCancelled
		job.Error = "cancelled by user"
	default:
		job.Status = domain.StatusFailed
		job.Error = dlErr.Error()
	}
	saveHistory(history, job, log)

	if dlErr != nil && errors.Is(dlErr, context.Canceled) {
		return fmt.Errorf("download cancelled, partial file left at %s", job.PartPath)
	}
	return dlErr
}

func saveHistory(history *store.PersistentStore, job *domain.DownloadJob, log *logger.Logger) {
	if history == nil {
		return
	}
	if err := history.SaveJob(job); err != nil {
		log.Warn("Could not record job %s in history: %v", job.ID, err)
	}
}
