package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/splitget/splitget/internal/domain"
	"github.com/splitget/splitget/internal/infra/config"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List every job the store knows about",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}

	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	jobs, err := st.GetJobs()
	if err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs recorded yet.")
		return nil
	}

	fmt.Printf("%-29s %-32s %-12s %10s %-20s %s\n", "ID", "NAME", "STATUS", "SIZE", "CREATED", "ERROR")
	for _, job := range jobs {
		fmt.Printf("%-29s %-32s %-12s %10s %-20s %s\n",
			job.ID,
			truncate(job.Name, 32),
			job.Status,
			sizeColumn(job),
			job.CreatedAt.Format(time.DateTime),
			job.Error,
		)
	}

	return nil
}

// sizeColumn shows how far a job got. Finished jobs just show the total.
func sizeColumn(job *domain.DownloadJob) string {
	if job.TotalBytes <= 0 {
		return "-"
	}
	if job.Status == domain.StatusCompleted {
		return humanize.Bytes(uint64(job.TotalBytes))
	}
	return fmt.Sprintf("%s/%s", humanize.Bytes(uint64(job.BytesWritten.Load())), humanize.Bytes(uint64(job.TotalBytes)))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
