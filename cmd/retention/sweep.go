package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"coaching-rag-be/internal/apperr"
	"coaching-rag-be/internal/bootstrap"
	"coaching-rag-be/internal/config"
	"coaching-rag-be/internal/dto"
	"coaching-rag-be/internal/pkg/logger"
	"coaching-rag-be/internal/repository/unitofwork"
	"coaching-rag-be/pkg/database"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var sweepFlags dto.CleanupRequest

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete sessions idle for longer than --days-old",
	Long: `Deletes expired conversation sessions with their messages and citation
references in bounded batches. Source documents are never touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSweep(cmd.Context(), cmd.OutOrStdout(), &sweepFlags)
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show what the next sweep would delete without deleting",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := sweepFlags
		req.DryRun = true
		req.Verbose = true
		return runSweep(cmd.Context(), cmd.OutOrStdout(), &req)
	},
}

func init() {
	for _, c := range []*cobra.Command{sweepCmd, previewCmd} {
		c.Flags().IntVar(&sweepFlags.DaysOld, "days-old", 0, "retention horizon in days (default from RETENTION_DAYS_OLD)")
		c.Flags().IntVar(&sweepFlags.BatchSize, "batch-size", 0, "sessions per batch (default from RETENTION_BATCH_SIZE)")
	}
	sweepCmd.Flags().BoolVar(&sweepFlags.DryRun, "dry-run", false, "select and count without deleting")
	sweepCmd.Flags().BoolVar(&sweepFlags.Verbose, "verbose", false, "list up to 10 sessions scheduled for deletion")

	rootCmd.AddCommand(sweepCmd, previewCmd)
}

func runSweep(ctx context.Context, out io.Writer, req *dto.CleanupRequest) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.Load()

	db, err := database.NewGormDB(cfg.Database.Driver, cfg.Database.Connection)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, true)
	defer sysLogger.Sync()

	natsPub, publisher := bootstrap.NewPublisher(cfg)
	if natsPub != nil {
		defer natsPub.Close()
	}

	svc := bootstrap.NewRetentionService(unitofwork.NewRepositoryFactory(db), cfg, publisher, sysLogger)
	res, err := svc.Cleanup(ctx, req)

	var jobErr *apperr.RetentionJobError
	if err != nil && !(errors.As(err, &jobErr) && res != nil) {
		return err
	}

	printReport(out, res)
	return err
}

func printReport(out io.Writer, res *dto.CleanupResponse) {
	heading := color.New(color.FgCyan, color.Bold)
	ok := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)
	bad := color.New(color.FgRed)

	mode := "live"
	if res.Options.DryRun {
		mode = "dry run"
	}
	heading.Fprintf(out, "Retention sweep (%s) at %s\n", mode, res.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "  days_old=%d batch_size=%d\n", res.Options.DaysOld, res.Options.BatchSize)
	fmt.Fprintf(out, "  sessions past horizon: %d\n", res.ScheduledSessionsFound)

	r := res.Result
	if res.Options.DryRun {
		warn.Fprintf(out, "  would delete up to %d sessions\n", r.SessionsSelected)
	} else {
		ok.Fprintf(out, "  deleted %d sessions, %d messages, %d chunk refs in %d batches\n",
			r.SessionsDeleted, r.MessagesDeleted, r.ChunkRefsDeleted, r.BatchesRun)
	}

	if len(r.ScheduledPreview) > 0 {
		heading.Fprintln(out, "Scheduled for deletion:")
		for _, s := range r.ScheduledPreview {
			line := fmt.Sprintf("  %s  %-40q", s.SessionId, s.Title)
			if s.DaysUntilDeletion == 0 {
				bad.Fprintf(out, "%s expired\n", line)
				continue
			}
			warn.Fprintf(out, "%s in %d days\n", line, s.DaysUntilDeletion)
		}
	}

	for _, f := range r.Failed {
		bad.Fprintf(out, "  failed %s: %s\n", f.SessionId, f.Error)
	}
	if !res.Success {
		bad.Fprintln(os.Stderr, "Sweep incomplete, see failures above")
	}
}
