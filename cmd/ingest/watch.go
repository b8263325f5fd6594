package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	svc "portfolio-rag/internal/services/ingest"
	"portfolio-rag/pkg/apperror"

	"github.com/spf13/cobra"
)

var (
	watchNamespace string
	watchDebounce  time.Duration
	watchInitial   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Re-ingest documents in a directory whenever they change",
	Long: `Watches a directory (not recursive) for new or rewritten .pdf/.txt/.md
files and ingests each one after it has been quiet for --debounce.
Unchanged chunks keep their ids, so re-ingesting overwrites in place.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchNamespace, "namespace", "n", "", "target namespace (default from config)")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", time.Second, "quiet period before a changed file is ingested")
	watchCmd.Flags().BoolVar(&watchInitial, "initial", false, "ingest files already in the directory first")
	watchCmd.Flags().BoolVar(&runJSON, "json", false, "print summaries as JSON")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := svc.NewFromConfig(ctx)
	if err != nil {
		if errors.Is(err, apperror.ErrConfiguration) {
			return &exitError{code: exitConfiguration, err: err}
		}
		return &exitError{code: exitFailed, err: err}
	}
	defer pipeline.Close()

	w := &svc.Watcher{
		Runner:    pipeline,
		Namespace: watchNamespace,
		Debounce:  watchDebounce,
		Initial:   watchInitial,
		OnRun: func(s svc.Summary, _ error) {
			_ = printSummary(cmd.OutOrStdout(), s, runJSON)
		},
	}
	return w.Watch(ctx, args[0])
}
