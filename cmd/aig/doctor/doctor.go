// Package doctorcmder provides the doctor command for checking the
// health of every configured adapter.
package doctorcmder

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aigolabs/aig/pkg/adapters"
	"github.com/aigolabs/aig/pkg/config"
	"github.com/aigolabs/aig/pkg/health"
	"github.com/aigolabs/aig/pkg/logger"
)

const doctorLongDesc string = `Check the health of every configured adapter.

Builds the storage, event sink and vector store backends from the current
configuration and probes each one, printing a status line per adapter.

Exits non-zero if any adapter reports unhealthy.

Examples:
  aig doctor
  AIG_STORAGE_BACKEND=postgres aig doctor`

const doctorShortDesc string = "Check adapter health"

const checkTimeout = 10 * time.Second

func NewDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: doctorShortDesc,
		Long:  doctorLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			configDir, _ := cmd.Flags().GetString("config")

			return runDoctor(cmd.Context(), configDir, debug)
		},
	}

	return cmd
}

func runDoctor(ctx context.Context, configDir string, debug bool) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.NewLogger(debug)
	defer log.Sync() //nolint:errcheck

	set, err := adapters.NewSet(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("building adapters: %w", err)
	}
	defer set.Close() //nolint:errcheck

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	reports := []struct {
		name   string
		report health.Report
	}{
		{"storage", set.Storage.HealthCheck(checkCtx)},
		{"events", set.EventSink.HealthCheck(checkCtx)},
		{"vectors", set.VectorStore.HealthCheck(checkCtx)},
	}

	failed := false
	for _, r := range reports {
		printReport(r.name, r.report)
		if r.report.Status == health.StatusUnhealthy {
			failed = true
		}
	}

	if failed {
		return fmt.Errorf("one or more adapters are unhealthy")
	}

	return nil
}

func printReport(name string, r health.Report) {
	fmt.Printf("  ● %-8s %-10s %s", name, r.Status, r.Message)
	if r.PendingEvents != nil {
		fmt.Printf(" (pending: %d)", *r.PendingEvents)
	}
	if r.DocumentCount != nil {
		fmt.Printf(" (documents: %d)", *r.DocumentCount)
	}
	fmt.Println()
}
