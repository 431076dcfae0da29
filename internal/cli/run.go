package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var dryRun bool

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one monitoring cycle over every active source",
	Long: `Run fetches every active source once, stores a snapshot of its text,
records changes for review and sends alerts.

Exit codes:
  0  every source was checked
  1  the cycle ran but some sources failed
  2  the cycle could not run

Example:
  regwatch run
  regwatch run --concurrency 8 --cycle-timeout 10m
  regwatch run --dry-run -v`,
	Args:    cobra.NoArgs,
	PreRunE: bindCycleFlags,
	RunE:    runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addCycleFlags(runCmd)
}

// addCycleFlags registers the flags shared by run and schedule
func addCycleFlags(cmd *cobra.Command) {
	cmd.Flags().Int("concurrency", 0, "sources checked in parallel")
	cmd.Flags().Duration("timeout", 0, "per-request HTTP timeout")
	cmd.Flags().Duration("cycle-timeout", 0, "deadline for a whole cycle; unfinished sources are skipped")
	cmd.Flags().String("ua", "", "HTTP User-Agent")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log alerts instead of sending them")
}

// bindCycleFlags binds the invoked command's flags so only explicit values override config
func bindCycleFlags(cmd *cobra.Command, args []string) error {
	bindings := map[string]string{
		"concurrency":   "concurrency.workers",
		"timeout":       "http.timeout",
		"cycle-timeout": "cycle_timeout",
		"ua":            "http.user_agent",
	}
	for flag, key := range bindings {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			if err := viper.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind --%s: %w", flag, err)
			}
		}
	}
	return nil
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}

	a, err := newApp(cfg, dryRun)
	if err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}
	defer func() { _ = a.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	stats, err := a.cycle.RunCycle(ctx)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("cycle failed")
		return &ExitError{Code: ExitFatal, Err: err}
	}

	fmt.Println(summary(stats))

	if stats.Errors > 0 {
		return &ExitError{Code: ExitSourceErrors, Err: fmt.Errorf("%w: %d of %d", ErrSourceErrors, stats.Errors, stats.Total)}
	}
	return nil
}
