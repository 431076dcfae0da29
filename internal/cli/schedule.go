package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/regwatch/internal/pipeline"
	"github.com/ppiankov/regwatch/internal/scheduler"
)

var runNow bool

// scheduleCmd represents the schedule command
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run monitoring cycles on a cron schedule until interrupted",
	Long: `Schedule keeps running and starts a cycle on every tick of the configured
cron expression. A tick that fires while the previous cycle is still running
is skipped.

Example:
  regwatch schedule
  regwatch schedule --cron "0 7 * * *" --timezone America/Los_Angeles --now`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindCycleFlags(cmd, args); err != nil {
			return err
		}
		for flag, key := range map[string]string{"cron": "schedule.cron", "timezone": "schedule.timezone"} {
			if f := cmd.Flags().Lookup(flag); f.Changed {
				if err := viper.BindPFlag(key, f); err != nil {
					return fmt.Errorf("bind --%s: %w", flag, err)
				}
			}
		}
		return nil
	},
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	addCycleFlags(scheduleCmd)
	scheduleCmd.Flags().String("cron", "", "five-field cron expression")
	scheduleCmd.Flags().String("timezone", "", "IANA timezone for the cron expression")
	scheduleCmd.Flags().BoolVar(&runNow, "now", false, "also run a cycle immediately on start")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}

	a, err := newApp(cfg, dryRun)
	if err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}
	defer func() { _ = a.Close() }()

	sched, err := scheduler.New(cfg.Schedule.Timezone)
	if err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}

	task := func(ctx context.Context) { scheduledCycle(ctx, a.cycle) }
	if err := sched.Schedule(cfg.Schedule.Cron, task); err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched.Start()
	log.Info().Time("next", sched.Next()).Msg("scheduler started")

	var wg sync.WaitGroup
	if runNow {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduledCycle(ctx, a.cycle)
		}()
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
	sched.Stop()
	wg.Wait()
	return nil
}

func scheduledCycle(ctx context.Context, cycle *pipeline.Cycle) {
	stats, err := cycle.RunCycle(ctx)
	switch {
	case errors.Is(err, pipeline.ErrCycleInProgress):
		log.Warn().Msg("previous cycle still running, skipping")
	case err != nil:
		log.Error().Err(err).Msg("cycle failed")
	default:
		log.Info().Msg(summary(stats))
	}
}
