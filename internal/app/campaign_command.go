package app

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/ggonzalez94/satsuma/internal/automation"
	clierr "github.com/ggonzalez94/satsuma/internal/errors"
	"github.com/ggonzalez94/satsuma/internal/model"
	"github.com/ggonzalez94/satsuma/internal/runstate"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (s *runtimeState) newRunCommand() *cobra.Command {
	var count int
	var seed uint64
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start an automated swap campaign",
		Long: "Runs the planned number of randomized swaps between the candidate tokens, pausing a\n" +
			"random delay between iterations. Counters are persisted after every iteration; an\n" +
			"interrupt lets the in-flight swap finish and stops before the next one.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rnd *automation.Randomizer
			if cmd.Flags().Changed("seed") {
				rnd = automation.NewRandomizer(seed)
			}
			return s.runCampaign(cmd.Context(), trimRootPath(cmd.CommandPath()), count, rnd)
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "Planned transactions (defaults to the stored count)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for reproducible pair, amount and delay draws")
	return cmd
}

func (s *runtimeState) newCountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "count <n>",
		Short: "Set the planned transaction count for the next campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "parse transaction count", err)
			}
			status, err := s.setPlannedCount(n)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), status)
		},
	}
}

func (s *runtimeState) newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show campaign counters and recorded outcome totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			state, err := s.state.Load()
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "load run state", err)
			}
			status, err := s.campaignStatus(state)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), status)
		},
	}
}

func (s *runtimeState) setPlannedCount(n int) (model.CampaignStatus, error) {
	if n <= 0 {
		return model.CampaignStatus{}, clierr.New(clierr.CodeUsage, "transaction count must be greater than zero")
	}
	state, err := s.state.Load()
	if err != nil {
		return model.CampaignStatus{}, clierr.Wrap(clierr.CodeInternal, "load run state", err)
	}
	state.TransactionCount = n
	if err := s.state.Save(state); err != nil {
		return model.CampaignStatus{}, clierr.Wrap(clierr.CodeInternal, "save run state", err)
	}
	return s.campaignStatus(state)
}

// runCampaign resolves the planned count before connecting so a campaign
// without a count fails without touching the chain.
func (s *runtimeState) runCampaign(parent context.Context, commandPath string, count int, rnd *automation.Randomizer) error {
	planned := count
	if planned <= 0 {
		state, err := s.state.Load()
		if err != nil {
			return clierr.Wrap(clierr.CodeInternal, "load run state", err)
		}
		planned = state.TransactionCount
	}
	if planned <= 0 {
		return clierr.New(clierr.CodeUsage, "set transaction count first")
	}
	cfg, err := s.settings.AutomationConfig(s.chain)
	if err != nil {
		return clierr.Wrap(clierr.CodeUsage, "automation settings", err)
	}

	ctx, cancel := signalContext(parent)
	defer cancel()

	sess, err := s.connect(ctx)
	if err != nil {
		return err
	}

	stopMetrics := s.serveMetrics(ctx)
	defer stopMetrics()

	loop := automation.NewLoop(sess.sequencer, s.state, cfg, rnd, s.logger, s.metrics)
	final, err := loop.Run(ctx, planned)
	if err != nil && ctx.Err() == nil {
		return err
	}
	if ctx.Err() != nil {
		s.logger.Warn("campaign stopped by user", zap.Int("round", final.CurrentRound))
	}
	status, err := s.campaignStatus(final)
	if err != nil {
		return err
	}
	return s.emitSuccess(commandPath, status)
}

// serveMetrics exposes /metrics for the lifetime of a campaign when an
// address is configured. The returned func stops the server and waits.
func (s *runtimeState) serveMetrics(parent context.Context) func() {
	if s.settings.MetricsAddr == "" {
		return func() {}
	}
	ctx, cancel := context.WithCancel(parent)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.metrics.Serve(ctx, s.settings.MetricsAddr); err != nil {
			s.logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	s.logger.Info("serving metrics", zap.String("addr", s.settings.MetricsAddr))
	return func() {
		cancel()
		wg.Wait()
	}
}

func (s *runtimeState) campaignStatus(state runstate.State) (model.CampaignStatus, error) {
	status := model.CampaignStatus{
		PlannedTransactions:    state.TransactionCount,
		CurrentRound:           state.CurrentRound,
		TotalTransactions:      state.TotalTransactions,
		SuccessfulTransactions: state.SuccessfulTransactions,
		FailedTransactions:     state.FailedTransactions,
		StatePath:              s.state.Path(),
	}
	if state.LastTransactionTime != nil {
		status.LastTransactionTime = state.LastTransactionTime.UTC().Format(time.RFC3339)
	}
	store, err := s.openHistory()
	if err != nil {
		return model.CampaignStatus{}, err
	}
	total, succeeded, err := store.Count()
	if err != nil {
		return model.CampaignStatus{}, clierr.Wrap(clierr.CodeInternal, "count outcomes", err)
	}
	status.RecordedOutcomes = total
	status.RecordedSuccesses = succeeded
	return status, nil
}
