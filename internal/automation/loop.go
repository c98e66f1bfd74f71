package automation

import (
	"context"
	"fmt"
	"time"

	clierr "github.com/ggonzalez94/satsuma/internal/errors"
	"github.com/ggonzalez94/satsuma/internal/execution"
	"github.com/ggonzalez94/satsuma/internal/logging"
	"github.com/ggonzalez94/satsuma/internal/metrics"
	"github.com/ggonzalez94/satsuma/internal/registry"
	"github.com/ggonzalez94/satsuma/internal/runstate"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Executor interface {
	Execute(ctx context.Context, spec execution.ActionSpec) execution.Outcome
}

type StateStore interface {
	Load() (runstate.State, error)
	Save(runstate.State) error
}

type Config struct {
	Candidates []registry.Token
	AmountMin  decimal.Decimal
	AmountMax  decimal.Decimal
	Precision  int32
	DelayMin   time.Duration
	DelayMax   time.Duration
}

func DefaultConfig(chain registry.Chain) Config {
	return Config{
		Candidates: []registry.Token{chain.MustToken("USDC"), chain.MustToken("WCBTC")},
		AmountMin:  DefaultAmountMin,
		AmountMax:  DefaultAmountMax,
		Precision:  DefaultPrecision,
		DelayMin:   DefaultDelayMin,
		DelayMax:   DefaultDelayMax,
	}
}

// Loop runs a campaign of randomized swaps, persisting counters after every
// iteration so an interrupted campaign can be inspected or resumed.
type Loop struct {
	exec    Executor
	store   StateStore
	cfg     Config
	rand    *Randomizer
	logger  *zap.Logger
	metrics *metrics.Metrics

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewLoop(exec Executor, store StateStore, cfg Config, rnd *Randomizer, logger *zap.Logger, m *metrics.Metrics) *Loop {
	if rnd == nil {
		rnd = NewTimeSeededRandomizer()
	}
	if cfg.Precision <= 0 {
		cfg.Precision = DefaultPrecision
	}
	return &Loop{
		exec:    exec,
		store:   store,
		cfg:     cfg,
		rand:    rnd,
		logger:  logging.OrNop(logger),
		metrics: m,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Run executes planned iterations. Cancelling ctx lets the in-flight
// iteration finish and stops before the next one; the partial state is
// returned together with ctx.Err().
func (l *Loop) Run(ctx context.Context, planned int) (runstate.State, error) {
	if planned <= 0 {
		return runstate.State{}, clierr.New(clierr.CodeUsage, "set transaction count first")
	}
	state, err := l.store.Load()
	if err != nil {
		return runstate.State{}, clierr.Wrap(clierr.CodeInternal, "load run state", err)
	}
	state.TransactionCount = planned
	l.persist(state)

	l.logger.Info("starting automation", zap.Int("planned", planned))
	for i := 1; i <= planned; i++ {
		if ctx.Err() != nil {
			break
		}
		state.CurrentRound = i
		started := l.now()
		outcome := l.iterate(context.WithoutCancel(ctx), i, planned)
		if outcome.Success {
			state.RecordSuccess(l.now())
		} else {
			state.RecordFailure(l.now())
		}
		l.metrics.RecordIteration(i, outcome.Success, l.now().Sub(started))
		l.persist(state)

		if i < planned {
			delay := l.rand.Delay(l.cfg.DelayMin, l.cfg.DelayMax)
			l.logger.Debug("waiting before next transaction", zap.Duration("delay", delay))
			if err := l.sleep(ctx, delay); err != nil {
				break
			}
		}
	}

	if err := ctx.Err(); err != nil {
		l.logger.Warn("automation interrupted",
			zap.Int("round", state.CurrentRound),
			zap.String("summary", state.Summary()),
		)
		return state, err
	}
	state.CurrentRound = 0
	l.persist(state)
	l.logger.Info("automation complete", zap.String("summary", state.Summary()))
	return state, nil
}

func (l *Loop) iterate(ctx context.Context, round, planned int) (out execution.Outcome) {
	log := l.logger.With(zap.Int("round", round), zap.Int("planned", planned))
	defer func() {
		if r := recover(); r != nil {
			log.Error("iteration panicked", zap.Any("panic", r))
			out = execution.Outcome{
				ID:        execution.NewOutcomeID(),
				Kind:      execution.KindSwap,
				Class:     execution.ClassPanic,
				Error:     fmt.Sprint(r),
				State:     execution.StateFailed,
				Timestamp: l.now().UTC(),
			}
		}
	}()

	in, outTok, err := l.rand.Pair(l.cfg.Candidates)
	if err != nil {
		log.Error("cannot pick swap pair", zap.Error(err))
		return execution.Outcome{
			ID:        execution.NewOutcomeID(),
			Kind:      execution.KindSwap,
			Class:     execution.ClassValidation,
			Error:     err.Error(),
			State:     execution.StateFailed,
			Timestamp: l.now().UTC(),
		}
	}
	amt := l.rand.Amount(l.cfg.AmountMin, l.cfg.AmountMax, l.cfg.Precision)
	log.Info("swapping",
		zap.String("amount", amt.String()),
		zap.String("token_in", in.Symbol),
		zap.String("token_out", outTok.Symbol),
	)
	out = l.exec.Execute(ctx, execution.SwapSpec{TokenIn: in.Address, TokenOut: outTok.Address, Amount: amt})
	if out.Success {
		log.Info("transaction confirmed", zap.String("tx_hash", out.TxHash))
	} else {
		log.Warn("transaction failed", zap.String("class", string(out.Class)), zap.String("error", out.Error))
	}
	return out
}

func (l *Loop) persist(state runstate.State) {
	if err := l.store.Save(state); err != nil {
		l.logger.Error("failed to save run state", zap.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
