package automation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	clierr "github.com/ggonzalez94/satsuma/internal/errors"
	"github.com/ggonzalez94/satsuma/internal/execution"
	"github.com/ggonzalez94/satsuma/internal/metrics"
	"github.com/ggonzalez94/satsuma/internal/registry"
	"github.com/ggonzalez94/satsuma/internal/runstate"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedExecutor struct {
	mu    sync.Mutex
	specs []execution.SwapSpec
	step  func(round int) execution.Outcome
	// after runs once the outcome is produced, still inside the iteration.
	after func(round int)
}

func (e *scriptedExecutor) Execute(ctx context.Context, spec execution.ActionSpec) execution.Outcome {
	e.mu.Lock()
	e.specs = append(e.specs, spec.(execution.SwapSpec))
	round := len(e.specs)
	e.mu.Unlock()
	out := e.step(round)
	if e.after != nil {
		e.after(round)
	}
	return out
}

func (e *scriptedExecutor) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.specs)
}

type memoryStore struct {
	state   runstate.State
	saves   []runstate.State
	loadErr error
	saveErr error
}

func (s *memoryStore) Load() (runstate.State, error) {
	return s.state, s.loadErr
}

func (s *memoryStore) Save(state runstate.State) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.state = state
	s.saves = append(s.saves, state)
	return nil
}

func ok(round int) execution.Outcome {
	return execution.Outcome{Kind: execution.KindSwap, Success: true, TxHash: "0xabc", State: execution.StateDone}
}

func newTestLoop(t *testing.T, exec Executor, store StateStore, m *metrics.Metrics) (*Loop, *[]time.Duration) {
	t.Helper()
	l := NewLoop(exec, store, DefaultConfig(registry.CitreaTestnet()), NewRandomizer(7), nil, m)
	l.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	var slept []time.Duration
	l.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return l, &slept
}

func TestRunCompletesCampaignAndResetsRound(t *testing.T) {
	exec := &scriptedExecutor{step: ok}
	store := &memoryStore{}
	m := metrics.New()
	loop, slept := newTestLoop(t, exec, store, m)

	state, err := loop.Run(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, 3, exec.calls())
	assert.Equal(t, 3, state.TransactionCount)
	assert.Equal(t, 3, state.TotalTransactions)
	assert.Equal(t, 3, state.SuccessfulTransactions)
	assert.Zero(t, state.FailedTransactions)
	assert.Zero(t, state.CurrentRound)
	require.NotNil(t, state.LastTransactionTime)
	assert.Equal(t, state, store.state)

	// No delay after the final iteration.
	require.Len(t, *slept, 2)
	for _, d := range *slept {
		assert.GreaterOrEqual(t, d, DefaultDelayMin)
		assert.LessOrEqual(t, d, DefaultDelayMax)
	}

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var iterations float64
	for _, mf := range families {
		if mf.GetName() == "satsuma_automation_iterations_total" {
			for _, metric := range mf.GetMetric() {
				iterations += metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, float64(3), iterations)
}

func TestRunSurvivesPanickingIteration(t *testing.T) {
	exec := &scriptedExecutor{step: func(round int) execution.Outcome {
		if round == 2 {
			panic("boom")
		}
		return ok(round)
	}}
	store := &memoryStore{}
	loop, _ := newTestLoop(t, exec, store, nil)

	state, err := loop.Run(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, exec.calls())
	assert.Equal(t, 3, state.TotalTransactions)
	assert.Equal(t, 2, state.SuccessfulTransactions)
	assert.Equal(t, 1, state.FailedTransactions)
}

func TestRunContinuesAfterRevert(t *testing.T) {
	exec := &scriptedExecutor{step: func(round int) execution.Outcome {
		if round == 1 {
			return execution.Outcome{Kind: execution.KindSwap, Class: execution.ClassReverted, Error: "execution reverted: STF", State: execution.StateFailed}
		}
		return ok(round)
	}}
	store := &memoryStore{}
	loop, _ := newTestLoop(t, exec, store, nil)

	state, err := loop.Run(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, state.TotalTransactions)
	assert.Equal(t, 1, state.SuccessfulTransactions)
	assert.Equal(t, 1, state.FailedTransactions)
}

func TestRunStopsBetweenIterationsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exec := &scriptedExecutor{step: ok}
	exec.after = func(round int) {
		if round == 2 {
			cancel()
		}
	}
	store := &memoryStore{}
	loop, _ := newTestLoop(t, exec, store, nil)

	state, err := loop.Run(ctx, 5)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, exec.calls())
	assert.Equal(t, 2, state.TotalTransactions)
	assert.Equal(t, 2, state.SuccessfulTransactions)
	// The interrupted round is kept for inspection.
	assert.Equal(t, 2, state.CurrentRound)
	assert.Equal(t, 2, store.state.TotalTransactions)
}

func TestRunResumesCountersFromStore(t *testing.T) {
	store := &memoryStore{state: runstate.State{TotalTransactions: 10, SuccessfulTransactions: 9, FailedTransactions: 1}}
	loop, _ := newTestLoop(t, &scriptedExecutor{step: ok}, store, nil)

	state, err := loop.Run(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 11, state.TotalTransactions)
	assert.Equal(t, 10, state.SuccessfulTransactions)
	assert.Equal(t, 1, state.TransactionCount)
}

func TestRunRejectsEmptyCampaign(t *testing.T) {
	exec := &scriptedExecutor{step: ok}
	loop, _ := newTestLoop(t, exec, &memoryStore{}, nil)

	_, err := loop.Run(context.Background(), 0)
	require.Error(t, err)
	assert.Equal(t, int(clierr.CodeUsage), clierr.ExitCode(err))
	assert.Zero(t, exec.calls())
}

func TestRunKeepsGoingWhenSaveFails(t *testing.T) {
	store := &memoryStore{saveErr: errors.New("disk full")}
	exec := &scriptedExecutor{step: ok}
	loop, _ := newTestLoop(t, exec, store, nil)

	state, err := loop.Run(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, exec.calls())
	assert.Equal(t, 2, state.SuccessfulTransactions)
}

func TestRunSwapsBetweenDistinctCandidates(t *testing.T) {
	exec := &scriptedExecutor{step: ok}
	loop, _ := newTestLoop(t, exec, &memoryStore{}, nil)

	_, err := loop.Run(context.Background(), 5)
	require.NoError(t, err)

	chain := registry.CitreaTestnet()
	allowed := map[string]bool{
		chain.MustToken("USDC").Address.Hex():  true,
		chain.MustToken("WCBTC").Address.Hex(): true,
	}
	for _, spec := range exec.specs {
		assert.NotEqual(t, spec.TokenIn, spec.TokenOut)
		assert.True(t, allowed[spec.TokenIn.Hex()])
		assert.True(t, allowed[spec.TokenOut.Hex()])
		assert.True(t, spec.Amount.GreaterThanOrEqual(decimal.RequireFromString("0.0001")))
		assert.True(t, spec.Amount.LessThanOrEqual(decimal.RequireFromString("0.0002")))
	}
}

func TestSleepContextReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	require.ErrorIs(t, sleepContext(ctx, time.Minute), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))
}
