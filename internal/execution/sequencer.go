package execution

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ggonzalez94/satsuma/internal/amount"
	"github.com/ggonzalez94/satsuma/internal/logging"
	"github.com/ggonzalez94/satsuma/internal/registry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const nativeDecimals = 18

type DecimalsReader interface {
	Decimals(ctx context.Context, token common.Address) (int, error)
}

type LockReader interface {
	LockEnd(ctx context.Context, escrow, owner common.Address) (time.Time, error)
}

type SequencerDeps struct {
	Chain     registry.Chain
	Account   common.Address
	Nonces    *NonceManager
	Decimals  DecimalsReader
	Locks     LockReader
	Gate      *ApprovalGate
	Builder   *Builder
	Submitter TxSubmitter
	History   *History
	Logger    *zap.Logger
}

// Sequencer runs one ActionSpec through resolving, approving and executing.
// It never retries and records exactly one terminal outcome per call.
type Sequencer struct {
	SequencerDeps
	now func() time.Time
}

func NewSequencer(deps SequencerDeps) *Sequencer {
	deps.Logger = logging.OrNop(deps.Logger)
	return &Sequencer{SequencerDeps: deps, now: time.Now}
}

// approvalLeg is one allowance requirement of a plan.
type approvalLeg struct {
	token   common.Address
	spender common.Address
	amount  *big.Int
}

type plan struct {
	approvals []approvalLeg
	build     func(ctx context.Context, nonce uint64) (TransactionRequest, error)
}

func (s *Sequencer) Execute(ctx context.Context, spec ActionSpec) Outcome {
	kind := spec.Kind()
	log := s.Logger.With(zap.String("action", string(kind)))

	if err := ValidateFor(s.Chain, spec); err != nil {
		return s.finish(failedOutcome(kind, ClassValidation, err))
	}

	unlock := s.Nonces.Lock(s.Account)
	defer unlock()

	log.Debug("resolving")
	p, err := s.resolve(ctx, spec)
	if err != nil {
		class := ClassResolve
		if isPrecisionError(err) {
			class = ClassValidation
		}
		return s.finish(failedOutcome(kind, class, err))
	}
	nonce, err := s.Nonces.Next(ctx, s.Account)
	if err != nil {
		return s.finish(failedOutcome(kind, ClassResolve, err))
	}

	if len(p.approvals) > 0 {
		log.Debug("approving", zap.Int("legs", len(p.approvals)), zap.Uint64("nonce", nonce))
	}
	for _, leg := range p.approvals {
		res := s.Gate.EnsureAllowance(ctx, s.Account, leg.token, leg.spender, leg.amount, nonce)
		if !res.OK {
			s.Nonces.Reset(s.Account)
			out := failedOutcome(kind, ClassApproval, errors.New(res.Reason))
			out.Nonce = noncePtr(nonce)
			return s.finish(out)
		}
		if res.Submitted {
			s.Nonces.Confirm(s.Account, nonce)
		}
		nonce = res.Nonce
	}

	log.Debug("executing", zap.Uint64("nonce", nonce))
	req, err := p.build(ctx, nonce)
	if err != nil {
		out := failedOutcome(kind, ClassBuild, err)
		out.Nonce = noncePtr(nonce)
		return s.finish(out)
	}
	out := s.Submitter.Submit(ctx, req)
	out.Kind = kind
	if out.Success {
		s.Nonces.Confirm(s.Account, nonce)
	} else {
		s.Nonces.Reset(s.Account)
	}
	return s.finish(out)
}

func (s *Sequencer) finish(out Outcome) Outcome {
	if out.Success {
		out.State = StateDone
	} else {
		out.State = StateFailed
	}
	if out.ExplorerURL == "" && out.TxHash != "" {
		out.ExplorerURL = s.Chain.TxURL(out.TxHash)
	}
	s.History.Append(out)
	return out
}

func (s *Sequencer) resolve(ctx context.Context, spec ActionSpec) (plan, error) {
	c := s.Chain.Contracts
	switch v := spec.(type) {
	case SwapSpec:
		amountIn, err := s.scale(ctx, v.TokenIn, v.Amount)
		if err != nil {
			return plan{}, err
		}
		return plan{
			approvals: []approvalLeg{{token: v.TokenIn, spender: c.SwapRouter, amount: amountIn}},
			build: func(ctx context.Context, nonce uint64) (TransactionRequest, error) {
				return s.Builder.Swap(ctx, s.Account, v.TokenIn, v.TokenOut, amountIn, nonce)
			},
		}, nil
	case AddLiquiditySpec:
		amountA, err := s.scale(ctx, v.TokenA, v.AmountA)
		if err != nil {
			return plan{}, err
		}
		amountB, err := s.scale(ctx, v.TokenB, v.AmountB)
		if err != nil {
			return plan{}, err
		}
		return plan{
			approvals: []approvalLeg{
				{token: v.TokenA, spender: c.LiquidityRouter, amount: amountA},
				{token: v.TokenB, spender: c.LiquidityRouter, amount: amountB},
			},
			build: func(ctx context.Context, nonce uint64) (TransactionRequest, error) {
				return s.Builder.AddLiquidity(ctx, s.Account, v.TokenA, v.TokenB, amountA, amountB, nonce)
			},
		}, nil
	case ConvertToLockSpec:
		suma, err := s.Chain.Token("SUMA")
		if err != nil {
			return plan{}, err
		}
		locked, err := s.scale(ctx, suma.Address, v.Amount)
		if err != nil {
			return plan{}, err
		}
		return plan{
			approvals: []approvalLeg{{token: suma.Address, spender: c.VotingEscrow, amount: locked}},
			build: func(ctx context.Context, nonce uint64) (TransactionRequest, error) {
				return s.Builder.CreateLock(ctx, s.Account, locked, v.Days, nonce)
			},
		}, nil
	case ConvertFromLockSpec:
		s.checkLockExpiry(ctx)
		return plan{
			build: func(ctx context.Context, nonce uint64) (TransactionRequest, error) {
				return s.Builder.Withdraw(ctx, s.Account, nonce)
			},
		}, nil
	case StakeSpec:
		staked, err := s.scale(ctx, c.VotingEscrow, v.Amount)
		if err != nil {
			return plan{}, err
		}
		return plan{
			approvals: []approvalLeg{{token: c.VotingEscrow, spender: c.Staking, amount: staked}},
			build: func(ctx context.Context, nonce uint64) (TransactionRequest, error) {
				return s.Builder.Stake(ctx, s.Account, staked, nonce)
			},
		}, nil
	case VoteSpec:
		return plan{
			build: func(ctx context.Context, nonce uint64) (TransactionRequest, error) {
				return s.Builder.Vote(ctx, s.Account, v.Gauge, v.Weight, nonce)
			},
		}, nil
	default:
		return plan{}, fmt.Errorf("unsupported action %T", spec)
	}
}

// checkLockExpiry is advisory: the withdraw is attempted whatever it finds.
func (s *Sequencer) checkLockExpiry(ctx context.Context) {
	if s.Locks == nil {
		return
	}
	end, err := s.Locks.LockEnd(ctx, s.Chain.Contracts.VotingEscrow, s.Account)
	switch {
	case err != nil:
		s.Logger.Warn("could not read lock expiry; attempting withdraw anyway", zap.Error(err))
	case end.IsZero():
		s.Logger.Warn("no active lock found; attempting withdraw anyway")
	case end.After(s.now()):
		s.Logger.Warn("lock has not expired; withdraw will likely revert",
			zap.Time("unlocks_at", end),
			zap.Duration("remaining", end.Sub(s.now()).Round(time.Second)),
		)
	}
}

type precisionError struct{ err error }

func (e precisionError) Error() string { return e.err.Error() }

func (e precisionError) Unwrap() error { return e.err }

func isPrecisionError(err error) bool {
	_, ok := err.(precisionError)
	return ok
}

func (s *Sequencer) scale(ctx context.Context, token common.Address, human decimal.Decimal) (*big.Int, error) {
	decimals := nativeDecimals
	if token != registry.NativeTokenAddress {
		var err error
		decimals, err = s.Decimals.Decimals(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("read decimals of %s: %w", token.Hex(), err)
		}
	}
	base, err := amount.ToBaseUnits(human, decimals)
	if err != nil {
		return nil, precisionError{err: err}
	}
	return base, nil
}
