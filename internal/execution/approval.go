package execution

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ggonzalez94/satsuma/internal/logging"
	"github.com/ggonzalez94/satsuma/internal/metrics"
	"github.com/ggonzalez94/satsuma/internal/registry"
	"go.uber.org/zap"
)

type AllowanceReader interface {
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}

type TxSubmitter interface {
	Submit(ctx context.Context, req TransactionRequest) Outcome
}

// ApprovalResult reports whether the spend may proceed and which nonce the
// next transaction of the sequence must use.
type ApprovalResult struct {
	OK        bool
	Nonce     uint64
	Submitted bool
	Outcome   *Outcome
	Reason    string
}

type ApprovalGate struct {
	reader    AllowanceReader
	builder   *Builder
	submitter TxSubmitter
	history   *History
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewApprovalGate(reader AllowanceReader, builder *Builder, submitter TxSubmitter, history *History, logger *zap.Logger, m *metrics.Metrics) *ApprovalGate {
	return &ApprovalGate{
		reader:    reader,
		builder:   builder,
		submitter: submitter,
		history:   history,
		logger:    logging.OrNop(logger),
		metrics:   m,
	}
}

// EnsureAllowance makes sure spender may move amount of token on behalf of
// owner. It submits at most one approve transaction, at nonce.
func (g *ApprovalGate) EnsureAllowance(ctx context.Context, owner, token, spender common.Address, amount *big.Int, nonce uint64) ApprovalResult {
	if token == registry.NativeTokenAddress {
		return ApprovalResult{OK: true, Nonce: nonce}
	}
	log := g.logger.With(zap.String("token", token.Hex()), zap.String("spender", spender.Hex()))

	allowance, err := g.reader.Allowance(ctx, token, owner, spender)
	if err != nil {
		return ApprovalResult{Nonce: nonce, Reason: fmt.Sprintf("read allowance: %v", err)}
	}
	if allowance.Cmp(amount) >= 0 {
		log.Debug("allowance already sufficient", zap.String("allowance", allowance.String()))
		g.metrics.RecordApprovalSkipped()
		return ApprovalResult{OK: true, Nonce: nonce}
	}

	log.Info("sending approval", zap.String("amount", amount.String()), zap.Uint64("nonce", nonce))
	req, err := g.builder.Approve(ctx, owner, token, spender, amount, nonce)
	if err != nil {
		out := failedOutcome(KindApprove, ClassApproval, err)
		out.Nonce = noncePtr(nonce)
		g.history.Append(out)
		return ApprovalResult{Nonce: nonce, Outcome: &out, Reason: fmt.Sprintf("build approval: %v", err)}
	}
	out := g.submitter.Submit(ctx, req)
	g.history.Append(out)
	if !out.Success {
		return ApprovalResult{Nonce: nonce, Submitted: out.Submitted(), Outcome: &out, Reason: fmt.Sprintf("approval %s: %s", out.Class, out.Error)}
	}
	log.Info("approval confirmed", zap.String("hash", out.TxHash))
	return ApprovalResult{OK: true, Nonce: nonce + 1, Submitted: true, Outcome: &out}
}
