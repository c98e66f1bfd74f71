package execution

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ggonzalez94/satsuma/internal/chain"
	"github.com/ggonzalez94/satsuma/internal/execution/signer"
	"github.com/ggonzalez94/satsuma/internal/logging"
	"github.com/ggonzalez94/satsuma/internal/metrics"
	"github.com/ggonzalez94/satsuma/internal/registry"
	"go.uber.org/zap"
)

type SubmitOptions struct {
	PollInterval time.Duration
	// ReceiptTimeout bounds the receipt wait. Zero waits until the receipt
	// shows up.
	ReceiptTimeout time.Duration
}

func DefaultSubmitOptions() SubmitOptions {
	return SubmitOptions{PollInterval: 2 * time.Second}
}

// Submitter signs, broadcasts and waits for one transaction at a time. It
// never returns a Go error: every failure becomes a classified Outcome.
type Submitter struct {
	client  chain.Client
	signer  signer.Signer
	chain   registry.Chain
	opts    SubmitOptions
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewSubmitter(client chain.Client, txSigner signer.Signer, cfg registry.Chain, opts SubmitOptions, logger *zap.Logger, m *metrics.Metrics) *Submitter {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultSubmitOptions().PollInterval
	}
	return &Submitter{
		client:  client,
		signer:  txSigner,
		chain:   cfg,
		opts:    opts,
		logger:  logging.OrNop(logger),
		metrics: m,
	}
}

func (s *Submitter) Address() common.Address {
	return s.signer.Address()
}

func (s *Submitter) Submit(ctx context.Context, req TransactionRequest) Outcome {
	out := newOutcome(req.Kind)
	out.Nonce = noncePtr(req.Nonce)

	if s.signer == nil {
		return s.fail(out, ClassSign, "missing signer")
	}
	if req.From != s.signer.Address() {
		return s.fail(out, ClassSign, fmt.Sprintf("request sender %s does not match signer %s", req.From.Hex(), s.signer.Address().Hex()))
	}

	to := req.To
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    req.Nonce,
		GasPrice: req.GasPrice,
		Gas:      req.GasLimit,
		To:       &to,
		Value:    req.Value,
		Data:     req.Data,
	})
	chainID := big.NewInt(s.chain.ChainID)
	signed, err := s.signer.SignTx(chainID, tx)
	if err != nil {
		return s.fail(out, ClassSign, fmt.Sprintf("sign transaction: %v", err))
	}

	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return s.fail(out, ClassBroadcast, withRevertReason("broadcast transaction", err))
	}
	out.TxHash = signed.Hash().Hex()
	out.ExplorerURL = s.chain.TxURL(out.TxHash)
	s.logger.Debug("transaction broadcast",
		zap.String("kind", string(req.Kind)),
		zap.String("method", req.Method),
		zap.String("encoding", string(req.Encoding)),
		zap.Uint64("nonce", req.Nonce),
		zap.String("hash", out.TxHash),
	)

	sentAt := time.Now()
	receipt, err := s.waitReceipt(ctx, signed.Hash())
	s.metrics.RecordReceiptWait(time.Since(sentAt))
	if err != nil {
		return s.fail(out, ClassReceipt, err.Error())
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		msg := "transaction reverted on-chain"
		if reason := replayRevertReason(context.WithoutCancel(ctx), s.client, req, receipt.BlockNumber); reason != "" {
			msg = fmt.Sprintf("%s: %s", msg, reason)
		}
		return s.fail(out, ClassReverted, msg)
	}

	out.Success = true
	out.State = StateDone
	s.metrics.RecordTransaction(string(req.Kind), true)
	return out
}

// waitReceipt polls until the receipt exists. A broadcast transaction cannot
// be recalled, so interrupts on ctx are ignored here.
func (s *Submitter) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	waitCtx := context.WithoutCancel(ctx)
	if s.opts.ReceiptTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(waitCtx, s.opts.ReceiptTimeout)
		defer cancel()
	}
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		receipt, err := s.client.TransactionReceipt(waitCtx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			s.logger.Debug("receipt poll failed", zap.Error(err))
		}
		select {
		case <-waitCtx.Done():
			return nil, fmt.Errorf("timed out waiting for receipt: %w", waitCtx.Err())
		case <-ticker.C:
		}
	}
}

func (s *Submitter) fail(out Outcome, class ErrorClass, msg string) Outcome {
	out.Success = false
	out.Class = class
	out.Error = msg
	out.State = StateFailed
	s.metrics.RecordTransaction(string(out.Kind), false)
	return out
}
