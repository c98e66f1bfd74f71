package app

import (
	"context"
	"strings"

	"github.com/ggonzalez94/satsuma/internal/amount"
	clierr "github.com/ggonzalez94/satsuma/internal/errors"
	"github.com/ggonzalez94/satsuma/internal/execution"
	"github.com/ggonzalez94/satsuma/internal/model"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (s *runtimeState) newBalancesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balances",
		Short: "Show native and token balances of the signer account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			balances, err := s.balances(ctx)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), balances)
		},
	}
}

func (s *runtimeState) newHistoryCommand() *cobra.Command {
	var limit int
	var kind string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent transaction outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outcomes, err := s.recentOutcomes(kind, limit)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), outcomes)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", execution.DefaultHistorySize, "Number of outcomes to show")
	cmd.Flags().StringVar(&kind, "kind", "", "Only show outcomes of this kind (approve|swap|add_liquidity|lock|unlock|stake|vote)")
	return cmd
}

// balances reads the native coin first, then every ERC-20 in the token table.
// A token whose balance cannot be read is logged and skipped.
func (s *runtimeState) balances(ctx context.Context) ([]model.TokenBalance, error) {
	sess, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	readCtx, cancel := context.WithTimeout(ctx, s.settings.Timeout)
	defer cancel()

	out := make([]model.TokenBalance, 0, len(s.chain.Tokens))
	for _, tok := range s.chain.Tokens {
		entry := model.TokenBalance{Symbol: tok.Symbol, Address: tok.Address.Hex(), Native: tok.IsNative()}
		if tok.IsNative() {
			entry.Symbol = s.chain.NativeSymbol
			bal, err := sess.tokens.NativeBalance(readCtx, sess.account)
			if err != nil {
				return nil, clierr.Wrap(clierr.CodeUnavailable, "read native balance", err)
			}
			entry.Balance = amountInfo(bal.String(), amount.Format(bal, 18), 18)
			out = append(out, entry)
			continue
		}
		decimals, err := sess.decimals.Decimals(readCtx, tok.Address)
		if err != nil {
			s.logger.Warn("could not read token decimals", zap.String("token", tok.Symbol), zap.Error(err))
			continue
		}
		bal, err := sess.tokens.BalanceOf(readCtx, tok.Address, sess.account)
		if err != nil {
			s.logger.Warn("could not read token balance", zap.String("token", tok.Symbol), zap.Error(err))
			continue
		}
		entry.Balance = amountInfo(bal.String(), amount.Format(bal, decimals), decimals)
		out = append(out, entry)
	}
	return out, nil
}

func (s *runtimeState) recentOutcomes(kind string, limit int) ([]execution.Outcome, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind != "" && !knownKind(execution.Kind(kind)) {
		return nil, clierr.New(clierr.CodeUsage, "unknown outcome kind "+kind)
	}
	if limit <= 0 {
		limit = execution.DefaultHistorySize
	}
	store, err := s.openHistory()
	if err != nil {
		return nil, err
	}
	outcomes, err := store.Recent(kind, limit)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "read history", err)
	}
	return outcomes, nil
}

func knownKind(kind execution.Kind) bool {
	switch kind {
	case execution.KindApprove, execution.KindSwap, execution.KindAddLiquidity,
		execution.KindLock, execution.KindUnlock, execution.KindStake, execution.KindVote:
		return true
	default:
		return false
	}
}

func amountInfo(base, human string, decimals int) model.AmountInfo {
	return model.AmountInfo{AmountBaseUnits: base, AmountDecimal: human, Decimals: decimals}
}
