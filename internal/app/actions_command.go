package app

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ggonzalez94/satsuma/internal/amount"
	clierr "github.com/ggonzalez94/satsuma/internal/errors"
	"github.com/ggonzalez94/satsuma/internal/execution"
	"github.com/ggonzalez94/satsuma/internal/registry"
	"github.com/spf13/cobra"
)

func (s *runtimeState) newSwapCommand() *cobra.Command {
	var tokenIn, tokenOut, amountArg string
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Swap an exact input amount through the Satsuma router",
		Example: "  satsuma swap --token-in USDC --token-out WCBTC --amount 1.5\n" +
			"  satsuma swap --token-in cBTC --token-out USDC --amount 0.0001",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := swapSpec(s.chain, tokenIn, tokenOut, amountArg)
			if err != nil {
				return err
			}
			return s.executeAction(cmd.Context(), trimRootPath(cmd.CommandPath()), spec)
		},
	}
	cmd.Flags().StringVar(&tokenIn, "token-in", "", "Token to sell (symbol or address; cBTC for native)")
	cmd.Flags().StringVar(&tokenOut, "token-out", "", "Token to buy (symbol or address; use WCBTC to receive wrapped cBTC)")
	cmd.Flags().StringVar(&amountArg, "amount", "", "Amount of token-in in human units")
	_ = cmd.MarkFlagRequired("token-in")
	_ = cmd.MarkFlagRequired("token-out")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (s *runtimeState) newLiquidityCommand() *cobra.Command {
	var tokenA, tokenB, amountA, amountB string
	cmd := &cobra.Command{
		Use:   "liquidity",
		Short: "Add liquidity to a token pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := liquiditySpec(s.chain, tokenA, tokenB, amountA, amountB)
			if err != nil {
				return err
			}
			return s.executeAction(cmd.Context(), trimRootPath(cmd.CommandPath()), spec)
		},
	}
	cmd.Flags().StringVar(&tokenA, "token-a", "", "First token (symbol or address)")
	cmd.Flags().StringVar(&tokenB, "token-b", "", "Second token (symbol or address)")
	cmd.Flags().StringVar(&amountA, "amount-a", "", "Desired amount of token A in human units")
	cmd.Flags().StringVar(&amountB, "amount-b", "", "Desired amount of token B in human units")
	for _, name := range []string{"token-a", "token-b", "amount-a", "amount-b"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (s *runtimeState) newLockCommand() *cobra.Command {
	var amountArg string
	var days int
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Lock SUMA in the voting escrow for veSUMA",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := lockSpec(amountArg, days)
			if err != nil {
				return err
			}
			return s.executeAction(cmd.Context(), trimRootPath(cmd.CommandPath()), spec)
		},
	}
	cmd.Flags().StringVar(&amountArg, "amount", "", "SUMA amount in human units")
	cmd.Flags().IntVar(&days, "days", 7, "Lock duration in days")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (s *runtimeState) newUnlockCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Withdraw an expired veSUMA lock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.executeAction(cmd.Context(), trimRootPath(cmd.CommandPath()), execution.ConvertFromLockSpec{})
		},
	}
}

func (s *runtimeState) newStakeCommand() *cobra.Command {
	var amountArg string
	cmd := &cobra.Command{
		Use:   "stake",
		Short: "Stake veSUMA",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := stakeSpec(amountArg)
			if err != nil {
				return err
			}
			return s.executeAction(cmd.Context(), trimRootPath(cmd.CommandPath()), spec)
		},
	}
	cmd.Flags().StringVar(&amountArg, "amount", "", "veSUMA amount in human units")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (s *runtimeState) newVoteCommand() *cobra.Command {
	var gaugeArg, weightArg string
	cmd := &cobra.Command{
		Use:   "vote",
		Short: "Vote for a gauge with veSUMA weight",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := voteSpec(s.chain, gaugeArg, weightArg)
			if err != nil {
				return err
			}
			return s.executeAction(cmd.Context(), trimRootPath(cmd.CommandPath()), spec)
		},
	}
	cmd.Flags().StringVar(&gaugeArg, "gauge", "", "Gauge address (defaults to the configured gauge)")
	cmd.Flags().StringVar(&weightArg, "weight", "", "Vote weight (positive integer)")
	_ = cmd.MarkFlagRequired("weight")
	return cmd
}

// executeAction rejects invalid input before connecting, then runs the spec
// through the sequencer and renders its single outcome.
func (s *runtimeState) executeAction(parent context.Context, commandPath string, spec execution.ActionSpec) error {
	if err := execution.ValidateFor(s.chain, spec); err != nil {
		return clierr.Wrap(clierr.CodeUsage, "invalid "+string(spec.Kind())+" request", err)
	}
	ctx, cancel := signalContext(parent)
	defer cancel()

	sess, err := s.connect(ctx)
	if err != nil {
		return err
	}
	outcome := sess.sequencer.Execute(ctx, spec)
	return s.emitOutcome(commandPath, outcome)
}

func swapSpec(chain registry.Chain, in, out, amountArg string) (execution.SwapSpec, error) {
	tokIn, err := resolveToken(chain, "token-in", in)
	if err != nil {
		return execution.SwapSpec{}, err
	}
	tokOut, err := resolveToken(chain, "token-out", out)
	if err != nil {
		return execution.SwapSpec{}, err
	}
	value, err := amount.Parse(amountArg)
	if err != nil {
		return execution.SwapSpec{}, err
	}
	return execution.SwapSpec{TokenIn: tokIn.Address, TokenOut: tokOut.Address, Amount: value}, nil
}

func liquiditySpec(chain registry.Chain, a, b, amountA, amountB string) (execution.AddLiquiditySpec, error) {
	tokA, err := resolveToken(chain, "token-a", a)
	if err != nil {
		return execution.AddLiquiditySpec{}, err
	}
	tokB, err := resolveToken(chain, "token-b", b)
	if err != nil {
		return execution.AddLiquiditySpec{}, err
	}
	valueA, err := amount.Parse(amountA)
	if err != nil {
		return execution.AddLiquiditySpec{}, err
	}
	valueB, err := amount.Parse(amountB)
	if err != nil {
		return execution.AddLiquiditySpec{}, err
	}
	return execution.AddLiquiditySpec{TokenA: tokA.Address, TokenB: tokB.Address, AmountA: valueA, AmountB: valueB}, nil
}

func lockSpec(amountArg string, days int) (execution.ConvertToLockSpec, error) {
	value, err := amount.Parse(amountArg)
	if err != nil {
		return execution.ConvertToLockSpec{}, err
	}
	return execution.ConvertToLockSpec{Amount: value, Days: days}, nil
}

func stakeSpec(amountArg string) (execution.StakeSpec, error) {
	value, err := amount.Parse(amountArg)
	if err != nil {
		return execution.StakeSpec{}, err
	}
	return execution.StakeSpec{Amount: value}, nil
}

func voteSpec(chain registry.Chain, gaugeArg, weightArg string) (execution.VoteSpec, error) {
	gauge := chain.Contracts.Gauge
	if strings.TrimSpace(gaugeArg) != "" {
		if !common.IsHexAddress(strings.TrimSpace(gaugeArg)) {
			return execution.VoteSpec{}, clierr.New(clierr.CodeUsage, "gauge must be a hex address")
		}
		gauge = common.HexToAddress(strings.TrimSpace(gaugeArg))
	}
	weight, ok := new(big.Int).SetString(strings.TrimSpace(weightArg), 10)
	if !ok {
		return execution.VoteSpec{}, clierr.New(clierr.CodeUsage, "weight must be a base-10 integer")
	}
	return execution.VoteSpec{Gauge: gauge, Weight: weight}, nil
}

func resolveToken(chain registry.Chain, field, input string) (registry.Token, error) {
	tok, err := chain.Token(input)
	if err != nil {
		return registry.Token{}, clierr.Wrap(clierr.CodeUsage, "resolve "+field, err)
	}
	return tok, nil
}
