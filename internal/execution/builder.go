package execution

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ggonzalez94/satsuma/internal/registry"
)

const (
	routerDeadline = 300 * time.Second
	secondsPerDay  = 86400
)

var (
	erc20ABI           = mustABI(registry.ERC20MinimalABI)
	swapRouterABI      = mustABI(registry.SwapRouterABI)
	liquidityRouterABI = mustABI(registry.LiquidityRouterABI)
	stakingABI         = mustABI(registry.StakingABI)
	voterABI           = mustABI(registry.VoterABI)
)

// GasPolicy holds the fixed gas limit of every transaction kind.
type GasPolicy struct {
	Approve      uint64 `yaml:"approve"`
	Swap         uint64 `yaml:"swap"`
	AddLiquidity uint64 `yaml:"add_liquidity"`
	Lock         uint64 `yaml:"lock"`
	Unlock       uint64 `yaml:"unlock"`
	Stake        uint64 `yaml:"stake"`
	Vote         uint64 `yaml:"vote"`
}

func DefaultGasPolicy() GasPolicy {
	return GasPolicy{
		Approve:      100_000,
		Swap:         400_000,
		AddLiquidity: 400_000,
		Lock:         400_000,
		Unlock:       200_000,
		Stake:        400_000,
		Vote:         200_000,
	}
}

func (p GasPolicy) Limit(kind Kind) uint64 {
	defaults := DefaultGasPolicy()
	pick := func(v, fallback uint64) uint64 {
		if v == 0 {
			return fallback
		}
		return v
	}
	switch kind {
	case KindApprove:
		return pick(p.Approve, defaults.Approve)
	case KindSwap:
		return pick(p.Swap, defaults.Swap)
	case KindAddLiquidity:
		return pick(p.AddLiquidity, defaults.AddLiquidity)
	case KindLock:
		return pick(p.Lock, defaults.Lock)
	case KindUnlock:
		return pick(p.Unlock, defaults.Unlock)
	case KindStake:
		return pick(p.Stake, defaults.Stake)
	case KindVote:
		return pick(p.Vote, defaults.Vote)
	default:
		return defaults.Swap
	}
}

// GasPriceSource is satisfied by *ethclient.Client.
type GasPriceSource interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Builder maps one logical call to a TransactionRequest. Apart from the gas
// price lookup it performs no I/O.
type Builder struct {
	chain  registry.Chain
	gas    GasPolicy
	prices GasPriceSource
	now    func() time.Time
}

func NewBuilder(chain registry.Chain, gas GasPolicy, prices GasPriceSource) *Builder {
	return &Builder{chain: chain, gas: gas, prices: prices, now: time.Now}
}

func (b *Builder) deadline() *big.Int {
	return big.NewInt(b.now().Add(routerDeadline).Unix())
}

func (b *Builder) Approve(ctx context.Context, from, token, spender common.Address, amount *big.Int, nonce uint64) (TransactionRequest, error) {
	call := ABICall{ABI: erc20ABI, Name: "approve", Args: []any{spender, amount}}
	return b.Build(ctx, KindApprove, from, token, call, nil, nonce)
}

// Swap builds exactInputSingle on the swap router. A native input is sent as
// value with the wrapped native token standing in as tokenIn. The router has
// no unwrap leg here, so a native output is refused.
func (b *Builder) Swap(ctx context.Context, from, tokenIn, tokenOut common.Address, amountIn *big.Int, nonce uint64) (TransactionRequest, error) {
	if tokenOut == registry.NativeTokenAddress {
		return TransactionRequest{}, fmt.Errorf("native coin cannot be the swap output")
	}
	var value *big.Int
	if tokenIn == registry.NativeTokenAddress {
		wrapped, err := b.chain.WrappedNativeToken()
		if err != nil {
			return TransactionRequest{}, fmt.Errorf("resolve wrapped native token: %w", err)
		}
		tokenIn = wrapped.Address
		value = new(big.Int).Set(amountIn)
	}
	if tokenIn == tokenOut {
		return TransactionRequest{}, fmt.Errorf("swap input and output resolve to the same token %s", tokenIn.Hex())
	}
	params := struct {
		TokenIn          common.Address
		TokenOut         common.Address
		Deployer         common.Address
		Recipient        common.Address
		Deadline         *big.Int
		AmountIn         *big.Int
		AmountOutMinimum *big.Int
		LimitSqrtPrice   *big.Int
	}{
		TokenIn:          tokenIn,
		TokenOut:         tokenOut,
		Recipient:        from,
		Deadline:         b.deadline(),
		AmountIn:         amountIn,
		AmountOutMinimum: big.NewInt(0),
		LimitSqrtPrice:   big.NewInt(0),
	}
	call := ABICall{ABI: swapRouterABI, Name: "exactInputSingle", Args: []any{params}}
	return b.Build(ctx, KindSwap, from, b.chain.Contracts.SwapRouter, call, value, nonce)
}

// AddLiquidity passes the sender as both deployer and recipient.
func (b *Builder) AddLiquidity(ctx context.Context, from, tokenA, tokenB common.Address, amountA, amountB *big.Int, nonce uint64) (TransactionRequest, error) {
	zero := big.NewInt(0)
	call := ABICall{ABI: liquidityRouterABI, Name: "addLiquidity", Args: []any{
		tokenA, tokenB, from, from, amountA, amountB, zero, zero, b.deadline(),
	}}
	return b.Build(ctx, KindAddLiquidity, from, b.chain.Contracts.LiquidityRouter, call, nil, nonce)
}

// CreateLock locks amount in the voting escrow until now + days.
func (b *Builder) CreateLock(ctx context.Context, from common.Address, amount *big.Int, days int, nonce uint64) (TransactionRequest, error) {
	unlock := big.NewInt(b.now().Unix() + int64(days)*secondsPerDay)
	call := SelectorCall{
		Label:    "create_lock",
		Selector: b.chain.Selectors.CreateLock,
		Inputs:   Uint256Arguments(2),
		Args:     []any{amount, unlock},
	}
	return b.Build(ctx, KindLock, from, b.chain.Contracts.VotingEscrow, call, nil, nonce)
}

func (b *Builder) Withdraw(ctx context.Context, from common.Address, nonce uint64) (TransactionRequest, error) {
	call := SelectorCall{Label: "withdraw", Selector: b.chain.Selectors.Withdraw}
	return b.Build(ctx, KindUnlock, from, b.chain.Contracts.VotingEscrow, call, nil, nonce)
}

func (b *Builder) Stake(ctx context.Context, from common.Address, amount *big.Int, nonce uint64) (TransactionRequest, error) {
	call := ABICall{ABI: stakingABI, Name: "stake", Args: []any{amount}}
	return b.Build(ctx, KindStake, from, b.chain.Contracts.Staking, call, nil, nonce)
}

func (b *Builder) Vote(ctx context.Context, from, gauge common.Address, weight *big.Int, nonce uint64) (TransactionRequest, error) {
	call := ABICall{ABI: voterABI, Name: "vote", Args: []any{gauge, weight}}
	return b.Build(ctx, KindVote, from, b.chain.Contracts.Voter, call, nil, nonce)
}

// Build encodes call and prices it at the chain's suggested gas price.
func (b *Builder) Build(ctx context.Context, kind Kind, from, to common.Address, call Call, value *big.Int, nonce uint64) (TransactionRequest, error) {
	if to == (common.Address{}) {
		return TransactionRequest{}, fmt.Errorf("%s: missing target contract", kind)
	}
	data, err := call.Encode()
	if err != nil {
		return TransactionRequest{}, err
	}
	gasPrice, err := b.prices.SuggestGasPrice(ctx)
	if err != nil {
		return TransactionRequest{}, fmt.Errorf("suggest gas price: %w", err)
	}
	if value == nil {
		value = big.NewInt(0)
	}
	return TransactionRequest{
		From:     from,
		To:       to,
		Data:     data,
		Value:    value,
		GasLimit: b.gas.Limit(kind),
		GasPrice: gasPrice,
		Nonce:    nonce,
		Kind:     kind,
		Encoding: call.Encoding(),
		Method:   call.Method(),
	}, nil
}

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
