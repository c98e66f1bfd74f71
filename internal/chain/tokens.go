package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ggonzalez94/satsuma/internal/registry"
)

var (
	erc20ABI  = mustABI(registry.ERC20MinimalABI)
	escrowABI = mustABI(registry.VotingEscrowABI)
)

// TokenReader performs the read-only contract calls the sequencer and the
// balance report need. Nothing it reads is cached.
type TokenReader struct {
	client Client
}

func NewTokenReader(client Client) *TokenReader {
	return &TokenReader{client: client}
}

func (r *TokenReader) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return r.callUint(ctx, erc20ABI, token, "allowance", owner, spender)
}

func (r *TokenReader) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return r.callUint(ctx, erc20ABI, token, "balanceOf", owner)
}

func (r *TokenReader) NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	balance, err := r.client.BalanceAt(ctx, owner, nil)
	if err != nil {
		return nil, fmt.Errorf("read native balance: %w", err)
	}
	return balance, nil
}

func (r *TokenReader) Decimals(ctx context.Context, token common.Address) (int, error) {
	values, err := r.call(ctx, erc20ABI, token, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals: unexpected response type %T", values[0])
	}
	return int(decimals), nil
}

func (r *TokenReader) Symbol(ctx context.Context, token common.Address) (string, error) {
	values, err := r.call(ctx, erc20ABI, token, "symbol")
	if err != nil {
		return "", err
	}
	symbol, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("symbol: unexpected response type %T", values[0])
	}
	return strings.TrimSpace(symbol), nil
}

// LockEnd reads the unlock time of owner's position in the voting escrow.
// A zero time means no lock exists.
func (r *TokenReader) LockEnd(ctx context.Context, escrow, owner common.Address) (time.Time, error) {
	end, err := r.callUint(ctx, escrowABI, escrow, "locked__end", owner)
	if err != nil {
		return time.Time{}, err
	}
	if end.Sign() == 0 {
		return time.Time{}, nil
	}
	return time.Unix(end.Int64(), 0).UTC(), nil
}

func (r *TokenReader) callUint(ctx context.Context, parsed abi.ABI, target common.Address, method string, args ...any) (*big.Int, error) {
	values, err := r.call(ctx, parsed, target, method, args...)
	if err != nil {
		return nil, err
	}
	out, ok := values[0].(*big.Int)
	if !ok || out == nil {
		return nil, fmt.Errorf("%s: unexpected response type %T", method, values[0])
	}
	return out, nil
}

func (r *TokenReader) call(ctx context.Context, parsed abi.ABI, target common.Address, method string, args ...any) ([]any, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s call: %w", method, err)
	}
	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &target, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, target.Hex(), err)
	}
	values, err := parsed.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s: empty response", method)
	}
	return values, nil
}

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
