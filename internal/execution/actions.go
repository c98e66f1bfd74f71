package execution

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ggonzalez94/satsuma/internal/registry"
	"github.com/shopspring/decimal"
)

// ActionSpec is one logical intent. Amounts are in human units.
type ActionSpec interface {
	Kind() Kind
	Validate() error
}

type SwapSpec struct {
	TokenIn  common.Address
	TokenOut common.Address
	Amount   decimal.Decimal
}

type AddLiquiditySpec struct {
	TokenA  common.Address
	TokenB  common.Address
	AmountA decimal.Decimal
	AmountB decimal.Decimal
}

// ConvertToLockSpec locks governance tokens in the voting escrow for Days.
type ConvertToLockSpec struct {
	Amount decimal.Decimal
	Days   int
}

// ConvertFromLockSpec withdraws an expired lock.
type ConvertFromLockSpec struct{}

type StakeSpec struct {
	Amount decimal.Decimal
}

type VoteSpec struct {
	Gauge  common.Address
	Weight *big.Int
}

func (SwapSpec) Kind() Kind            { return KindSwap }
func (AddLiquiditySpec) Kind() Kind    { return KindAddLiquidity }
func (ConvertToLockSpec) Kind() Kind   { return KindLock }
func (ConvertFromLockSpec) Kind() Kind { return KindUnlock }
func (StakeSpec) Kind() Kind           { return KindStake }
func (VoteSpec) Kind() Kind            { return KindVote }

func (s SwapSpec) Validate() error {
	if err := requireToken("token in", s.TokenIn); err != nil {
		return err
	}
	if err := requireToken("token out", s.TokenOut); err != nil {
		return err
	}
	if s.TokenIn == s.TokenOut {
		return fmt.Errorf("token in and token out must differ")
	}
	if s.TokenOut == registry.NativeTokenAddress {
		return fmt.Errorf("the router pays out the wrapped native token; swap to it instead of the native coin")
	}
	return requirePositive("amount", s.Amount)
}

// validateRoute rejects a swap whose input, once the native coin is replaced
// by its wrapped token, equals the output.
func (s SwapSpec) validateRoute(chain registry.Chain) error {
	if s.TokenIn != registry.NativeTokenAddress {
		return nil
	}
	wrapped, err := chain.WrappedNativeToken()
	if err != nil {
		return fmt.Errorf("resolve wrapped native token: %w", err)
	}
	if wrapped.Address == s.TokenOut {
		return fmt.Errorf("native coin and %s are the same pool token; pick a different output", wrapped.Symbol)
	}
	return nil
}

// ValidateFor checks spec on its own and against the deployment it will run
// on. It performs no I/O.
func ValidateFor(chain registry.Chain, spec ActionSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if swap, ok := spec.(SwapSpec); ok {
		return swap.validateRoute(chain)
	}
	return nil
}

func (s AddLiquiditySpec) Validate() error {
	if err := requireToken("token A", s.TokenA); err != nil {
		return err
	}
	if err := requireToken("token B", s.TokenB); err != nil {
		return err
	}
	if s.TokenA == s.TokenB {
		return fmt.Errorf("token A and token B must differ")
	}
	if s.TokenA == registry.NativeTokenAddress || s.TokenB == registry.NativeTokenAddress {
		return fmt.Errorf("liquidity legs must be ERC-20 tokens; use the wrapped native token")
	}
	if err := requirePositive("amount A", s.AmountA); err != nil {
		return err
	}
	return requirePositive("amount B", s.AmountB)
}

func (s ConvertToLockSpec) Validate() error {
	if s.Days <= 0 {
		return fmt.Errorf("lock duration must be at least one day")
	}
	return requirePositive("amount", s.Amount)
}

func (ConvertFromLockSpec) Validate() error { return nil }

func (s StakeSpec) Validate() error {
	return requirePositive("amount", s.Amount)
}

func (s VoteSpec) Validate() error {
	if s.Gauge == (common.Address{}) {
		return fmt.Errorf("gauge address is required")
	}
	if s.Weight == nil || s.Weight.Sign() <= 0 {
		return fmt.Errorf("vote weight must be greater than zero")
	}
	return nil
}

func requireToken(label string, token common.Address) error {
	if token == (common.Address{}) {
		return fmt.Errorf("%s is required", label)
	}
	return nil
}

func requirePositive(label string, v decimal.Decimal) error {
	if !v.IsPositive() {
		return fmt.Errorf("%s must be greater than zero", label)
	}
	return nil
}
