package automation

import (
	"testing"
	"time"

	"github.com/ggonzalez94/satsuma/internal/registry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountStaysInBoundsWithSixDecimals(t *testing.T) {
	r := NewRandomizer(42)
	for i := 0; i < 500; i++ {
		v := r.GenerateRandomAmount()
		require.True(t, v.GreaterThanOrEqual(DefaultAmountMin), "amount %s below min", v)
		require.True(t, v.LessThanOrEqual(DefaultAmountMax), "amount %s above max", v)
		require.LessOrEqual(t, -v.Exponent(), int32(6), "amount %s has more than 6 decimals", v)
	}
}

func TestAmountSwapsInvertedBounds(t *testing.T) {
	r := NewRandomizer(1)
	v := r.Amount(decimal.RequireFromString("2"), decimal.RequireFromString("1"), 2)
	assert.True(t, v.GreaterThanOrEqual(decimal.NewFromInt(1)))
	assert.True(t, v.LessThanOrEqual(decimal.NewFromInt(2)))
}

func TestSeededRandomizerIsDeterministic(t *testing.T) {
	a, b := NewRandomizer(99), NewRandomizer(99)
	for i := 0; i < 10; i++ {
		assert.True(t, a.GenerateRandomAmount().Equal(b.GenerateRandomAmount()))
		assert.Equal(t, a.Delay(DefaultDelayMin, DefaultDelayMax), b.Delay(DefaultDelayMin, DefaultDelayMax))
	}
}

func TestDelayBounds(t *testing.T) {
	r := NewRandomizer(3)
	for i := 0; i < 200; i++ {
		d := r.Delay(5*time.Second, 15*time.Second)
		require.GreaterOrEqual(t, d, 5*time.Second)
		require.LessOrEqual(t, d, 15*time.Second)
	}
	assert.Equal(t, time.Second, r.Delay(time.Second, time.Second))
}

func TestPairPicksDistinctTokens(t *testing.T) {
	chain := registry.CitreaTestnet()
	usdc, wcbtc := chain.MustToken("USDC"), chain.MustToken("WCBTC")
	r := NewRandomizer(5)
	seen := map[string]int{}
	for i := 0; i < 100; i++ {
		in, out, err := r.Pair([]registry.Token{usdc, wcbtc, usdc})
		require.NoError(t, err)
		require.NotEqual(t, in.Address, out.Address)
		seen[in.Symbol]++
	}
	assert.Len(t, seen, 2)

	_, _, err := r.Pair([]registry.Token{usdc, usdc})
	require.Error(t, err)
}
