package amount

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	clierr "github.com/ggonzalez94/satsuma/internal/errors"
	"github.com/shopspring/decimal"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// Parse reads a positive human amount such as "1.25".
func Parse(raw string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(raw)
	if clean == "" {
		return decimal.Zero, clierr.New(clierr.CodeUsage, "amount is required")
	}
	if !decimalPattern.MatchString(clean) {
		return decimal.Zero, clierr.New(clierr.CodeUsage, fmt.Sprintf("amount %q must be in decimal form like 1.23", raw))
	}
	value, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, clierr.Wrap(clierr.CodeUsage, "parse amount", err)
	}
	if !value.IsPositive() {
		return decimal.Zero, clierr.New(clierr.CodeUsage, "amount must be greater than zero")
	}
	return value, nil
}

// ToBaseUnits scales a human amount by 10^decimals. Precision beyond the
// token's decimals is rejected rather than silently truncated.
func ToBaseUnits(value decimal.Decimal, decimals int) (*big.Int, error) {
	if decimals < 0 {
		return nil, fmt.Errorf("decimals must be >= 0")
	}
	scaled := value.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %s exceeds token precision (%d decimals)", value.String(), decimals)
	}
	return scaled.BigInt(), nil
}

func FromBaseUnits(base *big.Int, decimals int) decimal.Decimal {
	if base == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(base, int32(-decimals))
}

// Format renders base units as a trimmed decimal string.
func Format(base *big.Int, decimals int) string {
	return FromBaseUnits(base, decimals).String()
}
