package automation

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/ggonzalez94/satsuma/internal/registry"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var (
	DefaultAmountMin = decimal.RequireFromString("0.0001")
	DefaultAmountMax = decimal.RequireFromString("0.0002")
)

const (
	DefaultPrecision int32 = 6
	DefaultDelayMin        = 5 * time.Second
	DefaultDelayMax        = 15 * time.Second
)

// Randomizer draws pairs, amounts and delays. A fixed seed makes a campaign
// reproducible.
type Randomizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomizer(seed uint64) *Randomizer {
	return &Randomizer{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewTimeSeededRandomizer is what live campaigns use.
func NewTimeSeededRandomizer() *Randomizer {
	return NewRandomizer(uint64(time.Now().UnixNano()))
}

// Amount returns a value uniform in [min, max] rounded to places decimals.
func (r *Randomizer) Amount(min, max decimal.Decimal, places int32) decimal.Decimal {
	if max.LessThan(min) {
		min, max = max, min
	}
	r.mu.Lock()
	f := r.rng.Float64()
	r.mu.Unlock()
	span := max.Sub(min)
	v := min.Add(span.Mul(decimal.NewFromFloat(f))).Round(places)
	if v.LessThan(min) {
		return min
	}
	if v.GreaterThan(max) {
		return max
	}
	return v
}

// Delay returns a duration uniform in [min, max].
func (r *Randomizer) Delay(min, max time.Duration) time.Duration {
	if max < min {
		min, max = max, min
	}
	if max == min {
		return min
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return min + time.Duration(r.rng.Int64N(int64(max-min)+1))
}

// Pair picks two distinct tokens from candidates.
func (r *Randomizer) Pair(candidates []registry.Token) (registry.Token, registry.Token, error) {
	unique := lo.Uniq(candidates)
	if len(unique) < 2 {
		return registry.Token{}, registry.Token{}, fmt.Errorf("need at least two distinct candidate tokens, got %d", len(unique))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	in := unique[r.rng.IntN(len(unique))]
	rest := lo.Without(unique, in)
	out := rest[r.rng.IntN(len(rest))]
	return in, out, nil
}

// GenerateRandomAmount draws from the default campaign bounds.
func (r *Randomizer) GenerateRandomAmount() decimal.Decimal {
	return r.Amount(DefaultAmountMin, DefaultAmountMax, DefaultPrecision)
}
