package sizing

import (
	"math/rand"
	"testing"

	"github.com/GinetonSantos/Metamorph/pkg/exchange"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestQuantizeQuantity(t *testing.T) {
	tests := []struct {
		raw, step, want string
	}{
		{"0.01", "0.001", "0.01"},
		{"0.0109999", "0.001", "0.01"},
		{"4.5", "1", "4"},
		{"0.0009", "0.001", "0"},
		{"123.456789", "0.00001", "123.45678"},
		{"-1", "0.1", "0"},
	}
	for _, tt := range tests {
		got, err := QuantizeQuantity(d(tt.raw), d(tt.step))
		require.NoError(t, err)
		assert.True(t, got.Equal(d(tt.want)), "quantize(%s, %s) = %s, want %s", tt.raw, tt.step, got, tt.want)
	}
}

func TestQuantizeQuantityProperties(t *testing.T) {
	steps := []decimal.Decimal{d("1"), d("0.1"), d("0.001"), d("0.00001"), d("0.5"), d("10")}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		step := steps[i%len(steps)]
		q := decimal.NewFromFloat(rng.Float64() * 1000).Round(8)
		got, err := QuantizeQuantity(q, step)
		require.NoError(t, err)
		assert.True(t, got.LessThanOrEqual(q), "%s > %s", got, q)
		assert.True(t, got.Mod(step).IsZero(), "%s not a multiple of %s", got, step)
		assert.True(t, got.Add(step).GreaterThan(q), "%s + %s <= %s", got, step, q)
	}
}

func TestQuantizeQuantityManyDecimals(t *testing.T) {
	tests := []struct {
		raw, step, want string
	}{
		{"0.00299999999999999999", "0.001", "0.002"},
		{"0.99999999999999999999", "0.1", "0.9"},
		{"1.00000000000000000001", "0.001", "1"},
		{"12.34999999999999999999", "0.5", "12"},
	}
	for _, tt := range tests {
		q := d(tt.raw)
		step := d(tt.step)
		got, err := QuantizeQuantity(q, step)
		require.NoError(t, err)
		assert.True(t, got.Equal(d(tt.want)), "quantizeQuantity(%s, %s) = %s, want %s", tt.raw, tt.step, got, tt.want)
		assert.True(t, got.LessThanOrEqual(q), "%s > %s", got, q)
		assert.True(t, got.Mod(step).IsZero(), "%s not a multiple of %s", got, step)
	}
}

func TestQuantizePrice(t *testing.T) {
	tests := []struct {
		raw, step, want string
	}{
		{"51000.123", "0.01", "51000.12"},
		{"0.368726", "0.0001", "0.3687"},
		{"0.368751", "0.0001", "0.3688"},
		{"49000.6", "1", "49001"},
		{"49000.4", "10", "49000"},
		{"1.23456789", "0.00000001", "1.23456789"},
	}
	for _, tt := range tests {
		got, err := QuantizePrice(d(tt.raw), d(tt.step))
		require.NoError(t, err)
		assert.True(t, got.Equal(d(tt.want)), "quantizePrice(%s, %s) = %s, want %s", tt.raw, tt.step, got, tt.want)
	}
}

func TestQuantizeInvalidStep(t *testing.T) {
	for _, step := range []string{"0", "-0.01"} {
		_, err := QuantizeQuantity(d("1"), d(step))
		assert.ErrorIs(t, err, ErrInvalidStep)
		_, err = QuantizePrice(d("1"), d(step))
		assert.ErrorIs(t, err, ErrInvalidStep)
	}
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		balance  string
		fraction string
		tier     Tier
	}{
		{"0", "0.85", TierSmall},
		{"50", "0.85", TierSmall},
		{"50.01", "0.65", TierMedium},
		{"200", "0.65", TierMedium},
		{"200.01", "0.50", TierLarge},
		{"1000", "0.50", TierLarge},
	}
	for _, tt := range tests {
		got := Allocate(d(tt.balance))
		assert.Equal(t, tt.tier, got.Tier, "balance %s", tt.balance)
		assert.True(t, got.Fraction.Equal(d(tt.fraction)), "balance %s fraction %s", tt.balance, got.Fraction)
	}

	a := Allocate(d("1000"))
	assert.True(t, a.Amount(d("1000")).Equal(d("500")))
	assert.True(t, Allocate(d("10")).RequiredBalance(d("17")).Equal(d("20")))
}

func TestSplit(t *testing.T) {
	targets := []decimal.Decimal{d("100"), d("110"), d("120")}
	tests := []struct {
		name     string
		quantity string
		targets  []decimal.Decimal
		minValue string
		wantQty  string
		wantN    int
		label    string
	}{
		{"three targets", "9", targets, "250", "3", 3, Label3Targets},
		{"two targets", "9", targets, "400", "4", 2, Label2Targets},
		{"concentrated", "9", targets, "1000", "9", 1, Label1Target},
		{"extra targets ignored", "9", append(targets, d("130"), d("140")), "250", "3", 3, Label3Targets},
		{"two available", "9", targets[:2], "100", "4", 2, Label2Targets},
		{"one available", "9", targets[:1], "100", "9", 1, Label1Target},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := exchange.Constraints{
				MinQuantity:   d("1"),
				QuantityStep:  d("1"),
				MinOrderValue: d(tt.minValue),
				PriceStep:     d("0.01"),
			}
			plan, err := Split(d(tt.quantity), tt.targets, c)
			require.NoError(t, err)
			assert.True(t, plan.Quantity.Equal(d(tt.wantQty)), "quantity %s", plan.Quantity)
			require.Len(t, plan.Targets, tt.wantN)
			for i := range plan.Targets {
				assert.True(t, plan.Targets[i].Equal(tt.targets[i]))
			}
			assert.Equal(t, tt.label, plan.Label)
		})
	}
}

func TestSplitNoTargets(t *testing.T) {
	_, err := Split(d("1"), nil, exchange.DefaultConstraints)
	assert.ErrorIs(t, err, ErrNoTargets)
}
