package earnings_test

import (
	"testing"

	"github.com/clipvault/backend/internal/earnings"
	"github.com/clipvault/backend/internal/models"
	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

func TestCoinsToCurrency_ExchangeRate(t *testing.T) {
	cases := []struct {
		coins int64
		want  string
	}{
		{0, "0"},
		{20, "1"},
		{100, "5"},
		{30, "1.5"},
		{1, "0.05"},
		{1500, "75"},
	}
	for _, tc := range cases {
		got := earnings.CoinsToCurrency(tc.coins)
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("CoinsToCurrency(%d) = %s, want %s", tc.coins, got, tc.want)
		}
	}
}

func TestCoinsToCurrency_NeverNegativeAndProportional(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		coins := rapid.Int64Range(0, 10_000_000).Draw(t, "coins")
		value := earnings.CoinsToCurrency(coins)

		if value.IsNegative() {
			t.Fatalf("Currency value went negative for %d coins", coins)
		}

		// Exact multiples of the rate convert without rounding loss.
		whole := (coins / models.CoinsPerCurrencyUnit) * models.CoinsPerCurrencyUnit
		expected := decimal.NewFromInt(whole / models.CoinsPerCurrencyUnit)
		if earnings.CoinsToCurrency(whole).Cmp(expected) != 0 {
			t.Fatalf("CoinsToCurrency(%d) != %s", whole, expected)
		}
	})
}
