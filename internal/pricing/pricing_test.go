package pricing_test

import (
	"testing"

	"github.com/clipvault/backend/internal/models"
	"github.com/clipvault/backend/internal/pricing"
	"github.com/google/uuid"
	"pgregory.net/rapid"
)

func makeDeductions(prices []int64) []models.Deduction {
	deductions := make([]models.Deduction, len(prices))
	for i, p := range prices {
		deductions[i] = models.Deduction{
			VideoID:   uuid.New(),
			Title:     "video",
			CoinPrice: p,
		}
	}
	return deductions
}

func TestBuildQuote_NoDeductions(t *testing.T) {
	q := pricing.BuildQuote(uuid.New(), 100, 3, nil)

	if q.AdjustedPrice != 100 {
		t.Errorf("Expected adjusted price 100, got %d", q.AdjustedPrice)
	}
	if q.TotalDeduction != 0 {
		t.Errorf("Expected total deduction 0, got %d", q.TotalDeduction)
	}
	if q.AllVideosOwned {
		t.Error("Expected AllVideosOwned to be false")
	}
}

func TestBuildQuote_PartialOwnership(t *testing.T) {
	// Series priced at 100 with three videos at 30, 30 and 40 coins;
	// owning the first two deducts 60.
	q := pricing.BuildQuote(uuid.New(), 100, 3, makeDeductions([]int64{30, 30}))

	if q.TotalDeduction != 60 {
		t.Errorf("Expected total deduction 60, got %d", q.TotalDeduction)
	}
	if q.AdjustedPrice != 40 {
		t.Errorf("Expected adjusted price 40, got %d", q.AdjustedPrice)
	}
	if q.AllVideosOwned {
		t.Error("Expected AllVideosOwned to be false")
	}
}

func TestBuildQuote_AllVideosOwned(t *testing.T) {
	q := pricing.BuildQuote(uuid.New(), 100, 3, makeDeductions([]int64{30, 30, 40}))

	if !q.AllVideosOwned {
		t.Error("Expected AllVideosOwned to be true")
	}
	if q.AdjustedPrice != 0 {
		t.Errorf("Expected adjusted price 0, got %d", q.AdjustedPrice)
	}
}

func TestBuildQuote_AllOwnedForcesZeroEvenWhenSumFallsShort(t *testing.T) {
	// Deductions sum to less than the list price, yet owning every
	// video still makes the series free.
	q := pricing.BuildQuote(uuid.New(), 100, 2, makeDeductions([]int64{10, 20}))

	if !q.AllVideosOwned {
		t.Error("Expected AllVideosOwned to be true")
	}
	if q.AdjustedPrice != 0 {
		t.Errorf("Expected adjusted price 0, got %d", q.AdjustedPrice)
	}
}

func TestBuildQuote_EmptySeries(t *testing.T) {
	q := pricing.BuildQuote(uuid.New(), 50, 0, nil)

	if q.AllVideosOwned {
		t.Error("Empty series must not count as fully owned")
	}
	if q.AdjustedPrice != 50 {
		t.Errorf("Expected adjusted price 50, got %d", q.AdjustedPrice)
	}
}

func TestBuildQuote_NeverNegative(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		listPrice := rapid.Int64Range(1, 10_000).Draw(t, "listPrice")
		videoCount := rapid.IntRange(1, 20).Draw(t, "videoCount")
		owned := rapid.IntRange(0, videoCount).Draw(t, "owned")

		prices := make([]int64, owned)
		for i := range prices {
			prices[i] = rapid.Int64Range(0, 2_000).Draw(t, "videoPrice")
		}

		q := pricing.BuildQuote(uuid.New(), listPrice, videoCount, makeDeductions(prices))

		if q.AdjustedPrice < 0 {
			t.Fatalf("Adjusted price went negative: %d", q.AdjustedPrice)
		}
		if q.AdjustedPrice > listPrice {
			t.Fatalf("Adjusted price %d exceeds list price %d", q.AdjustedPrice, listPrice)
		}
		if q.OriginalPrice != listPrice {
			t.Fatalf("Original price changed: %d != %d", q.OriginalPrice, listPrice)
		}
	})
}

func TestBuildQuote_MoreDeductionsNeverRaisePrice(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		listPrice := rapid.Int64Range(1, 10_000).Draw(t, "listPrice")
		videoCount := rapid.IntRange(2, 20).Draw(t, "videoCount")
		owned := rapid.IntRange(1, videoCount-1).Draw(t, "owned")

		prices := make([]int64, owned)
		for i := range prices {
			prices[i] = rapid.Int64Range(0, 2_000).Draw(t, "videoPrice")
		}
		deductions := makeDeductions(prices)

		base := pricing.BuildQuote(uuid.New(), listPrice, videoCount, deductions)

		extra := rapid.Int64Range(0, 2_000).Draw(t, "extraPrice")
		more := append(append([]models.Deduction{}, deductions...), makeDeductions([]int64{extra})...)
		withMore := pricing.BuildQuote(uuid.New(), listPrice, videoCount, more)

		if withMore.AdjustedPrice > base.AdjustedPrice {
			t.Fatalf("Owning one more video raised the price: %d > %d",
				withMore.AdjustedPrice, base.AdjustedPrice)
		}
	})
}
