package catalog_test

import (
	"testing"

	"github.com/clipvault/backend/internal/catalog"
	"github.com/google/uuid"
	"pgregory.net/rapid"
)

func makeMembers(n int) []uuid.UUID {
	members := make([]uuid.UUID, n)
	for i := range members {
		members[i] = uuid.New()
	}
	return members
}

func identityOrder(members []uuid.UUID) []catalog.VideoOrder {
	orders := make([]catalog.VideoOrder, len(members))
	for i, id := range members {
		orders[i] = catalog.VideoOrder{VideoID: id, OrderIndex: i + 1}
	}
	return orders
}

func TestValidateReorder_IdentityIsValid(t *testing.T) {
	members := makeMembers(5)
	issues := catalog.ValidateReorder(members, identityOrder(members))
	if len(issues) != 0 {
		t.Fatalf("Expected no issues, got %v", issues)
	}
}

func TestValidateReorder_ForeignVideoRejected(t *testing.T) {
	members := makeMembers(3)
	orders := identityOrder(members)
	orders[1].VideoID = uuid.New()

	issues := catalog.ValidateReorder(members, orders)
	if len(issues) == 0 {
		t.Fatal("Expected issues for a video outside the series")
	}
}

func TestValidateReorder_DuplicateVideoRejected(t *testing.T) {
	members := makeMembers(3)
	orders := identityOrder(members)
	orders[2].VideoID = orders[0].VideoID

	issues := catalog.ValidateReorder(members, orders)
	if len(issues) == 0 {
		t.Fatal("Expected issues for a duplicated video id")
	}
}

func TestValidateReorder_DuplicateIndexRejected(t *testing.T) {
	members := makeMembers(3)
	orders := identityOrder(members)
	orders[2].OrderIndex = 1

	issues := catalog.ValidateReorder(members, orders)
	if len(issues) == 0 {
		t.Fatal("Expected issues for a duplicated order index")
	}
}

func TestValidateReorder_IndexOutOfRangeRejected(t *testing.T) {
	members := makeMembers(3)
	orders := identityOrder(members)
	orders[1].OrderIndex = 4

	issues := catalog.ValidateReorder(members, orders)
	if len(issues) == 0 {
		t.Fatal("Expected issues for an out-of-range order index")
	}
}

func TestValidateReorder_MissingVideoRejected(t *testing.T) {
	members := makeMembers(3)
	orders := identityOrder(members)[:2]

	issues := catalog.ValidateReorder(members, orders)
	if len(issues) == 0 {
		t.Fatal("Expected issues when a member video is missing")
	}
}

func TestValidateReorder_EmptySeriesAcceptsEmptyRequest(t *testing.T) {
	issues := catalog.ValidateReorder(nil, nil)
	if len(issues) != 0 {
		t.Fatalf("Expected no issues for an empty series, got %v", issues)
	}
}

func TestValidateReorder_AnyPermutationIsValid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 30).Draw(t, "n")
		members := makeMembers(n)

		perm := rapid.Permutation(members).Draw(t, "perm")
		orders := make([]catalog.VideoOrder, n)
		for i, id := range perm {
			orders[i] = catalog.VideoOrder{VideoID: id, OrderIndex: i + 1}
		}

		if issues := catalog.ValidateReorder(members, orders); len(issues) != 0 {
			t.Fatalf("Permutation flagged as invalid: %v", issues)
		}
	})
}

func TestValidateReorder_NonConsecutiveIndicesRejected(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 20).Draw(t, "n")
		members := makeMembers(n)
		orders := identityOrder(members)

		// Shift one index above N; the set is no longer exactly 1..N.
		victim := rapid.IntRange(0, n-1).Draw(t, "victim")
		orders[victim].OrderIndex = n + rapid.IntRange(1, 5).Draw(t, "offset")

		if issues := catalog.ValidateReorder(members, orders); len(issues) == 0 {
			t.Fatal("Gapped ordering passed validation")
		}
	})
}
