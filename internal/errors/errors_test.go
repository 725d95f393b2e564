package errors_test

import (
	"encoding/json"
	"net/http"
	"testing"

	apierrors "github.com/clipvault/backend/internal/errors"
	"pgregory.net/rapid"
)

func TestCannedErrors_StatusMatchesCode(t *testing.T) {
	canned := []*apierrors.APIError{
		apierrors.ErrUnauthorizedError,
		apierrors.ErrInvalidCredentialsError,
		apierrors.ErrTokenExpiredError,
		apierrors.ErrForbiddenError,
		apierrors.ErrSeriesNotFoundError,
		apierrors.ErrVideoNotFoundError,
		apierrors.ErrUserNotFoundError,
		apierrors.ErrInactiveContentError,
		apierrors.ErrInternalServerError,
		apierrors.ErrTransientFailureError,
	}
	for _, e := range canned {
		if got := apierrors.GetHTTPStatusFromCode(e.Code); got != e.HTTPStatus {
			t.Errorf("Code %s: HTTPStatus %d but GetHTTPStatusFromCode says %d",
				e.Code, e.HTTPStatus, got)
		}
	}
}

func TestGetHTTPStatusFromCode_UnknownCodeIs500(t *testing.T) {
	if got := apierrors.GetHTTPStatusFromCode("99999"); got != http.StatusInternalServerError {
		t.Errorf("Expected 500 for unknown code, got %d", got)
	}
}

func TestNewErrorResponse_CarriesRequestContext(t *testing.T) {
	resp := apierrors.NewErrorResponse(apierrors.ErrSeriesNotFoundError, "req-123", "/api/v1/series/x", "GET")

	if resp.RequestID != "req-123" {
		t.Errorf("Expected request id req-123, got %s", resp.RequestID)
	}
	if resp.Path != "/api/v1/series/x" || resp.Method != "GET" {
		t.Errorf("Request context lost: %s %s", resp.Method, resp.Path)
	}
	if resp.Error.Timestamp == "" {
		t.Error("Expected a timestamp on the response")
	}
	// The shared canned error must not be mutated.
	if apierrors.ErrSeriesNotFoundError.Timestamp != "" {
		t.Error("NewErrorResponse mutated the shared error value")
	}
}

func TestNewInsufficientCoinsError_ShortfallArithmetic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		required := rapid.Int64Range(1, 1_000_000).Draw(t, "required")
		available := rapid.Int64Range(0, required-1).Draw(t, "available")

		apiErr := apierrors.NewInsufficientCoinsError(required, available, nil)

		details, ok := apiErr.Details.(apierrors.InsufficientCoinsDetails)
		if !ok {
			t.Fatalf("Details has unexpected type %T", apiErr.Details)
		}
		if details.CoinsShortfall != required-available {
			t.Fatalf("Shortfall %d != %d - %d", details.CoinsShortfall, required, available)
		}
		if apiErr.HTTPStatus != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d", apiErr.HTTPStatus)
		}
	})
}

func TestInsufficientCoinsDetails_JSONFieldNames(t *testing.T) {
	apiErr := apierrors.NewInsufficientCoinsError(100, 90, nil)
	raw, err := json.Marshal(apiErr)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded struct {
		Details map[string]any `json:"details"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"coinsRequired", "coinsAvailable", "coinsShortfall"} {
		if _, present := decoded.Details[key]; !present {
			t.Errorf("Missing detail field %q in %s", key, raw)
		}
	}
}
