package server

import (
	"errors"
	"net/http"

	apierrors "github.com/clipvault/backend/internal/errors"
	"github.com/clipvault/backend/internal/middleware"
	"github.com/clipvault/backend/internal/pricing"
	"github.com/clipvault/backend/internal/purchase"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// handlePurchaseSeries buys a series at its adjusted price
func (s *APIServer) handlePurchaseSeries(c *gin.Context) {
	userID := middleware.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		respondError(c, apierrors.ErrUnauthorizedError)
		return
	}

	seriesID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewInvalidRequestError("Invalid series id"))
		return
	}

	result, err := s.purchaseService.PurchaseSeries(c.Request.Context(), userID, seriesID)
	if err != nil {
		respondPurchaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// handlePurchaseVideo buys a standalone video at its list price
func (s *APIServer) handlePurchaseVideo(c *gin.Context) {
	userID := middleware.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		respondError(c, apierrors.ErrUnauthorizedError)
		return
	}

	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewInvalidRequestError("Invalid video id"))
		return
	}

	result, err := s.purchaseService.PurchaseVideo(c.Request.Context(), userID, videoID)
	if err != nil {
		respondPurchaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleGetSeriesPurchase returns the caller's purchase state for a
// series, including the live quote when the series is not yet owned
func (s *APIServer) handleGetSeriesPurchase(c *gin.Context) {
	userID := middleware.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		respondError(c, apierrors.ErrUnauthorizedError)
		return
	}

	seriesID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewInvalidRequestError("Invalid series id"))
		return
	}

	details, err := s.purchaseService.GetSeriesPurchase(c.Request.Context(), userID, seriesID)
	if err != nil {
		respondPurchaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, details)
}

// handleSeriesQuote prices a series for the caller without purchasing
func (s *APIServer) handleSeriesQuote(c *gin.Context) {
	userID := middleware.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		respondError(c, apierrors.ErrUnauthorizedError)
		return
	}

	seriesID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewInvalidRequestError("Invalid series id"))
		return
	}

	quote, err := s.pricingService.CalculateAdjustedPrice(c.Request.Context(), userID, seriesID)
	if err != nil {
		if errors.Is(err, pricing.ErrSeriesNotFound) {
			respondError(c, apierrors.ErrSeriesNotFoundError)
			return
		}
		respondUnexpected(c, err)
		return
	}

	c.JSON(http.StatusOK, quote)
}

// respondPurchaseError maps purchase service errors onto the API
// taxonomy. An insufficient-balance rejection carries the shortfall and
// the deduction breakdown so the client can prompt a topup.
func respondPurchaseError(c *gin.Context, err error) {
	var insufficientErr *purchase.InsufficientCoinsError
	if errors.As(err, &insufficientErr) {
		respondError(c, apierrors.NewInsufficientCoinsError(
			insufficientErr.Required, insufficientErr.Available, insufficientErr.Deductions))
		return
	}

	switch {
	case errors.Is(err, purchase.ErrSeriesNotFound):
		respondError(c, apierrors.ErrSeriesNotFoundError)
	case errors.Is(err, purchase.ErrVideoNotFound):
		respondError(c, apierrors.ErrVideoNotFoundError)
	case errors.Is(err, purchase.ErrUserNotFound):
		respondError(c, apierrors.ErrUserNotFoundError)
	case errors.Is(err, purchase.ErrSeriesInactive), errors.Is(err, purchase.ErrVideoInactive):
		respondError(c, apierrors.ErrInactiveContentError)
	case errors.Is(err, purchase.ErrVideoBundled):
		respondError(c, apierrors.NewInvalidRequestError("Video is part of a series; purchase the series instead"))
	case errors.Is(err, purchase.ErrVideoUnpriced):
		respondError(c, apierrors.NewInvalidRequestError("Video is not available for standalone purchase"))
	default:
		respondUnexpected(c, err)
	}
}
