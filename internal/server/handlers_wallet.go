package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/clipvault/backend/internal/earnings"
	apierrors "github.com/clipvault/backend/internal/errors"
	"github.com/clipvault/backend/internal/middleware"
	"github.com/clipvault/backend/internal/topup"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// handleGetBalance returns the caller's current coin balance
func (s *APIServer) handleGetBalance(c *gin.Context) {
	userID := middleware.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		respondError(c, apierrors.ErrUnauthorizedError)
		return
	}

	balance, err := s.walletService.Balance(c.Request.Context(), userID)
	if err != nil {
		respondUnexpected(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// handleTransactionHistory returns the caller's ledger entries newest first
func (s *APIServer) handleTransactionHistory(c *gin.Context) {
	userID := middleware.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		respondError(c, apierrors.ErrUnauthorizedError)
		return
	}

	page, pageSize := parsePagination(c)
	history, err := s.walletService.History(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		respondUnexpected(c, err)
		return
	}

	c.JSON(http.StatusOK, history)
}

// handleListPackages returns the purchasable coin packages
func (s *APIServer) handleListPackages(c *gin.Context) {
	packages, err := s.topupService.ListPackages(c.Request.Context())
	if err != nil {
		respondUnexpected(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"packages": packages})
}

// topupRequest is the body for initiating a coin topup
type topupRequest struct {
	PackageID string `json:"package_id" binding:"required"`
}

// handleInitiateTopup creates a pending topup for the caller
func (s *APIServer) handleInitiateTopup(c *gin.Context) {
	userID := middleware.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		respondError(c, apierrors.ErrUnauthorizedError)
		return
	}

	var req topupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	t, err := s.topupService.InitiateTopup(c.Request.Context(), userID, req.PackageID)
	if err != nil {
		if errors.Is(err, topup.ErrPackageNotFound) {
			respondError(c, apierrors.NewInvalidRequestError("Unknown coin package"))
			return
		}
		respondUnexpected(c, err)
		return
	}

	c.JSON(http.StatusCreated, t)
}

// handleTopupWebhook processes the payment gateway's settlement
// notification. The raw body is verified against the shared secret
// before any parsing; an unverified request is rejected without detail.
func (s *APIServer) handleTopupWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, apierrors.NewInvalidRequestError("Unable to read request body"))
		return
	}

	signature := c.GetHeader("X-Gateway-Signature")
	if signature == "" || !s.topupService.VerifySignature(body, signature) {
		respondError(c, apierrors.ErrUnauthorizedError)
		return
	}

	var payload topup.WebhookPayload
	if err := bindWebhookPayload(body, &payload); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	t, err := s.topupService.CompleteTopup(c.Request.Context(), &payload)
	if err != nil {
		switch {
		case errors.Is(err, topup.ErrTopupNotFound):
			respondError(c, apierrors.NewInvalidRequestError("Unknown gateway reference"))
		case errors.Is(err, topup.ErrTopupFailed):
			// Acknowledged so the gateway stops retrying a settled failure
			c.JSON(http.StatusOK, gin.H{"status": string(t.Status)})
		default:
			respondUnexpected(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": string(t.Status)})
}

// handleEarningsSummary returns the calling creator's lifetime earnings
func (s *APIServer) handleEarningsSummary(c *gin.Context) {
	creatorID := middleware.GetUserIDFromContext(c)
	if creatorID == uuid.Nil {
		respondError(c, apierrors.ErrUnauthorizedError)
		return
	}

	summary, err := s.earningsService.GetSummary(c.Request.Context(), creatorID)
	if err != nil {
		respondEarningsError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// handleEarningsHistory returns the creator's earn entries newest first
func (s *APIServer) handleEarningsHistory(c *gin.Context) {
	creatorID := middleware.GetUserIDFromContext(c)
	if creatorID == uuid.Nil {
		respondError(c, apierrors.ErrUnauthorizedError)
		return
	}

	page, pageSize := parsePagination(c)
	history, err := s.earningsService.GetHistory(c.Request.Context(), creatorID, page, pageSize)
	if err != nil {
		respondEarningsError(c, err)
		return
	}

	c.JSON(http.StatusOK, history)
}

func respondEarningsError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, earnings.ErrCreatorNotFound):
		respondError(c, apierrors.ErrUserNotFoundError)
	case errors.Is(err, earnings.ErrNotCreator):
		respondError(c, apierrors.ErrForbiddenError)
	default:
		respondUnexpected(c, err)
	}
}

// bindWebhookPayload decodes the already-verified webhook body
func bindWebhookPayload(body []byte, payload *topup.WebhookPayload) error {
	if err := json.Unmarshal(body, payload); err != nil {
		return err
	}
	if payload.GatewayRef == "" || payload.Status == "" {
		return errors.New("gateway_ref and status are required")
	}
	return nil
}

// parsePagination reads page/page_size query params with sane bounds
func parsePagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
