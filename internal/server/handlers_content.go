package server

import (
	"errors"
	"net/http"

	"github.com/clipvault/backend/internal/access"
	"github.com/clipvault/backend/internal/catalog"
	apierrors "github.com/clipvault/backend/internal/errors"
	"github.com/clipvault/backend/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// handleCreateVideo creates a standalone video for the calling creator
func (s *APIServer) handleCreateVideo(c *gin.Context) {
	creatorID := middleware.GetUserIDFromContext(c)
	if creatorID == uuid.Nil {
		respondError(c, apierrors.ErrUnauthorizedError)
		return
	}

	var req catalog.CreateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	video, err := s.catalogService.CreateVideo(c.Request.Context(), creatorID, &req)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidCoinPrice) {
			respondError(c, apierrors.NewValidationError("Coin price must be at least 1"))
			return
		}
		respondUnexpected(c, err)
		return
	}

	c.JSON(http.StatusCreated, video)
}

// handleGetVideo returns a single video
func (s *APIServer) handleGetVideo(c *gin.Context) {
	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewInvalidRequestError("Invalid video id"))
		return
	}

	video, err := s.catalogService.GetVideo(c.Request.Context(), videoID)
	if err != nil {
		if errors.Is(err, catalog.ErrVideoNotFound) {
			respondError(c, apierrors.ErrVideoNotFoundError)
			return
		}
		respondUnexpected(c, err)
		return
	}

	c.JSON(http.StatusOK, video)
}

// handleVideoAccess reports whether the caller may watch a video and why
func (s *APIServer) handleVideoAccess(c *gin.Context) {
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

	level, err := s.accessService.CheckVideoAccess(c.Request.Context(), userID, videoID)
	if err != nil {
		if errors.Is(err, access.ErrVideoNotFound) {
			respondError(c, apierrors.ErrVideoNotFoundError)
			return
		}
		respondUnexpected(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"hasAccess":   level.HasAccess(),
		"accessLevel": level,
	})
}

// handleCreateSeries creates an empty series for the calling creator
func (s *APIServer) handleCreateSeries(c *gin.Context) {
	creatorID := middleware.GetUserIDFromContext(c)
	if creatorID == uuid.Nil {
		respondError(c, apierrors.ErrUnauthorizedError)
		return
	}

	var req catalog.CreateSeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	series, err := s.catalogService.CreateSeries(c.Request.Context(), creatorID, &req)
	if err != nil {
		respondUnexpected(c, err)
		return
	}

	c.JSON(http.StatusCreated, series)
}

// handleGetSeries returns a series with its videos in playback order
func (s *APIServer) handleGetSeries(c *gin.Context) {
	seriesID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewInvalidRequestError("Invalid series id"))
		return
	}

	detail, err := s.catalogService.GetSeriesDetail(c.Request.Context(), seriesID)
	if err != nil {
		if errors.Is(err, catalog.ErrSeriesNotFound) {
			respondError(c, apierrors.ErrSeriesNotFoundError)
			return
		}
		respondUnexpected(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// addVideoRequest is the body for attaching a video to a series
type addVideoRequest struct {
	VideoID uuid.UUID `json:"videoId" binding:"required"`
}

// handleAddVideoToSeries appends a video to the calling creator's series
func (s *APIServer) handleAddVideoToSeries(c *gin.Context) {
	creatorID := middleware.GetUserIDFromContext(c)
	if creatorID == uuid.Nil {
		respondError(c, apierrors.ErrUnauthorizedError)
		return
	}

	seriesID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewInvalidRequestError("Invalid series id"))
		return
	}

	var req addVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	err = s.catalogService.AddVideoToSeries(c.Request.Context(), creatorID, seriesID, req.VideoID)
	if err != nil {
		respondCatalogError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Video added to series"})
}

// handleRemoveVideoFromSeries detaches a video from the creator's series
func (s *APIServer) handleRemoveVideoFromSeries(c *gin.Context) {
	creatorID := middleware.GetUserIDFromContext(c)
	if creatorID == uuid.Nil {
		respondError(c, apierrors.ErrUnauthorizedError)
		return
	}

	seriesID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewInvalidRequestError("Invalid series id"))
		return
	}
	videoID, err := uuid.Parse(c.Param("videoId"))
	if err != nil {
		respondError(c, apierrors.NewInvalidRequestError("Invalid video id"))
		return
	}

	err = s.catalogService.RemoveVideoFromSeries(c.Request.Context(), creatorID, seriesID, videoID)
	if err != nil {
		respondCatalogError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Video removed from series"})
}

// reorderRequest is the body for replacing a series' video ordering
type reorderRequest struct {
	VideoOrders []catalog.VideoOrder `json:"videoOrders" binding:"required"`
}

// handleReorderVideos atomically replaces the ordering of a series.
// Validation problems come back itemized with a 400; nothing is applied
// unless the whole request is valid.
func (s *APIServer) handleReorderVideos(c *gin.Context) {
	creatorID := middleware.GetUserIDFromContext(c)
	if creatorID == uuid.Nil {
		respondError(c, apierrors.ErrUnauthorizedError)
		return
	}

	seriesID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, apierrors.NewInvalidRequestError("Invalid series id"))
		return
	}

	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	issues, err := s.catalogService.ReorderVideos(c.Request.Context(), creatorID, seriesID, req.VideoOrders)
	if err != nil {
		if errors.Is(err, catalog.ErrReorderValidation) {
			respondError(c, apierrors.NewValidationError(gin.H{"errors": issues}))
			return
		}
		respondCatalogError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Series reordered"})
}

// respondCatalogError maps catalog service errors onto the API taxonomy
func respondCatalogError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, catalog.ErrSeriesNotFound):
		respondError(c, apierrors.ErrSeriesNotFoundError)
	case errors.Is(err, catalog.ErrVideoNotFound):
		respondError(c, apierrors.ErrVideoNotFoundError)
	case errors.Is(err, catalog.ErrNotOwner):
		respondError(c, apierrors.ErrForbiddenError)
	case errors.Is(err, catalog.ErrCreatorMismatch):
		respondError(c, apierrors.NewInvalidRequestError("Video and series must belong to the same creator"))
	case errors.Is(err, catalog.ErrAlreadyInSeries):
		respondError(c, apierrors.NewInvalidRequestError("Video already belongs to a series"))
	case errors.Is(err, catalog.ErrNotInSeries):
		respondError(c, apierrors.NewInvalidRequestError("Video is not in the series"))
	default:
		respondUnexpected(c, err)
	}
}
