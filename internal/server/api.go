package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/clipvault/backend/internal/access"
	"github.com/clipvault/backend/internal/auth"
	"github.com/clipvault/backend/internal/catalog"
	"github.com/clipvault/backend/internal/config"
	"github.com/clipvault/backend/internal/earnings"
	apierrors "github.com/clipvault/backend/internal/errors"
	"github.com/clipvault/backend/internal/events"
	"github.com/clipvault/backend/internal/logging"
	"github.com/clipvault/backend/internal/middleware"
	"github.com/clipvault/backend/internal/monitoring"
	"github.com/clipvault/backend/internal/pricing"
	"github.com/clipvault/backend/internal/purchase"
	"github.com/clipvault/backend/internal/topup"
	"github.com/clipvault/backend/internal/wallet"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// APIServer represents the main API server
type APIServer struct {
	config           *config.Config
	router           *gin.Engine
	db               *pgxpool.Pool
	authService      *auth.Service
	catalogService   *catalog.Service
	walletService    *wallet.Service
	accessService    *access.Service
	pricingService   *pricing.Service
	purchaseService  *purchase.Service
	earningsService  *earnings.Service
	topupService     *topup.Service
	jwtAuthenticator *middleware.JWTAuthenticator
}

// NewAPIServer creates a new API server instance
func NewAPIServer(cfg *config.Config, db *pgxpool.Pool, publisher *events.Publisher) *APIServer {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware in order
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	router.Use(monitoring.MetricsMiddleware())
	router.Use(logging.RequestLogger())

	walletService := wallet.NewService(db)
	accessService := access.NewService(db)
	pricingService := pricing.NewService(db)

	srv := &APIServer{
		config:          cfg,
		router:          router,
		db:              db,
		authService:     auth.NewService(db, &cfg.JWT),
		catalogService:  catalog.NewService(db, logging.NewLogger("catalog")),
		walletService:   walletService,
		accessService:   accessService,
		pricingService:  pricingService,
		purchaseService: purchase.NewService(db, walletService, accessService, pricingService, publisher, logging.NewLogger("purchase")),
		earningsService: earnings.NewService(db),
		topupService: topup.NewService(db, publisher,
			cfg.Gateway.WebhookSecret, logging.NewLogger("topup")),
		jwtAuthenticator: middleware.NewJWTAuthenticator(&cfg.JWT),
	}

	srv.setupRoutes()
	return srv
}

// Router returns the gin router
func (s *APIServer) Router() http.Handler {
	return s.router
}

// setupRoutes configures all API routes
func (s *APIServer) setupRoutes() {
	// Health check
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	{
		// Auth routes (public)
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", s.handleRegister)
			authGroup.POST("/login", s.handleLogin)
			authGroup.POST("/logout", s.handleLogout)
			authGroup.POST("/refresh", s.handleRefresh)
		}

		// Video routes
		videos := v1.Group("/videos")
		{
			videos.POST("", s.jwtAuthenticator.JWTAuth(), middleware.RequireCreator(), s.handleCreateVideo)
			videos.GET("/:id", s.handleGetVideo)
			videos.GET("/:id/access", s.jwtAuthenticator.JWTAuth(), s.handleVideoAccess)
			videos.POST("/:id/purchase", s.jwtAuthenticator.JWTAuth(), s.handlePurchaseVideo)
		}

		// Series routes
		series := v1.Group("/series")
		{
			series.POST("", s.jwtAuthenticator.JWTAuth(), middleware.RequireCreator(), s.handleCreateSeries)
			series.GET("/:id", s.handleGetSeries)
			series.GET("/:id/quote", s.jwtAuthenticator.JWTAuth(), s.handleSeriesQuote)
			series.GET("/:id/purchase", s.jwtAuthenticator.JWTAuth(), s.handleGetSeriesPurchase)
			series.POST("/:id/purchase", s.jwtAuthenticator.JWTAuth(), s.handlePurchaseSeries)

			manage := series.Group("/:id/videos")
			manage.Use(s.jwtAuthenticator.JWTAuth())
			manage.Use(middleware.RequireCreator())
			{
				manage.POST("", s.handleAddVideoToSeries)
				manage.DELETE("/:videoId", s.handleRemoveVideoFromSeries)
				manage.PUT("/reorder", s.handleReorderVideos)
			}
		}

		// Wallet routes
		walletGroup := v1.Group("/wallet")
		{
			walletGroup.GET("", s.jwtAuthenticator.JWTAuth(), s.handleGetBalance)
			walletGroup.GET("/transactions", s.jwtAuthenticator.JWTAuth(), s.handleTransactionHistory)
			walletGroup.GET("/packages", s.handleListPackages)
			walletGroup.POST("/topup", s.jwtAuthenticator.JWTAuth(), s.handleInitiateTopup)
			walletGroup.POST("/topup/webhook", s.handleTopupWebhook)
		}

		// Creator earnings routes
		creators := v1.Group("/creators")
		creators.Use(s.jwtAuthenticator.JWTAuth())
		creators.Use(middleware.RequireCreator())
		{
			creators.GET("/me/earnings", s.handleEarningsSummary)
			creators.GET("/me/earnings/history", s.handleEarningsHistory)
		}
	}
}

// Health check handler
func (s *APIServer) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "clipvault",
	})
}

// handleRegister handles user registration
func (s *APIServer) handleRegister(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	resp, err := s.authService.Register(c.Request.Context(), &req)
	if err != nil {
		switch err {
		case auth.ErrEmailAlreadyExists:
			respondError(c, apierrors.NewInvalidRequestError("Email already registered"))
		default:
			respondUnexpected(c, err)
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// handleLogin handles user login
func (s *APIServer) handleLogin(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	resp, err := s.authService.Login(c.Request.Context(), &req)
	if err != nil {
		switch err {
		case auth.ErrInvalidCredentials:
			respondError(c, apierrors.ErrInvalidCredentialsError)
		case auth.ErrUserSuspended:
			respondError(c, apierrors.ErrForbiddenError)
		default:
			respondUnexpected(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// handleLogout handles user logout. Tokens are stateless, so logout is
// client-side token disposal.
func (s *APIServer) handleLogout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// handleRefresh handles token refresh
func (s *APIServer) handleRefresh(c *gin.Context) {
	var req auth.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.NewValidationError(err.Error()))
		return
	}

	tokens, err := s.authService.RefreshTokens(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch err {
		case auth.ErrInvalidToken:
			respondError(c, apierrors.ErrInvalidCredentialsError)
		case auth.ErrTokenExpired:
			respondError(c, apierrors.ErrTokenExpiredError)
		case auth.ErrUserNotFound:
			respondError(c, apierrors.ErrUserNotFoundError)
		default:
			respondUnexpected(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, tokens)
}

// respondError sends a standardized error response
func respondError(c *gin.Context, err *apierrors.APIError) {
	requestID, _ := c.Get("request_id")
	reqIDStr, _ := requestID.(string)

	c.JSON(err.HTTPStatus, apierrors.NewErrorResponse(err, reqIDStr, c.Request.URL.Path, c.Request.Method))
}

// respondUnexpected maps an unclassified service error to a response.
// Connectivity-class failures come back as a retryable 503; everything
// else is a 500.
func respondUnexpected(c *gin.Context, err error) {
	if isTransient(err) {
		respondError(c, apierrors.ErrTransientFailureError)
		return
	}
	respondError(c, apierrors.ErrInternalServerError)
}

// isTransient reports whether err is a failure the client may safely
// retry: a network error, a timed-out context, or a Postgres
// connection/resource error.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"): // connection exception
			return true
		case strings.HasPrefix(pgErr.Code, "53"): // insufficient resources
			return true
		case pgErr.Code == "57P01": // admin shutdown
			return true
		}
	}
	return false
}
