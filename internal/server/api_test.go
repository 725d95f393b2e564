package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clipvault/backend/internal/catalog"
	"github.com/clipvault/backend/internal/config"
	"github.com/clipvault/backend/internal/events"
	"github.com/clipvault/backend/internal/logging"
	"github.com/clipvault/backend/internal/purchase"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Env: "test"},
		JWT: config.JWTConfig{
			Secret:             "test-secret-key-for-server-testing",
			AccessTokenExpiry:  15,
			RefreshTokenExpiry: 168,
		},
		Gateway: config.GatewayConfig{WebhookSecret: "test-webhook-secret"},
		CORS:    config.CORSConfig{AllowedOrigins: []string{"*"}},
	}
}

// newTestServer wires the full route table without a database; tests
// here only exercise paths that fail before touching storage.
func newTestServer() *APIServer {
	publisher := events.NewPublisher(nil, logging.NewLogger("events-test"))
	return NewAPIServer(testConfig(), nil, publisher)
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("Expected healthy, got %s", body["status"])
	}
}

func TestProtectedRoutes_RequireAuth(t *testing.T) {
	srv := newTestServer()

	routes := []struct {
		method string
		path   string
	}{
		{"GET", "/api/v1/wallet"},
		{"GET", "/api/v1/wallet/transactions"},
		{"POST", "/api/v1/wallet/topup"},
		{"POST", "/api/v1/series/5b3f1f6e-0000-0000-0000-000000000000/purchase"},
		{"POST", "/api/v1/videos/5b3f1f6e-0000-0000-0000-000000000000/purchase"},
		{"GET", "/api/v1/videos/5b3f1f6e-0000-0000-0000-000000000000/access"},
		{"GET", "/api/v1/creators/me/earnings"},
		{"PUT", "/api/v1/series/5b3f1f6e-0000-0000-0000-000000000000/videos/reorder"},
	}
	for _, r := range routes {
		req := httptest.NewRequest(r.method, r.path, nil)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401 without token, got %d", r.method, r.path, w.Code)
		}
	}
}

func TestTopupWebhook_RejectsBadSignature(t *testing.T) {
	srv := newTestServer()

	body := []byte(`{"gateway_ref":"abc","status":"completed"}`)
	req := httptest.NewRequest("POST", "/api/v1/wallet/topup/webhook", bytes.NewReader(body))
	req.Header.Set("X-Gateway-Signature", "deadbeef")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for a bad signature, got %d", w.Code)
	}
}

func TestTopupWebhook_RejectsMissingSignature(t *testing.T) {
	srv := newTestServer()

	body := []byte(`{"gateway_ref":"abc","status":"completed"}`)
	req := httptest.NewRequest("POST", "/api/v1/wallet/topup/webhook", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without signature, got %d", w.Code)
	}
}

func TestTopupWebhook_ValidSignatureBadPayload(t *testing.T) {
	srv := newTestServer()

	body := []byte(`{"status":"completed"}`) // missing gateway_ref
	mac := hmac.New(sha256.New, []byte("test-webhook-secret"))
	mac.Write(body)

	req := httptest.NewRequest("POST", "/api/v1/wallet/topup/webhook", bytes.NewReader(body))
	req.Header.Set("X-Gateway-Signature", hex.EncodeToString(mac.Sum(nil)))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for incomplete payload, got %d", w.Code)
	}
}

func TestReorderRequest_WireShape(t *testing.T) {
	router := gin.New()
	router.PUT("/x", func(c *gin.Context) {
		var req reorderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, req.VideoOrders)
	})

	body := `{"videoOrders":[
		{"videoId":"5b3f1f6e-0000-0000-0000-000000000001","orderIndex":2},
		{"videoId":"5b3f1f6e-0000-0000-0000-000000000002","orderIndex":1}
	]}`
	req := httptest.NewRequest("PUT", "/x", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 for videoOrders payload, got %d: %s", w.Code, w.Body.String())
	}
	var orders []catalog.VideoOrder
	if err := json.Unmarshal(w.Body.Bytes(), &orders); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(orders) != 2 || orders[0].OrderIndex != 2 || orders[1].OrderIndex != 1 {
		t.Errorf("Payload not bound as expected: %+v", orders)
	}

	// Any other key fails the required binding.
	req = httptest.NewRequest("PUT", "/x", bytes.NewReader([]byte(`{"videos":[]}`)))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without videoOrders key, got %d", w.Code)
	}
}

func TestRespondPurchaseError_Mapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{purchase.ErrSeriesNotFound, http.StatusNotFound},
		{purchase.ErrVideoNotFound, http.StatusNotFound},
		{purchase.ErrUserNotFound, http.StatusNotFound},
		{purchase.ErrSeriesInactive, http.StatusGone},
		{purchase.ErrVideoInactive, http.StatusGone},
		{purchase.ErrVideoBundled, http.StatusBadRequest},
		{purchase.ErrVideoUnpriced, http.StatusBadRequest},
		{&purchase.InsufficientCoinsError{Required: 100, Available: 40}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		router := gin.New()
		router.GET("/x", func(c *gin.Context) {
			respondPurchaseError(c, tc.err)
		})
		req := httptest.NewRequest("GET", "/x", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != tc.want {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.want, w.Code)
		}
	}
}

func TestRespondPurchaseError_InsufficientCoinsBody(t *testing.T) {
	router := gin.New()
	router.GET("/x", func(c *gin.Context) {
		respondPurchaseError(c, &purchase.InsufficientCoinsError{Required: 100, Available: 40})
	})
	req := httptest.NewRequest("GET", "/x", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var body struct {
		Error struct {
			Details struct {
				CoinsRequired  int64 `json:"coinsRequired"`
				CoinsAvailable int64 `json:"coinsAvailable"`
				CoinsShortfall int64 `json:"coinsShortfall"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body.Error.Details.CoinsShortfall != 60 {
		t.Errorf("Expected shortfall 60, got %d", body.Error.Details.CoinsShortfall)
	}
}

func TestRespondUnexpected_TransientGets503(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"deadline", fmt.Errorf("failed to load series: %w", context.DeadlineExceeded), http.StatusServiceUnavailable},
		{"network", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, http.StatusServiceUnavailable},
		{"pg connection exception", &pgconn.PgError{Code: "08006"}, http.StatusServiceUnavailable},
		{"pg too many connections", &pgconn.PgError{Code: "53300"}, http.StatusServiceUnavailable},
		{"pg admin shutdown", &pgconn.PgError{Code: "57P01"}, http.StatusServiceUnavailable},
		{"pg constraint violation", &pgconn.PgError{Code: "23505"}, http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/x", func(c *gin.Context) {
				respondUnexpected(c, tc.err)
			})
			req := httptest.NewRequest("GET", "/x", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tc.want {
				t.Errorf("Expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestRespondCatalogError_Mapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{catalog.ErrSeriesNotFound, http.StatusNotFound},
		{catalog.ErrVideoNotFound, http.StatusNotFound},
		{catalog.ErrNotOwner, http.StatusForbidden},
		{catalog.ErrCreatorMismatch, http.StatusBadRequest},
		{catalog.ErrAlreadyInSeries, http.StatusBadRequest},
		{catalog.ErrNotInSeries, http.StatusBadRequest},
	}
	for _, tc := range cases {
		router := gin.New()
		router.GET("/x", func(c *gin.Context) {
			respondCatalogError(c, tc.err)
		})
		req := httptest.NewRequest("GET", "/x", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != tc.want {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.want, w.Code)
		}
	}
}
