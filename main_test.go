package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"sportstore/internal/config"
	"sportstore/internal/database"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func testConfig(driver string) *config.Config {
	return &config.Config{
		AppEnv:          "test",
		AppPort:         ":0",
		StorageDriver:   driver,
		DatabaseDSN:     "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		JWTSecret:       "test_jwt_secret",
		TokenTTL:        time.Hour,
		AuthUsername:    "admin",
		AuthPassword:    "password123",
		RateLimitMax:    100,
		RateLimitWindow: 3 * time.Minute,
		CORSOrigins:     "*",
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *fiber.App {
	t.Helper()
	app, cleanup, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func login(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp, body := doJSON(t, app, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "admin",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out map[string]string
	require.NoError(t, json.Unmarshal(body, &out))
	require.NotEmpty(t, out["token"])
	return out["token"]
}

func TestNewApp_Health(t *testing.T) {
	app := newTestApp(t, testConfig(database.DriverMemory))

	resp, body := doJSON(t, app, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "healthy", out["status"])
	_, err := time.Parse(time.RFC3339, out["time"])
	assert.NoError(t, err)
}

func TestNewApp_ProductsRequireAuth(t *testing.T) {
	app := newTestApp(t, testConfig(database.DriverMemory))

	for _, path := range []string{"/products", "/products/metrics", "/products/category/Tennis"} {
		resp, body := doJSON(t, app, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		assert.JSONEq(t, `{"message":"No token provided"}`, string(body))
	}
}

func TestNewApp_EndToEnd(t *testing.T) {
	for _, driver := range []string{database.DriverMemory, database.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			app := newTestApp(t, testConfig(driver))
			token := login(t, app)

			resp, body := doJSON(t, app, http.MethodPost, "/products", token, map[string]interface{}{
				"name": "Raqueta Pro", "category": "Tenis", "price": 120.5, "stock": 3, "brand": "Wilson",
			})
			require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

			resp, body = doJSON(t, app, http.MethodGet, "/products/metrics", token, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.JSONEq(t, `{"total_products":1,"total_stock":3,"average_price":"120.50","top_categories":["Tenis"]}`, string(body))
		})
	}
}

func TestNewApp_SecurityHeaders(t *testing.T) {
	app := newTestApp(t, testConfig(database.DriverMemory))

	resp, _ := doJSON(t, app, http.MethodGet, "/health", "", nil)
	assert.Equal(t, "default-src 'self'; script-src 'self' 'unsafe-inline'; object-src 'none'; upgrade-insecure-requests",
		resp.Header.Get("Content-Security-Policy"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestNewApp_RateLimit(t *testing.T) {
	cfg := testConfig(database.DriverMemory)
	cfg.RateLimitMax = 2
	app := newTestApp(t, cfg)

	for i := 0; i < 2; i++ {
		resp, _ := doJSON(t, app, http.MethodGet, "/health", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := doJSON(t, app, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Too many requests from this IP, please try again in 3 minutes."}`, string(body))
}

func TestNewApp_RejectsUnknownDriver(t *testing.T) {
	_, cleanup, err := NewApp(context.Background(), testConfig("cassandra"))
	assert.Error(t, err)
	assert.Nil(t, cleanup)
}

func TestAuditProductEvent(t *testing.T) {
	assert.NoError(t, auditProductEvent(amqp.Delivery{RoutingKey: "product.created", Body: []byte(`{"id":"1","name":"P"}`)}))
	assert.Error(t, auditProductEvent(amqp.Delivery{RoutingKey: "product.created", Body: []byte(`not json`)}))
}
