package middleware_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"sportstore/internal/apperrors"
	"sportstore/internal/middleware"
	"sportstore/internal/services"
	"sportstore/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateToken(token string) (*services.Claims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Claims), args.Error(1)
}

func newApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
}

func send(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestAuthRequired(t *testing.T) {
	tokens := new(MockTokenValidator)
	tokens.On("ValidateToken", "good").Return(&services.Claims{Username: "admin"}, nil)
	tokens.On("ValidateToken", "bad").Return(nil, apperrors.ErrInvalidToken)

	app := newApp()
	app.Get("/me", middleware.AuthRequired(tokens), func(c *fiber.Ctx) error {
		fromCtx, _ := middleware.UsernameFromContext(c.UserContext())
		return c.JSON(fiber.Map{"locals": c.Locals(middleware.UsernameKey), "ctx": fromCtx})
	})

	tests := []struct {
		header string
		status int
		body   string
	}{
		{"", http.StatusUnauthorized, `{"message":"No token provided"}`},
		{"Bearer", http.StatusUnauthorized, `{"message":"No token provided"}`},
		{"Bearer ", http.StatusUnauthorized, `{"message":"No token provided"}`},
		{"Token good", http.StatusUnauthorized, `{"message":"No token provided"}`},
		{"Bearer bad", http.StatusForbidden, `{"message":"Invalid or expired token"}`},
		{"Bearer good", http.StatusOK, `{"locals":"admin","ctx":"admin"}`},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, body := send(t, app, req)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.JSONEq(t, tt.body, body)
		})
	}

	tokens.AssertNumberOfCalls(t, "ValidateToken", 2)
}

type payload struct {
	Name  string `json:"name"`
	Stock *int   `json:"stock,omitempty"`
}

var payloadSpec = validation.Spec{
	{Name: "name", Kind: validation.String, Checks: []validation.Check{validation.NotEmpty("name"), validation.MaxLength("name", 5)}},
	{Name: "stock", Kind: validation.Integer, Checks: []validation.Check{validation.Min("stock", 0)}},
}

func TestValidateBody(t *testing.T) {
	reached := 0
	app := newApp()
	app.Post("/items", middleware.ValidateBody[payload](payloadSpec, false), func(c *fiber.Ctx) error {
		reached++
		p, ok := middleware.Payload[payload](c)
		require.True(t, ok)
		return c.JSON(p)
	})

	post := func(body string) (*http.Response, string) {
		req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return send(t, app, req)
	}

	resp, body := post(`{"name":"ball","stock":3,"extra":true}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"name":"ball","stock":3}`, body)

	resp, body = post(`{"name":"basketball","stock":-1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{
		"message": "validation failed",
		"errors": [
			{"property": "name", "constraints": {"maxLength": "name must be shorter than or equal to 5 characters"}},
			{"property": "stock", "constraints": {"min": "stock must not be less than 0"}}
		]
	}`, body)

	resp, body = post(``)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, `"isNotEmpty":"name should not be empty"`)

	resp, body = post(`{"name":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Invalid request body"}`, body)

	assert.Equal(t, 1, reached)
}

func TestErrorHandler(t *testing.T) {
	app := newApp()
	app.Get("/missing", func(c *fiber.Ctx) error { return apperrors.ErrProductNotFound })
	app.Get("/duplicate", func(c *fiber.Ctx) error { return apperrors.DuplicateName("Ball") })
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.ErrMethodNotAllowed })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("dial tcp: connection refused") })

	tests := map[string]struct {
		status int
		body   string
	}{
		"/missing":   {http.StatusNotFound, `{"message":"Product not found"}`},
		"/duplicate": {http.StatusBadRequest, `{"message":"A product named \"Ball\" already exists."}`},
		"/fiber":     {http.StatusMethodNotAllowed, `{"message":"Method Not Allowed"}`},
		"/boom":      {http.StatusInternalServerError, `{"message":"Internal server error"}`},
		"/nowhere":   {http.StatusNotFound, `{"message":"Cannot GET /nowhere"}`},
	}
	for path, tt := range tests {
		resp, body := send(t, app, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, tt.status, resp.StatusCode, path)
		assert.JSONEq(t, tt.body, body, path)
	}
}

func TestHardening(t *testing.T) {
	app := newApp()
	middleware.Hardening(app, middleware.SecurityConfig{
		RateLimit:   middleware.RateLimitConfig{Max: 2, Window: time.Minute},
		CORSOrigins: "https://shop.example.com, https://admin.example.com",
	})
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	app.Get("/panic", func(c *fiber.Ctx) error { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	resp, body := send(t, app, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", body)
	assert.Equal(t, middleware.ContentSecurityPolicy, resp.Header.Get("Content-Security-Policy"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Frame-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	assert.Equal(t, "https://admin.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, body = send(t, app, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Internal server error"}`, body)

	resp, body = send(t, app, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Too many requests from this IP, please try again in 1 minute."}`, body)
}

func TestRateLimitMessage(t *testing.T) {
	assert.Equal(t, "Too many requests from this IP, please try again in 3 minutes.", middleware.RateLimitMessage(3*time.Minute))
	assert.Equal(t, "Too many requests from this IP, please try again in 1 minute.", middleware.RateLimitMessage(time.Minute))
	assert.Equal(t, "Too many requests from this IP, please try again in 30s.", middleware.RateLimitMessage(30*time.Second))
}
