package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RequestIDKey is the c.Locals key holding the request id.
const RequestIDKey = "requestid"

// ContentSecurityPolicy is sent with every response.
const ContentSecurityPolicy = "default-src 'self'; script-src 'self' 'unsafe-inline'; object-src 'none'; upgrade-insecure-requests"

// RateLimitConfig bounds how many requests one client IP may make per window.
// A nil Storage keeps counters in process memory.
type RateLimitConfig struct {
	Max     int
	Window  time.Duration
	Storage fiber.Storage
}

// SecurityConfig configures Hardening.
type SecurityConfig struct {
	RateLimit   RateLimitConfig
	CORSOrigins string
}

// Hardening installs, in order: panic recovery, request ids, request
// logging, security headers, CORS and per-IP rate limiting.
func Hardening(router fiber.Router, cfg SecurityConfig) {
	router.Use(recover.New(recover.Config{EnableStackTrace: true, StackTraceHandler: logPanic}))
	router.Use(requestid.New(requestid.Config{ContextKey: RequestIDKey}))
	router.Use(RequestLogger())
	router.Use(SecurityHeaders())
	router.Use(CORS(cfg.CORSOrigins))
	router.Use(RateLimiter(cfg.RateLimit))
}

func logPanic(c *fiber.Ctx, e interface{}) {
	log.Error().
		Interface("panic", e).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Msg("recovered from panic")
}

// SecurityHeaders sets the helmet header set with our content security policy.
func SecurityHeaders() fiber.Handler {
	return helmet.New(helmet.Config{
		ContentSecurityPolicy: ContentSecurityPolicy,
	})
}

// CORS allows the comma separated origins. An empty list allows any origin.
func CORS(origins string) fiber.Handler {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	allow := strings.Join(parts, ",")
	if allow == "" {
		allow = "*"
	}
	return cors.New(cors.Config{
		AllowOrigins: allow,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	})
}

// RateLimiter answers 429 once an IP exceeds cfg.Max requests in cfg.Window.
func RateLimiter(cfg RateLimitConfig) fiber.Handler {
	message := RateLimitMessage(cfg.Window)
	return limiter.New(limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Window,
		Storage:    cfg.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Warn().Str("ip", c.IP()).Msg("rate limit reached")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"message": message,
			})
		},
	})
}

// RateLimitMessage is the body text of a 429 for the given window.
func RateLimitMessage(window time.Duration) string {
	var wait string
	switch {
	case window == time.Minute:
		wait = "1 minute"
	case window > 0 && window%time.Minute == 0:
		wait = fmt.Sprintf("%d minutes", int(window/time.Minute))
	default:
		wait = window.String()
	}
	return fmt.Sprintf("Too many requests from this IP, please try again in %s.", wait)
}

// RequestLogger logs one line per request through zerolog. Errors are passed
// to the app's error handler first so the logged status is the one sent.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		if chainErr := c.Next(); chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		var event *zerolog.Event
		switch {
		case status >= fiber.StatusInternalServerError:
			event = log.Error()
		case status >= fiber.StatusBadRequest:
			event = log.Warn()
		default:
			event = log.Info()
		}
		event.
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.IP()).
			Interface("request_id", c.Locals(RequestIDKey)).
			Msg("request")
		return nil
	}
}
