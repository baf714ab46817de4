package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sportstore/internal/config"
	"sportstore/internal/database"
	"sportstore/internal/handlers"
	"sportstore/internal/middleware"
	"sportstore/internal/repositories"
	"sportstore/internal/services"
	"sportstore/pkg/rabbitmq"
	"sportstore/pkg/redisstore"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"
)

// auditQueue receives a copy of every product event for logging.
const auditQueue = "product_audit"

// NewApp wires storage, services and routes from cfg. The returned cleanup
// releases every connection NewApp opened and is safe to call once.
func NewApp(ctx context.Context, cfg *config.Config) (*fiber.App, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*fiber.App, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// --- Storage ---
	store, err := database.Open(ctx, database.Config{
		Driver:        cfg.StorageDriver,
		DSN:           cfg.DatabaseDSN,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDBName,
	})
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Error().Err(err).Msg("failed to close storage")
		}
	})

	// --- Product events (optional) ---
	var events services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{
			URL:       cfg.RabbitMQURL,
			Exchanges: []string{services.ProductExchange},
		})
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() {
			if err := mqClient.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close RabbitMQ client")
			}
		})
		if err := mqClient.Consume(auditQueue, services.ProductExchange, "product.*", auditProductEvent); err != nil {
			return fail(err)
		}
		events = mqClient
	}

	// --- Rate limit counters (optional) ---
	var limiterStorage fiber.Storage
	if cfg.RedisURL != "" {
		redisCfg := &redisstore.Config{URL: cfg.RedisURL}
		client, err := redisCfg.New()
		if err != nil {
			return fail(err)
		}
		storage := redisstore.New(client, "limiter:")
		closers = append(closers, func() {
			if err := storage.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close redis client")
			}
		})
		limiterStorage = storage
	}

	// --- Services ---
	credentials, err := services.NewStaticCredentials(cfg.AuthUsername, cfg.AuthPassword)
	if err != nil {
		return fail(err)
	}
	authService := services.NewAuthService(credentials, cfg.JWTSecret, cfg.TokenTTL)
	productService := services.NewProductService(repositories.NewProductRepository(store.Products), events)

	// --- Fiber App ---
	app := fiber.New(fiber.Config{
		AppName:      "sportstore",
		ErrorHandler: middleware.ErrorHandler,
	})

	middleware.Hardening(app, middleware.SecurityConfig{
		RateLimit: middleware.RateLimitConfig{
			Max:     cfg.RateLimitMax,
			Window:  cfg.RateLimitWindow,
			Storage: limiterStorage,
		},
		CORSOrigins: cfg.CORSOrigins,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handlers.NewAuthHandler(authService).RegisterRoutes(app)
	handlers.NewProductHandler(productService).RegisterRoutes(app, middleware.AuthRequired(authService))

	log.Info().
		Str("storage", cfg.StorageDriver).
		Bool("events", events != nil).
		Bool("shared_rate_limit", limiterStorage != nil).
		Msg("application wired")

	return app, cleanup, nil
}

func auditProductEvent(msg amqp.Delivery) error {
	var payload map[string]interface{}
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		return fmt.Errorf("malformed product event: %w", err)
	}
	log.Info().
		Str("event", msg.RoutingKey).
		Interface("id", payload["id"]).
		Msg("product event")
	return nil
}
