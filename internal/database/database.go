package database

import (
	"context"
	"fmt"
	"time"

	"sportstore/internal/models"
	"sportstore/internal/storage"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ProductCollection is the collection/table name holding products.
const ProductCollection = "products"

// Supported drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config selects and locates the storage backend.
type Config struct {
	Driver        string
	DSN           string
	MongoURI      string
	MongoDatabase string
}

// Store holds the opened product collection and how to release it.
type Store struct {
	Products storage.Collection
	closeFn  func(ctx context.Context) error
}

// Close releases the underlying connection, if any.
func (s *Store) Close(ctx context.Context) error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn(ctx)
}

// Open connects to the configured backend and prepares the product schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	switch cfg.Driver {
	case DriverMemory:
		return &Store{Products: storage.NewMemoryCollection("name")}, nil
	case DriverSQLite:
		return openGORM(sqlite.Open(cfg.DSN), true)
	case DriverPostgres:
		return openGORM(postgres.Open(cfg.DSN), false)
	case DriverMongo:
		return openMongo(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func openGORM(dialector gorm.Dialector, singleConn bool) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if singleConn {
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	}

	// The unique index on name backs up the repository's duplicate check.
	if err := db.AutoMigrate(&models.Product{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	log.Info().Str("dialect", dialector.Name()).Msg("database connected")
	return &Store{
		Products: storage.NewGORMCollection(db, ProductCollection),
		closeFn: func(context.Context) error {
			return sqlDB.Close()
		},
	}, nil
}

func openMongo(ctx context.Context, cfg Config) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	coll := storage.NewMongoCollection(client.Database(cfg.MongoDatabase).Collection(ProductCollection))
	if err := coll.EnsureUniqueIndex(connectCtx, "name"); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}

	log.Info().Str("database", cfg.MongoDatabase).Msg("MongoDB connected")
	return &Store{
		Products: coll,
		closeFn:  client.Disconnect,
	}, nil
}
