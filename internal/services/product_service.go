package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"sportstore/internal/models"
	"sportstore/internal/repositories"
	"sportstore/internal/storage"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	"golang.org/x/sync/errgroup"
)

// ProductExchange is the exchange product events are published to.
const ProductExchange = "product"

// Routing keys of published product events.
const (
	EventProductCreated = "product.created"
	EventProductUpdated = "product.updated"
	EventProductDeleted = "product.deleted"
)

// EventPublisher sends a message to an exchange. *rabbitmq.Client satisfies it.
type EventPublisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo   repositories.ProductRepository
	events EventPublisher
}

// NewProductService creates a new ProductService. events may be nil, in which
// case no events are published.
func NewProductService(repo repositories.ProductRepository, events EventPublisher) *ProductService {
	return &ProductService{
		repo:   repo,
		events: events,
	}
}

// GetAllProducts retrieves all products.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.GetAll(ctx)
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// GetProductsByCategory retrieves the products in a category.
func (s *ProductService) GetProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	return s.repo.GetByCategory(ctx, category)
}

// CreateProduct creates a new product. The name must not be in use.
func (s *ProductService) CreateProduct(ctx context.Context, input models.ProductInput) (*models.Product, error) {
	product, err := s.repo.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	s.publish(EventProductCreated, product)
	return product, nil
}

// UpdateProduct applies a partial update to an existing product.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error) {
	product, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.publish(EventProductUpdated, product)
	return product, nil
}

// DeleteProduct deletes a product by its ID and reports whether it existed.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) (bool, error) {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil || !removed {
		return removed, err
	}
	s.publish(EventProductDeleted, map[string]string{"id": id})
	return true, nil
}

// publish sends an event on a best-effort basis; failures are only logged.
func (s *ProductService) publish(routingKey string, payload interface{}) {
	if s.events == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", routingKey).Msg("failed to marshal product event")
		return
	}
	if err := s.events.Publish(ProductExchange, routingKey, body); err != nil {
		log.Warn().Err(err).Str("event", routingKey).Msg("failed to publish product event")
		return
	}
	log.Debug().Str("event", routingKey).Msg("published product event")
}

// GetMetrics computes the product count, total stock, average price and the
// categories ordered by how many products they hold. The four queries run
// concurrently.
func (s *ProductService) GetMetrics(ctx context.Context) (*models.ProductMetrics, error) {
	var (
		totalProducts int64
		totalStock    int64
		averagePrice  float64
		categories    []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.Count(gctx)
		totalProducts = n
		return err
	})
	g.Go(func() error {
		v, err := s.aggregateValue(gctx, storage.Sum("totalStock", "stock"), "totalStock")
		if err != nil {
			return err
		}
		totalStock, err = cast.ToInt64E(v)
		return err
	})
	g.Go(func() error {
		v, err := s.aggregateValue(gctx, storage.Avg("averagePrice", "price"), "averagePrice")
		if err != nil {
			return err
		}
		averagePrice, err = cast.ToFloat64E(v)
		return err
	})
	g.Go(func() error {
		docs, err := s.repo.Aggregate(gctx, storage.CountBy("category", "count"))
		if err != nil {
			return err
		}
		categories = make([]string, 0, len(docs))
		for _, doc := range docs {
			if doc[storage.GroupKeyField] == nil {
				continue
			}
			name, err := cast.ToStringE(doc[storage.GroupKeyField])
			if err != nil {
				return fmt.Errorf("unexpected category key %v: %w", doc[storage.GroupKeyField], err)
			}
			categories = append(categories, name)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &models.ProductMetrics{
		TotalProducts: totalProducts,
		TotalStock:    totalStock,
		AveragePrice:  FormatPrice(averagePrice),
		TopCategories: categories,
	}, nil
}

// aggregateValue runs an ungrouped pipeline and returns one accumulator.
// A missing or null value counts as zero.
func (s *ProductService) aggregateValue(ctx context.Context, pipeline storage.Pipeline, field string) (interface{}, error) {
	docs, err := s.repo.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 || docs[0][field] == nil {
		return 0, nil
	}
	return docs[0][field], nil
}

// FormatPrice rounds half away from zero to two decimals.
func FormatPrice(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', 2, 64)
}
