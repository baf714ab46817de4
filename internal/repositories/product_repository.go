package repositories

import (
	"context"
	"errors"
	"fmt"

	"sportstore/internal/apperrors"
	"sportstore/internal/models"
	"sportstore/internal/storage"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

// CollectionProductRepository implements ProductRepository on top of a
// storage.Collection.
type CollectionProductRepository struct {
	coll storage.Collection
}

// NewProductRepository creates a new CollectionProductRepository.
func NewProductRepository(coll storage.Collection) *CollectionProductRepository {
	return &CollectionProductRepository{
		coll: coll,
	}
}

func decodeProduct(doc storage.Document) (models.Product, error) {
	var p models.Product
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &p,
	})
	if err != nil {
		return p, err
	}
	if err := decoder.Decode(map[string]interface{}(doc)); err != nil {
		return p, fmt.Errorf("failed to decode product %v: %w", doc[storage.IDField], err)
	}
	return p, nil
}

func decodeProducts(docs []storage.Document) ([]models.Product, error) {
	products := make([]models.Product, 0, len(docs))
	for _, doc := range docs {
		p, err := decodeProduct(doc)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

func toDocument(p models.Product) storage.Document {
	doc := storage.Document{
		"name":     p.Name,
		"category": p.Category,
		"price":    p.Price,
		"stock":    p.Stock,
		"brand":    p.Brand,
	}
	if p.ID != "" {
		doc[storage.IDField] = p.ID
	}
	return doc
}

// validID reports whether id has the shape of an identifier this repository
// assigns.
func validID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// GetAll retrieves all products.
func (r *CollectionProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	docs, err := r.coll.Find(ctx, nil)
	if err != nil {
		return nil, apperrors.Storage(fmt.Errorf("failed to get all products: %w", err))
	}
	return decodeProducts(docs)
}

// GetByID retrieves a single product by its ID.
func (r *CollectionProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidIdentifier, id)
	}
	doc, err := r.coll.FindOne(ctx, storage.Filter{storage.IDField: id})
	if errors.Is(err, storage.ErrNoDocument) {
		return nil, apperrors.ErrProductNotFound
	}
	if err != nil {
		return nil, apperrors.Storage(fmt.Errorf("failed to get product by ID %s: %w", id, err))
	}
	p, err := decodeProduct(doc)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByCategory retrieves the products whose category equals category
// exactly. The match is case-sensitive.
func (r *CollectionProductRepository) GetByCategory(ctx context.Context, category string) ([]models.Product, error) {
	docs, err := r.coll.Find(ctx, storage.Filter{"category": category})
	if err != nil {
		return nil, apperrors.Storage(fmt.Errorf("failed to get products in category %s: %w", category, err))
	}
	return decodeProducts(docs)
}

// Create persists a new product after checking that its name is free.
func (r *CollectionProductRepository) Create(ctx context.Context, input models.ProductInput) (*models.Product, error) {
	_, err := r.coll.FindOne(ctx, storage.Filter{"name": input.Name})
	switch {
	case err == nil:
		return nil, apperrors.DuplicateName(input.Name)
	case !errors.Is(err, storage.ErrNoDocument):
		return nil, apperrors.Storage(fmt.Errorf("failed to check product name: %w", err))
	}

	doc, err := r.coll.Insert(ctx, toDocument(models.Product{
		Name:     input.Name,
		Category: input.Category,
		Price:    input.Price,
		Stock:    input.Stock,
		Brand:    input.Brand,
	}))
	if errors.Is(err, storage.ErrDuplicateKey) {
		// lost a race with a concurrent create; the unique index caught it
		return nil, apperrors.DuplicateName(input.Name)
	}
	if err != nil {
		return nil, apperrors.Storage(fmt.Errorf("failed to create product: %w", err))
	}
	p, err := decodeProduct(doc)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Update merges patch over the stored product and persists the result.
// Renaming onto a name another product holds fails with DuplicateName from
// the collection's unique index.
func (r *CollectionProductRepository) Update(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error) {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := patch.Apply(*existing)
	_, err = r.coll.Save(ctx, toDocument(merged))
	switch {
	case errors.Is(err, storage.ErrNoDocument):
		return nil, apperrors.ErrProductNotFound
	case errors.Is(err, storage.ErrDuplicateKey):
		return nil, apperrors.DuplicateName(merged.Name)
	case err != nil:
		return nil, apperrors.Storage(fmt.Errorf("failed to update product %s: %w", id, err))
	}
	return &merged, nil
}

// Delete removes a product and reports whether one was removed.
func (r *CollectionProductRepository) Delete(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	n, err := r.coll.Delete(ctx, id)
	if err != nil {
		return false, apperrors.Storage(fmt.Errorf("failed to delete product %s: %w", id, err))
	}
	return n > 0, nil
}

// Count returns the number of stored products.
func (r *CollectionProductRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.coll.Count(ctx, nil)
	if err != nil {
		return 0, apperrors.Storage(err)
	}
	return n, nil
}

// Aggregate runs pipeline over the product collection.
func (r *CollectionProductRepository) Aggregate(ctx context.Context, pipeline storage.Pipeline) ([]storage.Document, error) {
	docs, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return docs, nil
}
