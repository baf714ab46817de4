package handlers

import (
	"context"
	"net/url"

	"sportstore/internal/apperrors"
	"sportstore/internal/middleware"
	"sportstore/internal/models"
	"sportstore/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// ProductService is the product business logic the handler relies on.
// *services.ProductService satisfies it.
type ProductService interface {
	GetAllProducts(ctx context.Context) ([]models.Product, error)
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	GetProductsByCategory(ctx context.Context, category string) ([]models.Product, error)
	CreateProduct(ctx context.Context, input models.ProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id string, patch models.ProductPatch) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) (bool, error)
	GetMetrics(ctx context.Context) (*models.ProductMetrics, error)
}

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service ProductService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service ProductService) *ProductHandler {
	return &ProductHandler{
		service: service,
	}
}

// RegisterRoutes registers the product routes behind auth.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	productRoutes := router.Group("/products", auth)
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/metrics", h.HandleGetMetrics)
	productRoutes.Get("/category/:category", h.HandleGetProductsByCategory)
	productRoutes.Get("/:id", h.HandleGetProductByID)
	productRoutes.Post("/", middleware.ValidateBody[models.ProductInput](validation.ProductSpec, false), h.HandleCreateProduct)
	productRoutes.Put("/:id", middleware.ValidateBody[models.ProductPatch](validation.ProductSpec, true), h.HandleUpdateProduct)
	productRoutes.Delete("/:id", h.HandleDeleteProduct)
}

// HandleGetProducts retrieves all products.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.service.GetAllProducts(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(products)
}

// HandleGetMetrics returns the product metrics snapshot.
func (h *ProductHandler) HandleGetMetrics(c *fiber.Ctx) error {
	metrics, err := h.service.GetMetrics(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(metrics)
}

// HandleGetProductsByCategory retrieves the products of one category.
// The category segment is percent-decoded.
func (h *ProductHandler) HandleGetProductsByCategory(c *fiber.Ctx) error {
	category := c.Params("category")
	if decoded, err := url.PathUnescape(category); err == nil {
		category = decoded
	}
	products, err := h.service.GetProductsByCategory(c.UserContext(), category)
	if err != nil {
		return err
	}
	return c.JSON(products)
}

// HandleGetProductByID retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	product, err := h.service.GetProductByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(product)
}

// HandleCreateProduct creates a new product.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	input, ok := middleware.Payload[models.ProductInput](c)
	if !ok {
		return fiber.ErrBadRequest
	}

	product, err := h.service.CreateProduct(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

// HandleUpdateProduct applies a partial update to a product.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	patch, ok := middleware.Payload[models.ProductPatch](c)
	if !ok {
		return fiber.ErrBadRequest
	}

	product, err := h.service.UpdateProduct(c.UserContext(), c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

// HandleDeleteProduct deletes a product.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	removed, err := h.service.DeleteProduct(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if !removed {
		return apperrors.ErrProductNotFound
	}
	return c.SendStatus(fiber.StatusNoContent)
}
