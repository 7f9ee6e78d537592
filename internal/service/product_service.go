package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orderdesk/internal/domain"
	"orderdesk/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrProductNameRequired = errors.New("product name is required")
	ErrInvalidPrice        = errors.New("price must be non-negative")
)

// ProductService defines catalog business logic
type ProductService interface {
	List(ctx context.Context) ([]*domain.Product, error)
	Create(ctx context.Context, name string, price float64, category string, available *bool) (*domain.Product, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*domain.Product, error)
}

type productService struct {
	productRepo repository.ProductRepository
}

// NewProductService creates a new instance of ProductService
func NewProductService(productRepo repository.ProductRepository) ProductService {
	return &productService{productRepo: productRepo}
}

// List returns the whole catalog
func (s *productService) List(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.productRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// Create adds a product to the catalog. Name is required, price must be
// non-negative and availability defaults to true when not supplied.
func (s *productService) Create(ctx context.Context, name string, price float64, category string, available *bool) (*domain.Product, error) {
	if name == "" {
		return nil, ErrProductNameRequired
	}
	if price < 0 {
		return nil, ErrInvalidPrice
	}

	now := time.Now()
	product := &domain.Product{
		ID:        uuid.New(),
		Name:      name,
		Price:     price,
		Category:  category,
		Available: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if available != nil {
		product.Available = *available
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return product, nil
}

// SetAvailability toggles whether a product can be ordered. Existing order
// lines keep their snapshot price either way.
func (s *productService) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	product.Available = available
	product.UpdatedAt = time.Now()

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}
