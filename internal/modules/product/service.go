package product

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/canteen42/canteen42-backend/internal/httpx"
)

// maxPrice is the largest value a DECIMAL(10, 2) column holds.
var maxPrice = decimal.RequireFromString("99999999.99")

// Service defines product business logic. Errors are *httpx.Error values.
type Service interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	Get(ctx context.Context, id string) (*Product, error)
	Create(ctx context.Context, req CreateRequest) (*Product, error)
	Update(ctx context.Context, id string, p Patch) (*Product, error)
	Delete(ctx context.Context, id string) (*Product, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// normalizePrice rounds to cents so both backends hold the same value.
func normalizePrice(p decimal.Decimal) (decimal.Decimal, error) {
	if p.IsNegative() {
		return p, httpx.Validation("Price must not be negative")
	}
	p = p.Round(2)
	if p.GreaterThan(maxPrice) {
		return p, httpx.Validation("Price must not exceed %s", maxPrice)
	}
	return p, nil
}

func validateVariants(vs []Variant) error {
	for i, v := range vs {
		if strings.TrimSpace(v.Name) == "" {
			return httpx.Validation("Variant %d needs a name", i)
		}
	}
	return nil
}

func (s *service) List(ctx context.Context, f Filter) ([]Product, error) {
	products, err := s.repo.FindAll(ctx, f)
	if err != nil {
		return nil, httpx.Upstream("Failed to list products", err)
	}
	return products, nil
}

func (s *service) Get(ctx context.Context, id string) (*Product, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, httpx.Upstream("Failed to load product", err)
	}
	if p == nil {
		return nil, httpx.NotFound("Product", id)
	}
	return p, nil
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Product, error) {
	p := &Product{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Variants:    req.Variants,
		Status:      StatusInactive,
	}
	if p.Title == "" {
		return nil, httpx.Validation("Title is required")
	}
	if req.Price == nil {
		return nil, httpx.Validation("Price is required")
	}
	price, err := normalizePrice(*req.Price)
	if err != nil {
		return nil, err
	}
	p.Price = price
	if p.Variants == nil {
		p.Variants = []Variant{}
	}
	if err := validateVariants(p.Variants); err != nil {
		return nil, err
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, httpx.Validation("Stock must not be negative")
		}
		p.Stock = *req.Stock
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, httpx.Validation("Unknown status %q", *req.Status)
		}
		p.Status = *req.Status
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, httpx.Upstream("Failed to create product", err)
	}
	return p, nil
}

func (s *service) Update(ctx context.Context, id string, patch Patch) (*Product, error) {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, httpx.Validation("Title must not be empty")
		}
		patch.Title = &title
	}
	if patch.Price != nil {
		price, err := normalizePrice(*patch.Price)
		if err != nil {
			return nil, err
		}
		patch.Price = &price
	}
	if patch.Variants != nil {
		if *patch.Variants == nil {
			empty := []Variant{}
			patch.Variants = &empty
		}
		if err := validateVariants(*patch.Variants); err != nil {
			return nil, err
		}
	}
	if patch.Stock != nil && *patch.Stock < 0 {
		return nil, httpx.Validation("Stock must not be negative")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, httpx.Validation("Unknown status %q", *patch.Status)
	}

	p, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, httpx.Upstream("Failed to update product", err)
	}
	if p == nil {
		return nil, httpx.NotFound("Product", id)
	}
	return p, nil
}

func (s *service) Delete(ctx context.Context, id string) (*Product, error) {
	p, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, httpx.Upstream("Failed to delete product", err)
	}
	if p == nil {
		return nil, httpx.NotFound("Product", id)
	}
	return p, nil
}
