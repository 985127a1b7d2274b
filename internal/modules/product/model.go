package product

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func (s Status) Valid() bool { return s == StatusActive || s == StatusInactive }

// Variant is one purchasable option of a product, such as a size.
type Variant struct {
	Name string `json:"name"`
	SKU  string `json:"sku"`
}

// Product is an item on sale in the canteen storefront.
type Product struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Variants    []Variant       `json:"variants"`
	Stock       int             `json:"stock"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func clone(p Product) Product {
	p.Variants = append([]Variant{}, p.Variants...)
	return p
}

// Filter narrows FindAll. Nil fields are not applied; set fields combine with AND.
type Filter struct {
	Status   *Status
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

func (f Filter) match(p Product) bool {
	if f.Status != nil && p.Status != *f.Status {
		return false
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	return true
}

// Patch carries the fields of a partial update. Nil fields are left alone.
type Patch struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Variants    *[]Variant       `json:"variants"`
	Stock       *int             `json:"stock"`
	Status      *Status          `json:"status"`
}

func (p Patch) apply(dst *Product) {
	if p.Title != nil {
		dst.Title = *p.Title
	}
	if p.Description != nil {
		dst.Description = *p.Description
	}
	if p.Price != nil {
		dst.Price = *p.Price
	}
	if p.Variants != nil {
		dst.Variants = append([]Variant{}, (*p.Variants)...)
	}
	if p.Stock != nil {
		dst.Stock = *p.Stock
	}
	if p.Status != nil {
		dst.Status = *p.Status
	}
}

// CreateRequest is the body of POST /products. Omitted optional fields take the
// product defaults: no variants, zero stock, inactive.
type CreateRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Variants    []Variant        `json:"variants"`
	Stock       *int             `json:"stock"`
	Status      *Status          `json:"status"`
}
