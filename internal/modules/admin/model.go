package admin

import (
	"github.com/shopspring/decimal"

	"github.com/canteen42/canteen42-backend/internal/modules/record"
)

type Revenue struct {
	Daily   decimal.Decimal `json:"daily"`
	Weekly  decimal.Decimal `json:"weekly"`
	Monthly decimal.Decimal `json:"monthly"`
}

type Dashboard struct {
	TotalProducts int             `json:"totalProducts"`
	TotalUsers    int             `json:"totalUsers"`
	TotalOrders   int             `json:"totalOrders"`
	RecentOrders  []record.Record `json:"recentOrders"`
	Revenue       Revenue         `json:"revenue"`
}

// DailySales aggregates order totals for one UTC calendar day.
type DailySales struct {
	Date   string          `json:"date"`
	Orders int             `json:"orders"`
	Total  decimal.Decimal `json:"total"`
}

type ProductPopularity struct {
	ProductID string `json:"productId"`
	Quantity  int64  `json:"quantity"`
	Orders    int    `json:"orders"`
}

// Retention counts customers with at least one order and those with more than one.
type Retention struct {
	Customers int     `json:"customers"`
	Returning int     `json:"returning"`
	Rate      float64 `json:"rate"`
}

type Analytics struct {
	SalesByDate       []DailySales        `json:"salesByDate"`
	PopularProducts   []ProductPopularity `json:"popularProducts"`
	CustomerRetention Retention           `json:"customerRetention"`
	ConversionRate    float64             `json:"conversionRate"`
}
