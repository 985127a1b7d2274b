package admin

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/canteen42/canteen42-backend/internal/modules/product"
	"github.com/canteen42/canteen42-backend/internal/modules/record"
	"github.com/canteen42/canteen42-backend/internal/modules/user"
)

const (
	recentOrderCount   = 5
	popularProductSize = 10
	visitEventType     = "visit"
)

type ProductLister interface {
	List(ctx context.Context, f product.Filter) ([]product.Product, error)
}

type UserLister interface {
	List(ctx context.Context, f user.Filter) ([]user.User, error)
}

type RecordLister interface {
	List(ctx context.Context, f record.Filter, sc record.Scope) ([]record.Record, error)
}

// Service computes the admin reports from the other modules' data.
type Service struct {
	products  ProductLister
	users     UserLister
	orders    RecordLister
	analytics RecordLister
	now       func() time.Time
}

func NewService(products ProductLister, users UserLister, orders, analytics RecordLister) *Service {
	return &Service{products: products, users: users, orders: orders, analytics: analytics, now: time.Now}
}

func (s *Service) Products(ctx context.Context) ([]product.Product, error) {
	return s.products.List(ctx, product.Filter{})
}

func (s *Service) Users(ctx context.Context) ([]user.User, error) {
	return s.users.List(ctx, user.Filter{})
}

func (s *Service) Orders(ctx context.Context) ([]record.Record, error) {
	return s.orders.List(ctx, record.Filter{}, record.Scope{})
}

// orderTotal reads data.total as a decimal. Missing or malformed totals count as zero.
func orderTotal(data []byte) decimal.Decimal {
	res := gjson.GetBytes(data, "total")
	if res.Type != gjson.Number && res.Type != gjson.String {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(res.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	products, err := s.Products(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.Users(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := s.Orders(ctx)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		TotalProducts: len(products),
		TotalUsers:    len(users),
		TotalOrders:   len(orders),
		RecentOrders:  orders[:min(recentOrderCount, len(orders))],
		Revenue:       Revenue{Daily: decimal.Zero, Weekly: decimal.Zero, Monthly: decimal.Zero},
	}

	now := s.now()
	day, week, month := now.Add(-24*time.Hour), now.AddDate(0, 0, -7), now.AddDate(0, 0, -30)
	for _, o := range orders {
		total := orderTotal(o.Data)
		if o.CreatedAt.After(month) {
			d.Revenue.Monthly = d.Revenue.Monthly.Add(total)
		}
		if o.CreatedAt.After(week) {
			d.Revenue.Weekly = d.Revenue.Weekly.Add(total)
		}
		if o.CreatedAt.After(day) {
			d.Revenue.Daily = d.Revenue.Daily.Add(total)
		}
	}
	return d, nil
}

func (s *Service) Analytics(ctx context.Context) (*Analytics, error) {
	orders, err := s.Orders(ctx)
	if err != nil {
		return nil, err
	}
	visits, err := s.analytics.List(ctx, record.Filter{Data: map[string]string{"type": visitEventType}}, record.Scope{})
	if err != nil {
		return nil, err
	}

	out := &Analytics{
		SalesByDate:       salesByDate(orders),
		PopularProducts:   popularProducts(orders),
		CustomerRetention: retention(orders),
	}
	if len(visits) > 0 {
		out.ConversionRate = round4(float64(len(orders)) / float64(len(visits)))
	}
	return out, nil
}

func salesByDate(orders []record.Record) []DailySales {
	byDate := map[string]*DailySales{}
	for _, o := range orders {
		date := o.CreatedAt.UTC().Format("2006-01-02")
		ds, ok := byDate[date]
		if !ok {
			ds = &DailySales{Date: date, Total: decimal.Zero}
			byDate[date] = ds
		}
		ds.Orders++
		ds.Total = ds.Total.Add(orderTotal(o.Data))
	}

	out := make([]DailySales, 0, len(byDate))
	for _, ds := range byDate {
		out = append(out, *ds)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func popularProducts(orders []record.Record) []ProductPopularity {
	byID := map[string]*ProductPopularity{}
	for _, o := range orders {
		seen := map[string]bool{}
		gjson.GetBytes(o.Data, "items").ForEach(func(_, item gjson.Result) bool {
			id := item.Get("product_id").String()
			if id == "" {
				return true
			}
			qty := int64(1)
			if q := item.Get("quantity"); q.Exists() {
				qty = q.Int()
			}
			p, ok := byID[id]
			if !ok {
				p = &ProductPopularity{ProductID: id}
				byID[id] = p
			}
			p.Quantity += qty
			if !seen[id] {
				p.Orders++
				seen[id] = true
			}
			return true
		})
	}

	out := make([]ProductPopularity, 0, len(byID))
	for _, p := range byID {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out[:min(popularProductSize, len(out))]
}

func retention(orders []record.Record) Retention {
	counts := map[string]int{}
	for _, o := range orders {
		if uid := gjson.GetBytes(o.Data, "user_id").String(); uid != "" {
			counts[uid]++
		}
	}
	r := Retention{Customers: len(counts)}
	for _, n := range counts {
		if n > 1 {
			r.Returning++
		}
	}
	if r.Customers > 0 {
		r.Rate = round4(float64(r.Returning) / float64(r.Customers))
	}
	return r
}

func round4(f float64) float64 {
	v, _ := decimal.NewFromFloat(f).Round(4).Float64()
	return v
}
