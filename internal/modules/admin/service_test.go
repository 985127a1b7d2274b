package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canteen42/canteen42-backend/internal/modules/product"
	"github.com/canteen42/canteen42-backend/internal/modules/record"
	"github.com/canteen42/canteen42-backend/internal/modules/user"
)

var now = time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

type fakeProducts []product.Product

func (f fakeProducts) List(context.Context, product.Filter) ([]product.Product, error) { return f, nil }

type fakeUsers struct {
	users []user.User
	err   error
}

func (f fakeUsers) List(context.Context, user.Filter) ([]user.User, error) { return f.users, f.err }

// fakeRecords applies only the "type" filter used for visit counting.
type fakeRecords []record.Record

func (f fakeRecords) List(_ context.Context, flt record.Filter, _ record.Scope) ([]record.Record, error) {
	want, ok := flt.Data["type"]
	if !ok {
		return f, nil
	}
	var out []record.Record
	for _, r := range f {
		if string(r.Data) == `{"type":"`+want+`"}` {
			out = append(out, r)
		}
	}
	return out, nil
}

func order(ago time.Duration, data string) record.Record {
	at := now.Add(-ago)
	return record.Record{ID: at.Format(time.RFC3339), Data: []byte(data), CreatedAt: at, UpdatedAt: at}
}

func newService(orders, events fakeRecords) *Service {
	svc := NewService(fakeProducts{{ID: "1"}, {ID: "2"}}, fakeUsers{users: []user.User{{ID: "u"}}}, orders, events)
	svc.now = func() time.Time { return now }
	return svc
}

func TestDashboard(t *testing.T) {
	orders := fakeRecords{
		order(time.Hour, `{"total":10.5}`),
		order(2*time.Hour, `{"total":"4.50"}`),
		order(3*24*time.Hour, `{"total":20}`),
		order(10*24*time.Hour, `{"total":100}`),
		order(40*24*time.Hour, `{"total":1000}`),
		order(41*24*time.Hour, `{"note":"no total"}`),
	}

	d, err := newService(orders, nil).Dashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, d.TotalProducts)
	assert.Equal(t, 1, d.TotalUsers)
	assert.Equal(t, 6, d.TotalOrders)
	assert.Len(t, d.RecentOrders, 5)
	assert.Equal(t, "15", d.Revenue.Daily.String())
	assert.Equal(t, "35", d.Revenue.Weekly.String())
	assert.Equal(t, "135", d.Revenue.Monthly.String())
}

func TestDashboard_EmptyStore(t *testing.T) {
	d, err := newService(nil, nil).Dashboard(context.Background())
	require.NoError(t, err)
	assert.Empty(t, d.RecentOrders)
	assert.True(t, d.Revenue.Monthly.IsZero())
}

func TestDashboard_PropagatesErrors(t *testing.T) {
	svc := NewService(fakeProducts{}, fakeUsers{err: errors.New("down")}, fakeRecords{}, fakeRecords{})
	_, err := svc.Dashboard(context.Background())
	assert.Error(t, err)
}

func TestAnalytics(t *testing.T) {
	orders := fakeRecords{
		order(time.Hour, `{"user_id":"a","total":5,"items":[{"product_id":"p1","quantity":2},{"product_id":"p2"}]}`),
		order(2*time.Hour, `{"user_id":"a","total":7,"items":[{"product_id":"p1","quantity":1},{"product_id":"p1","quantity":1}]}`),
		order(48*time.Hour, `{"user_id":"b","total":3,"items":[{"product_id":"p3","quantity":1}]}`),
	}
	events := fakeRecords{
		{Data: []byte(`{"type":"visit"}`)},
		{Data: []byte(`{"type":"visit"}`)},
		{Data: []byte(`{"type":"visit"}`)},
		{Data: []byte(`{"type":"visit"}`)},
		{Data: []byte(`{"type":"click"}`)},
	}

	a, err := newService(orders, events).Analytics(context.Background())
	require.NoError(t, err)

	require.Len(t, a.SalesByDate, 2)
	assert.Equal(t, "2026-03-29", a.SalesByDate[0].Date)
	assert.Equal(t, "2026-03-31", a.SalesByDate[1].Date)
	assert.Equal(t, 2, a.SalesByDate[1].Orders)
	assert.True(t, a.SalesByDate[1].Total.Equal(decimal.NewFromInt(12)))

	require.Len(t, a.PopularProducts, 3)
	assert.Equal(t, ProductPopularity{ProductID: "p1", Quantity: 4, Orders: 2}, a.PopularProducts[0])
	assert.Equal(t, "p2", a.PopularProducts[1].ProductID)

	assert.Equal(t, Retention{Customers: 2, Returning: 1, Rate: 0.5}, a.CustomerRetention)
	assert.Equal(t, 0.75, a.ConversionRate)
}

func TestAnalytics_NoVisitsMeansZeroConversion(t *testing.T) {
	a, err := newService(fakeRecords{order(time.Hour, `{}`)}, nil).Analytics(context.Background())
	require.NoError(t, err)
	assert.Zero(t, a.ConversionRate)
}
