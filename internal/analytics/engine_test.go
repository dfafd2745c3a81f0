package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/commerce-analytics/internal/domain"
)

// fakeSales filters by UTC calendar date the way the stores do.
type fakeSales struct {
	sales []domain.Sale
	err   error
}

func (f *fakeSales) CompletedSales(ctx context.Context, from, to civil.Date) ([]domain.Sale, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Sale
	for _, s := range f.sales {
		d := civil.DateOf(s.Instant.UTC())
		if !d.Before(from) && !d.After(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func sale(ts string, amount string) domain.Sale {
	instant, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return domain.Sale{Instant: instant, Amount: decimal.RequireFromString(amount)}
}

func date(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestDaily_GroupsByDisplayZone(t *testing.T) {
	store := &fakeSales{sales: []domain.Sale{
		sale("2024-01-15T03:00:00Z", "50.10"),
		sale("2024-01-15T20:00:00Z", "30.00"),
		sale("2024-01-16T12:00:00Z", "19.99"),
		sale("2024-01-16T13:00:00Z", "5.01"),
	}}
	e := NewEngine(store, 0)

	report, err := e.Daily(context.Background(), date("2024-01-15"), date("2024-01-16"), "America/New_York")
	require.NoError(t, err)

	require.Len(t, report.Data, 3)
	assert.Equal(t, date("2024-01-14"), report.Data[0].Date)
	assert.Equal(t, "50.1", report.Data[0].TotalSales.String())
	assert.Equal(t, date("2024-01-15"), report.Data[1].Date)
	assert.Equal(t, date("2024-01-16"), report.Data[2].Date)
	assert.Equal(t, 2, report.Data[2].TransactionCount)
	assert.Equal(t, "12.5", report.Data[2].AverageOrderValue.String())

	assert.Equal(t, "105.1", report.Summary.TotalSales.String())
	assert.Equal(t, 4, report.Summary.TotalTransactions)
	assert.Equal(t, "35.03", report.Summary.AverageDailySales.String())
	assert.Equal(t, "2024-01-15 to 2024-01-16", report.Period)
	assert.Equal(t, "America/New_York", report.Timezone)
}

func TestDaily_SummaryMatchesGroups(t *testing.T) {
	store := &fakeSales{sales: []domain.Sale{
		sale("2024-02-01T00:10:00Z", "10.005"),
		sale("2024-02-01T08:00:00Z", "0.333"),
		sale("2024-02-02T23:59:59Z", "99.999"),
		sale("2024-02-03T12:00:00Z", "0.1"),
		sale("2024-02-03T12:00:01Z", "0.2"),
	}}
	e := NewEngine(store, 0)

	for _, zone := range []string{"UTC", "Asia/Tokyo", "America/Los_Angeles", "Asia/Kolkata"} {
		t.Run(zone, func(t *testing.T) {
			report, err := e.Daily(context.Background(), date("2024-02-01"), date("2024-02-03"), zone)
			require.NoError(t, err)

			sum := decimal.Zero
			count := 0
			for _, p := range report.Data {
				sum = sum.Add(p.TotalSales.Decimal)
				count += p.TransactionCount
			}
			assert.True(t, sum.Equal(report.Summary.TotalSales.Decimal), "groups %s summary %s", sum, report.Summary.TotalSales)
			assert.Equal(t, count, report.Summary.TotalTransactions)
		})
	}
}

func TestDaily_EmptyResult(t *testing.T) {
	e := NewEngine(&fakeSales{}, 0)

	report, err := e.Daily(context.Background(), date("2024-01-01"), date("2024-01-31"), "UTC")
	require.NoError(t, err)
	assert.Empty(t, report.Data)

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"data": [],
		"timezone": "UTC",
		"period": "2024-01-01 to 2024-01-31",
		"summary": {"total_sales": 0, "total_transactions": 0, "average_daily_sales": 0}
	}`, string(data))
}

func TestDaily_InvalidRange(t *testing.T) {
	e := NewEngine(&fakeSales{}, 31)

	tests := []struct {
		name       string
		start, end civil.Date
	}{
		{"end before start", date("2024-01-10"), date("2024-01-09")},
		{"too long", date("2024-01-01"), date("2024-02-01")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Daily(context.Background(), tt.start, tt.end, "UTC")
			assert.ErrorIs(t, err, ErrInvalidRange)
		})
	}

	_, err := e.Daily(context.Background(), date("2024-01-01"), date("2024-01-31"), "UTC")
	assert.NoError(t, err)
}

func TestDaily_StoreError(t *testing.T) {
	storeErr := errors.New("connection refused")
	e := NewEngine(&fakeSales{err: storeErr}, 0)

	_, err := e.Daily(context.Background(), date("2024-01-01"), date("2024-01-02"), "UTC")
	assert.ErrorIs(t, err, storeErr)
}

func TestHourly(t *testing.T) {
	store := &fakeSales{sales: []domain.Sale{
		sale("2024-01-15T14:05:00Z", "10.00"),
		sale("2024-01-15T14:55:00Z", "5.50"),
		sale("2024-01-15T09:30:00Z", "1.25"),
		sale("2024-01-16T00:30:00Z", "99.00"),
	}}
	e := NewEngine(store, 0)

	report, err := e.Hourly(context.Background(), date("2024-01-15"), "UTC")
	require.NoError(t, err)

	require.Len(t, report.Data, 2)
	assert.Equal(t, "2024-01-15 09:00:00", report.Data[0].Hour)
	assert.Equal(t, "2024-01-15 14:00:00", report.Data[1].Hour)
	assert.Equal(t, "15.5", report.Data[1].TotalSales.String())
	assert.Equal(t, 2, report.Data[1].TransactionCount)
}

func TestHourly_HalfHourZone(t *testing.T) {
	store := &fakeSales{sales: []domain.Sale{sale("2024-01-15T04:45:00Z", "10")}}

	report, err := NewEngine(store, 0).Hourly(context.Background(), date("2024-01-15"), "Asia/Kolkata")
	require.NoError(t, err)

	require.Len(t, report.Data, 1)
	assert.Equal(t, "2024-01-15 10:00:00", report.Data[0].Hour)
}

func TestHourly_RepeatedHourKeepsTwoBuckets(t *testing.T) {
	store := &fakeSales{sales: []domain.Sale{
		sale("2024-11-03T05:30:00Z", "10"),
		sale("2024-11-03T06:30:00Z", "20"),
	}}

	report, err := NewEngine(store, 0).Hourly(context.Background(), date("2024-11-03"), "America/New_York")
	require.NoError(t, err)

	require.Len(t, report.Data, 2)
	assert.Equal(t, "2024-11-03 01:00:00", report.Data[0].Hour)
	assert.Equal(t, "2024-11-03 01:00:00", report.Data[1].Hour)
	assert.Equal(t, "10", report.Data[0].TotalSales.String())
	assert.Equal(t, "20", report.Data[1].TotalSales.String())
}

func TestHourly_UnknownZoneFallsBackToUTC(t *testing.T) {
	store := &fakeSales{sales: []domain.Sale{sale("2024-01-15T14:05:00Z", "10")}}

	report, err := NewEngine(store, 0).Hourly(context.Background(), date("2024-01-15"), "Nowhere/Special")
	require.NoError(t, err)

	require.Len(t, report.Data, 1)
	assert.Equal(t, "2024-01-15 14:00:00", report.Data[0].Hour)
}

func TestHourly_Empty(t *testing.T) {
	report, err := NewEngine(&fakeSales{}, 0).Hourly(context.Background(), date("2024-01-15"), "UTC")
	require.NoError(t, err)

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[],"timezone":"UTC","date":"2024-01-15"}`, string(data))
}

func TestCompare(t *testing.T) {
	store := &fakeSales{sales: []domain.Sale{
		sale("2024-01-01T00:00:00Z", "40"),
		sale("2024-01-31T23:59:59Z", "60"),
		sale("2024-02-01T00:00:00Z", "50"),
		sale("2024-02-15T12:00:00Z", "50"),
		sale("2024-02-29T23:00:00Z", "50"),
		sale("2024-03-01T00:00:00Z", "1000"),
	}}
	e := NewEngine(store, 0)

	tests := []struct {
		name     string
		p1, p2   string
		salesPct float64
		countPct float64
		p1Count  int
		p2Sales  string
	}{
		{"growth", "2024-01", "2024-02", 50, 50, 2, "150"},
		{"decline", "2024-02", "2024-01", -33.33, -33.33, 3, "100"},
		{"zero baseline", "2023-12", "2024-01", 0, 0, 0, "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := e.Compare(context.Background(), tt.p1, tt.p2)
			require.NoError(t, err)
			assert.Equal(t, tt.salesPct, c.Growth.SalesChangePercent)
			assert.Equal(t, tt.countPct, c.Growth.TransactionChangePercent)
			assert.Equal(t, tt.p1Count, c.Period1.TransactionCount)
			assert.Equal(t, tt.p2Sales, c.Period2.TotalSales.String())
		})
	}
}

func TestCompare_GrowthFromUnroundedSums(t *testing.T) {
	store := &fakeSales{sales: []domain.Sale{
		sale("2024-01-10T10:00:00Z", "1.004"),
		sale("2024-02-10T10:00:00Z", "1.506"),
	}}

	c, err := NewEngine(store, 0).Compare(context.Background(), "2024-01", "2024-02")
	require.NoError(t, err)

	assert.Equal(t, "1", c.Period1.TotalSales.String())
	assert.Equal(t, "1.51", c.Period2.TotalSales.String())
	assert.Equal(t, 50.0, c.Growth.SalesChangePercent)
}

func TestCompare_JSONShape(t *testing.T) {
	store := &fakeSales{sales: []domain.Sale{sale("2024-02-10T10:00:00Z", "12.5")}}

	c, err := NewEngine(store, 0).Compare(context.Background(), "2024-01", "2024-02")
	require.NoError(t, err)

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"period1": {"start": "2024-01-01", "end": "2024-01-31", "total_sales": 0, "transaction_count": 0},
		"period2": {"start": "2024-02-01", "end": "2024-02-29", "total_sales": 12.5, "transaction_count": 1},
		"growth": {"sales_change_percent": 0, "transaction_change_percent": 0}
	}`, string(data))
}

func TestCompare_InvalidPeriod(t *testing.T) {
	_, err := NewEngine(&fakeSales{}, 0).Compare(context.Background(), "2024-13", "2024-01")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestMoney_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(NewMoney(decimal.RequireFromString("10.005")))
	require.NoError(t, err)
	assert.Equal(t, "10.01", string(data))
}
