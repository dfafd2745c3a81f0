// Package analytics builds sales reports from stored canonical transactions.
package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/commerce-analytics/internal/repository"
	"github.com/dvloznov/commerce-analytics/internal/temporal"
)

// HourLayout formats the start of an hourly bucket in the display zone.
const HourLayout = "2006-01-02 15:04:05"

type DailyPoint struct {
	Date              civil.Date `json:"date"`
	TotalSales        Money      `json:"total_sales"`
	TransactionCount  int        `json:"transaction_count"`
	AverageOrderValue Money      `json:"average_order_value"`
}

type DailySummary struct {
	TotalSales        Money `json:"total_sales"`
	TotalTransactions int   `json:"total_transactions"`
	AverageDailySales Money `json:"average_daily_sales"`
}

type DailyReport struct {
	Data     []DailyPoint `json:"data"`
	Timezone string       `json:"timezone"`
	Period   string       `json:"period"`
	Summary  DailySummary `json:"summary"`
}

type HourlyPoint struct {
	Hour             string `json:"hour"`
	TotalSales       Money  `json:"total_sales"`
	TransactionCount int    `json:"transaction_count"`
}

type HourlyReport struct {
	Data     []HourlyPoint `json:"data"`
	Timezone string        `json:"timezone"`
	Date     civil.Date    `json:"date"`
}

type PeriodTotals struct {
	Period
	TotalSales       Money `json:"total_sales"`
	TransactionCount int   `json:"transaction_count"`
}

type Growth struct {
	SalesChangePercent       float64 `json:"sales_change_percent"`
	TransactionChangePercent float64 `json:"transaction_change_percent"`
}

type Comparison struct {
	Period1 PeriodTotals `json:"period1"`
	Period2 PeriodTotals `json:"period2"`
	Growth  Growth       `json:"growth"`
}

// Engine answers report queries. It never fails on empty data; only store
// errors and invalid ranges are returned.
type Engine struct {
	sales        repository.SalesReader
	maxRangeDays int
}

// NewEngine creates an engine over sales. maxRangeDays <= 0 disables the
// daily range limit.
func NewEngine(sales repository.SalesReader, maxRangeDays int) *Engine {
	return &Engine{sales: sales, maxRangeDays: maxRangeDays}
}

type bucket struct {
	sum   decimal.Decimal
	count int
}

func (b *bucket) add(amount decimal.Decimal) {
	b.sum = b.sum.Add(amount)
	b.count++
}

// Daily groups the sales of [start, end] by calendar date in zone. Rows are
// selected by their UTC date; only the grouping uses the display zone.
func (e *Engine) Daily(ctx context.Context, start, end civil.Date, zone string) (*DailyReport, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("Daily: %s is before %s: %w", end, start, ErrInvalidRange)
	}
	if e.maxRangeDays > 0 && end.DaysSince(start)+1 > e.maxRangeDays {
		return nil, fmt.Errorf("Daily: range exceeds %d days: %w", e.maxRangeDays, ErrInvalidRange)
	}

	sales, err := e.sales.CompletedSales(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("Daily: %w", err)
	}

	groups := make(map[civil.Date]*bucket)
	for _, s := range sales {
		day := civil.DateOf(temporal.Project(s.Instant, zone))
		b, ok := groups[day]
		if !ok {
			b = &bucket{}
			groups[day] = b
		}
		b.add(s.Amount)
	}

	days := make([]civil.Date, 0, len(groups))
	for d := range groups {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	report := &DailyReport{
		Data:     make([]DailyPoint, 0, len(days)),
		Timezone: zone,
		Period:   fmt.Sprintf("%s to %s", start, end),
	}

	total := decimal.Zero
	for _, d := range days {
		b := groups[d]
		groupTotal := b.sum.Round(2)
		report.Data = append(report.Data, DailyPoint{
			Date:              d,
			TotalSales:        NewMoney(groupTotal),
			TransactionCount:  b.count,
			AverageOrderValue: NewMoney(b.sum.Div(decimal.NewFromInt(int64(b.count)))),
		})
		total = total.Add(groupTotal)
		report.Summary.TotalTransactions += b.count
	}

	report.Summary.TotalSales = NewMoney(total)
	if len(days) > 0 {
		report.Summary.AverageDailySales = NewMoney(total.Div(decimal.NewFromInt(int64(len(days)))))
	}
	return report, nil
}

// Hourly groups the sales whose UTC date is date by hour in zone. Buckets are
// keyed by instant, so an hour repeated by a backward DST transition yields
// two buckets with the same label.
func (e *Engine) Hourly(ctx context.Context, date civil.Date, zone string) (*HourlyReport, error) {
	sales, err := e.sales.CompletedSales(ctx, date, date)
	if err != nil {
		return nil, fmt.Errorf("Hourly: %w", err)
	}

	groups := make(map[int64]*bucket)
	labels := make(map[int64]string)
	for _, s := range sales {
		hour := startOfHour(temporal.Project(s.Instant, zone))
		key := hour.Unix()
		b, ok := groups[key]
		if !ok {
			b = &bucket{}
			groups[key] = b
			labels[key] = hour.Format(HourLayout)
		}
		b.add(s.Amount)
	}

	keys := make([]int64, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	report := &HourlyReport{
		Data:     make([]HourlyPoint, 0, len(keys)),
		Timezone: zone,
		Date:     date,
	}
	for _, k := range keys {
		report.Data = append(report.Data, HourlyPoint{
			Hour:             labels[k],
			TotalSales:       NewMoney(groups[k].sum),
			TransactionCount: groups[k].count,
		})
	}
	return report, nil
}

// Compare totals two YYYY-MM periods by UTC date. Growth is 0 when the first
// period has nothing to grow from.
func (e *Engine) Compare(ctx context.Context, token1, token2 string) (*Comparison, error) {
	p1, err := ParsePeriod(token1)
	if err != nil {
		return nil, fmt.Errorf("Compare: %w", err)
	}
	p2, err := ParsePeriod(token2)
	if err != nil {
		return nil, fmt.Errorf("Compare: %w", err)
	}

	b1, err := e.periodBucket(ctx, p1)
	if err != nil {
		return nil, fmt.Errorf("Compare: period1: %w", err)
	}
	b2, err := e.periodBucket(ctx, p2)
	if err != nil {
		return nil, fmt.Errorf("Compare: period2: %w", err)
	}

	// Growth uses the unrounded sums; only the reported totals are rounded.
	return &Comparison{
		Period1: b1.totals(p1),
		Period2: b2.totals(p2),
		Growth: Growth{
			SalesChangePercent: changePercent(b1.sum, b2.sum),
			TransactionChangePercent: changePercent(
				decimal.NewFromInt(int64(b1.count)),
				decimal.NewFromInt(int64(b2.count)),
			),
		},
	}, nil
}

func (e *Engine) periodBucket(ctx context.Context, p Period) (bucket, error) {
	sales, err := e.sales.CompletedSales(ctx, p.Start, p.End)
	if err != nil {
		return bucket{}, err
	}
	var b bucket
	for _, s := range sales {
		b.add(s.Amount)
	}
	return b, nil
}

func (b bucket) totals(p Period) PeriodTotals {
	return PeriodTotals{Period: p, TotalSales: NewMoney(b.sum), TransactionCount: b.count}
}

func changePercent(before, after decimal.Decimal) float64 {
	if before.IsZero() {
		return 0
	}
	return after.Sub(before).Div(before).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

func startOfHour(t time.Time) time.Time {
	return t.Add(-time.Duration(t.Minute())*time.Minute -
		time.Duration(t.Second())*time.Second -
		time.Duration(t.Nanosecond()))
}
