package report

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"spendings/internal/core"
)

// flow accumulates the income/expense split used by the daily, monthly and
// overall totals: positive amounts are income, everything else adds its
// magnitude to expenses.
type flow struct {
	income   decimal.Decimal
	expenses decimal.Decimal
}

func (f *flow) add(amount float64) {
	d := core.Decimal(amount)
	if amount > 0 {
		f.income = f.income.Add(d)
		return
	}
	f.expenses = f.expenses.Add(d.Abs())
}

type dayKey struct{ year, month, day int }

func (k dayKey) less(o dayKey) bool {
	if k.year != o.year {
		return k.year < o.year
	}
	if k.month != o.month {
		return k.month < o.month
	}
	return k.day < o.day
}

type monthKey struct{ year, month int }

func (k monthKey) less(o monthKey) bool {
	if k.year != o.year {
		return k.year < o.year
	}
	return k.month < o.month
}

// DailySeries groups records by calendar day, sorted ascending. Values are
// rounded to two decimals after summing.
func DailySeries(records []core.Record) []core.TimeSeriesPoint {
	buckets := map[dayKey]*flow{}
	for _, r := range records {
		k := dayKey{r.Date.Year(), r.Date.Month(), r.Date.Day()}
		b, ok := buckets[k]
		if !ok {
			b = &flow{}
			buckets[k] = b
		}
		b.add(r.Amount)
	}

	keys := make([]dayKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	points := make([]core.TimeSeriesPoint, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		points = append(points, core.TimeSeriesPoint{
			Date:     core.NewDate(k.year, k.month, k.day),
			Label:    fmt.Sprintf("%02d/%02d", k.day, k.month),
			Income:   core.Round2(b.income),
			Expenses: core.Round2(b.expenses),
			Net:      core.Round2(b.income.Sub(b.expenses)),
		})
	}
	return points
}

// MonthlySeries groups records by (year, month) in chronological order.
func MonthlySeries(records []core.Record) []core.MonthlyPoint {
	buckets := map[monthKey]*flow{}
	for _, r := range records {
		k := monthKey{r.Date.Year(), r.Date.Month()}
		b, ok := buckets[k]
		if !ok {
			b = &flow{}
			buckets[k] = b
		}
		b.add(r.Amount)
	}

	keys := make([]monthKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	points := make([]core.MonthlyPoint, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		points = append(points, core.MonthlyPoint{
			Year:     k.year,
			Month:    k.month,
			Label:    fmt.Sprintf("%02d/%04d", k.month, k.year),
			Income:   core.Round2(b.income),
			Expenses: core.Round2(b.expenses),
			Net:      core.Round2(b.income.Sub(b.expenses)),
		})
	}
	return points
}

// CategoryBreakdown sums the magnitude of every amount per category, so
// income and expenses share one axis. Buckets are sorted by amount
// descending; equal amounts keep first-encounter order.
func CategoryBreakdown(records []core.Record) []core.CategoryBucket {
	type bucket struct {
		amount decimal.Decimal
		count  int
	}
	var order []string
	buckets := map[string]*bucket{}
	for _, r := range records {
		b, ok := buckets[r.Category]
		if !ok {
			b = &bucket{}
			buckets[r.Category] = b
			order = append(order, r.Category)
		}
		b.amount = b.amount.Add(core.Decimal(r.Amount).Abs())
		b.count++
	}

	out := make([]core.CategoryBucket, 0, len(order))
	for _, name := range order {
		b := buckets[name]
		out = append(out, core.CategoryBucket{
			Category: name,
			Amount:   core.Round2(b.amount),
			Count:    b.count,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount > out[j].Amount })
	return out
}

// IncomeVsExpenses totals the whole record set with the daily series rule.
func IncomeVsExpenses(records []core.Record) core.IncomeExpense {
	var f flow
	for _, r := range records {
		f.add(r.Amount)
	}
	return core.IncomeExpense{
		Income:   core.Round2(f.income),
		Expenses: core.Round2(f.expenses),
	}
}
