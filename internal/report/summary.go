// Package report derives summaries and chart series from validated records.
// Every function is a pure reduction over its input; none mutate the slice
// they are given.
package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"spendings/internal/core"
)

// Summarize computes global statistics. Zero amounts count towards
// TotalRecords and CategoryCounts but neither the positive nor the negative
// sum. An empty input yields a zeroed summary with a nil DateRange.
func Summarize(records []core.Record) core.DataSummary {
	summary := core.DataSummary{
		TotalRecords:   len(records),
		Categories:     []string{},
		CategoryCounts: map[string]int{},
	}
	if len(records) == 0 {
		return summary
	}

	total, positive, negative := decimal.Zero, decimal.Zero, decimal.Zero
	start, end := records[0].Date, records[0].Date
	for _, r := range records {
		if r.Date.Before(start.Time) {
			start = r.Date
		}
		if r.Date.After(end.Time) {
			end = r.Date
		}

		amount := core.Decimal(r.Amount)
		total = total.Add(amount)
		switch {
		case r.Amount > 0:
			positive = positive.Add(amount)
		case r.Amount < 0:
			negative = negative.Add(amount)
		}

		if _, seen := summary.CategoryCounts[r.Category]; !seen {
			summary.Categories = append(summary.Categories, r.Category)
		}
		summary.CategoryCounts[r.Category]++
	}
	sort.Strings(summary.Categories)

	summary.DateRange = &core.DateRange{Start: start, End: end}
	summary.TotalAmount = core.Float(total)
	summary.PositiveAmount = core.Float(positive)
	summary.NegativeAmount = core.Float(negative)
	return summary
}
