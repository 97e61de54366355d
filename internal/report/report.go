package report

import (
	"context"

	"golang.org/x/sync/errgroup"

	"spendings/internal/core"
)

// Report bundles every derived view of one record set.
type Report struct {
	Summary    core.DataSummary       `json:"summary"`
	Daily      []core.TimeSeriesPoint `json:"daily"`
	Monthly    []core.MonthlyPoint    `json:"monthly"`
	Categories []core.CategoryBucket  `json:"categories"`
	Totals     core.IncomeExpense     `json:"totals"`
}

// Build computes all views concurrently. The aggregators share nothing but
// the read-only record slice, so the only error is context cancellation.
func Build(ctx context.Context, records []core.Record) (Report, error) {
	var rep Report
	g, ctx := errgroup.WithContext(ctx)

	run := func(fn func()) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn()
			return nil
		})
	}
	run(func() { rep.Summary = Summarize(records) })
	run(func() { rep.Daily = DailySeries(records) })
	run(func() { rep.Monthly = MonthlySeries(records) })
	run(func() { rep.Categories = CategoryBreakdown(records) })
	run(func() { rep.Totals = IncomeVsExpenses(records) })

	if err := g.Wait(); err != nil {
		return Report{}, err
	}
	return rep, nil
}
