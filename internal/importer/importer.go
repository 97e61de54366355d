// Package importer turns a semicolon-delimited transaction export into
// validated records.
//
// Parsing follows a partial-success model: rows that fail validation are
// reported in ParseResult.Errors and skipped, while a missing column or an
// empty file rejects the whole input before any row is looked at.
package importer

import (
	"context"
	"fmt"

	"spendings/internal/core"
	"spendings/internal/report"
)

// Fetcher retrieves the full text content of an import source.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Import fetches the source and parses it. A retrieval failure yields a
// result with a single row-0 "file" error.
func Import(ctx context.Context, src Fetcher) core.ParseResult {
	data, err := src.Fetch(ctx)
	if err != nil {
		return core.EmptyResult(core.ParseError{Row: 0, Field: core.FieldFile, Message: err.Error()})
	}
	return Parse(string(data))
}

// Parse validates text and assembles records. Parse errors from the
// tokenizer come first, followed by row validation errors in row order.
func Parse(text string) core.ParseResult {
	t := readRows(text)

	if res, failed := structureFailure(t); failed {
		return res
	}

	records := make([]core.Record, 0, len(t.Rows))
	errs := append([]core.ParseError{}, t.Errors...)
	for _, row := range t.Rows {
		rec, perr, ok := assemble(row)
		if !ok {
			errs = append(errs, perr)
			continue
		}
		records = append(records, rec)
	}

	result := core.ParseResult{Records: records, Errors: errs}
	if len(records) > 0 {
		summary := report.Summarize(records)
		result.Summary = &summary
	}
	return result
}

// assemble validates a row in the fixed order Date, Category, Label, Amount
// and stops at the first failing field.
func assemble(row rawRow) (core.Record, core.ParseError, bool) {
	rowNumber := row.Position + 2
	fail := func(field, msg string) (core.Record, core.ParseError, bool) {
		return core.Record{}, core.ParseError{Row: rowNumber, Field: field, Message: msg}, false
	}

	date, err := ParseDate(row.Date)
	if err != nil {
		return fail(core.FieldDate, fmt.Sprintf("Cannot parse date '%s'", row.Date))
	}
	category, ok := ValidText(row.Category)
	if !ok {
		return fail(core.FieldCategory, "Category is required")
	}
	label, ok := ValidText(row.Label)
	if !ok {
		return fail(core.FieldLabel, "Label is required")
	}
	amount, err := ParseAmount(row.Amount)
	if err != nil {
		return fail(core.FieldAmount, fmt.Sprintf("Invalid amount '%s'", row.Amount))
	}

	return core.Record{
		Key:      core.RecordKey{Date: date, Position: row.Position},
		Date:     date,
		Category: category,
		Label:    label,
		Amount:   amount,
		Row:      rowNumber,
	}, core.ParseError{}, true
}
