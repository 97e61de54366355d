package importer

import (
	"fmt"

	"spendings/internal/core"
)

// validateStructure gates row processing. A file without data rows is
// rejected outright; otherwise one error is reported per missing column.
func validateStructure(t table) []core.ParseError {
	if t.DataRows == 0 {
		return []core.ParseError{{Row: 0, Field: core.FieldStructure, Message: "CSV file is empty"}}
	}

	present := columnIndex(t.Header)
	var errs []core.ParseError
	for _, col := range core.RequiredColumns {
		if _, ok := present[col]; !ok {
			errs = append(errs, core.ParseError{
				Row:     0,
				Field:   core.FieldStructure,
				Message: fmt.Sprintf("Missing required column: %s", col),
			})
		}
	}
	return errs
}

// structureFailure builds the result for a rejected file. Tokenizer errors
// that are not tied to a data row, such as an unreadable header, are kept
// ahead of the structure errors; row-level ones are dropped.
func structureFailure(t table) (core.ParseResult, bool) {
	errs := validateStructure(t)
	if len(errs) == 0 {
		return core.ParseResult{}, false
	}
	var out []core.ParseError
	for _, e := range t.Errors {
		if e.Row < 2 {
			out = append(out, e)
		}
	}
	return core.EmptyResult(append(out, errs...)...), true
}
