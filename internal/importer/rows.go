package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"spendings/internal/core"
)

// Delimiter separates fields in an import file.
const Delimiter = ';'

// rawRow is one data line mapped through the header. Only the four columns
// the assembler needs are kept.
type rawRow struct {
	Position int // zero-based among data rows
	Date     string
	Category string
	Label    string
	Amount   string
}

// table is the tokenizer output for a whole file.
type table struct {
	Header   []string
	Rows     []rawRow
	Errors   []core.ParseError // field "parse"
	DataRows int               // data lines seen, malformed ones included
}

// readRows splits text into a trimmed header and fixed-shape rows. Empty
// lines are skipped by the tokenizer. A line whose field count differs from
// the header is reported and dropped, but still takes a row position so the
// numbering of later rows matches the file.
func readRows(text string) table {
	var t table

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = Delimiter
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			t.Errors = append(t.Errors, core.ParseError{Row: 1, Field: core.FieldParse, Message: parseMessage(err, 0, 0)})
		}
		return t
	}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		t.Header = append(t.Header, strings.TrimSpace(h))
	}
	cols := columnIndex(t.Header)

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		pos := t.DataRows
		t.DataRows++
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				t.Errors = append(t.Errors, core.ParseError{Row: 0, Field: core.FieldParse, Message: err.Error()})
				break
			}
			t.Errors = append(t.Errors, core.ParseError{
				Row:     pos + 2,
				Field:   core.FieldParse,
				Message: parseMessage(err, len(t.Header), len(record)),
			})
			continue
		}
		t.Rows = append(t.Rows, rawRow{
			Position: pos,
			Date:     field(record, cols, core.FieldDate),
			Category: field(record, cols, core.FieldCategory),
			Label:    field(record, cols, core.FieldLabel),
			Amount:   field(record, cols, core.FieldAmount),
		})
	}
	return t
}

// columnIndex maps header names to positions; the first occurrence wins.
func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		if _, ok := cols[h]; !ok {
			cols[h] = i
		}
	}
	return cols
}

func field(record []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}

func parseMessage(err error, want, got int) string {
	if errors.Is(err, csv.ErrFieldCount) {
		qty := "few"
		if got > want {
			qty = "many"
		}
		return fmt.Sprintf("Too %s fields: expected %d fields but parsed %d", qty, want, got)
	}
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return pe.Err.Error()
	}
	return err.Error()
}
