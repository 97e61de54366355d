package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Field names used in ParseError. The four column names double as the
// required header columns of an import file.
const (
	FieldFile      = "file"
	FieldStructure = "structure"
	FieldParse     = "parse"
	FieldDate      = "Date"
	FieldCategory  = "Category"
	FieldLabel     = "Label"
	FieldAmount    = "Amount"
)

// RequiredColumns lists the header columns every import file must carry,
// in the order rows are validated.
var RequiredColumns = []string{FieldDate, FieldCategory, FieldLabel, FieldAmount}

const dateLayout = "2006-01-02"

type (
	// Date is a calendar day in UTC with no time-of-day component.
	Date struct {
		time.Time
	}

	// RecordKey identifies a record within one parse run: the record date
	// plus its zero-based position among the data rows.
	RecordKey struct {
		Date     Date `json:"date"`
		Position int  `json:"position"`
	}

	// Record is a validated transaction. Positive amounts are income,
	// negative amounts are expenses.
	Record struct {
		Key      RecordKey `json:"id"`
		Date     Date      `json:"date"`
		Category string    `json:"category"`
		Label    string    `json:"label"`
		Amount   float64   `json:"amount"`
		Row      int       `json:"originalRow"` // 1-based, header is row 1
	}

	// ParseError describes one problem found while importing a file.
	// Row is 0 for file-level and structural problems.
	ParseError struct {
		Row     int    `json:"row"`
		Field   string `json:"field"`
		Message string `json:"message"`
	}

	DateRange struct {
		Start Date `json:"start"`
		End   Date `json:"end"`
	}

	// DataSummary holds global statistics over a record set.
	DataSummary struct {
		TotalRecords   int            `json:"totalRecords"`
		DateRange      *DateRange     `json:"dateRange"`
		Categories     []string       `json:"categories"`
		TotalAmount    float64        `json:"totalAmount"`
		PositiveAmount float64        `json:"positiveAmount"`
		NegativeAmount float64        `json:"negativeAmount"`
		CategoryCounts map[string]int `json:"categoryCounts"`
	}

	// ParseResult is the outcome of one import. Records and Errors are never
	// nil; Summary is nil when there are no records.
	ParseResult struct {
		Records []Record     `json:"records"`
		Errors  []ParseError `json:"errors"`
		Summary *DataSummary `json:"summary"`
	}

	TimeSeriesPoint struct {
		Date     Date    `json:"date"`
		Label    string  `json:"label"` // DD/MM
		Income   float64 `json:"income"`
		Expenses float64 `json:"expenses"`
		Net      float64 `json:"net"`
	}

	CategoryBucket struct {
		Category string  `json:"category"`
		Amount   float64 `json:"amount"`
		Count    int     `json:"count"`
	}

	MonthlyPoint struct {
		Year     int     `json:"year"`
		Month    int     `json:"month"`
		Label    string  `json:"label"` // MM/YYYY
		Income   float64 `json:"income"`
		Expenses float64 `json:"expenses"`
		Net      float64 `json:"net"`
	}

	IncomeExpense struct {
		Income   float64 `json:"income"`
		Expenses float64 `json:"expenses"`
	}
)

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyText     = errors.New("empty text")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		// Older blobs stored full timestamps.
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
	}
	*d = NewDate(t.Year(), int(t.Month()), t.Day())
	return nil
}

func (k RecordKey) String() string {
	return fmt.Sprintf("%s-%d", k.Date, k.Position)
}

// IsIncome reports whether the record counts towards income.
func (r Record) IsIncome() bool {
	return r.Amount > 0
}

// ID returns the string form of the record key.
func (r Record) ID() string {
	return r.Key.String()
}

func (r Record) Validate() error {
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Category) == "" {
		return fmt.Errorf("%w: category", ErrEmptyText)
	}
	if strings.TrimSpace(r.Label) == "" {
		return fmt.Errorf("%w: label", ErrEmptyText)
	}
	if math.IsNaN(r.Amount) || math.IsInf(r.Amount, 0) {
		return ErrInvalidAmount
	}
	return nil
}

func (e ParseError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("row %d, %s: %s", e.Row, e.Field, e.Message)
}

// EmptyResult returns a result with no records, carrying only errs.
func EmptyResult(errs ...ParseError) ParseResult {
	if errs == nil {
		errs = []ParseError{}
	}
	return ParseResult{Records: []Record{}, Errors: errs}
}
