package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spendings/internal/log"
)

// Sheets reads a range of a Google spreadsheet and renders it as delimited
// text, header row first, so it goes through the same parser as a file.
type Sheets struct {
	SpreadsheetID string
	Range         string
	Options       []option.ClientOption
}

func (s *Sheets) Fetch(ctx context.Context) ([]byte, error) {
	if s.SpreadsheetID == "" || s.Range == "" {
		return nil, fmt.Errorf("invalid sheets location %q", s.String())
	}

	opts := s.Options
	if len(opts) == 0 {
		creds, err := serviceAccountCredentials(ctx)
		if err != nil {
			return nil, err
		}
		opts = []option.ClientOption{
			option.WithCredentialsJSON(creds),
			option.WithScopes(gsheet.SpreadsheetsReadonlyScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	resp, err := svc.Spreadsheets.Values.Get(s.SpreadsheetID, s.Range).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", s.Range, err)
	}
	return renderValues(resp.Values, ';')
}

func (s *Sheets) String() string {
	return "sheets://" + s.SpreadsheetID + "/" + s.Range
}

// serviceAccountCredentials reads service account JSON from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS, in that order.
func serviceAccountCredentials(ctx context.Context) ([]byte, error) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentSource)
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		logger.DebugContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	}
	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	logger.DebugContext(ctx, "Reading service account credentials", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// renderValues writes a Sheets values matrix as delimited text. The API
// omits trailing empty cells, so rows are padded to the header width and a
// blank last column reaches the parser as an empty field.
func renderValues(values [][]interface{}, comma rune) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = comma
	width := 0
	if len(values) > 0 {
		width = len(values[0])
	}
	for _, row := range values {
		cells := make([]string, max(len(row), width))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		if err := w.Write(cells); err != nil {
			return nil, fmt.Errorf("render row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("render values: %w", err)
	}
	return buf.Bytes(), nil
}
