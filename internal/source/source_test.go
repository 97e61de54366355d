package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendings/internal/core"
	"spendings/internal/importer"
)

func TestOpen(t *testing.T) {
	opts := DefaultOptions(0)

	tests := []struct {
		name string
		uri  string
		want Source
	}{
		{"bare path", "data/Spendings Export.csv", &File{Path: "data/Spendings Export.csv"}},
		{"file scheme", "file:///tmp/export.csv", &File{Path: "/tmp/export.csv"}},
		{"http", "http://example.com/a.csv", &HTTP{URL: "http://example.com/a.csv", Client: opts.HTTPClient}},
		{"https", "https://example.com/a.csv", &HTTP{URL: "https://example.com/a.csv", Client: opts.HTTPClient}},
		{"gcs", "gs://bucket/exports/a.csv", &GCS{Bucket: "bucket", Object: "exports/a.csv"}},
		{"sheets", "sheets://sheet-id/Spendings!A:D", &Sheets{SpreadsheetID: "sheet-id", Range: "Spendings!A:D"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Open(tt.uri, opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open("ftp://host/a.csv", Options{})
	assert.True(t, errors.Is(err, ErrUnsupportedScheme))

	_, err = Open("   ", Options{})
	assert.Error(t, err)
}

func TestSourceString(t *testing.T) {
	assert.Equal(t, "gs://b/o.csv", (&GCS{Bucket: "b", Object: "o.csv"}).String())
	assert.Equal(t, "sheets://id/A:D", (&Sheets{SpreadsheetID: "id", Range: "A:D"}).String())
	assert.Equal(t, "x.csv", (&File{Path: "x.csv"}).String())
}

func TestFile_Fetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte("Date;Category;Label;Amount\n"), 0o600))

	data, err := (&File{Path: path}).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Date;Category;Label;Amount\n", string(data))
}

func TestFile_FetchMissing(t *testing.T) {
	_, err := (&File{Path: filepath.Join(t.TempDir(), "nope.csv")}).Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Contains(t, err.Error(), "failed to open file")
}

func TestHTTP_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/export.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("Date;Category;Label;Amount\n01/01/2024;A;B;1\n"))
	}))
	defer srv.Close()

	src := &HTTP{URL: srv.URL + "/export.csv", Client: srv.Client()}
	data, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(data), "01/01/2024;A;B;1")

	missing := &HTTP{URL: srv.URL + "/missing.csv", Client: srv.Client()}
	_, err = missing.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Failed to fetch CSV file: Not Found", err.Error())
}

func TestHTTP_FetchCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&HTTP{URL: srv.URL, Client: srv.Client()}).Fetch(ctx)
	assert.Error(t, err)
}

func TestInvalidCloudLocations(t *testing.T) {
	_, err := (&GCS{Bucket: "b"}).Fetch(context.Background())
	assert.Error(t, err)

	_, err = (&Sheets{SpreadsheetID: "id"}).Fetch(context.Background())
	assert.Error(t, err)
}

func TestServiceAccountCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := serviceAccountCredentials(context.Background())
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "sa.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"service_account"}`), 0o600))
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", path)
	data, err := serviceAccountCredentials(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"service_account"}`, string(data))

	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", `{"inline":true}`)
	data, err = serviceAccountCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"inline":true}`, string(data))
}

func TestRenderValues(t *testing.T) {
	values := [][]interface{}{
		{"Date", "Category", "Label", "Amount"},
		{"01/01/2024", "Food", "Lunch; friends", "-12,50"},
		{"02/01/2024", "Salary", "Pay", 2000},
	}

	data, err := renderValues(values, ';')
	require.NoError(t, err)
	assert.Equal(t,
		"Date;Category;Label;Amount\n"+
			"01/01/2024;Food;\"Lunch; friends\";-12,50\n"+
			"02/01/2024;Salary;Pay;2000\n",
		string(data))

	short, err := renderValues([][]interface{}{
		{"Date", "Category", "Label", "Amount"},
		{"03/01/2024", "Food", "Dinner"},
		{"04/01/2024"},
	}, ';')
	require.NoError(t, err)
	assert.Equal(t,
		"Date;Category;Label;Amount\n"+
			"03/01/2024;Food;Dinner;\n"+
			"04/01/2024;;;\n",
		string(short))

	empty, err := renderValues(nil, ';')
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRenderValues_BlankAmountIsFieldError(t *testing.T) {
	data, err := renderValues([][]interface{}{
		{"Date", "Category", "Label", "Amount"},
		{"03/01/2024", "Food", "Dinner"},
	}, importer.Delimiter)
	require.NoError(t, err)

	res := importer.Parse(string(data))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, core.FieldAmount, res.Errors[0].Field)
	assert.Equal(t, "Invalid amount ''", res.Errors[0].Message)
	assert.Equal(t, 2, res.Errors[0].Row)
}
