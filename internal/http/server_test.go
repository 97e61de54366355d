package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendings/internal/core"
	"spendings/internal/report"
	"spendings/internal/services"
	"spendings/internal/storage"
	"spendings/internal/storage/memory"
)

const sampleCSV = "Date;Category;Label;Amount\n" +
	"01/01/2024;Food;Lunch;-12,50\n" +
	"15/02/2024;Salary;Pay;2000,00\n" +
	"bad;;;\n"

func newTestServer(t *testing.T, cfg Config) (*Server, *services.LedgerService) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	ledger := services.NewLedgerService(services.Options{
		Store:         storage.NewRecordStore(memory.New(0), nil),
		DefaultSource: path,
	})
	srv, err := NewServer(cfg, ledger, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, ledger
}

func do(t *testing.T, srv *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	rec := do(t, srv, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestEmptyLedger(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	rec := do(t, srv, http.MethodGet, "/api/records")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = do(t, srv, http.MethodGet, "/api/summary")
	assert.JSONEq(t, `null`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/series/daily")
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/totals")
	assert.JSONEq(t, `{"income":0,"expenses":0}`, rec.Body.String())
}

func TestImportThenRead(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	rec := do(t, srv, http.MethodPost, "/api/import")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[importResponse](t, rec)
	assert.Len(t, res.Records, 2)
	assert.NotEmpty(t, res.Errors)
	assert.Empty(t, res.PersistError)
	require.NotNil(t, res.Summary)
	assert.Equal(t, 2, res.Summary.TotalRecords)

	records := decode[[]core.Record](t, do(t, srv, http.MethodGet, "/api/records"))
	assert.Len(t, records, 2)

	errs := decode[[]core.ParseError](t, do(t, srv, http.MethodGet, "/api/errors"))
	assert.Equal(t, res.Errors, errs)

	rep := decode[report.Report](t, do(t, srv, http.MethodGet, "/api/report"))
	assert.Equal(t, 2, rep.Summary.TotalRecords)
	assert.Len(t, rep.Monthly, 2)
	assert.Equal(t, "01/2024", rep.Monthly[0].Label)

	cats := decode[[]core.CategoryBucket](t, do(t, srv, http.MethodGet, "/api/series/categories"))
	require.Len(t, cats, 2)
	assert.Equal(t, "Salary", cats[0].Category)

	totals := decode[core.IncomeExpense](t, do(t, srv, http.MethodGet, "/api/totals"))
	assert.Equal(t, 2000.0, totals.Income)
	assert.Equal(t, 12.5, totals.Expenses)
}

func TestImportFromHTTPSource(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Date;Category;Label;Amount\n03/03/2024;Rent;March;-800\n"))
	}))
	defer upstream.Close()

	srv, _ := newTestServer(t, Config{})
	rec := do(t, srv, http.MethodPost, "/api/import?source="+upstream.URL+"/export.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[importResponse](t, rec)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Rent", res.Records[0].Category)
}

func TestImportRejectsLocalSource(t *testing.T) {
	srv, _ := newTestServer(t, Config{})

	for _, src := range []string{"/etc/hosts", "file:///etc/hosts"} {
		rec := do(t, srv, http.MethodPost, "/api/import?source="+src)
		assert.Equal(t, http.StatusBadRequest, rec.Code, src)
	}
}

func TestImportAllowsLocalSourceWhenEnabled(t *testing.T) {
	srv, _ := newTestServer(t, Config{AllowLocalSources: true})
	path := filepath.Join(t.TempDir(), "other.csv")
	require.NoError(t, os.WriteFile(path, []byte("Date;Category;Label;Amount\n01/05/2024;Gift;Book;-20\n"), 0o600))

	rec := do(t, srv, http.MethodPost, "/api/import?source="+path)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[importResponse](t, rec).Records, 1)
}

func TestImportFailureIsData(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	rec := do(t, srv, http.MethodPost, "/api/import?source=https://127.0.0.1:1/missing.csv")
	require.Equal(t, http.StatusOK, rec.Code)

	res := decode[importResponse](t, rec)
	assert.Empty(t, res.Records)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 0, res.Errors[0].Row)
	assert.Equal(t, core.FieldFile, res.Errors[0].Field)
	assert.Nil(t, res.Summary)
}

func TestClearAndRestore(t *testing.T) {
	srv, ledger := newTestServer(t, Config{})
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/import").Code)

	// Restore reloads what the import persisted.
	restored := decode[restoreResponse](t, do(t, srv, http.MethodPost, "/api/restore"))
	assert.Equal(t, 2, restored.Records)
	require.NotNil(t, restored.Summary)

	rec := do(t, srv, http.MethodDelete, "/api/records")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, ledger.Snapshot().Records)

	restored = decode[restoreResponse](t, do(t, srv, http.MethodPost, "/api/restore"))
	assert.Equal(t, 0, restored.Records)
	assert.Nil(t, restored.Summary)
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, srv, http.MethodGet, "/api/import").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, srv, http.MethodPost, "/api/records").Code)
}

func TestRateLimitOnMutatingRoutes(t *testing.T) {
	srv, _ := newTestServer(t, Config{RequestsPerMinute: 1})

	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/restore").Code)
	rec := do(t, srv, http.MethodPost, "/api/restore")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Reads are not limited.
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/records").Code)
	}
	assert.Equal(t, int64(1), srv.Metrics()["rate_limited_total"])
}

func TestSuspiciousRequestRejected(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	rec := do(t, srv, http.MethodGet, "/.env")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int64(1), srv.Metrics()["suspicious_requests_total"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	do(t, srv, http.MethodGet, "/api/records")

	rec := do(t, srv, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode[map[string]int64](t, rec)
	assert.Equal(t, int64(1), m["requests_total"])
	assert.Contains(t, m, "rate_limited_total")
}

func TestNewServer_InvalidProxy(t *testing.T) {
	_, err := NewServer(Config{TrustedProxies: []string{"nope"}}, &stubLedger{}, nil)
	assert.Error(t, err)
}

type stubLedger struct {
	reportErr  error
	restoreErr error
	clearErr   error
	importErr  error
}

func (s *stubLedger) Restore(context.Context) error { return s.restoreErr }
func (s *stubLedger) Import(context.Context, string) (core.ParseResult, error) {
	return core.ParseResult{Records: []core.Record{}, Errors: []core.ParseError{}}, s.importErr
}
func (s *stubLedger) Clear(context.Context) error { return s.clearErr }
func (s *stubLedger) Snapshot() services.Snapshot { return services.Snapshot{} }
func (s *stubLedger) Report(context.Context) (report.Report, error) {
	return report.Report{}, s.reportErr
}

func TestLedgerFailures(t *testing.T) {
	boom := errors.New("boom")
	stub := &stubLedger{reportErr: boom, restoreErr: boom, clearErr: boom, importErr: boom}
	srv, err := NewServer(Config{}, stub, nil)
	require.NoError(t, err)
	defer srv.Shutdown(context.Background())

	tests := []struct {
		method, target string
		status         int
	}{
		{http.MethodGet, "/api/report", http.StatusInternalServerError},
		{http.MethodGet, "/api/series/monthly", http.StatusInternalServerError},
		{http.MethodPost, "/api/restore", http.StatusInternalServerError},
		{http.MethodDelete, "/api/records", http.StatusInternalServerError},
		{http.MethodPost, "/api/import", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := do(t, srv, tt.method, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.True(t, strings.Contains(rec.Body.String(), `"persistError":"boom"`), rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}
