package http

import (
	"context"
	"net/http"
	"strings"

	"spendings/internal/core"
	"spendings/internal/log"
	"spendings/internal/report"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.Metrics())
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.ledger.Snapshot().Records)
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.ledger.Snapshot().Errors)
}

// handleSummary answers null while no data is loaded.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.ledger.Snapshot().Summary)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.reportView(func(rep report.Report) any { return rep })(w, r)
}

func (s *Server) reportView(pick func(report.Report) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := s.ledger.Report(r.Context())
		if err != nil {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Report failed",
				log.FieldOperation, log.OpReport,
				log.FieldError, err)
			writeError(w, r, http.StatusInternalServerError, "failed to build report")
			return
		}
		writeJSON(w, r, http.StatusOK, pick(rep))
	}
}

type importResponse struct {
	core.ParseResult
	PersistError string `json:"persistError,omitempty"`
}

// handleImport runs an import and answers with the full result. Rows that
// failed to parse are part of a successful response; only a storage failure
// is flagged, next to the result.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	uri := strings.TrimSpace(r.URL.Query().Get("source"))
	if uri != "" && !s.allowLocalSources && isLocalSource(uri) {
		logger.WarnContext(ctx, "Rejected local import source", log.FieldSource, uri)
		writeError(w, r, http.StatusBadRequest, "local file sources cannot be requested over HTTP")
		return
	}

	// The import replaces shared state, so it runs to completion even if the
	// client goes away.
	result, err := s.ledger.Import(context.WithoutCancel(ctx), uri)
	resp := importResponse{ParseResult: result}
	if err != nil {
		logger.ErrorContext(ctx, "Imported records were not persisted",
			log.FieldOperation, log.OpImport,
			log.FieldError, err)
		resp.PersistError = err.Error()
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func isLocalSource(uri string) bool {
	return !strings.Contains(uri, "://") || strings.HasPrefix(strings.ToLower(uri), "file://")
}

type restoreResponse struct {
	Records int               `json:"records"`
	Summary *core.DataSummary `json:"summary"`
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.ledger.Restore(ctx); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Restore failed",
			log.FieldOperation, log.OpRestore,
			log.FieldError, err)
		writeError(w, r, http.StatusInternalServerError, "failed to restore records")
		return
	}
	snap := s.ledger.Snapshot()
	writeJSON(w, r, http.StatusOK, restoreResponse{Records: len(snap.Records), Summary: snap.Summary})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.ledger.Clear(ctx); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Clear failed",
			log.FieldOperation, log.OpClear,
			log.FieldError, err)
		writeError(w, r, http.StatusInternalServerError, "records cleared in memory but not in storage")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
