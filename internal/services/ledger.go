// Package services holds the ledger: the single owner of the current record
// set, its parse errors and summary. Every entry point (HTTP, worker, CLI)
// goes through a LedgerService instead of shared globals.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"spendings/internal/amqp"
	"spendings/internal/cache"
	"spendings/internal/core"
	"spendings/internal/importer"
	"spendings/internal/log"
	"spendings/internal/report"
	"spendings/internal/source"
	"spendings/internal/storage"
)

// EventPublisher receives a notification after every import.
type EventPublisher interface {
	PublishImportCompleted(ctx context.Context, msg *amqp.ImportCompletedMessage) error
}

// SourceOpener resolves a source URI.
type SourceOpener func(uri string) (source.Source, error)

type Options struct {
	Store storage.RecordStore
	// Publisher is optional.
	Publisher EventPublisher
	// Open defaults to source.Open with FetchTimeout.
	Open          SourceOpener
	FetchTimeout  time.Duration
	DefaultSource string
	// Reports caches built reports per dataset version; nil disables caching.
	Reports cache.Cache[report.Report]
	Logger  *log.Logger
}

// Snapshot is a copy of the ledger state.
type Snapshot struct {
	Records []core.Record     `json:"records"`
	Errors  []core.ParseError `json:"errors"`
	Summary *core.DataSummary `json:"summary"`
	Version uint64            `json:"version"`
}

type LedgerService struct {
	store         storage.RecordStore
	publisher     EventPublisher
	open          SourceOpener
	defaultSource string
	reports       cache.Cache[report.Report]
	logger        *log.Logger
	events        *log.StructuredLogger

	// importMu serializes imports; mu guards the state below.
	importMu sync.Mutex
	mu       sync.RWMutex
	records  []core.Record
	errors   []core.ParseError
	summary  *core.DataSummary
	version  uint64
}

func NewLedgerService(opts Options) *LedgerService {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	open := opts.Open
	if open == nil {
		srcOpts := source.DefaultOptions(opts.FetchTimeout)
		open = func(uri string) (source.Source, error) { return source.Open(uri, srcOpts) }
	}
	logger = logger.WithComponent(log.ComponentService)
	return &LedgerService{
		store:         opts.Store,
		publisher:     opts.Publisher,
		open:          open,
		defaultSource: opts.DefaultSource,
		reports:       opts.Reports,
		logger:        logger,
		events:        log.NewStructuredLogger(logger),
		records:       []core.Record{},
		errors:        []core.ParseError{},
	}
}

// replaceLocked swaps in new state and invalidates cached reports.
func (s *LedgerService) replaceLocked(records []core.Record, errs []core.ParseError, summary *core.DataSummary) {
	s.records = records
	s.errors = errs
	s.summary = summary
	s.version++
	if s.reports != nil {
		s.reports.Clear()
	}
}

// Restore replaces the current state with the persisted records.
func (s *LedgerService) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	records, err := s.store.Load(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to restore records", log.FieldOperation, log.OpRestore, log.FieldError, err)
		return fmt.Errorf("restore records: %w", err)
	}

	var summary *core.DataSummary
	if len(records) > 0 {
		sum := report.Summarize(records)
		summary = &sum
	}

	s.mu.Lock()
	s.replaceLocked(records, []core.ParseError{}, summary)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Records restored", log.FieldRecords, len(records))
	return nil
}

// Import fetches and parses uri (the default source when empty) and replaces
// the current state with the result. Records are persisted only when there is
// at least one. A persistence failure is returned next to the full result.
func (s *LedgerService) Import(ctx context.Context, uri string) (core.ParseResult, error) {
	return s.ImportWithID(ctx, uuid.NewString(), uri)
}

// ImportWithID is Import with a caller-chosen run id.
func (s *LedgerService) ImportWithID(ctx context.Context, importID, uri string) (core.ParseResult, error) {
	s.importMu.Lock()
	defer s.importMu.Unlock()

	if uri == "" {
		uri = s.defaultSource
	}
	logger := s.logger.With(log.FieldImportID, importID, log.FieldSource, uri)

	s.mu.Lock()
	s.errors = []core.ParseError{}
	s.mu.Unlock()

	var result core.ParseResult
	src, err := s.open(uri)
	if err != nil {
		result = core.EmptyResult(core.ParseError{Row: 0, Field: core.FieldFile, Message: err.Error()})
	} else {
		result = importer.Import(ctx, src)
	}

	s.mu.Lock()
	s.replaceLocked(result.Records, result.Errors, result.Summary)
	s.mu.Unlock()

	var persistErr error
	persisted := false
	if len(result.Records) > 0 && s.store != nil {
		if err := s.store.Save(ctx, result.Records); err != nil {
			persistErr = fmt.Errorf("persist records: %w", err)
			s.events.LogError(ctx, "Failed to persist imported records", err, log.ComponentStorage, log.OpSave,
				log.NewFields().WithImport(importID, uri, len(result.Records), len(result.Errors)))
		} else {
			persisted = true
		}
	}

	for _, perr := range result.Errors {
		logger.DebugContext(ctx, "Rejected row",
			log.FieldRow, perr.Row,
			log.FieldField, perr.Field,
			"message", perr.Message)
	}
	s.events.LogImportCompleted(ctx, importID, uri, len(result.Records), len(result.Errors))

	s.publish(ctx, &amqp.ImportCompletedMessage{
		ImportID:    importID,
		Source:      uri,
		Records:     len(result.Records),
		Errors:      len(result.Errors),
		Persisted:   persisted,
		Failure:     errString(persistErr),
		CompletedAt: time.Now().UTC(),
	})

	return result, persistErr
}

func (s *LedgerService) publish(ctx context.Context, msg *amqp.ImportCompletedMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishImportCompleted(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish import event",
			log.FieldImportID, msg.ImportID,
			log.FieldError, err)
	}
}

// Clear empties the state and the store. The in-memory state is cleared even
// when the store fails.
func (s *LedgerService) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.replaceLocked([]core.Record{}, []core.ParseError{}, nil)
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	if err := s.store.Clear(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to clear stored records", log.FieldOperation, log.OpClear, log.FieldError, err)
		return fmt.Errorf("clear records: %w", err)
	}
	s.logger.InfoContext(ctx, "Records cleared")
	return nil
}

// Snapshot returns a copy of the current state.
func (s *LedgerService) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Records: append([]core.Record{}, s.records...),
		Errors:  append([]core.ParseError{}, s.errors...),
		Version: s.version,
	}
	if s.summary != nil {
		sum := *s.summary
		sum.Categories = append([]string{}, s.summary.Categories...)
		sum.CategoryCounts = make(map[string]int, len(s.summary.CategoryCounts))
		for k, v := range s.summary.CategoryCounts {
			sum.CategoryCounts[k] = v
		}
		snap.Summary = &sum
	}
	return snap
}

// Report returns every derived view of the current records.
func (s *LedgerService) Report(ctx context.Context) (report.Report, error) {
	s.mu.RLock()
	records := s.records
	version := s.version
	s.mu.RUnlock()

	key := fmt.Sprintf("v%d", version)
	if s.reports != nil {
		if rep, ok := s.reports.Get(key); ok {
			return rep, nil
		}
	}

	// records is never mutated in place, only replaced, so it is safe to
	// read without the lock.
	rep, err := report.Build(ctx, records)
	if err != nil {
		return report.Report{}, fmt.Errorf("build report: %w", err)
	}

	if s.reports != nil {
		s.mu.RLock()
		current := s.version == version
		s.mu.RUnlock()
		if current {
			s.reports.Set(key, rep)
		}
	}
	s.logger.DebugContext(ctx, "Report built",
		log.FieldOperation, log.OpReport,
		log.FieldVersion, version,
		log.FieldRecords, len(records))
	return rep, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
