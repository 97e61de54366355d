// Package worker runs imports requested over AMQP or on a schedule.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"spendings/internal/amqp"
	"spendings/internal/core"
	"spendings/internal/log"
)

// Ledger is the part of services.LedgerService the worker drives.
type Ledger interface {
	Restore(ctx context.Context) error
	ImportWithID(ctx context.Context, importID, uri string) (core.ParseResult, error)
}

// ImportWorker turns import requests into ledger imports. The ledger
// publishes the completion event itself.
type ImportWorker struct {
	ledger Ledger
	logger *log.Logger
}

func NewImportWorker(ledger Ledger, logger *log.Logger) *ImportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ImportWorker{
		ledger: ledger,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleImportRequest runs one requested import. Rejected rows are part of
// a normal result; only a storage failure is returned, so the broker
// retries the request.
func (w *ImportWorker) HandleImportRequest(ctx context.Context, msg *amqp.ImportRequestMessage) error {
	logger := w.logger.With(log.FieldImportID, msg.ImportID, log.FieldSource, msg.Source)
	logger.InfoContext(ctx, "Processing import request",
		"requested_at", msg.RequestedAt)

	start := time.Now()
	result, err := w.ledger.ImportWithID(ctx, msg.ImportID, msg.Source)
	if err != nil {
		return fmt.Errorf("import %s: %w", msg.ImportID, err)
	}

	logger.InfoContext(ctx, "Import request processed",
		log.FieldRecords, len(result.Records),
		log.FieldErrors, len(result.Errors),
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// StartupRestore loads the persisted records so the first report served
// after a restart reflects the last successful import.
func (w *ImportWorker) StartupRestore(ctx context.Context) error {
	if err := w.ledger.Restore(ctx); err != nil {
		return fmt.Errorf("startup restore: %w", err)
	}
	return nil
}

// RunScheduled imports the default source every interval until ctx ends.
func (w *ImportWorker) RunScheduled(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.InfoContext(ctx, "Scheduled imports enabled", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg := &amqp.ImportRequestMessage{ImportID: uuid.NewString(), RequestedAt: time.Now().UTC()}
			if err := w.HandleImportRequest(ctx, msg); err != nil {
				w.logger.ErrorContext(ctx, "Scheduled import failed", log.FieldError, err)
			}
		}
	}
}
