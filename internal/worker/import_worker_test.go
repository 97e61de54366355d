package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendings/internal/amqp"
	"spendings/internal/core"
)

type call struct {
	id, uri string
}

type fakeLedger struct {
	mu         sync.Mutex
	calls      []call
	importErr  error
	restoreErr error
	restores   int
}

func (f *fakeLedger) Restore(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restores++
	return f.restoreErr
}

func (f *fakeLedger) ImportWithID(_ context.Context, id, uri string) (core.ParseResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{id, uri})
	return core.ParseResult{
		Records: []core.Record{},
		Errors:  []core.ParseError{{Row: 3, Field: core.FieldAmount, Message: "bad"}},
	}, f.importErr
}

func (f *fakeLedger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestHandleImportRequest(t *testing.T) {
	ledger := &fakeLedger{}
	w := NewImportWorker(ledger, nil)

	msg := amqp.NewImportRequestMessage("gs://bucket/export.csv")
	require.NoError(t, w.HandleImportRequest(context.Background(), msg))

	require.Len(t, ledger.calls, 1)
	assert.Equal(t, call{msg.ImportID, "gs://bucket/export.csv"}, ledger.calls[0])
}

func TestHandleImportRequest_StorageFailure(t *testing.T) {
	ledger := &fakeLedger{importErr: errors.New("quota")}
	w := NewImportWorker(ledger, nil)

	err := w.HandleImportRequest(context.Background(), amqp.NewImportRequestMessage(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
}

func TestStartupRestore(t *testing.T) {
	ledger := &fakeLedger{}
	w := NewImportWorker(ledger, nil)
	require.NoError(t, w.StartupRestore(context.Background()))
	assert.Equal(t, 1, ledger.restores)

	ledger.restoreErr = errors.New("disk")
	assert.Error(t, w.StartupRestore(context.Background()))
}

func TestRunScheduled(t *testing.T) {
	ledger := &fakeLedger{}
	w := NewImportWorker(ledger, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.RunScheduled(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return ledger.callCount() >= 2 }, time.Second, time.Millisecond)
	cancel()
	<-done

	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	assert.Empty(t, ledger.calls[0].uri)
	assert.NotEqual(t, ledger.calls[0].id, ledger.calls[1].id)
}
