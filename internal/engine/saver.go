// Package engine drives a reviewed batch through persistence.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/receipt-review/internal/batch"
	"github.com/Veraticus/receipt-review/internal/common"
	"github.com/Veraticus/receipt-review/internal/model"
	"github.com/Veraticus/receipt-review/internal/service"
)

// ErrSaveAborted is returned when the session left the saving phase before
// the run could be closed, typically because it was reset.
var ErrSaveAborted = errors.New("save aborted")

// ProgressFunc is called once per item as its outcome is recorded.
type ProgressFunc func(done, total int, itemID string, err error)

// Config holds configuration options for the saver.
type Config struct {
	Progress ProgressFunc
	Retry    service.RetryOptions
	Workers  int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Workers: 4,
		Retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// SaveSummary contains statistics about one save run.
type SaveSummary struct {
	Failures map[string]string
	Error    string
	Total    int
	Saved    int
	Failed   int
	Duration time.Duration
	Phase    batch.Phase
}

// Saver persists every item of a batch session and reports each outcome back
// into the session.
type Saver struct {
	store  service.TransactionWriter
	config Config
}

// NewSaver creates a saver with the default configuration.
func NewSaver(store service.TransactionWriter) *Saver {
	return NewSaverWithConfig(store, DefaultConfig())
}

// NewSaverWithConfig creates a saver with custom configuration.
func NewSaverWithConfig(store service.TransactionWriter, config Config) *Saver {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return &Saver{
		store:  store,
		config: config,
	}
}

type saveOutcome struct {
	err error
	id  string
}

// SaveBatch moves the session into saving, writes every item, and closes the
// run. Items are written concurrently but their outcomes are fed to the
// session one at a time from this goroutine.
func (s *Saver) SaveBatch(ctx context.Context, session *batch.Session) (*SaveSummary, error) {
	startTime := time.Now()

	if res := session.SaveStart(); !res.OK() {
		return nil, fmt.Errorf("cannot start save: %w", res.Err)
	}

	items := session.State().Items
	slog.Info("Saving batch",
		"items", len(items),
		"workers", s.config.Workers)

	workChan := make(chan model.BatchItem, len(items))
	for _, item := range items {
		workChan <- item
	}
	close(workChan)

	resultsChan := make(chan saveOutcome, len(items))

	var wg sync.WaitGroup
	workers := min(s.config.Workers, max(len(items), 1))
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID, workChan, resultsChan)
		}(i)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	done := 0
	for outcome := range resultsChan {
		done++
		var res batch.Result
		if outcome.err == nil {
			res = session.SaveItemSuccess(outcome.id)
		} else {
			res = session.SaveItemFailure(outcome.id, outcome.err.Error())
		}
		if !res.OK() {
			slog.Debug("save outcome not recorded", "item_id", outcome.id, "error", res.Err)
		}
		if s.config.Progress != nil {
			s.config.Progress(done, len(items), outcome.id, outcome.err)
		}
	}

	if res := session.SaveComplete(); !res.OK() {
		return nil, fmt.Errorf("%w: %w", ErrSaveAborted, res.Err)
	}

	final := session.State()
	summary := &SaveSummary{
		Total:    len(final.Items),
		Saved:    final.SavedCount,
		Failed:   final.FailedCount,
		Phase:    final.Phase,
		Error:    final.Error,
		Duration: time.Since(startTime),
		Failures: make(map[string]string),
	}
	for id, o := range final.Outcomes {
		if !o.Saved {
			summary.Failures[id] = o.Reason
		}
	}

	slog.Info("Batch save finished",
		"phase", final.Phase.String(),
		"saved", summary.Saved,
		"failed", summary.Failed,
		"duration", summary.Duration)

	if final.Phase == batch.PhaseError {
		return summary, common.NewUserError(final.Error, common.ErrSaveFailed)
	}
	return summary, nil
}

// worker saves items from the work channel until it is drained.
func (s *Saver) worker(ctx context.Context, workerID int, workChan <-chan model.BatchItem, resultsChan chan<- saveOutcome) {
	for item := range workChan {
		slog.Debug("worker saving item", "worker_id", workerID, "item_id", item.ID)
		resultsChan <- saveOutcome{id: item.ID, err: s.saveItem(ctx, item)}
	}
}

func (s *Saver) saveItem(ctx context.Context, item model.BatchItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !item.HasCandidate() {
		return fmt.Errorf("%w: %s", common.ErrExtractionEmpty, item.FailureReason)
	}

	txn := item.Receipt.ToTransaction(item.ID)
	return common.WithRetry(ctx, func() error {
		return s.store.SaveTransaction(ctx, &txn)
	}, s.config.Retry)
}
