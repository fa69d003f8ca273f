package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/receipt-review/internal/batch"
	"github.com/Veraticus/receipt-review/internal/common"
	"github.com/Veraticus/receipt-review/internal/model"
	"github.com/Veraticus/receipt-review/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) SaveTransaction(ctx context.Context, txn *model.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func forID(id string) any {
	return mock.MatchedBy(func(txn *model.Transaction) bool {
		return txn.ID == id
	})
}

func testConfig() Config {
	return Config{
		Workers: 3,
		Retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2.0,
		},
	}
}

func receiptResult(id string, index int) model.ExtractionResult {
	return model.ExtractionResult{
		ID:      id,
		Index:   index,
		Success: true,
		Receipt: &model.Receipt{
			Merchant:  "Merchant " + id,
			Date:      time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			Total:     12.5 + float64(index),
			LineItems: []model.LineItem{{Description: "coffee", Quantity: 1, Amount: 12.5 + float64(index)}},
		},
	}
}

func reviewingSession(t *testing.T, results ...model.ExtractionResult) *batch.Session {
	t.Helper()
	s := batch.NewSession(batch.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.True(t, s.LoadBatch(results).OK())
	require.Equal(t, batch.PhaseReviewing, s.Phase())
	return s
}

func TestSaveBatch_AllSaved(t *testing.T) {
	store := new(mockWriter)
	store.On("SaveTransaction", mock.Anything, mock.Anything).Return(nil).Times(3)

	session := reviewingSession(t, receiptResult("A", 0), receiptResult("B", 1), receiptResult("C", 2))
	saver := NewSaverWithConfig(store, testConfig())

	summary, err := saver.SaveBatch(context.Background(), session)
	require.NoError(t, err)

	assert.Equal(t, batch.PhaseComplete, summary.Phase)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Saved)
	assert.Equal(t, 0, summary.Failed)
	assert.Empty(t, summary.Failures)
	assert.Empty(t, summary.Error)

	st := session.State()
	assert.Equal(t, batch.PhaseComplete, st.Phase)
	assert.Equal(t, 3, st.SavedCount)
	store.AssertExpectations(t)
}

func TestSaveBatch_FailedExtractionSkipsStorage(t *testing.T) {
	store := new(mockWriter)
	store.On("SaveTransaction", mock.Anything, forID("A")).Return(nil).Once()
	store.On("SaveTransaction", mock.Anything, forID("C")).Return(nil).Once()

	failed := model.ExtractionResult{ID: "B", Index: 1, FailureReason: "blurry image"}
	session := reviewingSession(t, receiptResult("A", 0), failed, receiptResult("C", 2))

	summary, err := NewSaverWithConfig(store, testConfig()).SaveBatch(context.Background(), session)
	require.NoError(t, err)

	assert.Equal(t, batch.PhaseComplete, summary.Phase)
	assert.Equal(t, 2, summary.Saved)
	assert.Equal(t, 1, summary.Failed)
	require.Contains(t, summary.Failures, "B")
	assert.Contains(t, summary.Failures["B"], "blurry image")

	store.AssertExpectations(t)
	store.AssertNotCalled(t, "SaveTransaction", mock.Anything, forID("B"))
}

func TestSaveBatch_AllFailed(t *testing.T) {
	store := new(mockWriter)
	store.On("SaveTransaction", mock.Anything, mock.Anything).Return(common.ErrDuplicateEntry)

	session := reviewingSession(t, receiptResult("A", 0), receiptResult("B", 1))

	summary, err := NewSaverWithConfig(store, testConfig()).SaveBatch(context.Background(), session)
	require.Error(t, err)
	require.NotNil(t, summary)

	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, batch.AllFailedMessage, userErr.UserMessage)
	assert.ErrorIs(t, err, common.ErrSaveFailed)

	assert.Equal(t, batch.PhaseError, summary.Phase)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, batch.AllFailedMessage, summary.Error)
	assert.Contains(t, summary.Failures["A"], "duplicate entry")

	// Duplicates are not retried.
	store.AssertNumberOfCalls(t, "SaveTransaction", 2)
}

func TestSaveBatch_RetriesTransientErrors(t *testing.T) {
	store := new(mockWriter)
	busy := &common.RetryableError{Err: errors.New("database is locked"), Retryable: true}
	store.On("SaveTransaction", mock.Anything, forID("A")).Return(busy).Once()
	store.On("SaveTransaction", mock.Anything, forID("A")).Return(nil).Once()

	session := reviewingSession(t, receiptResult("A", 0))

	summary, err := NewSaverWithConfig(store, testConfig()).SaveBatch(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Saved)
	store.AssertNumberOfCalls(t, "SaveTransaction", 2)
}

func TestSaveBatch_ExhaustedRetriesFailItem(t *testing.T) {
	store := new(mockWriter)
	busy := &common.RetryableError{Err: errors.New("database is locked"), Retryable: true}
	store.On("SaveTransaction", mock.Anything, forID("A")).Return(busy)
	store.On("SaveTransaction", mock.Anything, forID("B")).Return(nil)

	session := reviewingSession(t, receiptResult("A", 0), receiptResult("B", 1))

	summary, err := NewSaverWithConfig(store, testConfig()).SaveBatch(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, batch.PhaseComplete, summary.Phase)
	assert.Equal(t, 1, summary.Saved)
	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, summary.Failures["A"], common.ErrMaxRetries.Error())
}

func TestSaveBatch_RejectedOutsideReviewing(t *testing.T) {
	store := new(mockWriter)
	session := batch.NewSession(batch.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	summary, err := NewSaver(store).SaveBatch(context.Background(), session)
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, batch.ErrInvalidTransition)
	assert.Equal(t, batch.PhaseIdle, session.Phase())
	store.AssertNotCalled(t, "SaveTransaction", mock.Anything, mock.Anything)
}

func TestSaveBatch_CanceledContext(t *testing.T) {
	store := new(mockWriter)
	session := reviewingSession(t, receiptResult("A", 0), receiptResult("B", 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := NewSaverWithConfig(store, testConfig()).SaveBatch(ctx, session)
	require.Error(t, err)
	assert.Equal(t, batch.PhaseError, summary.Phase)
	assert.Equal(t, 2, summary.Failed)
	assert.Contains(t, summary.Failures["A"], context.Canceled.Error())
	store.AssertNotCalled(t, "SaveTransaction", mock.Anything, mock.Anything)
}

func TestSaveBatch_Progress(t *testing.T) {
	store := new(mockWriter)
	store.On("SaveTransaction", mock.Anything, mock.Anything).Return(nil)

	var mu sync.Mutex
	var done []int
	seen := make(map[string]bool)

	cfg := testConfig()
	cfg.Progress = func(n, total int, itemID string, err error) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 4, total)
		assert.NoError(t, err)
		done = append(done, n)
		seen[itemID] = true
	}

	session := reviewingSession(t,
		receiptResult("A", 0), receiptResult("B", 1), receiptResult("C", 2), receiptResult("D", 3))

	_, err := NewSaverWithConfig(store, cfg).SaveBatch(context.Background(), session)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4}, done)
	assert.Len(t, seen, 4)
}

func TestNewSaverWithConfig_ClampsWorkers(t *testing.T) {
	saver := NewSaverWithConfig(new(mockWriter), Config{Workers: 0})
	assert.Equal(t, 1, saver.config.Workers)

	assert.Equal(t, 4, NewSaver(new(mockWriter)).config.Workers)
}
