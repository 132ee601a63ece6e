// internal/engine/bulk/runner_test.go
package bulk

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"retention-engine/internal/common/errors"
	"retention-engine/internal/common/logger"
	"retention-engine/internal/riskapi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func makeItems(n int) []Item {
	items := make([]Item, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, Item{
			ID:           fmt.Sprintf("emp-%d", i),
			Label:        fmt.Sprintf("Employee %d", i),
			TreatmentID:  100 + i,
			HasTreatment: true,
		})
	}
	return items
}

type applyRecorder struct {
	mu     sync.Mutex
	order  []string
	active int
	fail   map[string]error
	block  chan struct{} // when set, Apply waits on it per call
}

func (a *applyRecorder) apply(ctx context.Context, item Item) (*riskapi.TreatmentResult, error) {
	a.mu.Lock()
	a.order = append(a.order, item.ID)
	a.active++
	if a.active > 1 {
		a.mu.Unlock()
		return nil, fmt.Errorf("concurrent apply detected")
	}
	a.mu.Unlock()

	if a.block != nil {
		<-a.block
	}

	a.mu.Lock()
	a.active--
	err := a.fail[item.ID]
	a.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &riskapi.TreatmentResult{
		PreChurnProbability:  0.5,
		PostChurnProbability: 0.3,
		EltvPreTreatment:     150000,
		EltvPostTreatment:    180000,
	}, nil
}

// ==========================
// Core Functionality Tests
// ==========================

func TestRun_SequentialInOrder(t *testing.T) {
	rec := &applyRecorder{}
	r := NewRunner(logger.NewTestLogger(t))

	summary, err := r.Run(context.Background(), makeItems(5), Hooks{Apply: rec.apply})
	require.NoError(t, err)

	assert.Equal(t, 5, summary.SuccessCount)
	assert.Equal(t, 0, summary.FailureCount)
	assert.False(t, summary.Cancelled)
	assert.Equal(t, []string{"emp-0", "emp-1", "emp-2", "emp-3", "emp-4"}, rec.order)
	assert.Equal(t, StateCompleted, r.State())
}

func TestRun_FailureIsRecordedAndSkippedPast(t *testing.T) {
	rec := &applyRecorder{fail: map[string]error{
		"emp-2": errors.NewUpstreamError("risk-api", fmt.Errorf("503")),
	}}
	r := NewRunner(logger.NewTestLogger(t))

	var failed []string
	summary, err := r.Run(context.Background(), makeItems(5), Hooks{
		Apply:     rec.apply,
		OnFailure: func(item Item, err error) { failed = append(failed, item.ID) },
	})
	require.NoError(t, err)

	assert.Equal(t, 4, summary.SuccessCount)
	assert.Equal(t, 1, summary.FailureCount)
	require.Len(t, summary.FailedItems, 1)
	assert.Equal(t, "emp-2", summary.FailedItems[0].ID)
	assert.Equal(t, []string{"emp-2"}, failed)

	// The failure did not stop the remaining items.
	assert.Equal(t, 5, len(rec.order))
	assert.Equal(t, StateCompleted, r.State())
}

func TestRun_ItemWithoutTreatmentFailsLocally(t *testing.T) {
	rec := &applyRecorder{}
	r := NewRunner(logger.NewTestLogger(t))

	items := makeItems(3)
	items[1].HasTreatment = false

	summary, err := r.Run(context.Background(), items, Hooks{Apply: rec.apply})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 1, summary.FailureCount)
	require.Len(t, summary.FailedItems, 1)
	assert.Contains(t, summary.FailedItems[0].Message, "no treatment chosen")
	// No remote call was made for the item without a treatment.
	assert.Equal(t, []string{"emp-0", "emp-2"}, rec.order)
}

func TestRun_ConflictWhileRunning(t *testing.T) {
	rec := &applyRecorder{block: make(chan struct{})}
	r := NewRunner(logger.NewTestLogger(t))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := r.Run(context.Background(), makeItems(2), Hooks{Apply: rec.apply})
		assert.NoError(t, err)
	}()

	// Wait for the first apply to be in flight.
	require.Eventually(t, func() bool {
		return r.State() == StateRunning
	}, time.Second, time.Millisecond)

	_, err := r.Run(context.Background(), makeItems(1), Hooks{Apply: rec.apply})
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))

	close(rec.block)
	<-done
}

func TestRun_CancelStopsAtItemBoundary(t *testing.T) {
	rec := &applyRecorder{}
	r := NewRunner(logger.NewTestLogger(t))

	var successes int
	summary, err := r.Run(context.Background(), makeItems(5), Hooks{
		Apply: rec.apply,
		OnSuccess: func(item Item, result *riskapi.TreatmentResult) {
			successes++
			if successes == 2 {
				r.Cancel()
			}
		},
	})
	require.NoError(t, err)

	// The in-flight item finished; the remaining three never started.
	assert.Equal(t, 2, summary.SuccessCount)
	assert.True(t, summary.Cancelled)
	assert.Equal(t, []string{"emp-0", "emp-1"}, rec.order)
	assert.Equal(t, StateCancelled, r.State())
}

func TestRun_ContextCancellationIsCooperative(t *testing.T) {
	rec := &applyRecorder{}
	r := NewRunner(logger.NewTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	summary, err := r.Run(ctx, makeItems(4), Hooks{
		Apply: rec.apply,
		OnSuccess: func(item Item, result *riskapi.TreatmentResult) {
			if item.ID == "emp-0" {
				cancel()
			}
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SuccessCount)
	assert.True(t, summary.Cancelled)
	assert.Equal(t, StateCancelled, r.State())
}

func TestRun_ProgressLabelSequence(t *testing.T) {
	rec := &applyRecorder{fail: map[string]error{
		"emp-1": fmt.Errorf("denied"),
	}}
	r := NewRunner(logger.NewTestLogger(t))

	var labels []string
	summary, err := r.Run(context.Background(), makeItems(2), Hooks{
		Apply:      rec.apply,
		OnProgress: func(p Progress) { labels = append(labels, p.CurrentLabel) },
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SuccessCount)

	assert.Equal(t, []string{
		"→ Employee 0",
		"✓ Employee 0",
		"→ Employee 1",
		"⚠ Employee 1",
		"",
	}, labels)
}

func TestRun_ProgressCountsAreMonotonic(t *testing.T) {
	rec := &applyRecorder{}
	r := NewRunner(logger.NewTestLogger(t))

	var completed []int
	_, err := r.Run(context.Background(), makeItems(3), Hooks{
		Apply:      rec.apply,
		OnProgress: func(p Progress) { completed = append(completed, p.Completed) },
	})
	require.NoError(t, err)

	for i := 1; i < len(completed); i++ {
		assert.GreaterOrEqual(t, completed[i], completed[i-1])
	}
	assert.Equal(t, 3, completed[len(completed)-1])
}

func TestRun_EmptyItems(t *testing.T) {
	r := NewRunner(logger.NewTestLogger(t))

	summary, err := r.Run(context.Background(), nil, Hooks{})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.SuccessCount)
	assert.Equal(t, 0, summary.FailureCount)
	assert.False(t, summary.Cancelled)
	assert.Equal(t, StateCompleted, r.State())
}

func TestRun_ReusableAfterCompletion(t *testing.T) {
	rec := &applyRecorder{}
	r := NewRunner(logger.NewTestLogger(t))

	_, err := r.Run(context.Background(), makeItems(2), Hooks{Apply: rec.apply})
	require.NoError(t, err)

	summary, err := r.Run(context.Background(), makeItems(3), Hooks{Apply: rec.apply})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.SuccessCount)
	assert.False(t, summary.Cancelled)
}

func TestSnapshot_TracksRunState(t *testing.T) {
	r := NewRunner(logger.NewTestLogger(t))
	assert.Nil(t, r.Snapshot())

	rec := &applyRecorder{}
	_, err := r.Run(context.Background(), makeItems(2), Hooks{Apply: rec.apply})
	require.NoError(t, err)

	run := r.Snapshot()
	require.NotNil(t, run)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 2, run.Total)
	assert.Equal(t, 2, run.CompletedCount)
	assert.Equal(t, 2, run.SuccessCount)
	assert.Empty(t, run.CurrentLabel)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "completed", StateCompleted.String())
	assert.Equal(t, "cancelled", StateCancelled.String())
}
