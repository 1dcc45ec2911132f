package sqlite

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAssignsSequentialIDs(t *testing.T) {
	conn := newTestDB(t)
	repo := NewEventRepository(conn)
	ctx := context.Background()
	runID := seedRun(t, conn)

	for i := 1; i <= 3; i++ {
		ev, err := repo.Append(ctx, runID, "run.warning", []byte(`{"n":1}`))
		require.NoError(t, err)
		assert.Equal(t, int64(i), ev.EventID)
	}
}

func TestAppendIsolatesRuns(t *testing.T) {
	conn := newTestDB(t)
	repo := NewEventRepository(conn)
	ctx := context.Background()
	runA := seedRun(t, conn)
	runB := seedRun(t, conn)

	evA, err := repo.Append(ctx, runA, "run.started", nil)
	require.NoError(t, err)
	evB, err := repo.Append(ctx, runB, "run.started", nil)
	require.NoError(t, err)

	assert.Equal(t, int64(1), evA.EventID)
	assert.Equal(t, int64(1), evB.EventID)
}

func TestConcurrentAppendsAreGapFree(t *testing.T) {
	conn := newTestDB(t)
	repo := NewEventRepository(conn)
	ctx := context.Background()
	runID := seedRun(t, conn)

	const emitters = 8
	const perEmitter = 5

	var wg sync.WaitGroup
	for i := 0; i < emitters; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perEmitter; j++ {
				_, err := repo.Append(ctx, runID, fmt.Sprintf("emitter.%d", i), nil)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	events, err := repo.ListAfter(ctx, runID, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, emitters*perEmitter)
	for i, ev := range events {
		assert.Equal(t, int64(i+1), ev.EventID, "ids must be gap-free and in order")
	}
}

func TestListAfterCursorAndLimit(t *testing.T) {
	conn := newTestDB(t)
	repo := NewEventRepository(conn)
	ctx := context.Background()
	runID := seedRun(t, conn)

	for i := 0; i < 5; i++ {
		_, err := repo.Append(ctx, runID, "run.warning", nil)
		require.NoError(t, err)
	}

	events, err := repo.ListAfter(ctx, runID, 2, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, int64(3), events[0].EventID)

	events, err = repo.ListAfter(ctx, runID, 2, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(4), events[len(events)-1].EventID)

	events, err = repo.ListAfter(ctx, runID, 99, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAppendPreservesPayload(t *testing.T) {
	conn := newTestDB(t)
	repo := NewEventRepository(conn)
	ctx := context.Background()
	runID := seedRun(t, conn)

	payload := []byte(`{"task_id":"t1","attempt":2}`)
	_, err := repo.Append(ctx, runID, "worker.task.retry", payload)
	require.NoError(t, err)
	_, err = repo.Append(ctx, runID, "preview.stopped", nil)
	require.NoError(t, err)

	events, err := repo.ListAfter(ctx, runID, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.JSONEq(t, string(payload), string(events[0].Data))
	assert.Empty(t, events[1].Data)
}
