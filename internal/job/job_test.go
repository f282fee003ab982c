package job

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRejectsNonMonotonicProgress(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, Job{ID: "j1", Username: "alice"}))
	require.NoError(t, store.UpdateProgress(ctx, "j1", 50))

	err := store.UpdateProgress(ctx, "j1", 20)
	require.Error(t, err)
}

func TestManagerRunsTaskToCompletion(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	mgr := NewManager(store, 2, 4, 5*time.Second)
	defer mgr.Close()

	done := make(chan struct{})
	task := func(ctx context.Context, report func(int)) error {
		for _, cp := range Checkpoints {
			report(cp)
		}
		close(done)
		return nil
	}

	require.NoError(t, mgr.Submit(ctx, "job-1", "alice", task))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not complete in time")
	}

	time.Sleep(10 * time.Millisecond)
	j, ok, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusSucceeded, j.Status)
	assert.Equal(t, 100, j.Progress)
}

func TestManagerRecordsTaskFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	mgr := NewManager(store, 1, 2, 5*time.Second)
	defer mgr.Close()

	failing := func(ctx context.Context, report func(int)) error {
		return fmt.Errorf("boom")
	}
	require.NoError(t, mgr.Submit(ctx, "job-2", "alice", failing))

	require.Eventually(t, func() bool {
		j, ok, _ := store.Get(ctx, "job-2")
		return ok && j.Status == StatusFailed
	}, time.Second, 10*time.Millisecond)
}

func TestManagerRejectsSubmissionWhenQueueFull(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	// One blocked worker and a one-slot queue: the worker holds job-a,
	// job-b fills the queue, and job-c is rejected.
	mgr := NewManager(store, 1, 1, 5*time.Second)
	defer mgr.Close()

	block := make(chan struct{})
	slow := func(ctx context.Context, report func(int)) error {
		<-block
		return nil
	}
	require.NoError(t, mgr.Submit(ctx, "job-a", "alice", slow))
	require.NoError(t, mgr.Submit(ctx, "job-b", "alice", slow))

	err := mgr.Submit(ctx, "job-c", "alice", slow)
	close(block)
	require.Error(t, err)
}
