package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperengineering/ledgersync/internal/types"
)

// mockRunner counts SyncAll invocations.
type mockRunner struct {
	calls atomic.Int64
	err   error
}

func (m *mockRunner) SyncAll(ctx context.Context) (*types.SyncRunResult, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return &types.SyncRunResult{
		Items:    []types.ItemSyncResult{{ItemID: "item-1", Added: 2}},
		Failures: map[string]string{},
	}, nil
}

func TestSyncCoordinator_RunsImmediatelyOnStart(t *testing.T) {
	runner := &mockRunner{}
	c := NewSyncCoordinator(runner, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for runner.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected an immediate sync cycle on start")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	cancel()
	<-done
}

func TestSyncCoordinator_TicksRepeatedly(t *testing.T) {
	runner := &mockRunner{}
	c := NewSyncCoordinator(runner, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for runner.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 cycles, got %d", runner.calls.Load())
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}

	cancel()
	<-done
}

func TestSyncCoordinator_CycleErrorIsNonFatal(t *testing.T) {
	runner := &mockRunner{err: errors.New("store unavailable")}
	c := NewSyncCoordinator(runner, time.Hour)

	// A failing cycle must not panic the loop
	c.runCycle(context.Background())
	if runner.calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", runner.calls.Load())
	}
}
