package workers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"salespilot/internal/observability"
)

func TestDispatcherRunsSubmittedJobs(t *testing.T) {
	logger := observability.NewLogger()
	dispatcher := NewDispatcher(DispatcherConfig{NumWorkers: 4, QueueSize: 8, DrainTimeout: 5 * time.Second}, logger)

	ctx := context.Background()
	if err := dispatcher.Start(ctx); err != nil {
		t.Fatalf("failed to start dispatcher: %v", err)
	}

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 20; i++ {
		err := dispatcher.Submit(ctx, Job{
			Key: fmt.Sprintf("key-%d", i),
			Run: func(ctx context.Context) {
				mu.Lock()
				ran++
				mu.Unlock()
			},
		})
		if err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}

	if err := dispatcher.Drain(ctx); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	dispatcher.Stop()

	if ran != 20 {
		t.Errorf("expected 20 jobs to run, got %d", ran)
	}
}

func TestDispatcherOrdersJobsPerKey(t *testing.T) {
	logger := observability.NewLogger()
	dispatcher := NewDispatcher(DispatcherConfig{NumWorkers: 8, QueueSize: 64, DrainTimeout: 5 * time.Second}, logger)

	ctx := context.Background()
	if err := dispatcher.Start(ctx); err != nil {
		t.Fatalf("failed to start dispatcher: %v", err)
	}

	var mu sync.Mutex
	order := map[string][]int{}
	keys := []string{"chat-a", "chat-b", "chat-c"}
	for i := 0; i < 30; i++ {
		key := keys[i%len(keys)]
		seq := i / len(keys)
		err := dispatcher.Submit(ctx, Job{
			Key: key,
			Run: func(ctx context.Context) {
				mu.Lock()
				order[key] = append(order[key], seq)
				mu.Unlock()
			},
		})
		if err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}

	if err := dispatcher.Drain(ctx); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	dispatcher.Stop()

	for _, key := range keys {
		got := order[key]
		if len(got) != 10 {
			t.Fatalf("key %s: expected 10 jobs, got %d", key, len(got))
		}
		for i, seq := range got {
			if seq != i {
				t.Errorf("key %s: job %d ran out of order (seq %d)", key, i, seq)
			}
		}
	}
}

func TestDispatcherRejectsSubmitBeforeStart(t *testing.T) {
	logger := observability.NewLogger()
	dispatcher := NewDispatcher(DefaultDispatcherConfig(), logger)

	err := dispatcher.Submit(context.Background(), Job{Key: "k", Run: func(ctx context.Context) {}})
	if err == nil {
		t.Error("expected error submitting before start")
	}
}

func TestDispatcherRejectsSubmitWhileDraining(t *testing.T) {
	logger := observability.NewLogger()
	dispatcher := NewDispatcher(DispatcherConfig{NumWorkers: 1, QueueSize: 1, DrainTimeout: time.Second}, logger)

	ctx := context.Background()
	if err := dispatcher.Start(ctx); err != nil {
		t.Fatalf("failed to start dispatcher: %v", err)
	}
	if err := dispatcher.Drain(ctx); err != nil {
		t.Fatalf("drain failed: %v", err)
	}

	err := dispatcher.Submit(ctx, Job{Key: "k", Run: func(ctx context.Context) {}})
	if err == nil {
		t.Error("expected error submitting while draining")
	}
	dispatcher.Stop()
}

func TestKeyIndexIsStable(t *testing.T) {
	for _, key := range []string{"", "page:psid", "another-key"} {
		first := keyIndex(key, 8)
		for i := 0; i < 10; i++ {
			if keyIndex(key, 8) != first {
				t.Fatalf("keyIndex(%q) is not stable", key)
			}
		}
		if first < 0 || first >= 8 {
			t.Errorf("keyIndex(%q) = %d out of range", key, first)
		}
	}
}
