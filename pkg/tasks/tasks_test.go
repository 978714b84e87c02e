package tasks_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/fundsight/tally/pkg/lifecycle"
	"github.com/fundsight/tally/pkg/tasks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubmit(t *testing.T) {
	t.Run("accepts queued task", func(t *testing.T) {
		d := tasks.New(1, 4, testLogger())

		ok := d.Submit(tasks.Task{Key: "a", Run: func(context.Context) error { return nil }})
		if !ok {
			t.Error("submit = false, want true")
		}
	})

	t.Run("rejects nil run", func(t *testing.T) {
		d := tasks.New(1, 4, testLogger())

		if d.Submit(tasks.Task{Key: "a"}) {
			t.Error("submit = true, want false for nil run")
		}
	})

	t.Run("deduplicates pending keys", func(t *testing.T) {
		d := tasks.New(1, 4, testLogger())
		run := func(context.Context) error { return nil }

		if !d.Submit(tasks.Task{Key: "a", Run: run}) {
			t.Fatal("first submit rejected")
		}
		if d.Submit(tasks.Task{Key: "a", Run: run}) {
			t.Error("duplicate key accepted")
		}
		if !d.Submit(tasks.Task{Key: "b", Run: run}) {
			t.Error("distinct key rejected")
		}
	})

	t.Run("rejects when queue is full", func(t *testing.T) {
		d := tasks.New(1, 2, testLogger())
		run := func(context.Context) error { return nil }

		if !d.Submit(tasks.Task{Key: "a", Run: run}) {
			t.Fatal("first submit rejected")
		}
		if !d.Submit(tasks.Task{Key: "b", Run: run}) {
			t.Fatal("second submit rejected")
		}
		if d.Submit(tasks.Task{Key: "c", Run: run}) {
			t.Error("submit over capacity accepted")
		}
	})
}

func TestDispatcherRun(t *testing.T) {
	t.Run("executes submitted tasks", func(t *testing.T) {
		d := tasks.New(2, 8, testLogger())
		lc := lifecycle.New()

		if err := d.Start(lc); err != nil {
			t.Fatalf("start: %v", err)
		}

		done := make(chan string, 2)
		for _, key := range []string{"a", "b"} {
			key := key
			ok := d.Submit(tasks.Task{Key: key, Run: func(context.Context) error {
				done <- key
				return nil
			}})
			if !ok {
				t.Fatalf("submit %s rejected", key)
			}
		}

		seen := map[string]bool{}
		for range 2 {
			select {
			case key := <-done:
				seen[key] = true
			case <-time.After(2 * time.Second):
				t.Fatalf("timed out, ran %v", seen)
			}
		}
		if !seen["a"] || !seen["b"] {
			t.Errorf("ran = %v, want both tasks", seen)
		}

		if err := lc.Shutdown(time.Second); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})

	t.Run("key is reusable after completion", func(t *testing.T) {
		d := tasks.New(1, 4, testLogger())
		lc := lifecycle.New()

		if err := d.Start(lc); err != nil {
			t.Fatalf("start: %v", err)
		}

		run := func(done chan struct{}) func(context.Context) error {
			return func(context.Context) error {
				close(done)
				return nil
			}
		}

		first := make(chan struct{})
		if !d.Submit(tasks.Task{Key: "a", Run: run(first)}) {
			t.Fatal("first submit rejected")
		}

		select {
		case <-first:
		case <-time.After(2 * time.Second):
			t.Fatal("first task did not run")
		}

		// The worker releases the key after Run returns; poll briefly.
		deadline := time.Now().Add(2 * time.Second)
		second := make(chan struct{})
		for {
			if d.Submit(tasks.Task{Key: "a", Run: run(second)}) {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("key never released")
			}
			time.Sleep(10 * time.Millisecond)
		}

		select {
		case <-second:
		case <-time.After(2 * time.Second):
			t.Fatal("second task did not run")
		}

		if err := lc.Shutdown(time.Second); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})

	t.Run("failed task does not stop the worker", func(t *testing.T) {
		d := tasks.New(1, 4, testLogger())
		lc := lifecycle.New()

		if err := d.Start(lc); err != nil {
			t.Fatalf("start: %v", err)
		}

		if !d.Submit(tasks.Task{Key: "bad", Run: func(context.Context) error {
			return errors.New("boom")
		}}) {
			t.Fatal("submit rejected")
		}

		done := make(chan struct{})
		deadline := time.Now().Add(2 * time.Second)
		for {
			if d.Submit(tasks.Task{Key: "good", Run: func(context.Context) error {
				close(done)
				return nil
			}}) {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("submit never accepted")
			}
			time.Sleep(10 * time.Millisecond)
		}

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("worker stopped after failure")
		}

		if err := lc.Shutdown(time.Second); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})

	t.Run("shutdown waits for workers", func(t *testing.T) {
		d := tasks.New(1, 4, testLogger())
		lc := lifecycle.New()

		if err := d.Start(lc); err != nil {
			t.Fatalf("start: %v", err)
		}

		started := make(chan struct{})
		if !d.Submit(tasks.Task{Key: "slow", Run: func(context.Context) error {
			close(started)
			time.Sleep(100 * time.Millisecond)
			return nil
		}}) {
			t.Fatal("submit rejected")
		}

		<-started
		if err := lc.Shutdown(2 * time.Second); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})
}

func TestNewRaisesInvalidSizes(t *testing.T) {
	d := tasks.New(0, 0, testLogger())

	// A single-slot queue still accepts one task.
	if !d.Submit(tasks.Task{Key: "a", Run: func(context.Context) error { return nil }}) {
		t.Error("submit rejected on minimum-size dispatcher")
	}
	if d.Submit(tasks.Task{Key: "b", Run: func(context.Context) error { return nil }}) {
		t.Error("second submit accepted on single-slot queue")
	}
}
