package core

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func component(r *recorder, name string, startErr, stopErr error) Hook {
	return Hook{
		ID: name,
		OnStart: func(context.Context) error {
			r.add("start " + name)
			return startErr
		},
		OnStop: func(context.Context) error {
			r.add("stop " + name)
			return stopErr
		},
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestApp_StartStopOrder(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	app := NewApp(testLogger())
	app.Add(component(rec, "a", nil, nil), component(rec, "b", nil, nil), component(rec, "c", nil, nil))

	if err := app.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := app.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	want := []string{"start a", "start b", "start c", "stop c", "stop b", "stop a"}
	if got := rec.get(); !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}

	// A second Stop is a no-op.
	if err := app.Stop(context.Background()); err != nil {
		t.Errorf("second Stop: %v", err)
	}
	if got := rec.get(); len(got) != len(want) {
		t.Errorf("second Stop ran components again: %v", got)
	}
}

func TestApp_StartFailureRollsBack(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	boom := errors.New("boom")
	app := NewApp(testLogger())
	app.Add(component(rec, "a", nil, nil), component(rec, "b", boom, nil), component(rec, "c", nil, nil))

	err := app.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if !strings.Contains(err.Error(), "starting b") {
		t.Errorf("error should name the component: %v", err)
	}

	want := []string{"start a", "start b", "stop a"}
	if got := rec.get(); !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestApp_StopJoinsErrors(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	e1, e2 := errors.New("e1"), errors.New("e2")
	app := NewApp(testLogger())
	app.Add(component(rec, "a", nil, e1), component(rec, "b", nil, e2))

	if err := app.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	err := app.Stop(context.Background())
	if !errors.Is(err, e1) || !errors.Is(err, e2) {
		t.Errorf("err = %v, want both stop errors", err)
	}
	if got := rec.get(); !slices.Equal(got, []string{"start a", "start b", "stop b", "stop a"}) {
		t.Errorf("every component should be stopped despite errors: %v", got)
	}
}

func TestApp_StopHonoursTimeout(t *testing.T) {
	t.Parallel()

	app := NewApp(testLogger(), WithShutdownTimeout(20*time.Millisecond))
	app.Add(Hook{
		ID: "slow",
		OnStop: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	if err := app.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	err := app.Stop(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Stop did not respect the shutdown timeout")
	}
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	app := NewApp(testLogger())
	app.Add(component(rec, "a", nil, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for len(rec.get()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("component never started")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	if got := rec.get(); !slices.Equal(got, []string{"start a", "stop a"}) {
		t.Errorf("events = %v", got)
	}
}

func TestCloser(t *testing.T) {
	t.Parallel()

	closed := false
	c := Closer("db", func() error { closed = true; return nil })
	if c.Name() != "db" {
		t.Errorf("Name() = %q", c.Name())
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Stop(context.Background()); err != nil || !closed {
		t.Errorf("Stop: err=%v closed=%v", err, closed)
	}
}
