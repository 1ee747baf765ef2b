package poll

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestInterval_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	p := Interval(context.Background(), time.Millisecond, func(pr *Progress) (string, bool, error) {
		calls++
		pr.Log("attempt")
		return "found", calls == 3, nil
	})

	got, err := p.Result(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "found" {
		t.Fatalf("got %q, want found", got)
	}
	if calls != 3 {
		t.Fatalf("calls: got %d, want 3", calls)
	}

	var lines []string
	for line := range p.Logs() {
		lines = append(lines, line)
	}
	if len(lines) != 3 {
		t.Fatalf("logs: got %v", lines)
	}
}

func TestRaf_FirstEvaluationIsImmediate(t *testing.T) {
	start := time.Now()
	p := Raf(context.Background(), func(*Progress) (int, bool, error) { return 7, true, nil })
	got, err := p.Result(context.Background())
	if err != nil || got != 7 {
		t.Fatalf("got %d, %v", got, err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("first evaluation waited for a frame")
	}
}

func TestCancel(t *testing.T) {
	var calls atomic.Int64
	p := Interval(context.Background(), 5*time.Millisecond, func(*Progress) (bool, bool, error) {
		calls.Add(1)
		return false, false, nil
	})
	time.Sleep(20 * time.Millisecond)
	p.Cancel()
	p.Cancel()

	_, err := p.Result(context.Background())
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("got %v, want ErrCanceled", err)
	}
	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != after {
		t.Fatal("predicate evaluated after cancel")
	}
}

func TestCancel_SeenByPredicate(t *testing.T) {
	var p *Poll[int]
	started := make(chan struct{})
	release := make(chan struct{})
	var sawCancel atomic.Bool
	p = Interval(context.Background(), time.Millisecond, func(pr *Progress) (int, bool, error) {
		close(started)
		<-release
		sawCancel.Store(pr.Canceled())
		return 1, true, nil
	})
	<-started
	p.Cancel()
	close(release)

	got, err := p.Result(context.Background())
	if err != nil || got != 1 {
		t.Fatalf("an evaluation in flight completes: got %d, %v", got, err)
	}
	if !sawCancel.Load() {
		t.Fatal("predicate should observe the flag")
	}
}

func TestProgressContext_DoneOnCancel(t *testing.T) {
	entered := make(chan struct{})
	p := Interval(context.Background(), time.Millisecond, func(pr *Progress) (int, bool, error) {
		close(entered)
		<-pr.Context().Done()
		return 0, false, pr.Context().Err()
	})
	<-entered
	p.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := p.Result(ctx); !errors.Is(err, ErrCanceled) {
		t.Fatalf("got %v, want ErrCanceled", err)
	}
}

func TestPredicateError(t *testing.T) {
	boom := errors.New("boom")
	p := Interval(context.Background(), time.Millisecond, func(*Progress) (int, bool, error) {
		return 0, false, boom
	})
	if _, err := p.Result(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
}

func TestContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Interval(ctx, time.Hour, func(*Progress) (int, bool, error) { return 0, false, nil })
	cancel()
	if _, err := p.Result(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestResult_CallerGivesUp(t *testing.T) {
	p := Interval(context.Background(), time.Hour, func(*Progress) (int, bool, error) { return 0, false, nil })
	defer p.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := p.Result(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want DeadlineExceeded", err)
	}
	select {
	case <-p.Done():
		t.Fatal("giving up on the result must not end the poll")
	default:
	}
}

func TestLogs_DropOldest(t *testing.T) {
	p := Interval(context.Background(), time.Millisecond, func(pr *Progress) (int, bool, error) {
		pr.Log("a")
		pr.Log("b")
		pr.Log("c")
		return 1, true, nil
	}, WithLogBuffer(2))
	if _, err := p.Result(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := p.TakeLogs()
	if strings.Join(got, ",") != "b,c" {
		t.Fatalf("got %v, want [b c]", got)
	}
	if p.Dropped() != 1 {
		t.Fatalf("dropped: got %d, want 1", p.Dropped())
	}
}

func TestLogRepeating(t *testing.T) {
	calls := 0
	p := Interval(context.Background(), time.Millisecond, func(pr *Progress) (int, bool, error) {
		calls++
		pr.LogRepeating("waiting")
		if calls == 2 {
			pr.LogRepeating("almost")
		}
		return calls, calls == 3, nil
	})
	if _, err := p.Result(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := p.TakeLogs()
	if strings.Join(got, ",") != "waiting,almost,waiting" {
		t.Fatalf("got %v", got)
	}
}

func TestIDs(t *testing.T) {
	p := Raf(context.Background(), func(*Progress) (int, bool, error) { return 0, true, nil })
	if !strings.HasPrefix(p.ID, "poll_") {
		t.Fatalf("got %q", p.ID)
	}
	q := Raf(context.Background(), func(*Progress) (int, bool, error) { return 0, true, nil },
		WithIDGenerator(func() string { return "fixed" }))
	if q.ID != "fixed" {
		t.Fatalf("got %q", q.ID)
	}
}
