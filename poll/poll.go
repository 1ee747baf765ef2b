// Package poll re-evaluates a predicate until it succeeds, fails or is
// canceled. Evaluations are paced either at display-refresh rate or at a
// fixed interval. Log lines emitted by the predicate flow through a bounded
// channel that the consumer drains at its own pace.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/domlocator/idgen"
	"golang.org/x/time/rate"
)

// ErrCanceled is the result of a poll stopped by Cancel.
var ErrCanceled = errors.New("poll: canceled")

// Frame is the pacing of a raf poll.
const Frame = time.Second / 60

const defaultLogBuffer = 64

// Progress is handed to the predicate on every evaluation.
type Progress struct {
	ctx      context.Context
	canceled atomic.Bool
	logs     chan string
	dropped  atomic.Int64
	last     string
}

// Canceled reports whether the poll was canceled.
func (p *Progress) Canceled() bool { return p.canceled.Load() }

// Context is done when the poll ends, is canceled or its parent context is
// done. Blocking work inside the predicate should run under it.
func (p *Progress) Context() context.Context { return p.ctx }

// Log queues a line for the consumer. When the buffer is full the oldest line
// is dropped.
func (p *Progress) Log(msg string) {
	p.last = msg
	for {
		select {
		case p.logs <- msg:
			return
		default:
		}
		select {
		case <-p.logs:
			p.dropped.Add(1)
		default:
		}
	}
}

// LogRepeating logs msg unless it repeats the previous line.
func (p *Progress) LogRepeating(msg string) {
	if msg != p.last {
		p.Log(msg)
	}
}

// Predicate is evaluated until ok is true or err is non-nil.
type Predicate[T any] func(p *Progress) (value T, ok bool, err error)

// Poll is a running poll.
type Poll[T any] struct {
	ID string

	progress *Progress
	stop     context.CancelFunc
	done     chan struct{}
	once     sync.Once
	value    T
	err      error
}

type config struct {
	logBuffer int
	ids       idgen.Generator
	logger    *slog.Logger
}

// Option configures a poll.
type Option func(*config)

// WithLogBuffer bounds the number of undelivered log lines.
func WithLogBuffer(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.logBuffer = n
		}
	}
}

// WithIDGenerator sets the generator of poll ids.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(c *config) { c.ids = gen }
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// Raf polls once per display frame.
func Raf[T any](ctx context.Context, pred Predicate[T], opts ...Option) *Poll[T] {
	return Start(ctx, rate.NewLimiter(rate.Every(Frame), 1), pred, opts...)
}

// Interval polls every d.
func Interval[T any](ctx context.Context, d time.Duration, pred Predicate[T], opts ...Option) *Poll[T] {
	return Start(ctx, rate.NewLimiter(rate.Every(d), 1), pred, opts...)
}

// Start evaluates pred immediately, then every time limiter grants a token.
// The poll ends with the first success or error, on Cancel, or when ctx is
// done.
func Start[T any](ctx context.Context, limiter *rate.Limiter, pred Predicate[T], opts ...Option) *Poll[T] {
	cfg := config{logBuffer: defaultLogBuffer, ids: idgen.Prefixed("poll_", idgen.Default)}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	ctx, stop := context.WithCancel(ctx)
	p := &Poll[T]{
		ID:       cfg.ids(),
		progress: &Progress{ctx: ctx, logs: make(chan string, cfg.logBuffer)},
		stop:     stop,
		done:     make(chan struct{}),
	}
	go p.run(ctx, limiter, pred, cfg.logger)
	return p
}

func (p *Poll[T]) run(ctx context.Context, limiter *rate.Limiter, pred Predicate[T], logger *slog.Logger) {
	defer p.stop()
	defer close(p.done)
	defer close(p.progress.logs)

	evaluations := 0
	for {
		if err := limiter.Wait(ctx); err != nil {
			p.err = ctx.Err()
			break
		}
		if p.progress.Canceled() {
			p.err = ErrCanceled
			break
		}
		evaluations++
		v, ok, err := pred(p.progress)
		if err != nil {
			p.err = err
			break
		}
		if ok {
			p.value = v
			break
		}
	}
	if p.progress.Canceled() && p.err != nil && !errors.Is(p.err, ErrCanceled) {
		p.err = ErrCanceled
	}
	logger.Debug("poll: done", "id", p.ID, "evaluations", evaluations,
		"dropped_logs", p.progress.dropped.Load(), "error", p.err)
}

// Cancel stops the poll before its next evaluation. It is safe to call more
// than once and after completion.
func (p *Poll[T]) Cancel() {
	p.once.Do(func() {
		p.progress.canceled.Store(true)
		p.stop()
	})
}

// Done is closed when the poll has ended.
func (p *Poll[T]) Done() <-chan struct{} { return p.done }

// Result waits for the poll to end and returns its value, or gives up when
// ctx is done without canceling the poll.
func (p *Poll[T]) Result(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Logs delivers log lines in order. It is closed when the poll ends.
func (p *Poll[T]) Logs() <-chan string { return p.progress.logs }

// TakeLogs drains the lines queued so far without waiting.
func (p *Poll[T]) TakeLogs() []string {
	var out []string
	for {
		select {
		case line, ok := <-p.progress.logs:
			if !ok {
				return out
			}
			out = append(out, line)
		default:
			return out
		}
	}
}

// Dropped is the number of log lines discarded because the buffer was full.
func (p *Poll[T]) Dropped() int64 { return p.progress.dropped.Load() }
