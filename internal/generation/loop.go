package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/kingrea/calcforge/internal/fallback"
	"github.com/kingrea/calcforge/internal/logging"
	"github.com/kingrea/calcforge/internal/validate"
	"github.com/kingrea/calcforge/internal/workitem"
)

// DefaultMaxRetries bounds the attempts made before falling back.
const DefaultMaxRetries = 3

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// State is where the retry machine stands for one item.
type State int

const (
	StateAttempt State = iota
	StateAccepted
	StateFallbackUsed
)

func (s State) String() string {
	switch s {
	case StateAttempt:
		return "attempt"
	case StateAccepted:
		return "accepted"
	case StateFallbackUsed:
		return "fallback"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is the terminal result of Loop.Run. Content is usable in both
// terminal states.
type Outcome struct {
	State    State
	Content  string
	Attempts int
	Failures []string
}

// Validator is the acceptability gate applied to each candidate.
type Validator func(content, name string, category workitem.Category) validate.Verdict

// Fallback produces deterministic content once attempts are exhausted.
type Fallback func(name string, category workitem.Category) (string, error)

// Loop retries a Client until a candidate passes the Validator or
// maxRetries attempts have failed.
type Loop struct {
	client     Client
	maxRetries int
	backoff    time.Duration
	validate   Validator
	fallback   Fallback
	sleep      Sleeper
	log        *logging.Logger
}

// LoopOption customizes a Loop.
type LoopOption func(*Loop)

// WithValidator overrides the acceptability gate.
func WithValidator(v Validator) LoopOption {
	return func(l *Loop) {
		if v != nil {
			l.validate = v
		}
	}
}

// WithFallback overrides the fallback generator.
func WithFallback(f Fallback) LoopOption {
	return func(l *Loop) {
		if f != nil {
			l.fallback = f
		}
	}
}

// WithSleeper overrides how the loop waits out its backoff.
func WithSleeper(s Sleeper) LoopOption {
	return func(l *Loop) {
		if s != nil {
			l.sleep = s
		}
	}
}

// WithLogger records every failed attempt.
func WithLogger(log *logging.Logger) LoopOption {
	return func(l *Loop) {
		l.log = log
	}
}

// NewLoop builds a loop around client. maxRetries below 1 falls back to
// DefaultMaxRetries.
func NewLoop(client Client, maxRetries int, backoff time.Duration, opts ...LoopOption) *Loop {
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}
	l := &Loop{
		client:     client,
		maxRetries: maxRetries,
		backoff:    backoff,
		validate:   validate.Validate,
		fallback:   fallback.Generate,
		sleep:      SleepContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// MaxRetries reports the attempt budget.
func (l *Loop) MaxRetries() int {
	return l.maxRetries
}

// Run drives item through Attempt(1..maxRetries) to Accepted or
// FallbackUsed. It only returns an error when ctx is cancelled or the
// fallback cannot serve the item's category.
func (l *Loop) Run(ctx context.Context, item workitem.Item) (Outcome, error) {
	out := Outcome{State: StateAttempt}
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out.Attempts = n
		content, failure := l.attempt(ctx, item)
		if failure == nil {
			out.State = StateAccepted
			out.Content = content
			return out, nil
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out.Failures = append(out.Failures, fmt.Sprintf("attempt %d: %v", n, failure))
		l.log.Warn("%s: generate: attempt %d/%d failed: %v", item.Name, n, l.maxRetries, failure)
		if n >= l.maxRetries {
			break
		}
		if err := l.sleep(ctx, l.backoff); err != nil {
			return out, err
		}
	}

	content, err := l.fallback(item.Name, item.Category)
	if err != nil {
		return out, fmt.Errorf("generation: fallback for %s: %w", item.Name, err)
	}
	out.State = StateFallbackUsed
	out.Content = content
	l.log.Warn("%s: generate: using fallback after %d attempts", item.Name, out.Attempts)
	return out, nil
}

// attempt runs one generate+validate pass. Transport errors and rejected
// candidates are both reported as the failure.
func (l *Loop) attempt(ctx context.Context, item workitem.Item) (string, error) {
	if l.client == nil {
		return "", fmt.Errorf("generation: no client configured")
	}
	content, err := l.client.Generate(ctx, item)
	if err != nil {
		return "", err
	}
	if err := l.validate(content, item.Name, item.Category).Err(); err != nil {
		return "", err
	}
	return content, nil
}
