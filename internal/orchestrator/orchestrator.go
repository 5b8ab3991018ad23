// Package orchestrator drives the backlog one item at a time through
// generation, writing, registration and verification, isolating per-item
// failures and persisting completion after every success.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/calcforge/internal/artifact"
	"github.com/kingrea/calcforge/internal/backlog"
	"github.com/kingrea/calcforge/internal/generation"
	"github.com/kingrea/calcforge/internal/logging"
	"github.com/kingrea/calcforge/internal/progress"
	"github.com/kingrea/calcforge/internal/safety"
	"github.com/kingrea/calcforge/internal/workitem"
)

// ErrInterrupted is returned when the run stopped on cancellation after
// flushing progress.
var ErrInterrupted = errors.New("orchestrator: interrupted")

// Generator produces content for one item.
type Generator interface {
	Run(ctx context.Context, item workitem.Item) (generation.Outcome, error)
}

// Writer writes the artifact set for one item.
type Writer interface {
	Write(item workitem.Item, content string) (artifact.Set, error)
}

// Registrar adds a written package to the catalog.
type Registrar interface {
	Register(item workitem.Item, dir string) (bool, error)
}

// Verifier checks a written package on disk.
type Verifier interface {
	Verify(dir string, item workitem.Item) error
}

// Deps are the collaborators every run needs.
type Deps struct {
	Checklist string
	Progress  progress.Store
	Generator Generator
	Writer    Writer
	Guard     safety.Checker
	Registrar Registrar
	Verifier  Verifier
}

// Orchestrator runs the batch.
type Orchestrator struct {
	deps     Deps
	log      *logging.Logger
	pause    time.Duration
	sleep    generation.Sleeper
	observer Observer
	now      func() time.Time
	newRunID func() string
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the run log.
func WithLogger(log *logging.Logger) Option {
	return func(o *Orchestrator) {
		o.log = log
	}
}

// WithPause sets the fixed delay between processed items.
func WithPause(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.pause = d
	}
}

// WithSleeper overrides how the pause is waited out.
func WithSleeper(s generation.Sleeper) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.sleep = s
		}
	}
}

// WithObserver receives run events.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

// WithClock overrides event timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New validates deps and builds an orchestrator.
func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	switch {
	case deps.Checklist == "":
		return nil, fmt.Errorf("orchestrator: checklist path is required")
	case deps.Progress == nil:
		return nil, fmt.Errorf("orchestrator: progress store is required")
	case deps.Generator == nil:
		return nil, fmt.Errorf("orchestrator: generator is required")
	case deps.Writer == nil:
		return nil, fmt.Errorf("orchestrator: writer is required")
	case deps.Guard == nil:
		return nil, fmt.Errorf("orchestrator: safety guard is required")
	case deps.Registrar == nil:
		return nil, fmt.Errorf("orchestrator: registrar is required")
	case deps.Verifier == nil:
		return nil, fmt.Errorf("orchestrator: verifier is required")
	}
	o := &Orchestrator{
		deps:     deps,
		sleep:    generation.SleepContext,
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run processes the backlog to the end. Per-item failures are logged and
// counted; safety violations and progress persistence failures abort the
// run. On cancellation progress is flushed and ErrInterrupted returned.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: o.newRunID()}
	o.log.Info("run %s: starting", summary.RunID)

	state, err := o.deps.Progress.Load()
	if err != nil {
		o.log.Warn("run %s: progress unreadable, starting empty: %v", summary.RunID, err)
		state = progress.State{}
	}

	bl, err := backlog.Load(o.deps.Checklist)
	if err != nil {
		return summary, err
	}
	for _, skipped := range bl.Skipped {
		o.log.Warn("%s: %s: withheld (line %d): %s", skipped.Name, StageFetch, skipped.Line, skipped.Reason)
	}
	summary.Total = len(bl.Items)
	summary.Withheld = len(bl.Skipped)
	o.emit(Event{Kind: EventBacklog, RunID: summary.RunID, Total: summary.Total, Withheld: bl.Skipped})
	if len(bl.Items) == 0 {
		o.log.Info("run %s: backlog is empty", summary.RunID)
	}

	for i, item := range bl.Items {
		if ctx.Err() != nil {
			return summary, o.interrupt(state, summary)
		}
		base := Event{RunID: summary.RunID, Item: item, Index: i, Total: summary.Total}
		if state.IsCompleted(item.Name) {
			summary.Skipped++
			o.log.Info("%s: %s: already completed, skipping", item.Name, StageFetch)
			o.emit(with(base, EventItemSkipped))
			continue
		}

		o.emit(with(base, EventItemStarted))
		outcome, stage, err := o.process(ctx, item, base)
		switch {
		case err != nil && ctx.Err() != nil:
			return summary, o.interrupt(state, summary)
		case safety.IsViolation(err):
			o.log.Error("%s: %s: %v", item.Name, stage, err)
			return summary, fmt.Errorf("orchestrator: %s: %w", item.Name, err)
		case err != nil:
			summary.Failed++
			o.log.Error("%s: %s: %v", item.Name, stage, err)
			failed := with(base, EventItemFailed)
			failed.Stage = stage
			failed.Reason = err.Error()
			o.emit(failed)
		default:
			state.MarkCompleted(item.Name)
			if err := o.deps.Progress.Save(state); err != nil {
				o.log.Error("%s: %s: %v", item.Name, StageComplete, err)
				return summary, fmt.Errorf("orchestrator: %w", err)
			}
			if _, err := backlog.MarkDone(o.deps.Checklist, item.Name, outcome.State.String()); err != nil {
				o.log.Warn("%s: %s: checklist not updated: %v", item.Name, StageComplete, err)
			}
			summary.Completed++
			if outcome.State == generation.StateFallbackUsed {
				summary.Fallbacks++
			}
			o.log.Info("%s: %s: done (%s after %d attempts)", item.Name, StageComplete, outcome.State, outcome.Attempts)
			done := with(base, EventItemDone)
			done.Outcome = outcome.State.String()
			done.Attempts = outcome.Attempts
			o.emit(done)
		}

		if i < len(bl.Items)-1 && o.pause > 0 {
			if err := o.sleep(ctx, o.pause); err != nil {
				return summary, o.interrupt(state, summary)
			}
		}
	}

	o.log.Info("run %s: finished: %d completed, %d skipped, %d failed, %d fallbacks", summary.RunID, summary.Completed, summary.Skipped, summary.Failed, summary.Fallbacks)
	o.emit(Event{Kind: EventFinished, RunID: summary.RunID, Total: summary.Total, Summary: summary})
	return summary, nil
}

// process moves one item through every stage. It returns the stage that
// failed alongside the error.
func (o *Orchestrator) process(ctx context.Context, item workitem.Item, base Event) (generation.Outcome, Stage, error) {
	o.enter(base, StageGenerate)
	outcome, err := o.deps.Generator.Run(ctx, item)
	if err != nil {
		return outcome, StageGenerate, err
	}
	if outcome.State == generation.StateFallbackUsed {
		o.log.Warn("%s: %s: fallback content used", item.Name, StageGenerate)
	}

	o.enter(base, StageWrite)
	set, err := o.deps.Writer.Write(item, outcome.Content)
	if err != nil {
		return outcome, StageWrite, err
	}

	o.enter(base, StageSafety)
	if err := o.deps.Guard.AssertSafe(set.Dir); err != nil {
		return outcome, StageSafety, err
	}
	for _, name := range set.Written {
		if err := o.deps.Guard.AssertSafe(filepath.Join(set.Dir, name)); err != nil {
			return outcome, StageSafety, err
		}
	}

	o.enter(base, StageRegister)
	changed, err := o.deps.Registrar.Register(item, set.Dir)
	if err != nil {
		return outcome, StageRegister, err
	}
	if !changed {
		o.log.Info("%s: %s: already registered", item.Name, StageRegister)
	}

	o.enter(base, StageVerify)
	if err := o.deps.Verifier.Verify(set.Dir, item); err != nil {
		return outcome, StageVerify, err
	}
	return outcome, StageComplete, nil
}

func (o *Orchestrator) enter(base Event, stage Stage) {
	ev := with(base, EventStage)
	ev.Stage = stage
	o.emit(ev)
}

// interrupt flushes progress synchronously. A failed flush is reported
// together with the interruption.
func (o *Orchestrator) interrupt(state progress.State, summary Summary) error {
	o.log.Warn("run %s: interrupted, flushing progress", summary.RunID)
	if err := o.deps.Progress.Save(state); err != nil {
		o.log.Error("run %s: flush progress: %v", summary.RunID, err)
		return fmt.Errorf("%w: %v", ErrInterrupted, err)
	}
	o.emit(Event{Kind: EventFinished, RunID: summary.RunID, Total: summary.Total, Summary: summary, Reason: "interrupted"})
	return ErrInterrupted
}

func (o *Orchestrator) emit(ev Event) {
	if o.observer == nil {
		return
	}
	ev.At = o.now()
	o.observer(ev)
}

func with(base Event, kind EventKind) Event {
	base.Kind = kind
	return base
}
