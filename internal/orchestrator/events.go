package orchestrator

import (
	"time"

	"github.com/kingrea/calcforge/internal/backlog"
	"github.com/kingrea/calcforge/internal/workitem"
)

// Stage names one step of the per-item state machine.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageGenerate Stage = "generate"
	StageWrite    Stage = "write"
	StageSafety   Stage = "safety"
	StageRegister Stage = "register"
	StageVerify   Stage = "verify"
	StageComplete Stage = "complete"
)

// EventKind distinguishes observer events.
type EventKind string

const (
	EventBacklog     EventKind = "backlog"
	EventItemStarted EventKind = "item-started"
	EventStage       EventKind = "stage"
	EventItemDone    EventKind = "item-done"
	EventItemFailed  EventKind = "item-failed"
	EventItemSkipped EventKind = "item-skipped"
	EventFinished    EventKind = "finished"
)

// Event is an immutable snapshot of run progress. Observers receive values
// and never see pipeline state.
type Event struct {
	Kind     EventKind
	RunID    string
	At       time.Time
	Item     workitem.Item
	Index    int
	Total    int
	Stage    Stage
	Outcome  string
	Attempts int
	Reason   string
	Withheld []backlog.Skipped
	Summary  Summary
}

// Observer receives every event synchronously on the control goroutine.
type Observer func(Event)

// Summary totals one run.
type Summary struct {
	RunID     string
	Total     int
	Completed int
	Skipped   int
	Failed    int
	Fallbacks int
	Withheld  int
}
