// Package tui renders a running batch as a bubbletea progress view. It only
// reads orchestrator events from a channel; the pipeline never waits on it
// beyond the channel send.
package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/calcforge/internal/logging"
	"github.com/kingrea/calcforge/internal/orchestrator"
)

const (
	maxResults = 10
	logLines   = 6
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")).MarginBottom(1)
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	skipStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	fallStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).MarginTop(1)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
	logHeadStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
)

type eventMsg orchestrator.Event

type closedMsg struct{}

func waitForEvent(events <-chan orchestrator.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

type result struct {
	name   string
	label  string
	style  lipgloss.Style
	detail string
}

// Progress is the bubbletea model for one run.
type Progress struct {
	events  <-chan orchestrator.Event
	cancel  context.CancelFunc
	log     *logging.Logger
	spinner spinner.Model
	width   int

	runID    string
	total    int
	index    int
	withheld int
	current  string
	stage    orchestrator.Stage
	results  []result
	summary  orchestrator.Summary
	finished bool
	status   string
}

// NewProgress builds the view. cancel is invoked when the user presses
// ctrl+c or q so the run can flush and stop.
func NewProgress(events <-chan orchestrator.Event, cancel context.CancelFunc, log *logging.Logger) *Progress {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))
	return &Progress{
		events:  events,
		cancel:  cancel,
		log:     log,
		spinner: s,
		status:  "Loading backlog...",
	}
}

// Init starts the spinner and the event pump.
func (p *Progress) Init() tea.Cmd {
	return tea.Batch(p.spinner.Tick, waitForEvent(p.events))
}

// Update folds one message into the view.
func (p *Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if p.cancel != nil {
				p.cancel()
			}
			p.status = "Interrupting, flushing progress..."
		}
		return p, nil
	case tea.WindowSizeMsg:
		p.width = msg.Width
		return p, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd
	case eventMsg:
		p.apply(orchestrator.Event(msg))
		return p, waitForEvent(p.events)
	case closedMsg:
		p.finished = true
		return p, tea.Quit
	}
	return p, nil
}

func (p *Progress) apply(ev orchestrator.Event) {
	p.runID = ev.RunID
	switch ev.Kind {
	case orchestrator.EventBacklog:
		p.total = ev.Total
		p.withheld = len(ev.Withheld)
		p.status = fmt.Sprintf("%d item(s) queued, %d withheld", ev.Total, len(ev.Withheld))
	case orchestrator.EventItemStarted:
		p.index = ev.Index + 1
		p.current = ev.Item.Name
		p.stage = orchestrator.StageFetch
	case orchestrator.EventStage:
		p.stage = ev.Stage
	case orchestrator.EventItemDone:
		style, label := doneStyle, "done"
		if ev.Outcome == "fallback" {
			style, label = fallStyle, "fallback"
		}
		p.push(result{name: ev.Item.Name, label: label, style: style, detail: fmt.Sprintf("%s · %d attempt(s)", ev.Item.Category, ev.Attempts)})
		p.current = ""
	case orchestrator.EventItemFailed:
		p.push(result{name: ev.Item.Name, label: "failed", style: failStyle, detail: fmt.Sprintf("%s: %s", ev.Stage, ev.Reason)})
		p.current = ""
	case orchestrator.EventItemSkipped:
		p.index = ev.Index + 1
		p.push(result{name: ev.Item.Name, label: "skipped", style: skipStyle, detail: "already completed"})
	case orchestrator.EventFinished:
		p.summary = ev.Summary
		p.current = ""
		if ev.Reason != "" {
			p.status = "Run " + ev.Reason
		} else {
			p.status = "Run finished"
		}
	}
}

func (p *Progress) push(r result) {
	p.results = append(p.results, r)
	if len(p.results) > maxResults {
		p.results = p.results[len(p.results)-maxResults:]
	}
}

// View renders the board.
func (p *Progress) View() string {
	width := max(40, p.width-2)
	header := headerStyle.Render("⬡ CALCFORGE")

	var lines []string
	if p.runID != "" {
		lines = append(lines, detailStyle.Render("run "+p.runID))
	}
	lines = append(lines, fmt.Sprintf("Item %d/%d", p.index, p.total))
	if p.current != "" {
		lines = append(lines, fmt.Sprintf("%s %s · %s", p.spinner.View(), p.current, p.stage))
	}
	if len(p.results) > 0 {
		lines = append(lines, "")
		for _, r := range p.results {
			lines = append(lines, fmt.Sprintf("%s %s %s", r.style.Render(fmt.Sprintf("%-8s", r.label)), r.name, detailStyle.Render(r.detail)))
		}
	}
	if p.summary.RunID != "" {
		lines = append(lines, "", fmt.Sprintf("%d completed · %d skipped · %d failed · %d fallback(s)",
			p.summary.Completed, p.summary.Skipped, p.summary.Failed, p.summary.Fallbacks))
	}
	sections := []string{header, boxStyle.Width(width).Render(strings.Join(lines, "\n"))}
	if panel := p.logPanel(width); panel != "" {
		sections = append(sections, panel)
	}
	sections = append(sections, footerStyle.Render(p.status))
	return strings.Join(sections, "\n")
}

func (p *Progress) logPanel(width int) string {
	if p.log == nil {
		return ""
	}
	tail := p.log.Tail(logLines)
	if len(tail) == 0 {
		return ""
	}
	head := logHeadStyle.Render("LOG · " + filepath.Base(p.log.Path()))
	return boxStyle.Width(width).Render(head + "\n" + detailStyle.Render(strings.Join(tail, "\n")))
}

// Finished reports whether the event stream has closed.
func (p *Progress) Finished() bool {
	return p.finished
}
