package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tturner/udsinfo/internal/report"
	"github.com/tturner/udsinfo/internal/vehicleinfo"
)

// ErrAborted is returned when the user quits before the read completes.
var ErrAborted = errors.New("read aborted")

// ReadFunc performs a read, reporting each identifier to observer.
type ReadFunc func(ctx context.Context, observer vehicleinfo.Observer) (*vehicleinfo.Record, error)

type rowState int

const (
	rowPending rowState = iota
	rowReading
	rowDone
)

type progressRow struct {
	spec    vehicleinfo.IdentifierSpec
	state   rowState
	outcome vehicleinfo.Outcome
	elapsed time.Duration
}

type readStartedMsg struct{ field string }

type readFinishedMsg struct {
	field   string
	outcome vehicleinfo.Outcome
	elapsed time.Duration
}

type readDoneMsg struct {
	record *vehicleinfo.Record
	err    error
}

// clipboardCopyMsg is sent after a clipboard copy operation.
type clipboardCopyMsg struct {
	err error
}

type progressModel struct {
	target  vehicleinfo.Target
	rows    []progressRow
	index   map[string]int
	started bool
	record  *vehicleinfo.Record
	err     error
	aborted bool
	status  string
	copy    func(string) error
}

func newProgressModel(target vehicleinfo.Target, table []vehicleinfo.IdentifierSpec) progressModel {
	m := progressModel{
		target: target,
		rows:   make([]progressRow, len(table)),
		index:  make(map[string]int, len(table)),
		copy:   writeClipboard,
	}
	for i, spec := range table {
		m.rows[i] = progressRow{spec: spec}
		m.index[spec.Field] = i
	}
	return m
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) done() bool {
	return m.record != nil || m.err != nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case readStartedMsg:
		m.started = true
		if i, ok := m.index[msg.field]; ok {
			m.rows[i].state = rowReading
		}
	case readFinishedMsg:
		if i, ok := m.index[msg.field]; ok {
			m.rows[i].state = rowDone
			m.rows[i].outcome = msg.outcome
			m.rows[i].elapsed = msg.elapsed
		}
	case readDoneMsg:
		m.record = msg.record
		m.err = msg.err
		if msg.err != nil {
			return m, tea.Quit
		}
	case clipboardCopyMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Copy failed: %v", msg.err)
		} else {
			m.status = "JSON copied to clipboard"
		}
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if !m.done() {
				m.aborted = true
			}
			return m, tea.Quit
		case "q", "esc", "enter":
			if m.done() {
				return m, tea.Quit
			}
		case "c":
			if m.record != nil {
				return m, copyRecord(m.record, m.copy)
			}
		}
	}
	return m, nil
}

func (m progressModel) View() string {
	s := report.DefaultStyles
	if m.record != nil {
		var b strings.Builder
		b.WriteString(report.RenderTable(m.target, m.record))
		b.WriteString("\n")
		if m.status != "" {
			b.WriteString(s.Success.Render(m.status))
			b.WriteString("\n")
		}
		b.WriteString(s.Dim.Render("c copy JSON • q quit"))
		b.WriteString("\n")
		return b.String()
	}

	var b strings.Builder
	b.WriteString(s.Title.Render(fmt.Sprintf("Reading ECU %s", m.target)))
	b.WriteString("\n\n")
	if !m.started {
		b.WriteString(s.Dim.Render("Connecting..."))
		b.WriteString("\n")
	}
	for _, row := range m.rows {
		b.WriteString(renderRow(row))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(s.Dim.Render("ctrl+c abort"))
	b.WriteString("\n")
	return b.String()
}

func renderRow(row progressRow) string {
	s := report.DefaultStyles
	label := fmt.Sprintf("%-26s", row.spec.Field)
	switch row.state {
	case rowReading:
		return s.Warning.Render("› ") + s.Value.Render(label) + s.Dim.Render(fmt.Sprintf("0x%04X", row.spec.DID))
	case rowDone:
		if row.outcome.OK() {
			return s.Success.Render("✓ ") + s.Value.Render(label) + s.Value.Render(row.outcome.String()) +
				s.Dim.Render(fmt.Sprintf("  %dms", row.elapsed.Milliseconds()))
		}
		return s.Error.Render("✗ ") + s.Value.Render(label) + s.Error.Render(row.outcome.String())
	default:
		return s.Dim.Render("· " + label)
	}
}

func copyRecord(record *vehicleinfo.Record, write func(string) error) tea.Cmd {
	return func() tea.Msg {
		data, err := report.MarshalEnvelope(record)
		if err != nil {
			return clipboardCopyMsg{err: err}
		}
		return clipboardCopyMsg{err: write(string(data))}
	}
}

type sender interface {
	Send(msg tea.Msg)
}

// progressObserver forwards read events to a running program.
type progressObserver struct {
	program sender
}

func (o progressObserver) ReadStarted(spec vehicleinfo.IdentifierSpec) {
	o.program.Send(readStartedMsg{field: spec.Field})
}

func (o progressObserver) ReadFinished(spec vehicleinfo.IdentifierSpec, outcome vehicleinfo.Outcome, elapsed time.Duration) {
	o.program.Send(readFinishedMsg{field: spec.Field, outcome: outcome, elapsed: elapsed})
}

// RunProgress runs read while showing per-identifier progress. Once the
// record is in, the table stays on screen until the user quits and can be
// copied to the clipboard as JSON.
func RunProgress(ctx context.Context, target vehicleinfo.Target, table []vehicleinfo.IdentifierSpec, read ReadFunc) (*vehicleinfo.Record, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		record *vehicleinfo.Record
		err    error
	}
	program := tea.NewProgram(newProgressModel(target, table))
	results := make(chan result, 1)
	go func() {
		record, err := read(ctx, progressObserver{program: program})
		results <- result{record: record, err: err}
		program.Send(readDoneMsg{record: record, err: err})
	}()

	final, err := program.Run()
	if err != nil {
		cancel()
		<-results
		return nil, err
	}
	if m, ok := final.(progressModel); ok && m.aborted {
		cancel()
		<-results
		return nil, ErrAborted
	}
	res := <-results
	return res.record, res.err
}
