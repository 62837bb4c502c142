// Package progress defines the events emitted while a mirror run executes
// and fans them out to sinks: the structured log, and the line-oriented
// callback consumed by front ends. Emission is synchronous; the pipeline
// produces a handful of lines per filing, so there is nothing to batch.
package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported run stages.
const (
	StageRunStart    Stage = "RUN_START"
	StageScanStart   Stage = "SCAN_START"
	StageScanDone    Stage = "SCAN_DONE"
	StageFilingOK    Stage = "FILING_OK"
	StageFilingFail  Stage = "FILING_FAIL"
	StageCompanyDone Stage = "COMPANY_DONE"
	StageRunDone     Stage = "RUN_DONE"
	StageNote        Stage = "NOTE"
)

// Event captures one milestone of a mirror run.
type Event struct {
	RunID uuid.UUID
	TS    time.Time
	Stage Stage

	CIK10       string
	AccessionNo string
	FilingDate  string

	// Files is the document count for filing completions.
	Files int
	// CompanyIndex/CompanyTotal scope per-company events to their position
	// in the run.
	CompanyIndex int
	CompanyTotal int
	// Note carries free-form context: the discovery source, an error text,
	// a summary line.
	Note string
}

// Line renders the event as a single human-readable line, the format the
// callback contract promises to front ends.
func (e Event) Line() string {
	switch e.Stage {
	case StageFilingOK:
		return fmt.Sprintf("OK  %s %s %s files=%d", e.CIK10, e.FilingDate, e.AccessionNo, e.Files)
	case StageFilingFail:
		return fmt.Sprintf("FAIL %s", e.Note)
	case StageScanStart:
		return fmt.Sprintf("[%d/%d] %s SCAN start", e.CompanyIndex, e.CompanyTotal, e.CIK10)
	case StageScanDone:
		return fmt.Sprintf("[%d/%d] %s targets=%d source=%s", e.CompanyIndex, e.CompanyTotal, e.CIK10, e.Files, e.Note)
	case StageCompanyDone:
		return fmt.Sprintf("[%d/%d] %s COMPANY_DONE %s", e.CompanyIndex, e.CompanyTotal, e.CIK10, e.Note)
	default:
		return e.Note
	}
}

// Sink consumes events; implementations must be safe for concurrent use.
type Sink interface {
	Consume(evt Event)
}

// Reporter stamps events with the run identity and fans them out to every
// sink. It is safe for concurrent use by the download workers.
type Reporter struct {
	runID uuid.UUID
	mu    sync.Mutex
	sinks []Sink
}

// NewReporter builds a Reporter with a fresh run ID.
func NewReporter(sinks ...Sink) *Reporter {
	return &Reporter{
		runID: uuid.New(),
		sinks: append([]Sink(nil), sinks...),
	}
}

// RunID identifies this run in logs and the summary.
func (r *Reporter) RunID() uuid.UUID { return r.runID }

// Emit stamps and delivers one event. A nil Reporter drops events, so
// components can report unconditionally.
func (r *Reporter) Emit(evt Event) {
	if r == nil {
		return
	}
	evt.RunID = r.runID
	if evt.TS.IsZero() {
		evt.TS = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sinks {
		if s != nil {
			s.Consume(evt)
		}
	}
}

// FuncSink adapts the line-oriented callback contract to the Sink
// interface.
type FuncSink func(line string)

// Consume renders and forwards the event line.
func (f FuncSink) Consume(evt Event) {
	if f != nil {
		f(evt.Line())
	}
}
