package metrics

import (
	"strings"
	"time"

	"github.com/tturner/udsinfo/internal/vehicleinfo"
)

// Outcome classes
const (
	OutcomeOK        = "ok"
	OutcomeNegative  = "nrc"
	OutcomeException = "exception"
)

// Recorder turns reader notifications into metrics.
type Recorder struct {
	sink   *Sink
	writer *Writer
	target string
	now    func() time.Time
}

// NewRecorder records reads against target into sink and, when writer is
// non-nil, streams each metric to it.
func NewRecorder(sink *Sink, writer *Writer, target string) *Recorder {
	return &Recorder{sink: sink, writer: writer, target: target, now: time.Now}
}

func (r *Recorder) ReadStarted(spec vehicleinfo.IdentifierSpec) {}

func (r *Recorder) ReadFinished(spec vehicleinfo.IdentifierSpec, outcome vehicleinfo.Outcome, elapsed time.Duration) {
	m := Metric{
		Timestamp: r.now(),
		Target:    r.target,
		Field:     spec.Field,
		DID:       spec.DID,
		Success:   outcome.OK(),
		RTTMs:     float64(elapsed) / float64(time.Millisecond),
		Outcome:   classify(outcome),
	}
	if !outcome.OK() {
		m.Error = outcome.String()
	}
	r.sink.Record(m)
	if r.writer != nil {
		// write errors surface from Writer.Close
		_ = r.writer.WriteMetric(m)
	}
}

func classify(outcome vehicleinfo.Outcome) string {
	switch {
	case outcome.OK():
		return OutcomeOK
	case strings.HasPrefix(outcome.String(), vehicleinfo.NegativeResponsePrefix):
		return OutcomeNegative
	default:
		return OutcomeException
	}
}
