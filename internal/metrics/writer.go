package metrics

// Metrics output (CSV) and summary formatting

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"
)

var csvHeader = []string{
	"timestamp",
	"target",
	"field",
	"did",
	"success",
	"rtt_ms",
	"outcome",
	"error",
}

// Writer handles writing metrics to a CSV file
type Writer struct {
	csvFile   *os.File
	csvWriter *csv.Writer
	err       error
}

// NewWriter creates the CSV file and writes its header
func NewWriter(csvPath string) (*Writer, error) {
	file, err := os.Create(csvPath)
	if err != nil {
		return nil, fmt.Errorf("create CSV file: %w", err)
	}
	w := &Writer{csvFile: file, csvWriter: csv.NewWriter(file)}

	if err := w.csvWriter.Write(csvHeader); err != nil {
		file.Close()
		return nil, fmt.Errorf("write CSV header: %w", err)
	}
	w.csvWriter.Flush()
	return w, nil
}

// WriteMetric writes a single metric. The first failure is kept and
// returned again by Close.
func (w *Writer) WriteMetric(m Metric) error {
	if w.err != nil {
		return w.err
	}
	record := []string{
		m.Timestamp.UTC().Format(time.RFC3339Nano),
		m.Target,
		m.Field,
		fmt.Sprintf("0x%04X", m.DID),
		fmt.Sprintf("%t", m.Success),
		formatRTT(m.RTTMs),
		m.Outcome,
		m.Error,
	}
	if err := w.csvWriter.Write(record); err != nil {
		w.err = fmt.Errorf("write CSV record: %w", err)
		return w.err
	}
	w.csvWriter.Flush()
	if err := w.csvWriter.Error(); err != nil {
		w.err = fmt.Errorf("flush CSV record: %w", err)
	}
	return w.err
}

// Close flushes and closes the file
func (w *Writer) Close() error {
	w.csvWriter.Flush()
	errs := []error{w.err, w.csvWriter.Error(), w.csvFile.Close()}

	var msgs []string
	for _, err := range errs {
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	if len(msgs) > 0 {
		return fmt.Errorf("close writer: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// formatRTT formats RTT value for CSV (empty string if 0)
func formatRTT(rtt float64) string {
	if rtt == 0 {
		return ""
	}
	return fmt.Sprintf("%.3f", rtt)
}

// FormatSummary formats a summary for human-readable output
func FormatSummary(summary *Summary) string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Total Reads: %d\n", summary.TotalReads)
	if summary.TotalReads == 0 {
		return buf.String()
	}
	fmt.Fprintf(&buf, "Successful: %d (%.1f%%)\n",
		summary.SuccessfulOps,
		float64(summary.SuccessfulOps)/float64(summary.TotalReads)*100)
	fmt.Fprintf(&buf, "Failed: %d (%.1f%%)\n",
		summary.FailedOps,
		float64(summary.FailedOps)/float64(summary.TotalReads)*100)

	if summary.NegativeCount > 0 {
		fmt.Fprintf(&buf, "Negative Responses: %d\n", summary.NegativeCount)
	}
	if summary.TimeoutCount > 0 {
		fmt.Fprintf(&buf, "Timeouts: %d\n", summary.TimeoutCount)
	}

	if summary.MaxRTT > 0 {
		buf.WriteString("\nRTT Statistics:\n")
		fmt.Fprintf(&buf, "  Min: %.3f ms\n", summary.MinRTT)
		fmt.Fprintf(&buf, "  Max: %.3f ms\n", summary.MaxRTT)
		fmt.Fprintf(&buf, "  Avg: %.3f ms\n", summary.AvgRTT)
		fmt.Fprintf(&buf, "  P50: %.3f ms\n", summary.P50RTT)
		fmt.Fprintf(&buf, "  P90: %.3f ms\n", summary.P90RTT)
		fmt.Fprintf(&buf, "  P99: %.3f ms\n", summary.P99RTT)
		fmt.Fprintf(&buf, "  Buckets: <1ms=%d 1-10ms=%d 10-100ms=%d 100-1000ms=%d >1000ms=%d\n",
			summary.RTTBuckets["lt_1ms"],
			summary.RTTBuckets["1_10ms"],
			summary.RTTBuckets["10_100ms"],
			summary.RTTBuckets["100_1000ms"],
			summary.RTTBuckets["gt_1000ms"],
		)
	}

	for _, outcome := range []string{OutcomeOK, OutcomeNegative, OutcomeException} {
		stats, ok := summary.RTTByOutcome[outcome]
		if !ok {
			continue
		}
		fmt.Fprintf(&buf, "  %s: %d reads - RTT: min=%.3fms, max=%.3fms, avg=%.3fms\n",
			outcome, stats.Count, stats.MinRTT, stats.MaxRTT, stats.AvgRTT)
	}

	return buf.String()
}
