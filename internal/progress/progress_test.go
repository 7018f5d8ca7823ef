package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/tturner/udsinfo/internal/vehicleinfo"
)

func fixedBar(buf *bytes.Buffer, total int64) *ProgressBar {
	pb := NewProgressBar(buf, total, "")
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	pb.startTime = start
	pb.now = func() time.Time { return start.Add(1500 * time.Millisecond) }
	return pb
}

func TestProgressBar_Increment(t *testing.T) {
	var buf bytes.Buffer
	pb := fixedBar(&buf, 4)

	pb.Increment("vin", false)
	pb.Increment("serial", true)
	if pb.current != 2 || pb.failed != 1 {
		t.Fatalf("current/failed = %d/%d, want 2/1", pb.current, pb.failed)
	}
	out := buf.String()
	for _, want := range []string{"2/4", "(1 failed)", "1.5s", "serial", "[===============>"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}

func TestProgressBar_Disabled(t *testing.T) {
	var buf bytes.Buffer
	pb := fixedBar(&buf, 2)
	pb.Disable()
	pb.Increment("x", false)
	pb.Finish()
	if buf.Len() > 0 {
		t.Errorf("disabled bar should not produce output, got %q", buf.String())
	}
}

func TestProgressBar_FinishFull(t *testing.T) {
	var buf bytes.Buffer
	pb := fixedBar(&buf, 1)
	pb.Increment("x", false)
	pb.Finish()
	out := buf.String()
	if !strings.HasSuffix(out, "\n") {
		t.Error("Finish should end the line")
	}
	if !strings.Contains(out, "["+strings.Repeat("=", barWidth)+"] 1/1") {
		t.Errorf("full bar not rendered: %q", out)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{75 * time.Second, "1m15s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReadProgressObserver(t *testing.T) {
	var buf bytes.Buffer
	table := vehicleinfo.IdentificationTable()
	var observer vehicleinfo.Observer = NewReadProgress(&buf, table)

	observer.ReadStarted(table[0])
	observer.ReadFinished(table[0], vehicleinfo.Failed("UDS Error: x"), time.Millisecond)
	if !strings.Contains(buf.String(), table[0].Field) {
		t.Errorf("progress missing field name: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "(1 failed)") {
		t.Errorf("progress missing failure count: %q", buf.String())
	}
}
