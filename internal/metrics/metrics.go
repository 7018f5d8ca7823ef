package metrics

// Metrics collection for identifier reads

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// Metric represents a single identifier read
type Metric struct {
	Timestamp time.Time
	Target    string
	Field     string
	DID       uint16
	Success   bool
	RTTMs     float64
	Outcome   string // "ok", "nrc" or "exception"
	Error     string
}

// Sink collects and aggregates metrics
type Sink struct {
	mu      sync.RWMutex
	metrics []Metric
	summary *Summary
}

// Summary contains aggregated statistics
type Summary struct {
	TotalReads    int
	SuccessfulOps int
	FailedOps     int
	NegativeCount int
	TimeoutCount  int
	MinRTT        float64
	MaxRTT        float64
	AvgRTT        float64
	P50RTT        float64
	P90RTT        float64
	P99RTT        float64
	rttCount      int
	RTTBuckets    map[string]int
	RTTByOutcome  map[string]*OutcomeStats
}

// OutcomeStats contains statistics for one outcome class
type OutcomeStats struct {
	Count    int
	MinRTT   float64
	MaxRTT   float64
	AvgRTT   float64
	SumRTT   float64
	rttCount int
}

func newSummary() *Summary {
	return &Summary{
		RTTBuckets:   make(map[string]int),
		RTTByOutcome: make(map[string]*OutcomeStats),
	}
}

// NewSink creates a new metrics sink
func NewSink() *Sink {
	return &Sink{
		metrics: make([]Metric, 0),
		summary: newSummary(),
	}
}

// Record records a new metric
func (s *Sink) Record(m Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics = append(s.metrics, m)
	s.updateSummary(m)
}

// GetMetrics returns a copy of all recorded metrics
func (s *Sink) GetMetrics() []Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics := make([]Metric, len(s.metrics))
	copy(metrics, s.metrics)
	return metrics
}

// GetSummary returns the aggregated summary
func (s *Sink) GetSummary() *Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := &Summary{
		TotalReads:    s.summary.TotalReads,
		SuccessfulOps: s.summary.SuccessfulOps,
		FailedOps:     s.summary.FailedOps,
		NegativeCount: s.summary.NegativeCount,
		TimeoutCount:  s.summary.TimeoutCount,
		MinRTT:        s.summary.MinRTT,
		MaxRTT:        s.summary.MaxRTT,
		AvgRTT:        s.summary.AvgRTT,
		RTTBuckets:    make(map[string]int),
		RTTByOutcome:  make(map[string]*OutcomeStats),
	}
	for outcome, stats := range s.summary.RTTByOutcome {
		copied := *stats
		summary.RTTByOutcome[outcome] = &copied
	}

	rtts := make([]float64, 0, len(s.metrics))
	for _, m := range s.metrics {
		if m.RTTMs > 0 {
			rtts = append(rtts, m.RTTMs)
			incrementBucket(summary.RTTBuckets, m.RTTMs)
		}
	}
	percentiles := computePercentiles(rtts)
	summary.P50RTT = percentiles[0]
	summary.P90RTT = percentiles[1]
	summary.P99RTT = percentiles[2]

	return summary
}

// updateSummary updates the summary statistics with a new metric
func (s *Sink) updateSummary(m Metric) {
	s.summary.TotalReads++

	if m.Success {
		s.summary.SuccessfulOps++
	} else {
		s.summary.FailedOps++
		if m.Outcome == OutcomeNegative {
			s.summary.NegativeCount++
		}
		if strings.Contains(m.Error, "timeout") {
			s.summary.TimeoutCount++
		}
	}

	// RTT covers every read that reached the wire, failed or not
	if m.RTTMs > 0 {
		if s.summary.MinRTT == 0 || m.RTTMs < s.summary.MinRTT {
			s.summary.MinRTT = m.RTTMs
		}
		if m.RTTMs > s.summary.MaxRTT {
			s.summary.MaxRTT = m.RTTMs
		}
		s.summary.rttCount++
		n := float64(s.summary.rttCount)
		s.summary.AvgRTT = (s.summary.AvgRTT*(n-1) + m.RTTMs) / n
	}

	stats, exists := s.summary.RTTByOutcome[m.Outcome]
	if !exists {
		stats = &OutcomeStats{}
		s.summary.RTTByOutcome[m.Outcome] = stats
	}
	stats.Count++
	if m.RTTMs > 0 {
		if stats.MinRTT == 0 || m.RTTMs < stats.MinRTT {
			stats.MinRTT = m.RTTMs
		}
		if m.RTTMs > stats.MaxRTT {
			stats.MaxRTT = m.RTTMs
		}
		stats.rttCount++
		stats.SumRTT += m.RTTMs
		stats.AvgRTT = stats.SumRTT / float64(stats.rttCount)
	}
}

func incrementBucket(buckets map[string]int, value float64) {
	switch {
	case value < 1:
		buckets["lt_1ms"]++
	case value < 10:
		buckets["1_10ms"]++
	case value < 100:
		buckets["10_100ms"]++
	case value < 1000:
		buckets["100_1000ms"]++
	default:
		buckets["gt_1000ms"]++
	}
}

func computePercentiles(values []float64) [3]float64 {
	var result [3]float64
	if len(values) == 0 {
		return result
	}
	sort.Float64s(values)
	result[0] = percentile(values, 0.50)
	result[1] = percentile(values, 0.90)
	result[2] = percentile(values, 0.99)
	return result
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
