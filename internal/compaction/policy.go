// Package compaction implements the hierarchical summarization engine:
// the retention policy that decides when history is compacted, and the
// compactor that folds raw turns into L1 summaries and L1 summaries
// into L2 summaries.
//
// Compaction is append-only. A range that was summarized is never
// re-opened; a failed pass writes nothing and the same range is
// re-selected on the next attempt. Record IDs are derived from the
// covered range, so a retried pass overwrites its own earlier output
// instead of duplicating it.
package compaction

import "github.com/LuciformResearch/ragforge-sub003/internal/config"

// MetricChars and MetricCount select what the L2 trigger measures:
// accumulated summary text length, or a simple count of unconsolidated
// L1 summaries.
const (
	MetricChars = "chars"
	MetricCount = "count"
)

// Policy holds the compaction trigger configuration.
type Policy struct {
	MaxContextChars    int
	L1ThresholdPercent float64
	L2ThresholdPercent float64
	L2TriggerMetric    string
	L2TriggerCount     int
}

// PolicyFromConfig builds a Policy from the engine configuration.
func PolicyFromConfig(cfg config.Config) Policy {
	return Policy{
		MaxContextChars:    cfg.MaxContextChars,
		L1ThresholdPercent: cfg.L1ThresholdPercent,
		L2ThresholdPercent: cfg.L2ThresholdPercent,
		L2TriggerMetric:    cfg.L2TriggerMetric,
		L2TriggerCount:     cfg.L2TriggerCount,
	}
}

// Threshold returns the accumulation limit for a tier's trigger, in
// characters (or summaries, for tier 2 under the count metric).
func (p Policy) Threshold(tier int) int {
	if tier == 2 {
		if p.L2TriggerMetric == MetricCount {
			return p.L2TriggerCount
		}
		return int(float64(p.MaxContextChars) * p.L2ThresholdPercent)
	}
	return int(float64(p.MaxContextChars) * p.L1ThresholdPercent)
}

// ShouldCompact reports whether the accumulated uncompacted content at
// the tier below has crossed the tier's threshold. For the count metric
// the trigger fires at the threshold rather than past it, since a count
// is exact where a character total is approximate.
func (p Policy) ShouldCompact(tier int, accumulated int) bool {
	if tier == 2 && p.L2TriggerMetric == MetricCount {
		return accumulated >= p.Threshold(tier)
	}
	return accumulated > p.Threshold(tier)
}

// SelectRange greedily picks the oldest pending units — sizes is
// oldest-first — stopping before the selection would exceed the tier's
// threshold. At least one unit is always selected so an oversized unit
// cannot stall compaction. Returns the number of units to compact.
func (p Policy) SelectRange(tier int, sizes []int) int {
	if len(sizes) == 0 {
		return 0
	}

	threshold := p.Threshold(tier)
	if tier == 2 && p.L2TriggerMetric == MetricCount {
		if len(sizes) < threshold {
			return len(sizes)
		}
		return threshold
	}

	n := 0
	acc := 0
	for _, size := range sizes {
		if n > 0 && acc+size > threshold {
			break
		}
		n++
		acc += size
	}
	return n
}
