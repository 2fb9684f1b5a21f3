package project

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/relaycivic/filament/internal/commit"
)

// Op is a trunk aggregation operator.
type Op string

const (
	OpSum Op = "sum"
	OpAvg Op = "avg"
	OpMin Op = "min"
	OpMax Op = "max"
)

// Rule maps one source metric across branches to one trunk metric.
type Rule struct {
	SourceMetricID string
	Op             Op
	TrunkMetricID  string
	Unit           string
}

// Row is one branch's reported value for a metric.
type Row struct {
	BranchID string
	MetricID string
	Value    float64
}

// Contributor records which branch contributed which value to an
// aggregate, for traceability.
type Contributor struct {
	BranchID string
	Value    float64
}

// Aggregate is one computed trunk metric.
type Aggregate struct {
	TrunkMetricID  string
	SourceMetricID string
	Op             Op
	Unit           string
	Value          float64
	// Contributors are sorted by branch id; the same multiset of rows
	// always yields the same list.
	Contributors []Contributor
}

// AggregateTrunk applies each rule's operator over all rows matching its
// source metric. Rows are sorted by branch id (then value) before
// folding, so floating-point summation order is fixed and the result is
// reproducible regardless of input ordering. Values are rounded to six
// decimal places before being returned so serialization and hashing stay
// stable.
//
// Rules with no matching rows produce no aggregate.
func AggregateTrunk(rules []Rule, rows []Row) []Aggregate {
	var out []Aggregate
	for _, rule := range rules {
		var matched []Row
		for _, row := range rows {
			if row.MetricID == rule.SourceMetricID {
				matched = append(matched, row)
			}
		}
		if len(matched) == 0 {
			continue
		}

		sort.Slice(matched, func(i, j int) bool {
			if matched[i].BranchID != matched[j].BranchID {
				return matched[i].BranchID < matched[j].BranchID
			}
			return matched[i].Value < matched[j].Value
		})

		value := fold(rule.Op, matched)
		contributors := make([]Contributor, len(matched))
		for i, row := range matched {
			contributors[i] = Contributor{BranchID: row.BranchID, Value: round6(row.Value)}
		}

		out = append(out, Aggregate{
			TrunkMetricID:  rule.TrunkMetricID,
			SourceMetricID: rule.SourceMetricID,
			Op:             rule.Op,
			Unit:           rule.Unit,
			Value:          round6(value),
			Contributors:   contributors,
		})
	}
	return out
}

func fold(op Op, rows []Row) float64 {
	switch op {
	case OpSum, OpAvg:
		var sum float64
		for _, row := range rows {
			sum += row.Value
		}
		if op == OpAvg {
			return sum / float64(len(rows))
		}
		return sum
	case OpMin:
		minVal := rows[0].Value
		for _, row := range rows[1:] {
			if row.Value < minVal {
				minVal = row.Value
			}
		}
		return minVal
	case OpMax:
		maxVal := rows[0].Value
		for _, row := range rows[1:] {
			if row.Value > maxVal {
				maxVal = row.Value
			}
		}
		return maxVal
	default:
		return 0
	}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// Hash returns a content hash of the aggregate. Floats are forbidden in
// canonical JSON, so values are encoded as fixed six-decimal strings,
// matching the precision the aggregate is rounded to.
func (a Aggregate) Hash() (string, error) {
	contributors := make(commit.Array, len(a.Contributors))
	for i, c := range a.Contributors {
		contributors[i] = commit.Object{
			"branch_id": commit.String(c.BranchID),
			"value":     commit.String(formatDecimal(c.Value)),
		}
	}
	obj := commit.Object{
		"trunk_metric_id":  commit.String(a.TrunkMetricID),
		"source_metric_id": commit.String(a.SourceMetricID),
		"op":               commit.String(a.Op),
		"unit":             commit.String(a.Unit),
		"value":            commit.String(formatDecimal(a.Value)),
		"contributors":     contributors,
	}
	hash, err := commit.PayloadHash(obj)
	if err != nil {
		return "", fmt.Errorf("aggregate hash: %w", err)
	}
	return hash, nil
}

func formatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
