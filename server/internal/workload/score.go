package workload

import (
	"math"

	"github.com/facultyload/facultyload/pkg/types"
)

// Weight constants for the workload score formula.
const (
	weightTeaching = 1.0
	weightLab      = 1.5
)

// Evaluation weights. Unrecognised labels fall back to the Medium weight so a
// misspelt label and a missing one score the same.
const (
	weightEvalLow     = 1.0
	weightEvalMedium  = 2.0
	weightEvalHigh    = 3.0
	weightEvalDefault = weightEvalMedium
)

// Ratio thresholds that map faculty total / department average to a status.
const (
	OverloadedRatio    = 1.2
	UnderutilizedRatio = 0.8
)

// Score computes the workload score of one assignment:
//
//	teaching_hours*1.0 + lab_hours*1.5 + evaluation_weight
//
// rounded to two decimals (half away from zero).
func Score(a types.Assignment) float64 {
	return round2(a.TeachingHours*weightTeaching + a.LabHours*weightLab + EvaluationWeight(a.Evaluation))
}

// EvaluationWeight returns the weight of an evaluation label.
func EvaluationWeight(label string) float64 {
	switch label {
	case types.EvaluationLow:
		return weightEvalLow
	case types.EvaluationMedium:
		return weightEvalMedium
	case types.EvaluationHigh:
		return weightEvalHigh
	default:
		return weightEvalDefault
	}
}

// ScoreAll is the first pass: it scores every assignment independently.
// Status and the aggregate fields stay zero until Classify runs.
func ScoreAll(in []types.Assignment) []types.Record {
	out := make([]types.Record, len(in))
	for i, a := range in {
		out[i] = types.Record{Assignment: a, WorkloadScore: Score(a)}
	}
	return out
}

// groupKey identifies one faculty member within one department. A faculty
// member cross-listed in two departments forms two independent groups.
type groupKey struct {
	Faculty    string
	Department string
}

func keyOf(a types.Assignment) groupKey {
	return groupKey{Faculty: a.Faculty, Department: a.Department}
}

// facultyGroup accumulates the scores of one faculty+department group.
type facultyGroup struct {
	total    float64
	subjects int
}

// deptAccumulator averages faculty totals within one department.
type deptAccumulator struct {
	sum     float64
	faculty int
}

func (d deptAccumulator) average() float64 {
	if d.faculty == 0 {
		return 0
	}
	return d.sum / float64(d.faculty)
}

// aggregation is the result of grouping scored records.
type aggregation struct {
	groups map[groupKey]*facultyGroup
	order  []groupKey // first-seen order
	depts  map[string]*deptAccumulator
}

func aggregate(records []types.Record) aggregation {
	agg := aggregation{
		groups: make(map[groupKey]*facultyGroup),
		depts:  make(map[string]*deptAccumulator),
	}
	for _, r := range records {
		k := keyOf(r.Assignment)
		g, ok := agg.groups[k]
		if !ok {
			g = &facultyGroup{}
			agg.groups[k] = g
			agg.order = append(agg.order, k)
		}
		g.total += r.WorkloadScore
		g.subjects++
	}
	for _, k := range agg.order {
		d, ok := agg.depts[k.Department]
		if !ok {
			d = &deptAccumulator{}
			agg.depts[k.Department] = d
		}
		d.sum += agg.groups[k].total
		d.faculty++
	}
	return agg
}

// ratio returns the group's total relative to its department average.
// A zero or missing average yields 1 so the group reads as Balanced.
func (agg aggregation) ratio(k groupKey) float64 {
	avg := agg.depts[k.Department].average()
	if avg <= 0 {
		return 1
	}
	return agg.groups[k].total / avg
}

// Classify is the second pass: it attaches faculty totals, department
// averages and a status to every scored record. The input slice is not
// modified; the output keeps the input order.
func Classify(records []types.Record) []types.Record {
	agg := aggregate(records)
	out := make([]types.Record, len(records))
	for i, r := range records {
		k := keyOf(r.Assignment)
		r.FacultyTotalWorkload = round2(agg.groups[k].total)
		r.DeptAverage = round2(agg.depts[k.Department].average())
		r.Status = StatusForRatio(agg.ratio(k))
		out[i] = r
	}
	return out
}

// StatusForRatio maps a total/average ratio to a status.
func StatusForRatio(ratio float64) types.Status {
	switch {
	case ratio > OverloadedRatio:
		return types.StatusOverloaded
	case ratio < UnderutilizedRatio:
		return types.StatusUnderutilized
	default:
		return types.StatusBalanced
	}
}

// ScoreAndClassify runs both passes over normalized assignments.
func ScoreAndClassify(in []types.Assignment) []types.Record {
	return Classify(ScoreAll(in))
}

// Run normalizes rows and scores and classifies the result. The error is the
// one returned by Normalize; records of valid rows are returned regardless.
func Run(rows []types.RawRow) ([]types.Record, error) {
	assignments, err := Normalize(rows)
	return ScoreAndClassify(assignments), err
}

// round2 rounds to two decimals, half away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
