package api

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/facultyload/facultyload/pkg/types"
	"github.com/facultyload/facultyload/server/internal/workload"
)

// criticalRatio escalates an overloaded hint from warning to critical.
const criticalRatio = 1.5

var levelRank = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}

// localInsights derives hints, a summary and recommendations from classified
// records. Hints are ordered critical first, then warnings, info and ok.
func localInsights(recs []types.Record) types.Insights {
	groups := workload.Faculty(recs)
	if len(groups) == 0 {
		return types.NoInsights()
	}

	var hints []types.Hint
	var overloaded, underutilized int
	for _, g := range groups {
		ratio := g.Ratio
		switch g.Status {
		case types.StatusOverloaded:
			overloaded++
			level := "warning"
			if ratio >= criticalRatio {
				level = "critical"
			}
			hints = append(hints, types.Hint{
				Key:   "overloaded:" + g.Department + ":" + g.Faculty,
				Level: level,
				Title: g.Faculty + " overloaded",
				Detail: fmt.Sprintf(
					"%s carries %.2f workload points in %s, %sx the department average of %.2f. "+
						"Moving a subject or a lab section to a colleague with spare capacity "+
						"would bring this back in line.",
					g.Faculty, g.TotalWorkload, g.Department, formatRatio(ratio), g.DeptAverage,
				),
				Value: &ratio,
			})
		case types.StatusUnderutilized:
			underutilized++
			hints = append(hints, types.Hint{
				Key:   "underutilized:" + g.Department + ":" + g.Faculty,
				Level: "info",
				Title: g.Faculty + " has capacity",
				Detail: fmt.Sprintf(
					"%s carries %.2f workload points in %s, %sx the department average of %.2f. "+
						"They could take over work from an overloaded colleague.",
					g.Faculty, g.TotalWorkload, g.Department, formatRatio(ratio), g.DeptAverage,
				),
				Value: &ratio,
			})
		}
	}

	spreads, advice := departmentSpread(groups)
	hints = append(hints, spreads...)

	if len(hints) == 0 {
		hints = append(hints, types.Hint{
			Key:    "all_clear",
			Level:  "ok",
			Title:  "All balanced",
			Detail: "Every faculty member is within 20% of their department average. No action needed.",
		})
	}
	sort.SliceStable(hints, func(i, j int) bool {
		return levelRank[hints[i].Level] < levelRank[hints[j].Level]
	})

	summary := fmt.Sprintf("%d faculty reviewed: %d overloaded, %d underutilized.",
		len(groups), overloaded, underutilized)
	if overloaded == 0 && underutilized == 0 {
		summary = fmt.Sprintf("%d faculty reviewed: workload is balanced.", len(groups))
	}
	if advice == nil {
		advice = []string{}
	}
	return types.Insights{Summary: summary, Recommendations: advice, Hints: hints}
}

// departmentSpread pairs the most and least loaded faculty of every
// department that has both an overloaded and an underutilized member.
func departmentSpread(groups []workload.FacultySummary) ([]types.Hint, []string) {
	type extremes struct {
		hi, lo *workload.FacultySummary
	}
	byDept := make(map[string]*extremes)
	var order []string
	for i := range groups {
		g := &groups[i]
		x, ok := byDept[g.Department]
		if !ok {
			x = &extremes{}
			byDept[g.Department] = x
			order = append(order, g.Department)
		}
		if g.Status == types.StatusOverloaded && (x.hi == nil || g.TotalWorkload > x.hi.TotalWorkload) {
			x.hi = g
		}
		if g.Status == types.StatusUnderutilized && (x.lo == nil || g.TotalWorkload < x.lo.TotalWorkload) {
			x.lo = g
		}
	}

	var hints []types.Hint
	var recs []string
	for _, d := range order {
		x := byDept[d]
		switch {
		case x.hi != nil && x.lo != nil:
			spread := x.hi.TotalWorkload - x.lo.TotalWorkload
			hints = append(hints, types.Hint{
				Key:   "department_spread:" + d,
				Level: "warning",
				Title: "Uneven load in " + d,
				Detail: fmt.Sprintf(
					"%s ranges from %.2f (%s) to %.2f (%s) workload points. "+
						"Rebalancing within the department is possible.",
					d, x.lo.TotalWorkload, x.lo.Faculty, x.hi.TotalWorkload, x.hi.Faculty,
				),
				Value: &spread,
			})
			recs = append(recs, fmt.Sprintf("Move work in %s from %s to %s.", d, x.hi.Faculty, x.lo.Faculty))
		case x.hi != nil:
			recs = append(recs, fmt.Sprintf("Review %s's assignments in %s (%sx department average).",
				x.hi.Faculty, d, formatRatio(x.hi.Ratio)))
		}
	}
	return hints, recs
}

// formatRatio prints a ratio with two decimals, widening to four when two
// would land on a classification threshold the ratio does not equal.
func formatRatio(r float64) string {
	s := strconv.FormatFloat(r, 'f', 2, 64)
	for _, t := range []float64{workload.OverloadedRatio, workload.UnderutilizedRatio} {
		if s == strconv.FormatFloat(t, 'f', 2, 64) && r != t {
			return strconv.FormatFloat(r, 'f', 4, 64)
		}
	}
	return s
}
