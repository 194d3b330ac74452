package alerts

import (
	"strconv"
	"strings"

	"github.com/facultyload/facultyload/server/internal/workload"
)

// evalCondition evaluates a rule condition string against one faculty group.
//
// Supported expressions (field operator value):
//
//	faculty_total_workload > 30
//	dept_average < 8
//	ratio >= 1.5
//	subject_count > 5
//	status == Overloaded
//	status != Balanced
//
// Returns (fires bool, triggering value float64).
// Returns (false, 0) if the expression cannot be parsed or the field is unknown.
func evalCondition(cond string, g workload.FacultySummary) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	if field == "status" {
		switch op {
		case "==":
			return strings.EqualFold(string(g.Status), rhs), g.Ratio
		case "!=":
			return !strings.EqualFold(string(g.Status), rhs), g.Ratio
		}
		return false, 0
	}

	v, ok := numericField(field, g)
	if !ok {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

// numericField maps a field name to its value in the group summary.
func numericField(field string, g workload.FacultySummary) (float64, bool) {
	switch field {
	case "faculty_total_workload":
		return g.TotalWorkload, true
	case "dept_average":
		return g.DeptAverage, true
	case "ratio":
		return g.Ratio, true
	case "subject_count":
		return float64(g.SubjectCount), true
	default:
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
