package workload

import "github.com/facultyload/facultyload/pkg/types"

// Heat levels for department summaries, keyed on average workload per faculty.
const (
	HeatHigh   = "high"
	HeatMedium = "medium"
	HeatLow    = "low"

	heatHighAbove   = 15.0
	heatMediumAbove = 10.0
)

// StatusCounts counts records per status.
type StatusCounts struct {
	Overloaded    int `json:"overloaded"`
	Balanced      int `json:"balanced"`
	Underutilized int `json:"underutilized"`
}

func (c *StatusCounts) add(s types.Status) {
	switch s {
	case types.StatusOverloaded:
		c.Overloaded++
	case types.StatusBalanced:
		c.Balanced++
	case types.StatusUnderutilized:
		c.Underutilized++
	}
}

// OverviewStats is the dashboard headline for a record set.
type OverviewStats struct {
	TotalFaculty     int     `json:"total_faculty"`
	TotalDepartments int     `json:"total_departments"`
	TotalSubjects    int     `json:"total_subjects"`
	AvgWorkload      float64 `json:"avg_workload"`
	StatusCounts
}

// Overview computes headline counts. Faculty are counted by name across
// departments; StatusCounts counts records, not faculty.
func Overview(records []types.Record) OverviewStats {
	faculty := make(map[string]struct{})
	depts := make(map[string]struct{})
	var out OverviewStats
	var sum float64
	for _, r := range records {
		faculty[r.Faculty] = struct{}{}
		depts[r.Department] = struct{}{}
		sum += r.WorkloadScore
		out.add(r.Status)
	}
	out.TotalFaculty = len(faculty)
	out.TotalDepartments = len(depts)
	out.TotalSubjects = len(records)
	if len(records) > 0 {
		out.AvgWorkload = round2(sum / float64(len(records)))
	}
	return out
}

// DepartmentSummary aggregates one department for the heatmap view.
type DepartmentSummary struct {
	Department    string  `json:"department"`
	TotalWorkload float64 `json:"total_workload"`
	FacultyCount  int     `json:"faculty_count"`
	AvgWorkload   float64 `json:"avg_workload"`
	Heat          string  `json:"heat"`
	StatusCounts
}

// Departments summarises records per department in first-seen order.
func Departments(records []types.Record) []DepartmentSummary {
	type acc struct {
		sum     DepartmentSummary
		faculty map[string]struct{}
	}
	byDept := make(map[string]*acc)
	var order []string
	for _, r := range records {
		a, ok := byDept[r.Department]
		if !ok {
			a = &acc{
				sum:     DepartmentSummary{Department: r.Department},
				faculty: make(map[string]struct{}),
			}
			byDept[r.Department] = a
			order = append(order, r.Department)
		}
		a.sum.TotalWorkload += r.WorkloadScore
		a.faculty[r.Faculty] = struct{}{}
		a.sum.add(r.Status)
	}

	out := make([]DepartmentSummary, 0, len(order))
	for _, d := range order {
		a := byDept[d]
		s := a.sum
		s.FacultyCount = len(a.faculty)
		s.TotalWorkload = round2(s.TotalWorkload)
		s.AvgWorkload = round2(s.TotalWorkload / float64(s.FacultyCount))
		s.Heat = heatLevel(s.AvgWorkload)
		out = append(out, s)
	}
	return out
}

func heatLevel(avg float64) string {
	switch {
	case avg > heatHighAbove:
		return HeatHigh
	case avg > heatMediumAbove:
		return HeatMedium
	default:
		return HeatLow
	}
}

// FacultySummary is one faculty+department group of a classified record set.
type FacultySummary struct {
	Faculty       string       `json:"faculty"`
	Department    string       `json:"department"`
	TotalWorkload float64      `json:"total_workload"`
	DeptAverage   float64      `json:"dept_average"`
	Ratio         float64      `json:"ratio"`
	Status        types.Status `json:"status"`
	SubjectCount  int          `json:"subject_count"`
}

// Faculty returns one summary per faculty+department group, in first-seen
// order. Totals, averages and status are read from the classified records.
// The ratio is the unrounded total over average recomputed from the scores,
// so it agrees with the status Classify assigned. Records carrying group
// values Classify did not produce (the demo set) keep the ratio of their
// stored values.
func Faculty(records []types.Record) []FacultySummary {
	agg := aggregate(records)
	idx := make(map[groupKey]int)
	var out []FacultySummary
	for _, r := range records {
		k := keyOf(r.Assignment)
		if i, ok := idx[k]; ok {
			out[i].SubjectCount++
			continue
		}
		idx[k] = len(out)
		out = append(out, FacultySummary{
			Faculty:       r.Faculty,
			Department:    r.Department,
			TotalWorkload: r.FacultyTotalWorkload,
			DeptAverage:   r.DeptAverage,
			Ratio:         groupRatio(agg, k, r),
			Status:        r.Status,
			SubjectCount:  1,
		})
	}
	if out == nil {
		out = []FacultySummary{}
	}
	return out
}

func groupRatio(agg aggregation, k groupKey, r types.Record) float64 {
	if round2(agg.groups[k].total) == r.FacultyTotalWorkload &&
		round2(agg.depts[k.Department].average()) == r.DeptAverage {
		return agg.ratio(k)
	}
	if r.DeptAverage <= 0 {
		return 1
	}
	return r.FacultyTotalWorkload / r.DeptAverage
}
