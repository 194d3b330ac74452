package types

// RawRow is one wide-format row as decoded from the upstream JSON payload.
// Values are whatever encoding/json produced: string, float64, bool or nil.
type RawRow map[string]any

// Evaluation labels describe the grading load of one subject assignment.
const (
	EvaluationLow    = "Low"
	EvaluationMedium = "Medium"
	EvaluationHigh   = "High"
)

// DataTypeReal is the data type assigned to rows that carry no tag.
const DataTypeReal = "Real"

// Status classifies a faculty member against their department average.
type Status string

const (
	StatusOverloaded    Status = "Overloaded"
	StatusBalanced      Status = "Balanced"
	StatusUnderutilized Status = "Underutilized"
)

// Statuses lists every Status in display order.
var Statuses = []Status{StatusOverloaded, StatusBalanced, StatusUnderutilized}

// Assignment is one faculty and subject pair extracted from a raw row.
type Assignment struct {
	Faculty       string  `json:"faculty"`
	Department    string  `json:"department"`
	DataType      string  `json:"data_type"`
	Subject       string  `json:"subject"`
	Year          string  `json:"year"`
	Section       string  `json:"section"`
	TeachingHours float64 `json:"teaching_hours"`
	LabHours      float64 `json:"lab_hours"`
	Evaluation    string  `json:"evaluation"`
}

// Record is an Assignment after scoring and imbalance classification.
// All records of one faculty+department group share FacultyTotalWorkload,
// DeptAverage and Status.
type Record struct {
	Assignment

	WorkloadScore        float64 `json:"workload_score"`
	Status               Status  `json:"status"`
	FacultyTotalWorkload float64 `json:"faculty_total_workload"`
	DeptAverage          float64 `json:"dept_average"`
}
