package workload

import "github.com/facultyload/facultyload/pkg/types"

// DataTypeDemo tags the records of the fallback dataset.
const DataTypeDemo = "Demo"

var demoRecords = []types.Record{
	{
		Assignment: types.Assignment{
			Faculty: "Dr. Alice Smith", Department: "Computer Science", DataType: DataTypeDemo,
			Subject: "Data Structures", Year: "2nd Year", Section: "A",
			TeachingHours: 6, LabHours: 2, Evaluation: types.EvaluationHigh,
		},
		WorkloadScore: 12.00, Status: types.StatusOverloaded,
		FacultyTotalWorkload: 21.00, DeptAverage: 15.00,
	},
	{
		Assignment: types.Assignment{
			Faculty: "Dr. Alice Smith", Department: "Computer Science", DataType: DataTypeDemo,
			Subject: "Algorithms", Year: "3rd Year", Section: "B",
			TeachingHours: 4, LabHours: 0, Evaluation: types.EvaluationMedium,
		},
		WorkloadScore: 6.00, Status: types.StatusOverloaded,
		FacultyTotalWorkload: 21.00, DeptAverage: 15.00,
	},
	{
		Assignment: types.Assignment{
			Faculty: "Prof. Bob Johnson", Department: "Computer Science", DataType: DataTypeDemo,
			Subject: "Operating Systems", Year: "3rd Year", Section: "A",
			TeachingHours: 6, LabHours: 3, Evaluation: types.EvaluationHigh,
		},
		WorkloadScore: 13.50, Status: types.StatusBalanced,
		FacultyTotalWorkload: 13.50, DeptAverage: 15.00,
	},
	{
		Assignment: types.Assignment{
			Faculty: "Dr. Carol Davis", Department: "Mathematics", DataType: DataTypeDemo,
			Subject: "Calculus I", Year: "1st Year", Section: "A",
			TeachingHours: 8, LabHours: 0, Evaluation: types.EvaluationHigh,
		},
		WorkloadScore: 11.00, Status: types.StatusUnderutilized,
		FacultyTotalWorkload: 11.00, DeptAverage: 11.00,
	},
}

// DemoRecords returns a fresh copy of the fixed demo dataset served when the
// upstream sheet is unreachable or empty. The values are literal showcase
// data and are served as-is, without re-running Classify.
func DemoRecords() []types.Record {
	out := make([]types.Record, len(demoRecords))
	copy(out, demoRecords)
	return out
}
