package api

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/facultyload/facultyload/pkg/types"
)

var csvHeader = []string{
	"Faculty", "Department", "Data Type", "Subject", "Year", "Section",
	"Teaching Hours", "Lab Hours", "Evaluation",
	"Workload Score", "Faculty Total", "Department Average", "Status",
}

// writeCSV renders records as a spreadsheet-friendly report, one row per record.
func writeCSV(w io.Writer, recs []types.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{
			r.Faculty, r.Department, r.DataType, r.Subject, r.Year, r.Section,
			num(r.TeachingHours), num(r.LabHours), r.Evaluation,
			fixed2(r.WorkloadScore), fixed2(r.FacultyTotalWorkload), fixed2(r.DeptAverage),
			string(r.Status),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func num(v float64) string    { return strconv.FormatFloat(v, 'f', -1, 64) }
func fixed2(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
