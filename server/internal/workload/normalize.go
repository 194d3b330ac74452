package workload

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/facultyload/facultyload/pkg/types"
)

// MaxSlots is the number of subject slots carried by one wide row.
const MaxSlots = 9

// Column names of the wide row format.
const (
	colFaculty    = "Faculty Name"
	colDepartment = "Department"
	colDataType   = "Data Type"
)

// slotColumns holds the column names of one subject slot.
type slotColumns struct {
	subject, year, section, teaching, lab, evaluation string
}

var slots = func() [MaxSlots]slotColumns {
	var out [MaxSlots]slotColumns
	for i := range out {
		p := fmt.Sprintf("S%d_", i+1)
		out[i] = slotColumns{
			subject:    p + "Subject_Name",
			year:       p + "Year",
			section:    p + "Section",
			teaching:   p + "Teaching_Hours",
			lab:        p + "Lab_Hours",
			evaluation: p + "Evaluation_Load",
		}
	}
	return out
}()

// CoercionError reports an hours value that could not be read as a
// non-negative number. The whole row it belongs to is rejected.
type CoercionError struct {
	Row    int // index of the row in the input slice
	Slot   int // 1-based slot number
	Field  string
	Value  any
	Reason string
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("row %d slot %d: %s = %v: %s", e.Row, e.Slot, e.Field, e.Value, e.Reason)
}

// Normalize expands rows into one Assignment per non-empty subject slot.
//
// Rows without a faculty name are skipped. A row with any unreadable hours
// value contributes nothing; its *CoercionError is collected and the records
// of the remaining rows are still returned. The returned error is nil when no
// row was rejected, otherwise it joins one *CoercionError per rejected row.
func Normalize(rows []types.RawRow) ([]types.Assignment, error) {
	out := make([]types.Assignment, 0, len(rows))
	var errs []error
	for i, row := range rows {
		recs, err := NormalizeRow(row)
		if err != nil {
			var ce *CoercionError
			if errors.As(err, &ce) {
				ce.Row = i
			}
			errs = append(errs, err)
			continue
		}
		out = append(out, recs...)
	}
	return out, errors.Join(errs...)
}

// NormalizeRow expands a single row. Slots are visited 1..9 so the output
// order follows the slot numbering.
//
// Absent and empty optional values are treated alike: the data type falls
// back to "Real", the evaluation to "Medium" and hours to 0.
func NormalizeRow(row types.RawRow) ([]types.Assignment, error) {
	faculty := text(row[colFaculty])
	if faculty == "" {
		return nil, nil
	}
	dataType := text(row[colDataType])
	if dataType == "" {
		dataType = types.DataTypeReal
	}
	base := types.Assignment{
		Faculty:    faculty,
		Department: text(row[colDepartment]),
		DataType:   dataType,
	}

	var out []types.Assignment
	for i, cols := range slots {
		subject := text(row[cols.subject])
		if subject == "" {
			continue
		}
		teaching, err := hours(row[cols.teaching])
		if err != nil {
			return nil, &CoercionError{Slot: i + 1, Field: cols.teaching, Value: row[cols.teaching], Reason: err.Error()}
		}
		lab, err := hours(row[cols.lab])
		if err != nil {
			return nil, &CoercionError{Slot: i + 1, Field: cols.lab, Value: row[cols.lab], Reason: err.Error()}
		}
		eval := text(row[cols.evaluation])
		if eval == "" {
			eval = types.EvaluationMedium
		}

		a := base
		a.Subject = subject
		a.Year = text(row[cols.year])
		a.Section = text(row[cols.section])
		a.TeachingHours = teaching
		a.LabHours = lab
		a.Evaluation = eval
		out = append(out, a)
	}
	return out, nil
}

// text renders a cell as a trimmed string. Numbers keep their shortest form
// so a year cell holding 2 reads "2", not "2.000000".
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// hours coerces an hours cell to a non-negative float. Missing, null, false
// and blank cells are 0.
func hours(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0, nil
	case bool:
		if t {
			f = 1
		}
	case float64:
		f = t
	case int:
		f = float64(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, errors.New("not a number")
		}
		f = parsed
	case fmt.Stringer: // json.Number
		parsed, err := strconv.ParseFloat(t.String(), 64)
		if err != nil {
			return 0, errors.New("not a number")
		}
		f = parsed
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("not a finite number")
	}
	if f < 0 {
		return 0, errors.New("negative hours")
	}
	return f, nil
}
