package workload

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/facultyload/facultyload/pkg/types"
)

// row builds a raw row for faculty/department with the given slot cells.
// slotCells maps a slot number to its column suffix → value pairs.
func row(faculty, dept string, slotCells map[int]map[string]any) types.RawRow {
	r := types.RawRow{"Faculty Name": faculty, "Department": dept}
	for n, cells := range slotCells {
		for suffix, v := range cells {
			r[slotKey(n, suffix)] = v
		}
	}
	return r
}

func slotKey(n int, suffix string) string {
	return "S" + string(rune('0'+n)) + "_" + suffix
}

func subject(name string, teaching, lab any, eval any) map[string]any {
	cells := map[string]any{"Subject_Name": name, "Year": "2nd Year", "Section": "A"}
	if teaching != nil {
		cells["Teaching_Hours"] = teaching
	}
	if lab != nil {
		cells["Lab_Hours"] = lab
	}
	if eval != nil {
		cells["Evaluation_Load"] = eval
	}
	return cells
}

// --- Slot expansion ---

func TestNormalize_OneRecordPerNonEmptySlot(t *testing.T) {
	rows := []types.RawRow{row("Dr. A", "CS", map[int]map[string]any{
		1: subject("Data Structures", 6.0, 2.0, "High"),
		2: subject("   ", 4.0, 0.0, "Low"),
		3: subject("", 4.0, 0.0, "Low"),
		5: subject("  Algorithms  ", 4.0, 0.0, "Medium"),
		9: subject("Compilers", 3.0, 1.0, "Low"),
	})}

	got, err := Normalize(rows)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := []string{"Data Structures", "Algorithms", "Compilers"}
	if len(got) != len(want) {
		t.Fatalf("records = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Subject != w {
			t.Errorf("record %d subject = %q, want %q (slot order)", i, got[i].Subject, w)
		}
		if got[i].Faculty != "Dr. A" || got[i].Department != "CS" {
			t.Errorf("record %d identity = %q/%q", i, got[i].Faculty, got[i].Department)
		}
	}
}

func TestNormalize_RowWithoutSubjectsContributesNothing(t *testing.T) {
	got, err := Normalize([]types.RawRow{row("Dr. A", "CS", nil)})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("records = %d, want 0", len(got))
	}
}

func TestNormalize_RowWithoutFacultyIsSkipped(t *testing.T) {
	slotsFull := map[int]map[string]any{1: subject("Physics", 3.0, 1.0, "Low")}
	rows := []types.RawRow{
		row("", "CS", slotsFull),
		row("   ", "CS", slotsFull),
		{"Department": "CS", "S1_Subject_Name": "Physics"},
	}
	got, err := Normalize(rows)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("records = %d, want 0 for rows without faculty", len(got))
	}
}

func TestNormalize_EmptyInput(t *testing.T) {
	got, err := Normalize(nil)
	if err != nil {
		t.Fatalf("Normalize(nil): %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Normalize(nil) = %v, want empty non-nil slice", got)
	}
}

// --- Defaults ---

func TestNormalize_Defaults(t *testing.T) {
	r := types.RawRow{
		"Faculty Name":    "Dr. A",
		"Department":      "CS",
		"S1_Subject_Name": "Networks",
	}
	got, err := Normalize([]types.RawRow{r})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	a := got[0]
	if a.DataType != types.DataTypeReal {
		t.Errorf("DataType = %q, want Real", a.DataType)
	}
	if a.Evaluation != types.EvaluationMedium {
		t.Errorf("Evaluation = %q, want Medium", a.Evaluation)
	}
	if a.TeachingHours != 0 || a.LabHours != 0 {
		t.Errorf("hours = %v/%v, want 0/0", a.TeachingHours, a.LabHours)
	}
	if a.Year != "" || a.Section != "" {
		t.Errorf("year/section = %q/%q, want empty", a.Year, a.Section)
	}
}

func TestNormalize_EmptyDataTypeAndEvaluationCollapseToDefaults(t *testing.T) {
	r := row("Dr. A", "CS", map[int]map[string]any{1: subject("Networks", "", nil, "")})
	r["Data Type"] = ""
	got, err := Normalize([]types.RawRow{r})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got[0].DataType != types.DataTypeReal || got[0].Evaluation != types.EvaluationMedium {
		t.Errorf("defaults = %q/%q, want Real/Medium", got[0].DataType, got[0].Evaluation)
	}
}

func TestNormalize_KeepsDataTypeTag(t *testing.T) {
	r := row("Dr. A", "CS", map[int]map[string]any{1: subject("Networks", 1.0, 0.0, "Low")})
	r["Data Type"] = "Demo"
	got, _ := Normalize([]types.RawRow{r})
	if got[0].DataType != "Demo" {
		t.Errorf("DataType = %q, want Demo", got[0].DataType)
	}
}

// --- Hours coercion ---

func TestNormalize_HoursCoercion(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want float64
	}{
		{"nil", nil, 0},
		{"false", false, 0},
		{"zero", 0.0, 0},
		{"number", 6.0, 6},
		{"numeric string", "4.5", 4.5},
		{"padded string", " 3 ", 3},
		{"blank string", "  ", 0},
		{"json number", json.Number("2.25"), 2.25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := types.RawRow{
				"Faculty Name":      "Dr. A",
				"Department":        "CS",
				"S1_Subject_Name":   "Networks",
				"S1_Teaching_Hours": tc.in,
			}
			got, err := NormalizeRow(r)
			if err != nil {
				t.Fatalf("NormalizeRow: %v", err)
			}
			if got[0].TeachingHours != tc.want {
				t.Errorf("TeachingHours = %v, want %v", got[0].TeachingHours, tc.want)
			}
		})
	}
}

func TestNormalize_CoercionFailureRejectsWholeRow(t *testing.T) {
	bad := row("Dr. Bad", "CS", map[int]map[string]any{
		1: subject("Good Subject", 3.0, 0.0, "Low"),
		2: subject("Bad Subject", "lots", 0.0, "Low"),
	})
	good := row("Dr. Good", "CS", map[int]map[string]any{1: subject("Physics", 2.0, 0.0, "Low")})

	got, err := Normalize([]types.RawRow{good, bad})
	if err == nil {
		t.Fatal("expected coercion error, got nil")
	}
	var ce *CoercionError
	if !errors.As(err, &ce) {
		t.Fatalf("error %v is not a *CoercionError", err)
	}
	if ce.Row != 1 || ce.Slot != 2 || ce.Field != "S2_Teaching_Hours" {
		t.Errorf("CoercionError = row %d slot %d field %s, want row 1 slot 2 S2_Teaching_Hours", ce.Row, ce.Slot, ce.Field)
	}
	if len(got) != 1 || got[0].Faculty != "Dr. Good" {
		t.Errorf("records = %+v, want only Dr. Good's", got)
	}
}

func TestNormalize_NegativeHoursRejected(t *testing.T) {
	r := row("Dr. A", "CS", map[int]map[string]any{1: subject("Networks", 2.0, -1.0, "Low")})
	_, err := NormalizeRow(r)
	if err == nil || !strings.Contains(err.Error(), "negative") {
		t.Errorf("NormalizeRow error = %v, want negative hours error", err)
	}
}

func TestNormalize_MultipleRejectedRowsAreJoined(t *testing.T) {
	bad := row("Dr. Bad", "CS", map[int]map[string]any{1: subject("X", "n/a", 0.0, "Low")})
	_, err := Normalize([]types.RawRow{bad, bad})
	if err == nil {
		t.Fatal("expected error")
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		t.Fatalf("error %T does not unwrap to multiple errors", err)
	}
	if n := len(joined.Unwrap()); n != 2 {
		t.Errorf("joined errors = %d, want 2", n)
	}
}

// --- Text cells ---

func TestNormalize_NumericTextCells(t *testing.T) {
	r := row("Dr. A", "CS", map[int]map[string]any{1: {"Subject_Name": "Networks", "Year": 2.0, "Section": 1.0}})
	got, _ := NormalizeRow(r)
	if got[0].Year != "2" || got[0].Section != "1" {
		t.Errorf("year/section = %q/%q, want 2/1", got[0].Year, got[0].Section)
	}
}

func TestNormalize_DuplicateRowsAccumulate(t *testing.T) {
	r := row("Dr. A", "CS", map[int]map[string]any{1: subject("Networks", 1.0, 0.0, "Low")})
	got, _ := Normalize([]types.RawRow{r, r})
	if len(got) != 2 {
		t.Errorf("records = %d, want 2 (no deduplication)", len(got))
	}
}
