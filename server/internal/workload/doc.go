// Package workload turns wide faculty rows into scored, classified records.
//
// normalize.go expands each row (up to nine subject slots) into one
// Assignment per non-empty subject.
//
// score.go provides the pure scoring and classification passes:
//
//	workload_score = teaching_hours*1.0 + lab_hours*1.5 + evaluation_weight
//
// with evaluation weights Low=1, Medium=2, High=3 (anything else weighs 2).
// Classify groups records by faculty+department, averages the group totals per
// department and labels each group Overloaded (ratio > 1.2), Underutilized
// (ratio < 0.8) or Balanced.
//
// summary.go derives the dashboard views (overview, departments, faculty).
// demo.go holds the fixed dataset served when the upstream is unavailable.
//
// Every function is a pure transform of its input; nothing is shared between
// calls, so the package needs no locking.
package workload
