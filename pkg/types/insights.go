package types

// Insights is the payload of /api/insights.
type Insights struct {
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
	Hints           []Hint   `json:"hints,omitempty"`
}

// Hint is one human-readable observation about a department or faculty member.
type Hint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical".
	Level string `json:"level"`
	// Title is a short label shown on the chip.
	Title string `json:"title"`
	// Detail is the full explanation shown on click/hover.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint.
	Value *float64 `json:"value,omitempty"`
}

// NoInsights is served when neither the upstream nor local rules can produce insights.
func NoInsights() Insights {
	return Insights{Summary: "No insights available", Recommendations: []string{}}
}
