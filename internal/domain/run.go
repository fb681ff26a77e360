package domain

// LineKind tags where a captured line came from.
type LineKind string

const (
	LineLog   LineKind = "log"
	LineInfo  LineKind = "info"
	LineWarn  LineKind = "warn"
	LineError LineKind = "error"
	// LineFault marks uncaught errors and sandbox limits, never explicit console calls.
	LineFault LineKind = "fault"
)

// RunLine is one captured console line of a sandbox run.
type RunLine struct {
	Seq  int      `json:"seq"`
	Kind LineKind `json:"kind"`
	Text string   `json:"text"`
}
