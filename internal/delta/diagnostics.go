package delta

import "fmt"

// Stage names for diagnostics, matching the pipeline component that
// noticed the condition.
const (
	stageDecode = "decode"
	stageTrack  = "track"
	stageFilter = "filter"
)

// Diagnostic is a soft error: a condition worth surfacing that did
// not abort the parse (unknown commands, tolerated tracker
// inconsistencies, oracle failures, filtered phantom records).
type Diagnostic struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	return d.Stage + ": " + d.Message
}

// diagnostics accumulates soft errors in encounter order.
type diagnostics struct {
	list []Diagnostic
}

func (d *diagnostics) addf(stage, format string, args ...any) {
	d.list = append(d.list, Diagnostic{Stage: stage, Message: fmt.Sprintf(format, args...)})
}
