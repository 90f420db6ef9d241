package model

import "time"

type Outcome string

const (
	OutcomeApplied       Outcome = "Applied"
	OutcomeAlreadyExists Outcome = "AlreadyExists"
	OutcomeFailed        Outcome = "Failed"
	OutcomeSimulated     Outcome = "Applied (simulated)"
)

// RowResult is the terminal outcome of one operation.
type RowResult struct {
	Line       int     `json:"line"`
	Name       string  `json:"name"`
	ObjectType string  `json:"objectType"`
	Outcome    Outcome `json:"outcome"`
	Reason     string  `json:"reason,omitempty"`
}

// RunReport is the complete record of one apply pass, one result per
// operation in file order. Immutable once the pass finishes.
type RunReport struct {
	RunID    string      `json:"runId"`
	DryRun   bool        `json:"dryRun"`
	Started  time.Time   `json:"started"`
	Finished time.Time   `json:"finished"`
	Results  []RowResult `json:"results"`
}

func (r RunReport) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

func (r RunReport) Failed() int {
	return r.Count(OutcomeFailed)
}

// Warning records a row dropped during a lenient parse.
type Warning struct {
	Line    int
	Field   string
	Message string
}
