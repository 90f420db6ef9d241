package model

// Operation is one planned API call, derived from a validated row plus
// the resolved parent identifiers. Operations never outlive a single
// apply pass.
type Operation struct {
	ObjectType string
	Action     Action
	Method     string
	Path       string
	Payload    map[string]any
	Line       int
	Name       string
}

type Risk int

const (
	RiskSafe Risk = iota
	RiskDestructive
	RiskIrreversible
)

func (r Risk) String() string {
	switch r {
	case RiskSafe:
		return "safe"
	case RiskDestructive:
		return "destructive"
	case RiskIrreversible:
		return "irreversible"
	}
	return "unknown"
}
