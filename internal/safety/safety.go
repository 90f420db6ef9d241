// Package safety classifies a batch of operations by risk before any of
// them run. The importer facade calls it exactly once per pass; there is
// no other gate in front of the remote client.
package safety

import (
	"fmt"
	"strings"

	"github.com/ipamtools/bamsync/model"
)

// Classified pairs an operation with its assessed risk.
type Classified struct {
	Op   model.Operation
	Risk model.Risk
}

// RiskRejection aborts a run whose batch contains irreversible
// operations without an explicit override. No remote call has been
// issued when this is returned.
type RiskRejection struct {
	Blocked []Classified
}

func (e *RiskRejection) Error() string {
	lines := make([]string, len(e.Blocked))
	for i, c := range e.Blocked {
		lines[i] = fmt.Sprintf("line %d: %s %s %q", c.Op.Line, c.Op.Action, c.Op.ObjectType, c.Op.Name)
	}
	return fmt.Sprintf("batch contains %d irreversible operation(s), rerun with the destructive override to proceed:\n%s",
		len(e.Blocked), strings.Join(lines, "\n"))
}

// Classify assesses the whole batch. Creates are safe, updates overwrite
// existing objects and are destructive, deletes are irreversible. Any
// operation touching a protected name is irreversible regardless of
// action.
func Classify(ops []model.Operation, protected []string) []Classified {
	guard := make(map[string]bool, len(protected))
	for _, name := range protected {
		guard[name] = true
	}

	out := make([]Classified, len(ops))
	for i, op := range ops {
		risk := model.RiskSafe
		switch op.Action {
		case model.ActionUpdate:
			risk = model.RiskDestructive
		case model.ActionDelete:
			risk = model.RiskIrreversible
		}
		if guard[op.Name] && risk < model.RiskIrreversible {
			risk = model.RiskIrreversible
		}
		out[i] = Classified{Op: op, Risk: risk}
	}
	return out
}

// Check enforces the batch-level gate: any irreversible operation
// without the override rejects the entire run before a single apply.
func Check(classified []Classified, allowDestructive bool) error {
	if allowDestructive {
		return nil
	}
	var blocked []Classified
	for _, c := range classified {
		if c.Risk == model.RiskIrreversible {
			blocked = append(blocked, c)
		}
	}
	if len(blocked) > 0 {
		return &RiskRejection{Blocked: blocked}
	}
	return nil
}
