package aggregates

import "slices"

// Write operation names. They label spans, hooks and aggregate errors.
const (
	OpBlueprintCreate         = "Quest.Blueprint.Create"
	OpBlueprintUpdateMetadata = "Quest.Blueprint.UpdateMetadata"
	OpBlueprintUpsertGraph    = "Quest.Blueprint.UpsertGraph"

	OpAssignmentStart         = "Quest.Assignment.Start"
	OpAssignmentTransition    = "Quest.Assignment.Transition"
	OpAssignmentApplyProgress = "Quest.Assignment.ApplyProgress"
)

// Contract describes what an aggregate writes. Every listed operation runs in
// one transaction owned by the aggregate and touches only the listed tables.
type Contract struct {
	Name       string
	Operations []string
	Tables     []string
	Notes      string
}

// Aggregate is implemented by every write boundary.
type Aggregate interface {
	Contract() Contract
}

func (c Contract) Writes(op string) bool { return slices.Contains(c.Operations, op) }

func (c Contract) Owns(table string) bool { return slices.Contains(c.Tables, table) }
