package quest

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	AssignmentActive    = "ACTIVE"
	AssignmentPaused    = "PAUSED"
	AssignmentCompleted = "COMPLETED"
	AssignmentCancelled = "CANCELLED"
)

const (
	NodeNotStarted = "NOT_STARTED"
	NodeInProgress = "IN_PROGRESS"
	NodeCompleted  = "COMPLETED"
	NodeBlocked    = "BLOCKED"
)

// MaxNoteRunes bounds NodeProgress.Notes.
const MaxNoteRunes = 1000

// NonTerminalAssignmentStatuses are the statuses that hold the
// (blueprint, user, character) slot.
var NonTerminalAssignmentStatuses = []string{AssignmentActive, AssignmentPaused}

func IsTerminalAssignmentStatus(s string) bool {
	return s == AssignmentCompleted || s == AssignmentCancelled
}

// NormalizeAssignmentStatus upper-cases s and reports whether it is a known status.
func NormalizeAssignmentStatus(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case AssignmentActive, AssignmentPaused, AssignmentCompleted, AssignmentCancelled:
		return s, true
	}
	return s, false
}

func NormalizeNodeStatus(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case NodeNotStarted, NodeInProgress, NodeCompleted, NodeBlocked:
		return s, true
	}
	return s, false
}

// ProgressSummary is the cached per-assignment rollup of non-disabled progress rows.
type ProgressSummary struct {
	TotalNodes      int     `json:"totalNodes"`
	Completed       int     `json:"completed"`
	InProgress      int     `json:"inProgress"`
	Blocked         int     `json:"blocked"`
	NotStarted      int     `json:"notStarted"`
	PercentComplete float64 `json:"percentComplete"`
}

type Assignment struct {
	ID             uuid.UUID                           `gorm:"type:uuid;primaryKey" json:"id"`
	BlueprintID    uuid.UUID                           `gorm:"type:uuid;not null;index:idx_quest_assignment_slot,priority:1" json:"blueprint_id"`
	GuildID        uuid.UUID                           `gorm:"type:uuid;not null;index" json:"guild_id"`
	UserID         uuid.UUID                           `gorm:"type:uuid;not null;index:idx_quest_assignment_slot,priority:2" json:"user_id"`
	CharacterID    uuid.UUID                           `gorm:"type:uuid;not null;index:idx_quest_assignment_slot,priority:3" json:"character_id"`
	Status         string                              `gorm:"column:status;not null;index" json:"status"`
	StartedAt      time.Time                           `gorm:"column:started_at;not null" json:"started_at"`
	CompletedAt    *time.Time                          `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CancelledAt    *time.Time                          `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	LastProgressAt *time.Time                          `gorm:"column:last_progress_at" json:"last_progress_at,omitempty"`
	Summary        datatypes.JSONType[ProgressSummary] `gorm:"column:summary" json:"summary"`
	CreatedAt      time.Time                           `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time                           `gorm:"not null" json:"updated_at"`
}

func (Assignment) TableName() string { return "quest_assignment" }

type NodeProgress struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AssignmentID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_quest_progress_node,unique,priority:1" json:"assignment_id"`
	NodeID        string     `gorm:"column:node_id;not null;index:idx_quest_progress_node,unique,priority:2" json:"node_id"`
	Status        string     `gorm:"column:status;not null" json:"status"`
	ProgressCount int        `gorm:"column:progress_count;not null" json:"progress_count"`
	TargetCount   int        `gorm:"column:target_count;not null" json:"target_count"`
	Notes         *string    `gorm:"column:notes;type:text" json:"notes,omitempty"`
	IsDisabled    bool       `gorm:"column:is_disabled;not null" json:"is_disabled"`
	StartedAt     *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt   *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	UpdatedAt     time.Time  `gorm:"not null" json:"updated_at"`
}

func (NodeProgress) TableName() string { return "quest_node_progress" }

// NewNodeProgress returns the initial row for a node in an assignment.
func NewNodeProgress(assignmentID uuid.UUID, node *BlueprintNode, now time.Time) *NodeProgress {
	target := 0
	if node != nil {
		target = node.Requirements.Count
	}
	id := ""
	if node != nil {
		id = node.ID
	}
	return &NodeProgress{
		ID:           uuid.New(),
		AssignmentID: assignmentID,
		NodeID:       id,
		Status:       NodeNotStarted,
		TargetCount:  target,
		UpdatedAt:    now,
	}
}
