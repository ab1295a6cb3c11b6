package progress

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/guildops-backend/internal/domain/quest"
)

var (
	ErrInvalidStatus = errors.New("invalid progress status")
	ErrMissingNodeID = errors.New("missing node id")
)

// Update is one entry of a progress batch. Nil fields are left alone.
type Update struct {
	NodeID        string  `json:"nodeId" yaml:"nodeId"`
	Status        *string `json:"status,omitempty" yaml:"status,omitempty"`
	ProgressCount *int    `json:"progressCount,omitempty" yaml:"progressCount,omitempty"`
	Notes         *string `json:"notes,omitempty" yaml:"notes,omitempty"`
	IsDisabled    *bool   `json:"isDisabled,omitempty" yaml:"isDisabled,omitempty"`
}

// Normalize trims the node id and canonicalizes the status value.
func (u Update) Normalize() (Update, error) {
	u.NodeID = strings.TrimSpace(u.NodeID)
	if u.NodeID == "" {
		return u, ErrMissingNodeID
	}
	if u.Status != nil {
		s, ok := quest.NormalizeNodeStatus(*u.Status)
		if !ok {
			return u, fmt.Errorf("%w %q for node %q", ErrInvalidStatus, *u.Status, u.NodeID)
		}
		u.Status = &s
	}
	return u, nil
}

// TruncateNotes caps notes at quest.MaxNoteRunes runes. Blank notes clear the field.
func TruncateNotes(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	r := []rune(s)
	if len(r) > quest.MaxNoteRunes {
		s = string(r[:quest.MaxNoteRunes])
	}
	return &s
}

// ApplyUpdate applies u to row and reports whether any stored field changed.
// The disable toggle is applied first; group rows and rows that remain
// disabled take nothing else. Disabling never touches counters or status.
func ApplyUpdate(row *quest.NodeProgress, isGroup bool, u Update, now time.Time) bool {
	before := *row

	if u.IsDisabled != nil {
		row.IsDisabled = *u.IsDisabled
	}
	if isGroup || row.IsDisabled {
		return commit(&before, row, now)
	}

	if u.Status != nil && *u.Status != row.Status {
		next := *u.Status
		if next == quest.NodeInProgress && row.StartedAt == nil {
			t := now
			row.StartedAt = &t
		}
		if next == quest.NodeCompleted {
			t := now
			row.CompletedAt = &t
		} else {
			row.CompletedAt = nil
		}
		row.Status = next
	}
	if u.ProgressCount != nil {
		c := *u.ProgressCount
		if c < 0 {
			c = 0
		}
		row.ProgressCount = c
	}
	if u.Notes != nil {
		row.Notes = TruncateNotes(*u.Notes)
	}
	return commit(&before, row, now)
}

func commit(before, row *quest.NodeProgress, now time.Time) bool {
	if !rowChanged(before, row) {
		return false
	}
	row.UpdatedAt = now
	return true
}

// ShouldAutoComplete reports whether a completed final node should close the
// assignment. Disabled final nodes do not count.
func ShouldAutoComplete(assignmentStatus string, nodes []*quest.BlueprintNode, rows map[string]*quest.NodeProgress) bool {
	if quest.IsTerminalAssignmentStatus(assignmentStatus) {
		return false
	}
	for _, n := range nodes {
		if n == nil || !n.IsFinal() {
			continue
		}
		if r := rows[n.ID]; r != nil && !r.IsDisabled && r.Status == quest.NodeCompleted {
			return true
		}
	}
	return false
}
