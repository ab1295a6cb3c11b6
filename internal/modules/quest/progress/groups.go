package progress

import (
	"time"

	"github.com/yungbote/guildops-backend/internal/domain/quest"
	"github.com/yungbote/guildops-backend/internal/modules/quest/graph"
)

// DeriveStatus folds the statuses of a group's eligible descendants.
func DeriveStatus(statuses []string) string {
	if len(statuses) == 0 {
		return quest.NodeCompleted
	}
	allCompleted, anyBlocked, anyStarted := true, false, false
	for _, s := range statuses {
		switch s {
		case quest.NodeCompleted:
			anyStarted = true
		case quest.NodeBlocked:
			anyBlocked = true
			allCompleted = false
		case quest.NodeInProgress:
			anyStarted = true
			allCompleted = false
		default:
			allCompleted = false
		}
	}
	switch {
	case allCompleted:
		return quest.NodeCompleted
	case anyBlocked:
		return quest.NodeBlocked
	case anyStarted:
		return quest.NodeInProgress
	default:
		return quest.NodeNotStarted
	}
}

// DeriveGroups recomputes every group row of one assignment in place.
// rows is keyed by node id. Nested groups are derived before the groups
// that contain them. The returned rows are the ones whose stored fields
// changed; an unchanged group keeps its original completedAt.
func DeriveGroups(a *graph.Analyzer, rows map[string]*quest.NodeProgress, now time.Time) []*quest.NodeProgress {
	var changed []*quest.NodeProgress
	for _, g := range a.GroupOrder() {
		row := rows[g.ID]
		if row == nil {
			continue
		}
		before := *row

		if row.IsDisabled {
			row.Status = quest.NodeNotStarted
			row.ProgressCount = 0
			row.TargetCount = 0
			row.CompletedAt = nil
		} else {
			var statuses []string
			completed := 0
			for _, id := range a.CollectDescendants(g.ID) {
				child := rows[id]
				if child == nil || child.IsDisabled {
					continue
				}
				statuses = append(statuses, child.Status)
				if child.Status == quest.NodeCompleted {
					completed++
				}
			}
			status := DeriveStatus(statuses)
			row.Status = status
			row.ProgressCount = completed
			row.TargetCount = len(statuses)
			if status == quest.NodeCompleted {
				if before.Status != quest.NodeCompleted || before.CompletedAt == nil {
					t := now
					row.CompletedAt = &t
				}
			} else {
				row.CompletedAt = nil
			}
		}

		if rowChanged(&before, row) {
			row.UpdatedAt = now
			changed = append(changed, row)
		}
	}
	return changed
}

func rowChanged(a, b *quest.NodeProgress) bool {
	return a.Status != b.Status ||
		a.ProgressCount != b.ProgressCount ||
		a.TargetCount != b.TargetCount ||
		a.IsDisabled != b.IsDisabled ||
		!sameTime(a.StartedAt, b.StartedAt) ||
		!sameTime(a.CompletedAt, b.CompletedAt) ||
		!sameString(a.Notes, b.Notes)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
