package progress

import (
	"math"

	"github.com/yungbote/guildops-backend/internal/domain/quest"
)

// Round4 rounds to 4 decimal places.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// BuildSummary rolls non-disabled rows into the cached assignment summary.
func BuildSummary(rows []*quest.NodeProgress) quest.ProgressSummary {
	var s quest.ProgressSummary
	for _, r := range rows {
		if r == nil || r.IsDisabled {
			continue
		}
		s.TotalNodes++
		switch r.Status {
		case quest.NodeCompleted:
			s.Completed++
		case quest.NodeInProgress:
			s.InProgress++
		case quest.NodeBlocked:
			s.Blocked++
		default:
			s.NotStarted++
		}
	}
	if s.TotalNodes > 0 {
		s.PercentComplete = Round4(float64(s.Completed) / float64(s.TotalNodes))
	}
	return s
}
