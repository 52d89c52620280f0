package leave

import (
	"iter"
	"time"

	"izin-bot/internal/model"
)

// ActiveLeave is one row of a group's active-leave listing.
type ActiveLeave struct {
	MemberID  string              `json:"member_id"`
	Username  string              `json:"username,omitempty"`
	Category  model.LeaveCategory `json:"category"`
	StartedAt time.Time           `json:"started_at"`
	ExpiresAt time.Time           `json:"expires_at"`
	Remaining time.Duration       `json:"remaining"`
}

// ListActive yields the group's active leaves, oldest first. The snapshot
// and the remaining time are taken when iteration starts.
func (e *Engine) ListActive(groupID string) iter.Seq[ActiveLeave] {
	return func(yield func(ActiveLeave) bool) {
		now := e.clock.Now()
		for _, req := range e.store.Snapshot(groupID) {
			if !yield(ActiveLeave{
				MemberID:  req.MemberID,
				Username:  req.Routing.Username,
				Category:  req.Category,
				StartedAt: req.StartedAt,
				ExpiresAt: req.ExpiresAt,
				Remaining: max(0, req.ExpiresAt.Sub(now)),
			}) {
				return
			}
		}
	}
}
