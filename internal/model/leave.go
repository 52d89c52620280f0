package model

import (
	"time"
)

type LeaveStatus string

const (
	LeaveStatusActive          LeaveStatus = "active"
	LeaveStatusCompletedOnTime LeaveStatus = "completed_on_time"
	LeaveStatusCompletedLate   LeaveStatus = "completed_late"
	LeaveStatusExpired         LeaveStatus = "expired"
	LeaveStatusCancelled       LeaveStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s LeaveStatus) Terminal() bool {
	return s != LeaveStatusActive && s != ""
}

// LeaveCategory is a named class of absence. Capacity 0 means unbounded.
type LeaveCategory struct {
	Name     string        `bson:"name" json:"name" yaml:"name"`
	Label    string        `bson:"label,omitempty" json:"label,omitempty" yaml:"label"`
	Duration time.Duration `bson:"duration" json:"duration" yaml:"duration"`
	Capacity int           `bson:"capacity,omitempty" json:"capacity,omitempty" yaml:"capacity"`
}

// Bounded reports whether the category limits concurrent holders.
func (c LeaveCategory) Bounded() bool {
	return c.Capacity > 0
}

// DisplayName returns the label, or the name when no label is set.
func (c LeaveCategory) DisplayName() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Name
}

// Routing carries reply context from the transport. The engine never
// interprets it.
type Routing struct {
	ThreadID string `bson:"thread_id,omitempty" json:"thread_id,omitempty"` // root post of the leave thread
	Username string `bson:"username,omitempty" json:"username,omitempty"`
}

type LeaveRequest struct {
	ID         string        `bson:"_id" json:"id"`
	GroupID    string        `bson:"group_id" json:"group_id"` // Mattermost channel ID
	MemberID   string        `bson:"member_id" json:"member_id"`
	Routing    Routing       `bson:"routing" json:"routing"`
	Category   LeaveCategory `bson:"category" json:"category"`
	StartedAt  time.Time     `bson:"started_at" json:"started_at"`
	ExpiresAt  time.Time     `bson:"expires_at" json:"expires_at"`
	Status     LeaveStatus   `bson:"status" json:"status"`
	ResolvedAt *time.Time    `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
	Lateness   time.Duration `bson:"lateness,omitempty" json:"lateness,omitempty"`
}

// MemberName returns the username carried in the routing context, or the
// member ID when none was supplied.
func (r LeaveRequest) MemberName() string {
	if r.Routing.Username != "" {
		return r.Routing.Username
	}
	return r.MemberID
}
