package leave

import (
	"sort"
	"sync"

	"izin-bot/internal/clock"
	"izin-bot/internal/model"
)

type memberKey struct {
	group  string
	member string
}

// entry pairs an active request with its expiry timer. The timer field is
// only touched under the owning group's lock.
type entry struct {
	req   model.LeaveRequest
	timer *clock.Timer
}

// RequestStore is the authoritative set of active leaves.
type RequestStore struct {
	mu      sync.RWMutex
	entries map[memberKey]*entry
}

func NewRequestStore() *RequestStore {
	return &RequestStore{entries: make(map[memberKey]*entry)}
}

// Get returns the member's active leave, if any.
func (s *RequestStore) Get(groupID, memberID string) (model.LeaveRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[memberKey{groupID, memberID}]
	if !ok {
		return model.LeaveRequest{}, false
	}
	return e.req, true
}

// Snapshot returns the group's active leaves ordered by start time.
func (s *RequestStore) Snapshot(groupID string) []model.LeaveRequest {
	s.mu.RLock()
	var out []model.LeaveRequest
	for k, e := range s.entries {
		if k.group == groupID {
			out = append(out, e.req)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].MemberID < out[j].MemberID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Len returns the number of active leaves across all groups.
func (s *RequestStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *RequestStore) lookup(groupID, memberID string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[memberKey{groupID, memberID}]
}

func (s *RequestStore) put(e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[memberKey{e.req.GroupID, e.req.MemberID}] = e
}

func (s *RequestStore) remove(groupID, memberID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, memberKey{groupID, memberID})
}

func (s *RequestStore) all() []*entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}
