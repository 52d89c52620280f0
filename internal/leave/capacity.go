package leave

import (
	"slices"
	"sync"

	"izin-bot/internal/model"
)

type capacityKey struct {
	group    string
	category string
}

// CapacityManager tracks which members hold each category within a group.
// Each method is atomic on its own; the engine's per-group lock makes
// admission and release atomic with the request store.
type CapacityManager struct {
	mu      sync.Mutex
	holders map[capacityKey][]string
}

func NewCapacityManager() *CapacityManager {
	return &CapacityManager{holders: make(map[capacityKey][]string)}
}

// TryAdmit adds memberID to the holders of category in groupID. It returns
// false without mutation when the member already holds the category or a
// bounded category is full.
func (m *CapacityManager) TryAdmit(groupID string, category model.LeaveCategory, memberID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := capacityKey{group: groupID, category: category.Name}
	current := m.holders[key]
	if slices.Contains(current, memberID) {
		return false
	}
	if category.Bounded() && len(current) >= category.Capacity {
		return false
	}
	m.holders[key] = append(current, memberID)
	return true
}

// Release removes memberID from the holders. Releasing a non-holder is a no-op.
func (m *CapacityManager) Release(groupID string, category model.LeaveCategory, memberID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := capacityKey{group: groupID, category: category.Name}
	current := m.holders[key]
	i := slices.Index(current, memberID)
	if i < 0 {
		return
	}
	current = slices.Delete(current, i, i+1)
	if len(current) == 0 {
		delete(m.holders, key)
		return
	}
	m.holders[key] = current
}

// Holders returns a snapshot of the holders in admission order.
func (m *CapacityManager) Holders(groupID string, category model.LeaveCategory) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.holders[capacityKey{group: groupID, category: category.Name}])
}
