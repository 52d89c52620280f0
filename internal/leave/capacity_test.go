package leave

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"izin-bot/internal/model"
)

var smoke = model.LeaveCategory{Name: "smoke", Duration: 10 * time.Minute, Capacity: 2}

func TestCapacityManager_Bound(t *testing.T) {
	m := NewCapacityManager()

	assert.True(t, m.TryAdmit("g1", smoke, "alice"))
	assert.False(t, m.TryAdmit("g1", smoke, "alice"), "already a holder")
	assert.True(t, m.TryAdmit("g1", smoke, "bob"))
	assert.False(t, m.TryAdmit("g1", smoke, "carol"), "full")
	assert.True(t, m.TryAdmit("g2", smoke, "carol"), "groups are independent")

	assert.Equal(t, []string{"alice", "bob"}, m.Holders("g1", smoke))

	m.Release("g1", smoke, "alice")
	m.Release("g1", smoke, "alice")
	assert.Equal(t, []string{"bob"}, m.Holders("g1", smoke))
	assert.True(t, m.TryAdmit("g1", smoke, "carol"))
	assert.Equal(t, []string{"bob", "carol"}, m.Holders("g1", smoke))
}

func TestCapacityManager_Unbounded(t *testing.T) {
	m := NewCapacityManager()
	jojo := model.LeaveCategory{Name: "jojo", Duration: 5 * time.Minute}
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		assert.True(t, m.TryAdmit("g", jojo, id))
	}
	assert.Len(t, m.Holders("g", jojo), 5)
}

func TestCapacityManager_HoldersIsSnapshot(t *testing.T) {
	m := NewCapacityManager()
	m.TryAdmit("g", smoke, "alice")
	h := m.Holders("g", smoke)
	h[0] = "mallory"
	assert.Equal(t, []string{"alice"}, m.Holders("g", smoke))
}

func TestCapacityManager_ConcurrentAdmit(t *testing.T) {
	m := NewCapacityManager()
	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.TryAdmit("g", smoke, string(rune('a'+i))) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(smoke.Capacity), admitted.Load())
}
