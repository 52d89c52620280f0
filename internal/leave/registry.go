package leave

import (
	"fmt"

	"izin-bot/internal/model"
)

// Registry is the immutable set of leave categories configured at startup.
type Registry struct {
	ordered []model.LeaveCategory
	byName  map[string]model.LeaveCategory
}

// NewRegistry validates categories and keeps them in the given order.
func NewRegistry(categories []model.LeaveCategory) (*Registry, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("at least one leave category is required")
	}
	r := &Registry{
		ordered: make([]model.LeaveCategory, 0, len(categories)),
		byName:  make(map[string]model.LeaveCategory, len(categories)),
	}
	for i, c := range categories {
		if c.Name == "" {
			return nil, fmt.Errorf("category %d: name is required", i)
		}
		if _, dup := r.byName[c.Name]; dup {
			return nil, fmt.Errorf("category %q: duplicate name", c.Name)
		}
		if c.Duration <= 0 {
			return nil, fmt.Errorf("category %q: duration must be positive", c.Name)
		}
		if c.Capacity < 0 {
			return nil, fmt.Errorf("category %q: capacity must not be negative", c.Name)
		}
		r.ordered = append(r.ordered, c)
		r.byName[c.Name] = c
	}
	return r, nil
}

// Lookup resolves a category by name.
func (r *Registry) Lookup(name string) (model.LeaveCategory, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// All returns the categories in configuration order.
func (r *Registry) All() []model.LeaveCategory {
	out := make([]model.LeaveCategory, len(r.ordered))
	copy(out, r.ordered)
	return out
}
