package expedition

import "sync"

// Registry maps expedition ids to live aggregates.
type Registry struct {
	m sync.Map // int32 → *Expedition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// Add stores e under its id, replacing whatever was there.
func (r *Registry) Add(e *Expedition) {
	r.m.Store(e.ID(), e)
}

// Remove deletes e only if it is still the aggregate registered for its id.
func (r *Registry) Remove(e *Expedition) bool {
	return r.m.CompareAndDelete(e.ID(), e)
}

// Get returns the aggregate for id. A miss is a normal not-found.
func (r *Registry) Get(id int32) (*Expedition, bool) {
	v, ok := r.m.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Expedition), true
}

// Len counts the registered aggregates.
func (r *Registry) Len() int {
	n := 0
	r.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
