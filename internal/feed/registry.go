package feed

// Registry maps feed ids to their tracked state. It is owned by the monitor,
// which serialises access; the map itself does no locking.
type Registry map[int]*State

// GetOrCreate returns the state for id, inserting the result of create the
// first time the id is seen. create runs at most once per missing id.
func (r Registry) GetOrCreate(id int, create func() *State) *State {
	if st, ok := r[id]; ok {
		return st
	}
	st := create()
	r[id] = st
	return st
}
