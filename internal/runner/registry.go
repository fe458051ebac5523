package runner

import "sort"

// Registry holds the open sessions of one worker, ordered by ramp-up index so
// random picks by position are reproducible. Not safe for concurrent use.
type Registry struct {
	sessions []*Session
	byID     map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Session)}
}

// Add inserts s. It returns false if a session with the same id exists.
func (r *Registry) Add(s *Session) bool {
	if _, exists := r.byID[s.ID]; exists {
		return false
	}
	i := sort.Search(len(r.sessions), func(i int) bool { return r.sessions[i].Index > s.Index })
	r.sessions = append(r.sessions, nil)
	copy(r.sessions[i+1:], r.sessions[i:])
	r.sessions[i] = s
	r.byID[s.ID] = s
	return true
}

// Remove deletes the session with id and returns it.
func (r *Registry) Remove(id string) (*Session, bool) {
	s, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	for i, candidate := range r.sessions {
		if candidate == s {
			r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
			break
		}
	}
	return s, true
}

func (r *Registry) Get(id string) (*Session, bool) {
	s, ok := r.byID[id]
	return s, ok
}

func (r *Registry) Len() int { return len(r.sessions) }

// At returns the i-th session in ramp-up order.
func (r *Registry) At(i int) *Session { return r.sessions[i] }

// Sessions returns a copy of the sessions in ramp-up order.
func (r *Registry) Sessions() []*Session {
	return append([]*Session(nil), r.sessions...)
}
