package socketio

import (
	"sort"
	"sync"
)

// Registry maps "host:port" to the Session carrying every endpoint of that destination.
// It lives as long as the Manager owning it.
type Registry struct {
	ß map[string]*Session
	sync.RWMutex
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		ß: make(map[string]*Session),
	}
}

// Find returns the session registered under key
func (r *Registry) Find(key string) (ß *Session, ok bool) {
	r.RLock()
	ß, ok = r.ß[key]
	r.RUnlock()
	return
}

// Insert registers ß under key, replacing any previous entry
func (r *Registry) Insert(key string, ß *Session) {
	r.Lock()
	r.ß[key] = ß
	r.Unlock()
}

// Remove drops whatever session is registered under key
func (r *Registry) Remove(key string) {
	r.Lock()
	delete(r.ß, key)
	r.Unlock()
}

// Len returns the number of registered sessions
func (r *Registry) Len() int {
	r.RLock()
	defer r.RUnlock()
	return len(r.ß)
}

// Keys returns the registered keys, sorted
func (r *Registry) Keys() []string {
	r.RLock()
	keys := make([]string, 0, len(r.ß))
	for k := range r.ß {
		keys = append(keys, k)
	}
	r.RUnlock()
	sort.Strings(keys)
	return keys
}

// insertIfAbsent registers ß unless a session is already present; the present one wins
func (r *Registry) insertIfAbsent(key string, ß *Session) *Session {
	r.Lock()
	defer r.Unlock()
	if cur, ok := r.ß[key]; ok {
		return cur
	}
	r.ß[key] = ß
	return ß
}

// removeSession drops key only while it still maps to ß
func (r *Registry) removeSession(key string, ß *Session) {
	r.Lock()
	if cur, ok := r.ß[key]; ok && cur == ß {
		delete(r.ß, key)
	}
	r.Unlock()
}

func (r *Registry) sessions() []*Session {
	r.RLock()
	ß := make([]*Session, 0, len(r.ß))
	for _, s := range r.ß {
		ß = append(ß, s)
	}
	r.RUnlock()
	return ß
}
