// Package presence tracks which users have live connections in this
// process. State is ephemeral: it is rebuilt from scratch on restart and an
// entry disappears as soon as its last connection goes away.
package presence

import (
	"sort"
	"sync"
)

// Registry maps user ids to their live connection ids. A change callback
// receives the updated online snapshot after every register/unregister so
// the session layer can broadcast it.
type Registry struct {
	// notifyMu serializes mutation and callback delivery together, so
	// snapshots always reach the callback in state order and the last
	// broadcast matches the final state.
	notifyMu sync.Mutex

	mu       sync.Mutex
	conns    map[string]map[string]struct{}
	onChange func(online []string)
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]map[string]struct{})}
}

// OnChange sets the snapshot callback. Must be called before connections
// arrive. Callbacks are invoked one at a time, in the order the changes
// were applied, and must not call back into the registry.
func (r *Registry) OnChange(fn func(online []string)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

func (r *Registry) Register(userID, connID string) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	set, ok := r.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		r.conns[userID] = set
	}
	set[connID] = struct{}{}
	fn, snapshot := r.onChange, r.snapshotLocked()
	r.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
}

func (r *Registry) Unregister(userID, connID string) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()

	r.mu.Lock()
	if set, ok := r.conns[userID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.conns, userID)
		}
	}
	fn, snapshot := r.onChange, r.snapshotLocked()
	r.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[userID]
	return ok
}

// OnlineUserIDs returns the sorted list of currently connected users.
func (r *Registry) OnlineUserIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() []string {
	out := make([]string, 0, len(r.conns))
	for id := range r.conns {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
