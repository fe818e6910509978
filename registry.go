package rwrouter

import (
	"sync"
	"sync/atomic"
)

// registryView is the immutable lookup state published when a Registry is sealed
type registryView struct {
	byID     map[int]Backend
	primary  Backend
	replicas []int
}

// Registry holds the primary and replica backends of a cluster.
//
// Backends are registered at startup, after which the registry is sealed and never changes again. Lookups on a sealed
// registry take no locks.
type Registry struct {
	mu       sync.Mutex
	backends map[int]Backend
	order    []int
	primary  *Backend

	view   atomic.Pointer[registryView]
	closed sync.Once
}

// NewRegistry creates an empty, unsealed Registry
func NewRegistry() *Registry {
	return &Registry{backends: map[int]Backend{}}
}

// Register adds a backend. It fails with a ConfigurationError once the registry is sealed, for a second primary, or for
// an id that is already taken.
func (r *Registry) Register(b Backend) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.view.Load() != nil {
		return configErrorf("backend %d registered after the registry was sealed", b.ID)
	}
	if b.Pool == nil {
		return configErrorf("backend %d has no pool", b.ID)
	}
	if _, taken := r.backends[b.ID]; taken {
		return configErrorf("duplicate backend id %d", b.ID)
	}
	switch b.Role {
	case RolePrimary:
		if r.primary != nil {
			return configErrorf("backend %d is a second primary (primary is %d)", b.ID, r.primary.ID)
		}
		r.primary = &b
	case RoleReplica:
		r.order = append(r.order, b.ID)
	default:
		return configErrorf("backend %d has unknown role %d", b.ID, int(b.Role))
	}
	r.backends[b.ID] = b
	return nil
}

// Seal freezes the registry. It fails with a ConfigurationError if no primary was registered; sealing twice is a no-op.
func (r *Registry) Seal() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.view.Load() != nil {
		return nil
	}
	if r.primary == nil {
		return configErrorf("no primary backend registered")
	}

	v := &registryView{
		byID:     make(map[int]Backend, len(r.backends)),
		primary:  *r.primary,
		replicas: append([]int(nil), r.order...),
	}
	for id, b := range r.backends {
		v.byID[id] = b
	}
	r.view.Store(v)
	return nil
}

// Sealed reports whether Seal has succeeded
func (r *Registry) Sealed() bool {
	return r.view.Load() != nil
}

// snapshot returns the sealed view, or a view of the registrations so far
func (r *Registry) snapshot() *registryView {
	if v := r.view.Load(); v != nil {
		return v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	v := &registryView{
		byID:     make(map[int]Backend, len(r.backends)),
		replicas: append([]int(nil), r.order...),
	}
	for id, b := range r.backends {
		v.byID[id] = b
	}
	if r.primary != nil {
		v.primary = *r.primary
	}
	return v
}

// Resolve returns the backend registered under id
func (r *Registry) Resolve(id int) (Backend, error) {
	b, ok := r.snapshot().byID[id]
	if !ok {
		return Backend{}, UnknownBackendError{ID: id}
	}
	return b, nil
}

// ReplicaIDs returns the replica ids in registration order
func (r *Registry) ReplicaIDs() []int {
	return append([]int(nil), r.snapshot().replicas...)
}

// PrimaryID returns the id of the primary backend
func (r *Registry) PrimaryID() int {
	return r.snapshot().primary.ID
}

// DefaultID returns the id used when there is nothing to route on, which is always the primary
func (r *Registry) DefaultID() int {
	return r.PrimaryID()
}

// Backends returns every backend, primary first and then the replicas in registration order
func (r *Registry) Backends() []Backend {
	v := r.snapshot()
	out := make([]Backend, 0, len(v.byID))
	if v.primary.Pool != nil {
		out = append(out, v.primary)
	}
	for _, id := range v.replicas {
		out = append(out, v.byID[id])
	}
	return out
}

// Close closes the pool of every registered backend. Only the first call has any effect.
func (r *Registry) Close() {
	r.closed.Do(func() {
		for _, b := range r.Backends() {
			b.Pool.Close()
		}
	})
}
