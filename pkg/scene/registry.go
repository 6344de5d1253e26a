// Package scene holds the coordinator's view of the scene: every
// object's size and holder set, and the treelet dependency closures
// needed to size treelet assignments.
package scene

import (
	"fmt"
	"sort"

	"github.com/alex-ozdemir/raylet/pkg/types"
)

// Registry is the coordinator's scene index. Like pkg/peer.Table, a
// Registry is owned by exactly one goroutine -- the event loop's
// dispatcher -- once it has been built; LoadManifest runs once at
// startup before any worker connects and before the registry is handed
// to the dispatcher.
type Registry struct {
	objects     map[types.ObjectKey]*types.ObjectRecord
	treelets    map[types.TreeletID]*types.Treelet
	treeletIDs  []types.TreeletID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		objects:  make(map[types.ObjectKey]*types.ObjectRecord),
		treelets: make(map[types.TreeletID]*types.Treelet),
	}
}

// LoadManifest populates the registry from a parsed manifest. Every
// object becomes an ObjectRecord; every TREELET-typed object additionally
// becomes a Treelet entry, carrying forward the dependency list the
// manifest already flattened. The treelet id set is closed by this call:
// no later call may introduce a treelet id LoadManifest did not see.
func (r *Registry) LoadManifest(m *Manifest) error {
	for _, e := range m.Objects {
		key := types.ObjectKey{Type: e.Type, ID: e.ID}
		if _, exists := r.objects[key]; exists {
			return fmt.Errorf("scene: duplicate object %s/%d in manifest", e.Type, e.ID)
		}
		r.objects[key] = &types.ObjectRecord{
			Key:       key,
			SizeBytes: e.SizeBytes,
			Workers:   make(map[types.WorkerID]bool),
		}
		if e.Type == types.ObjectTreelet {
			id := types.TreeletID(e.ID)
			r.treelets[id] = &types.Treelet{
				ID:           id,
				SizeBytes:    e.SizeBytes,
				Dependencies: e.Dependencies,
				Holders:      make(map[types.WorkerID]bool),
			}
			r.treeletIDs = append(r.treeletIDs, id)
		}
	}
	sort.Slice(r.treeletIDs, func(i, j int) bool { return r.treeletIDs[i] < r.treeletIDs[j] })
	return nil
}

// TreeletIDs returns the closed set of treelet ids, in ascending order.
func (r *Registry) TreeletIDs() []types.TreeletID {
	return append([]types.TreeletID(nil), r.treeletIDs...)
}

// Treelet returns the treelet record for id, if one exists.
func (r *Registry) Treelet(id types.TreeletID) (*types.Treelet, bool) {
	t, ok := r.treelets[id]
	return t, ok
}

// Treelets returns every treelet record, satisfying pkg/metrics's
// TopologySource interface for the scene side of the coordinator.
func (r *Registry) Treelets() []types.Treelet {
	out := make([]types.Treelet, 0, len(r.treelets))
	for _, id := range r.treeletIDs {
		out = append(out, *r.treelets[id])
	}
	return out
}

// Object returns the object record for key, if one exists.
func (r *Registry) Object(key types.ObjectKey) (*types.ObjectRecord, bool) {
	o, ok := r.objects[key]
	return o, ok
}

// Objects returns every object key known to the registry, including
// treelets.
func (r *Registry) Objects() []types.ObjectKey {
	out := make([]types.ObjectKey, 0, len(r.objects))
	for k := range r.objects {
		out = append(out, k)
	}
	return out
}

// TotalSize returns size(t) + sum(size(dep) for dep in deps(t)), the
// bytes a worker must free to hold treelet t.
func (r *Registry) TotalSize(id types.TreeletID) (int64, error) {
	t, ok := r.treelets[id]
	if !ok {
		return 0, fmt.Errorf("scene: unknown treelet %d", id)
	}
	total := t.SizeBytes
	for _, dep := range t.Dependencies {
		obj, ok := r.objects[dep]
		if !ok {
			return 0, fmt.Errorf("scene: treelet %d depends on unknown object %s/%d", id, dep.Type, dep.ID)
		}
		total += obj.SizeBytes
	}
	return total, nil
}

// MarkHolder records that worker now holds treelet id, updating both
// the treelet's holder set and the holder sets of every object the
// treelet depends on (the dependent objects travel with the treelet).
func (r *Registry) MarkHolder(id types.TreeletID, worker types.WorkerID) error {
	t, ok := r.treelets[id]
	if !ok {
		return fmt.Errorf("scene: unknown treelet %d", id)
	}
	t.Holders[worker] = true
	for _, dep := range t.Dependencies {
		if obj, ok := r.objects[dep]; ok {
			obj.Workers[worker] = true
		}
	}
	return nil
}

// MarkObjectHolder records that worker now holds a non-treelet object
// (used for base objects assigned uniformly to every worker).
func (r *Registry) MarkObjectHolder(key types.ObjectKey, worker types.WorkerID) error {
	obj, ok := r.objects[key]
	if !ok {
		return fmt.Errorf("scene: unknown object %s/%d", key.Type, key.ID)
	}
	obj.Workers[worker] = true
	return nil
}

// HoldersOf returns the workers holding treelet id.
func (r *Registry) HoldersOf(id types.TreeletID) []types.WorkerID {
	t, ok := r.treelets[id]
	if !ok {
		return nil
	}
	out := make([]types.WorkerID, 0, len(t.Holders))
	for w := range t.Holders {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
