package stage

import (
	"context"
	"fmt"
)

// Handle is the type-erased stage identity the Registry orders and drives.
// sealed keeps the interface implementable only by *Stage, so the DAG can
// never contain a handle this package did not construct: ownership flows
// one way, and relations between stages are lookups, not cyclic strong
// references.
type Handle interface {
	Name() string
	Upstreams() []Handle
	UpdateFromSources(ctx context.Context, basedOnVersion int) (int, error)
	sealed()
}

// StageID is the integer handle a Registry hands back for a registered
// stage: an arena of owned nodes addressed by index, not a graph of
// pointers.
type StageID int

// Registry owns stage identity by name and computes the stable topological
// order UpdateTargets needs. It does not duplicate the DAG's edges: every
// Handle already knows its own Upstreams(), so the registry's job is
// limited to rejecting duplicate registration and traversal.
type Registry struct {
	byName  map[string]StageID
	handles []Handle
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]StageID)}
}

// Register adds h under its Name(). Duplicate names are rejected.
func (r *Registry) Register(h Handle) (StageID, error) {
	if _, exists := r.byName[h.Name()]; exists {
		return 0, fmt.Errorf("stage: %q already registered", h.Name())
	}
	id := StageID(len(r.handles))
	r.handles = append(r.handles, h)
	r.byName[h.Name()] = id
	return id, nil
}

func (r *Registry) Lookup(name string) (StageID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

func (r *Registry) Handle(id StageID) Handle { return r.handles[id] }

// UpdateTargets drives UpdateFromSources, in topological order, for every
// target and everything it transitively depends on.
func (r *Registry) UpdateTargets(ctx context.Context, targets []StageID, basedOnVersion int) error {
	order, err := r.topoOrder(targets)
	if err != nil {
		return err
	}
	for _, h := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := h.UpdateFromSources(ctx, basedOnVersion); err != nil {
			return fmt.Errorf("stage %q: %w", h.Name(), err)
		}
	}
	return nil
}

// topoOrder runs a DFS from each target, collecting dependencies before
// dependents. Visiting targets and each stage's Upstreams() in a fixed
// order makes the result stable across calls.
func (r *Registry) topoOrder(targets []StageID) ([]Handle, error) {
	const (
		unseen = iota
		visiting
		done
	)
	state := make(map[string]int, len(r.handles))
	var order []Handle

	var visit func(h Handle) error
	visit = func(h Handle) error {
		switch state[h.Name()] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("stage: cycle detected at %q", h.Name())
		}
		state[h.Name()] = visiting
		for _, up := range h.Upstreams() {
			if err := visit(up); err != nil {
				return err
			}
		}
		state[h.Name()] = done
		order = append(order, h)
		return nil
	}

	for _, id := range targets {
		if err := visit(r.handles[id]); err != nil {
			return nil, err
		}
	}
	return order, nil
}
