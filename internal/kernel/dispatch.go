// Package kernel implements per-operation kernel registration and dispatch:
// each named op (vector_add_f32, quantize_int8, ...) can register multiple
// candidate implementations gated by a hardware-requirement mask, an
// optimal-size hint, and a priority; Select picks the best one the running
// machine can execute.
package kernel

import (
	"sort"
	"sync"

	"github.com/libetude/libetude/internal/errs"
)

// Kernel is one candidate implementation of a named operation.
type Kernel struct {
	Name        string
	Requires    HWRequirement
	OptimalSize int // size threshold past which Priority gets boosted
	Priority    int
	Fn          interface{}
}

// sizeBoost is the small multiplier applied to a kernel's priority once the
// call's data size exceeds its OptimalSize hint, per spec §4.C.
const sizeBoost = 1.25

// Registry holds the kernels registered for every operation name and
// resolves, per call, the best one the detected hardware can run.
type Registry struct {
	mu       sync.RWMutex
	kernels  map[string][]Kernel
	features HWRequirement
}

// NewRegistry creates a registry that dispatches against the given detected
// hardware feature mask.
func NewRegistry(features HWRequirement) *Registry {
	return &Registry{kernels: make(map[string][]Kernel), features: features}
}

// Register adds a candidate kernel for op. A Scalar-requirement kernel
// should always be registered for every op, so Select never fails outright.
func (r *Registry) Register(op string, k Kernel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k.Name = op
	r.kernels[op] = append(r.kernels[op], k)
}

// Select returns the highest-effective-priority kernel registered for op
// whose hardware requirement is satisfied by the registry's detected
// features, boosting kernels whose OptimalSize hint is exceeded by size.
func (r *Registry) Select(op string, size int) (Kernel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := r.kernels[op]
	if len(candidates) == 0 {
		return Kernel{}, errs.Newf(errs.NotFound, "no kernel registered for op %q", op)
	}

	best := -1
	bestScore := -1.0
	for i, k := range candidates {
		if !k.Requires.Satisfies(r.features) {
			continue
		}
		score := float64(k.Priority)
		if size > k.OptimalSize {
			score *= sizeBoost
		}
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	if best < 0 {
		return Kernel{}, errs.Newf(errs.Unsupported, "no satisfiable kernel for op %q", op)
	}
	return candidates[best], nil
}

// Scalar returns the scalar reference kernel registered for op, used as the
// correctness oracle in tests regardless of what Select would pick.
func (r *Registry) Scalar(op string) (Kernel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range r.kernels[op] {
		if k.Requires == Scalar {
			return k, nil
		}
	}
	return Kernel{}, errs.Newf(errs.NotFound, "no scalar kernel registered for op %q", op)
}

// Ops returns the names of every operation with at least one registered
// kernel, sorted for deterministic iteration.
func (r *Registry) Ops() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.kernels))
	for name := range r.kernels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
