package intercept

import (
	"context"
	"sync"

	"github.com/searchpin/searchpin/internal/observe"
	"github.com/searchpin/searchpin/internal/workspace"
)

// Diverter receives the short-circuited view-state calls. In production this
// is the redirection engine.
type Diverter interface {
	Redirect(ctx context.Context, leaf workspace.Leaf, requested workspace.ViewState)
}

// ViewStateInterceptor wraps peripheral leaves' view-state setters the first
// time each leaf is observed. A call that would turn a peripheral leaf into a
// search view (while the predicate allows diversion) never reaches the
// original setter; the engine builds the main-area replacement directly from
// the requested state, so the unwanted view never materializes.
type ViewStateInterceptor struct {
	obs          *observe.Observer
	diverter     Diverter
	shouldDivert func() bool

	mu       sync.Mutex
	restores map[string]func()
}

// NewViewStateInterceptor creates the interceptor. shouldDivert gates every
// short-circuit: redirection enabled, grace period elapsed, rate limit clear.
func NewViewStateInterceptor(obs *observe.Observer, diverter Diverter, shouldDivert func() bool) *ViewStateInterceptor {
	return &ViewStateInterceptor{
		obs:          obs,
		diverter:     diverter,
		shouldDivert: shouldDivert,
		restores:     make(map[string]func()),
	}
}

// Attach wraps one leaf's setter. Idempotent per leaf.
func (v *ViewStateInterceptor) Attach(leaf workspace.Leaf) {
	v.mu.Lock()
	if _, ok := v.restores[leaf.ID()]; ok {
		v.mu.Unlock()
		return
	}
	// Reserve the slot before wrapping so a re-entrant Attach is a no-op.
	v.restores[leaf.ID()] = func() {}
	v.mu.Unlock()

	restore := leaf.WrapViewStateSetter(func(next workspace.ViewStateSetter) workspace.ViewStateSetter {
		return func(ctx context.Context, vs workspace.ViewState) error {
			if vs.Type == workspace.ViewTypeSearch && v.shouldDivert() {
				v.obs.Log().Debug().Str("leaf", leaf.ID()).Msg("peripheral search view-state diverted")
				v.diverter.Redirect(ctx, leaf, vs)
				return nil
			}
			return next(ctx, vs)
		}
	})

	v.mu.Lock()
	v.restores[leaf.ID()] = restore
	v.mu.Unlock()
}

// Detach restores one leaf's original setter, typically because the leaf was
// destroyed.
func (v *ViewStateInterceptor) Detach(leafID string) {
	v.mu.Lock()
	restore, ok := v.restores[leafID]
	delete(v.restores, leafID)
	v.mu.Unlock()
	if ok {
		restore()
	}
}

// Attached reports whether a leaf's setter is currently wrapped.
func (v *ViewStateInterceptor) Attached(leafID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.restores[leafID]
	return ok
}

// UninstallAll restores every wrapped setter. Part of plugin teardown.
func (v *ViewStateInterceptor) UninstallAll() {
	v.mu.Lock()
	restores := v.restores
	v.restores = make(map[string]func())
	v.mu.Unlock()
	for _, restore := range restores {
		restore()
	}
}
