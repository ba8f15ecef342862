// Package redirect relocates a search view from a peripheral leaf to a new
// main-area leaf. The replacement is always requested before the original is
// destroyed, so the user never loses a live search view.
package redirect

import (
	"context"
	"sync"
	"time"

	"github.com/searchpin/searchpin/internal/observe"
	"github.com/searchpin/searchpin/internal/searchstate"
	"github.com/searchpin/searchpin/internal/settings"
	"github.com/searchpin/searchpin/internal/workspace"
)

// DefaultDetachDelay is how long the hidden original lingers before detach.
// Long enough for the replacement to render, short enough to go unnoticed.
const DefaultDetachDelay = 50 * time.Millisecond

// Marker is the slice of the tracker the engine needs: marking leaves
// processed so they are never classified twice, and registering the
// replacement for drift watching.
type Marker interface {
	MarkProcessed(leaf workspace.Leaf) bool
	StartWatch(leaf workspace.Leaf, applied searchstate.State)
}

// Engine performs the relocation.
type Engine struct {
	ws          workspace.Workspace
	obs         *observe.Observer
	marker      Marker
	current     func() settings.Settings
	detachDelay time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an engine. current exposes the live settings record; marker is
// the tracker.
func New(ws workspace.Workspace, obs *observe.Observer, marker Marker, current func() settings.Settings, detachDelay time.Duration) *Engine {
	if detachDelay <= 0 {
		detachDelay = DefaultDetachDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		ws:          ws,
		obs:         obs,
		marker:      marker,
		current:     current,
		detachDelay: detachDelay,
		baseCtx:     ctx,
		cancel:      cancel,
	}
}

// Redirect hides the unwanted leaf, creates a pinned main-area replacement
// carrying the preserved query/state, and detaches the original after a short
// delay. Errors on the hide/detach side are swallowed: destroying the
// original is best-effort cleanup, not required for correctness.
func (e *Engine) Redirect(ctx context.Context, leaf workspace.Leaf, requested workspace.ViewState) {
	e.marker.MarkProcessed(leaf)

	// Blank the doomed leaf right away so the user never sees it flash in.
	leaf.HideContent()

	state := requested.State
	if state == nil {
		state = leaf.ViewState().State
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.relocate(leaf, state)
	}()
}

func (e *Engine) relocate(original workspace.Leaf, state searchstate.State) {
	ctx := e.baseCtx
	st := e.current()

	replacement, err := e.ws.CreateLeafInMainArea(ctx)
	if err != nil {
		e.obs.Log().Warn().Err(err).Msg("could not create main-area leaf, leaving original in place")
		return
	}

	// Mark before the view-state write: the write fires a layout change and
	// the tracker must see the replacement as already handled.
	e.marker.MarkProcessed(replacement)

	vs := workspace.ViewState{Type: workspace.ViewTypeSearch, State: searchstate.Clone(state)}
	if err := replacement.SetViewState(ctx, vs); err != nil {
		e.obs.Log().Debug().Str("leaf", replacement.ID()).Err(err).Msg("replacement view-state write failed")
	}

	if st.AutoPin {
		if err := replacement.SetPinned(true); err != nil {
			e.obs.Log().Debug().Str("leaf", replacement.ID()).Err(err).Msg("pin failed")
		}
	}
	if err := e.ws.Reveal(replacement); err != nil {
		e.obs.Log().Debug().Str("leaf", replacement.ID()).Err(err).Msg("reveal failed")
	}

	e.marker.StartWatch(replacement, vs.State)

	e.obs.Log().Debug().
		Str("from", original.ID()).
		Str("to", replacement.ID()).
		Str("query", searchstate.Query(state)).
		Msg("search view redirected to main area")

	timer := time.NewTimer(e.detachDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	if err := original.Detach(); err != nil {
		e.obs.Log().Debug().Str("leaf", original.ID()).Err(err).Msg("detach of original failed")
	}
}

// Close cancels pending relocations and waits for in-flight ones.
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}
