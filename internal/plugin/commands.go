package plugin

import (
	"context"

	"github.com/searchpin/searchpin/internal/searchstate"
	"github.com/searchpin/searchpin/internal/workspace"
)

// Command identifiers registered with the host.
const (
	CmdOpenPinnedSearch = "searchpin:open-pinned-search"
	CmdSaveCurrentState = "searchpin:save-current-state"
	CmdClearSavedState  = "searchpin:clear-saved-state"
)

// OpenPinnedSearch creates a pinned main-area search leaf carrying the
// remembered state. The pin is unconditional here; the autoPin toggle only
// governs redirected leaves.
func (p *Plugin) OpenPinnedSearch(ctx context.Context) error {
	ctx, span := p.obs.StartSpan(ctx, "plugin.open_pinned_search")
	defer span.End()

	st := p.Current()

	leaf, err := p.ws.CreateLeafInMainArea(ctx)
	if err != nil {
		p.ws.Notify("searchpin: could not create a search view")
		return err
	}
	// The write below fires a layout change; the tracker must already
	// consider this leaf handled.
	p.tracker.MarkProcessed(leaf)

	state := searchstate.Clone(st.LastSearchState)
	if !st.RememberQuery {
		state = searchstate.WithQuery(state, "")
	}
	vs := workspace.ViewState{Type: workspace.ViewTypeSearch, State: state}
	if err := leaf.SetViewState(ctx, vs); err != nil {
		p.obs.Log().Debug().Str("leaf", leaf.ID()).Err(err).Msg("open-pinned view-state write failed")
	}
	if err := leaf.SetPinned(true); err != nil {
		p.obs.Log().Debug().Str("leaf", leaf.ID()).Err(err).Msg("open-pinned pin failed")
	}
	if err := p.ws.Reveal(leaf); err != nil {
		p.obs.Log().Debug().Str("leaf", leaf.ID()).Err(err).Msg("open-pinned reveal failed")
	}

	p.tracker.StartWatch(leaf, vs.State)
	return nil
}

// SaveCurrentState snapshots a live search leaf's state as the remembered
// record. The active leaf wins when it is a search view; otherwise the first
// search leaf in document order is used.
func (p *Plugin) SaveCurrentState(ctx context.Context) error {
	_, span := p.obs.StartSpan(ctx, "plugin.save_current_state")
	defer span.End()

	leaf := p.pickSearchLeaf()
	if leaf == nil {
		p.ws.Notify("searchpin: no search view open")
		return nil
	}

	st := p.Current()
	sanitized := searchstate.Sanitize(leaf.ViewState().State, st.RememberQuery)
	p.PersistLastState(searchstate.Clone(sanitized))

	p.ws.Notify("searchpin: search settings saved")
	p.obs.Log().Debug().Str("leaf", leaf.ID()).Msg("search state saved on request")
	return nil
}

// ClearSavedState drops the remembered search state and flushes the record.
func (p *Plugin) ClearSavedState(ctx context.Context) error {
	_, span := p.obs.StartSpan(ctx, "plugin.clear_saved_state")
	defer span.End()

	p.mu.Lock()
	p.current.LastSearchState = nil
	snapshot := p.current
	p.mu.Unlock()

	if err := p.gateway.Save(snapshot); err != nil {
		return err
	}
	p.ws.Notify("searchpin: saved search settings cleared")
	return nil
}

func (p *Plugin) pickSearchLeaf() workspace.Leaf {
	if active := p.ws.ActiveLeaf(); active != nil && active.ViewType() == workspace.ViewTypeSearch {
		return active
	}
	leaves := p.ws.LeavesOfType(workspace.ViewTypeSearch)
	if len(leaves) == 0 {
		return nil
	}
	return leaves[0]
}
