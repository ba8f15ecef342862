package track

import (
	"context"
	"time"

	"github.com/searchpin/searchpin/internal/searchstate"
	"github.com/searchpin/searchpin/internal/workspace"
)

// startWatch launches the drift poller for a leaf. At most one poller runs
// per record; a second call while one is active is a no-op.
func (t *Tracker) startWatch(leaf workspace.Leaf, rec *leafRecord) {
	t.mu.Lock()
	if rec.cancelWatch != nil {
		t.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(t.baseCtx)
	rec.cancelWatch = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go t.watch(ctx, leaf, rec)
}

// watch is the per-leaf reconciliation loop. The host offers no
// change-notification hook for view state, so drift is detected by polling:
// each tick compares the sanitized current state against the baseline
// fingerprint and persists on mismatch. The loop ends when the leaf stops
// being a search view or the tracker shuts down.
func (t *Tracker) watch(ctx context.Context, leaf workspace.Leaf, rec *leafRecord) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if leaf.ViewType() != workspace.ViewTypeSearch {
			t.obs.Log().Debug().Str("leaf", leaf.ID()).Msg("leaf left search view, abandoning watch")
			t.Abandon(leaf.ID())
			return
		}

		t.mu.Lock()
		immune := time.Since(rec.firstSeen) < t.cfg.Immunity
		baseline := rec.baseline
		t.mu.Unlock()
		if immune {
			// Host-internal settling right after creation is not a user edit.
			continue
		}

		st := t.provider.Current()
		cur := searchstate.Sanitize(leaf.ViewState().State, st.RememberQuery)
		fp := searchstate.Fingerprint(cur)
		if fp == baseline {
			continue
		}

		t.setBaseline(rec, fp)
		t.provider.PersistLastState(cur)
		t.obs.Log().Debug().Str("leaf", leaf.ID()).Msg("search state drift persisted")
	}
}
