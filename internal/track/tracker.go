// Package track observes workspace lifecycle events and drives every search
// leaf through its states: unseen, processed (applying), processed
// (watching), abandoned. Each leaf is classified exactly once; the outcome is
// either "apply remembered state and watch for drift" or "hand off to the
// redirection engine".
package track

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/searchpin/searchpin/internal/classify"
	"github.com/searchpin/searchpin/internal/observe"
	"github.com/searchpin/searchpin/internal/searchstate"
	"github.com/searchpin/searchpin/internal/settings"
	"github.com/searchpin/searchpin/internal/workspace"
)

// Config carries the tracker's timing knobs. Tests shrink these; production
// uses DefaultConfig.
type Config struct {
	// PollInterval is the drift-detection period per watched leaf.
	PollInterval time.Duration
	// Immunity is the window after first sighting during which state changes
	// are attributed to the host settling, not the user.
	Immunity time.Duration
	// GracePeriod suppresses redirection after host startup completes, so
	// session-restored leaves are left alone.
	GracePeriod time.Duration
	// RedirectEvery bounds redirection triggers to one per interval.
	RedirectEvery time.Duration
	// ReapplyDelay is the pause before the remembered state is written a
	// second time, for hosts that overwrite state shortly after creation.
	ReapplyDelay time.Duration
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		PollInterval:  800 * time.Millisecond,
		Immunity:      2 * time.Second,
		GracePeriod:   2 * time.Second,
		RedirectEvery: 500 * time.Millisecond,
		ReapplyDelay:  100 * time.Millisecond,
	}
}

// Redirector relocates a peripheral search leaf to the main area.
type Redirector interface {
	Redirect(ctx context.Context, leaf workspace.Leaf, requested workspace.ViewState)
}

// SettingsProvider exposes the controller-owned settings record.
type SettingsProvider interface {
	// Current returns the live settings record.
	Current() settings.Settings
	// PersistLastState stores a sanitized state as lastSearchState.
	PersistLastState(s searchstate.State)
}

// leafRecord is the tracker-owned metadata for one leaf. Records are keyed by
// leaf ID and abandoned when the leaf is detached or stops being a search
// view; the host's leaf object itself is never annotated.
type leafRecord struct {
	processed   bool
	firstSeen   time.Time
	baseline    string
	cancelWatch context.CancelFunc
}

// Tracker owns the per-leaf records, the startup grace deadline, and the
// redirection rate limiter.
type Tracker struct {
	ws       workspace.Workspace
	cls      *classify.Classifier
	obs      *observe.Observer
	provider SettingsProvider
	cfg      Config

	mu         sync.Mutex
	records    map[string]*leafRecord
	redirector Redirector
	graceHeld  bool // startup not yet complete; stronger than the deadline
	graceUntil time.Time
	limiter    *rate.Limiter

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a tracker. Redirection stays suppressed until ArmGracePeriod
// runs (from the host's ready hook) and its window elapses.
func New(ws workspace.Workspace, cls *classify.Classifier, obs *observe.Observer, provider SettingsProvider, cfg Config) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		ws:        ws,
		cls:       cls,
		obs:       obs,
		provider:  provider,
		cfg:       cfg,
		records:   make(map[string]*leafRecord),
		graceHeld: true,
		limiter:   rate.NewLimiter(rate.Every(cfg.RedirectEvery), 1),
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// SetRedirector wires the redirection engine. Without one the tracker only
// applies remembered state and watches.
func (t *Tracker) SetRedirector(r Redirector) {
	t.mu.Lock()
	t.redirector = r
	t.mu.Unlock()
}

// ArmGracePeriod starts the post-startup grace window. Until it elapses, no
// leaf is redirected regardless of settings.
func (t *Tracker) ArmGracePeriod() {
	t.mu.Lock()
	t.graceHeld = false
	t.graceUntil = time.Now().Add(t.cfg.GracePeriod)
	t.mu.Unlock()
}

// InGracePeriod reports whether redirection is currently suppressed.
func (t *Tracker) InGracePeriod() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.graceHeld || time.Now().Before(t.graceUntil)
}

// AllowRedirect consumes a slot from the redirection limiter. Triggers
// arriving within RedirectEvery of the previous one are dropped.
func (t *Tracker) AllowRedirect() bool {
	return t.limiter.Allow()
}

// MarkProcessed records a leaf as classified without running the applying
// workflow. It returns false when the leaf was already processed. The
// redirection engine uses it for both the doomed original and its
// replacement.
func (t *Tracker) MarkProcessed(leaf workspace.Leaf) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[leaf.ID()]
	if ok && rec.processed {
		return false
	}
	if rec == nil {
		rec = &leafRecord{firstSeen: time.Now()}
		t.records[leaf.ID()] = rec
	}
	rec.processed = true
	return true
}

// Sweep runs HandleLeaf over every current search leaf. Called on
// layout-change events and after search-opening commands.
func (t *Tracker) Sweep(ctx context.Context) {
	for _, leaf := range t.ws.LeavesOfType(workspace.ViewTypeSearch) {
		t.HandleLeaf(ctx, leaf)
	}
}

// HandleLeaf performs the unseen-to-processed transition for one leaf. The
// mark is taken before any blocking host call, so re-entrant events observe
// the leaf as already processed.
func (t *Tracker) HandleLeaf(ctx context.Context, leaf workspace.Leaf) {
	if leaf.ViewType() != workspace.ViewTypeSearch {
		return
	}

	t.mu.Lock()
	rec, ok := t.records[leaf.ID()]
	if ok && rec.processed {
		t.mu.Unlock()
		return
	}
	if rec == nil {
		rec = &leafRecord{firstSeen: time.Now()}
		t.records[leaf.ID()] = rec
	}
	rec.processed = true
	redirector := t.redirector
	t.mu.Unlock()

	st := t.provider.Current()
	loc := t.cls.Classify(leaf)

	if st.OpenInMainArea && loc == classify.Peripheral && !t.InGracePeriod() && redirector != nil {
		if !t.AllowRedirect() {
			t.obs.Log().Debug().Str("leaf", leaf.ID()).Msg("redirection trigger dropped by rate limit")
			return
		}
		t.obs.Log().Debug().Str("leaf", leaf.ID()).Msg("peripheral search leaf handed to redirection")
		redirector.Redirect(ctx, leaf, leaf.ViewState())
		return
	}

	t.apply(ctx, leaf, rec, st)
	t.startWatch(leaf, rec)
}

// apply merges the remembered state into the leaf and captures the baseline
// fingerprint. Without a remembered state the baseline is taken from the
// leaf's current state.
func (t *Tracker) apply(ctx context.Context, leaf workspace.Leaf, rec *leafRecord, st settings.Settings) {
	if st.LastSearchState == nil {
		fp := searchstate.Fingerprint(searchstate.Sanitize(leaf.ViewState().State, st.RememberQuery))
		t.setBaseline(rec, fp)
		return
	}

	merged := searchstate.Merge(leaf.ViewState().State, st.LastSearchState)
	if !st.RememberQuery {
		merged = searchstate.WithQuery(merged, "")
	}
	vs := workspace.ViewState{Type: workspace.ViewTypeSearch, State: merged}

	if err := leaf.SetViewState(ctx, vs); err != nil {
		t.obs.Log().Debug().Str("leaf", leaf.ID()).Err(err).Msg("apply remembered state failed")
	}
	t.setBaseline(rec, searchstate.Fingerprint(searchstate.Sanitize(merged, st.RememberQuery)))

	// Some hosts overwrite a freshly created view's state moments later;
	// writing once more after a short delay wins that race.
	t.after(t.cfg.ReapplyDelay, func() {
		if err := leaf.SetViewState(t.baseCtx, vs); err != nil {
			t.obs.Log().Debug().Str("leaf", leaf.ID()).Err(err).Msg("re-apply failed")
		}
	})
}

// StartWatch begins drift-polling a leaf whose state was just applied by an
// external workflow (the redirection engine, the open-pinned command).
func (t *Tracker) StartWatch(leaf workspace.Leaf, applied searchstate.State) {
	st := t.provider.Current()
	fp := searchstate.Fingerprint(searchstate.Sanitize(applied, st.RememberQuery))

	t.mu.Lock()
	rec, ok := t.records[leaf.ID()]
	if !ok {
		rec = &leafRecord{processed: true, firstSeen: time.Now()}
		t.records[leaf.ID()] = rec
	}
	rec.baseline = fp
	t.mu.Unlock()

	t.startWatch(leaf, rec)
}

// Abandon drops a leaf's record and stops its poller. Called when the leaf is
// detached from the workspace.
func (t *Tracker) Abandon(leafID string) {
	t.mu.Lock()
	rec, ok := t.records[leafID]
	if ok {
		if rec.cancelWatch != nil {
			rec.cancelWatch()
		}
		delete(t.records, leafID)
	}
	t.mu.Unlock()
}

// ClearPeripheralMarks forgets the processed marks of all current peripheral
// search leaves, forcing reclassification on the next sweep. Used by the
// command interception path.
func (t *Tracker) ClearPeripheralMarks() {
	for _, leaf := range t.ws.LeavesOfType(workspace.ViewTypeSearch) {
		if t.cls.Classify(leaf) != classify.Peripheral {
			continue
		}
		t.Abandon(leaf.ID())
	}
}

// Processed reports whether a leaf has been classified.
func (t *Tracker) Processed(leafID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[leafID]
	return ok && rec.processed
}

// Close cancels every poller and pending re-apply, then waits for them.
func (t *Tracker) Close() {
	t.cancel()
	t.wg.Wait()

	t.mu.Lock()
	t.records = make(map[string]*leafRecord)
	t.mu.Unlock()
}

func (t *Tracker) setBaseline(rec *leafRecord, fp string) {
	t.mu.Lock()
	rec.baseline = fp
	t.mu.Unlock()
}

// after runs fn once d elapses, unless the tracker is closed first.
func (t *Tracker) after(d time.Duration, fn func()) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-t.baseCtx.Done():
		case <-timer.C:
			fn()
		}
	}()
}
