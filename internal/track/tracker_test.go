package track

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/searchpin/searchpin/internal/classify"
	"github.com/searchpin/searchpin/internal/observe"
	"github.com/searchpin/searchpin/internal/searchstate"
	"github.com/searchpin/searchpin/internal/settings"
	"github.com/searchpin/searchpin/internal/workspace"
	"github.com/searchpin/searchpin/internal/workspace/simhost"
)

// stubProvider is a SettingsProvider with a mutable record and a log of
// persisted states.
type stubProvider struct {
	mu        sync.Mutex
	settings  settings.Settings
	persisted []searchstate.State
}

func (p *stubProvider) Current() settings.Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

func (p *stubProvider) PersistLastState(s searchstate.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.persisted = append(p.persisted, s)
}

func (p *stubProvider) persistedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.persisted)
}

func (p *stubProvider) lastPersisted() searchstate.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.persisted) == 0 {
		return nil
	}
	return p.persisted[len(p.persisted)-1]
}

// recordingRedirector counts hand-offs.
type recordingRedirector struct {
	mu    sync.Mutex
	leafs []workspace.Leaf
}

func (r *recordingRedirector) Redirect(ctx context.Context, leaf workspace.Leaf, requested workspace.ViewState) {
	r.mu.Lock()
	r.leafs = append(r.leafs, leaf)
	r.mu.Unlock()
}

func (r *recordingRedirector) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.leafs)
}

func testConfig() Config {
	return Config{
		PollInterval:  10 * time.Millisecond,
		Immunity:      0,
		GracePeriod:   20 * time.Millisecond,
		RedirectEvery: 5 * time.Millisecond,
		ReapplyDelay:  time.Hour, // keep the delayed re-apply out of assertions
	}
}

func newTestTracker(t *testing.T, host *simhost.Host, provider *stubProvider, cfg Config) *Tracker {
	t.Helper()
	obs := observe.New(io.Discard, false)
	tr := New(host, classify.New(host), obs, provider, cfg)
	t.Cleanup(tr.Close)
	return tr
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition never met: %s", msg)
}

func newSearchLeaf(t *testing.T, host *simhost.Host, area simhost.Area, state searchstate.State) *simhost.Leaf {
	t.Helper()
	leaf := host.NewLeaf(area)
	vs := workspace.ViewState{Type: workspace.ViewTypeSearch, State: state}
	if err := leaf.SetViewState(context.Background(), vs); err != nil {
		t.Fatalf("SetViewState: %v", err)
	}
	return leaf
}

func TestHandleLeafAppliesRememberedState(t *testing.T) {
	host := simhost.New()
	provider := &stubProvider{settings: settings.Settings{
		LastSearchState: searchstate.State{"sortOrder": "alphabetical", "query": "secret"},
		AutoPin:         true,
	}}
	tr := newTestTracker(t, host, provider, testConfig())

	leaf := newSearchLeaf(t, host, simhost.AreaMain, searchstate.State{"query": "live"})
	tr.HandleLeaf(context.Background(), leaf)

	got := leaf.ViewState().State
	if got["sortOrder"] != "alphabetical" {
		t.Errorf("sortOrder = %v, want alphabetical", got["sortOrder"])
	}
	if got["query"] != "" {
		t.Errorf("query = %q, want blank with rememberQuery off", got["query"])
	}
	if !tr.Processed(leaf.ID()) {
		t.Error("leaf not marked processed")
	}
}

func TestHandleLeafKeepsQueryWhenRemembered(t *testing.T) {
	host := simhost.New()
	provider := &stubProvider{settings: settings.Settings{
		LastSearchState: searchstate.State{"query": "remembered"},
		RememberQuery:   true,
	}}
	tr := newTestTracker(t, host, provider, testConfig())

	leaf := newSearchLeaf(t, host, simhost.AreaMain, nil)
	tr.HandleLeaf(context.Background(), leaf)

	if q := searchstate.Query(leaf.ViewState().State); q != "remembered" {
		t.Errorf("query = %q, want remembered", q)
	}
}

func TestHandleLeafProcessesExactlyOnce(t *testing.T) {
	host := simhost.New()
	provider := &stubProvider{settings: settings.Settings{
		LastSearchState: searchstate.State{"sortOrder": "alphabetical"},
	}}
	tr := newTestTracker(t, host, provider, testConfig())

	leaf := newSearchLeaf(t, host, simhost.AreaMain, nil)

	var applies int
	var mu sync.Mutex
	restore := leaf.WrapViewStateSetter(func(next workspace.ViewStateSetter) workspace.ViewStateSetter {
		return func(ctx context.Context, vs workspace.ViewState) error {
			mu.Lock()
			applies++
			mu.Unlock()
			return next(ctx, vs)
		}
	})
	defer restore()

	tr.HandleLeaf(context.Background(), leaf)
	tr.HandleLeaf(context.Background(), leaf)
	tr.Sweep(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if applies != 1 {
		t.Errorf("remembered state applied %d times, want 1", applies)
	}
}

func TestHandleLeafIgnoresNonSearchViews(t *testing.T) {
	host := simhost.New()
	provider := &stubProvider{settings: settings.Default()}
	tr := newTestTracker(t, host, provider, testConfig())

	leaf := host.NewLeaf(simhost.AreaMain)
	if err := leaf.SetViewState(context.Background(), workspace.ViewState{Type: "markdown"}); err != nil {
		t.Fatalf("SetViewState: %v", err)
	}
	tr.HandleLeaf(context.Background(), leaf)

	if tr.Processed(leaf.ID()) {
		t.Error("non-search leaf was processed")
	}
}

func TestGracePeriodSuppressesRedirect(t *testing.T) {
	host := simhost.New()
	provider := &stubProvider{settings: settings.Settings{OpenInMainArea: true}}
	tr := newTestTracker(t, host, provider, testConfig())
	rd := &recordingRedirector{}
	tr.SetRedirector(rd)

	// Grace is held until armed, regardless of elapsed time.
	leaf := newSearchLeaf(t, host, simhost.AreaLeftSidebar, nil)
	tr.HandleLeaf(context.Background(), leaf)
	if rd.count() != 0 {
		t.Fatal("redirect fired before the grace period was armed")
	}
	if !tr.Processed(leaf.ID()) {
		t.Error("grace-period leaf not marked processed")
	}

	tr.ArmGracePeriod()
	if !tr.InGracePeriod() {
		t.Error("grace window not active right after arming")
	}

	waitFor(t, func() bool { return !tr.InGracePeriod() }, "grace window elapses")

	second := newSearchLeaf(t, host, simhost.AreaLeftSidebar, nil)
	tr.HandleLeaf(context.Background(), second)
	if rd.count() != 1 {
		t.Errorf("redirect count = %d after grace elapsed, want 1", rd.count())
	}
}

func TestRedirectRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.GracePeriod = 0
	cfg.RedirectEvery = time.Hour

	host := simhost.New()
	provider := &stubProvider{settings: settings.Settings{OpenInMainArea: true}}
	tr := newTestTracker(t, host, provider, cfg)
	rd := &recordingRedirector{}
	tr.SetRedirector(rd)
	tr.ArmGracePeriod()

	first := newSearchLeaf(t, host, simhost.AreaLeftSidebar, nil)
	second := newSearchLeaf(t, host, simhost.AreaLeftSidebar, nil)
	tr.HandleLeaf(context.Background(), first)
	tr.HandleLeaf(context.Background(), second)

	if rd.count() != 1 {
		t.Errorf("redirect count = %d, want 1 (second trigger inside the window)", rd.count())
	}
	if !tr.Processed(second.ID()) {
		t.Error("rate-limited leaf must still be marked processed")
	}
}

func TestMainAreaLeafNeverRedirected(t *testing.T) {
	cfg := testConfig()
	cfg.GracePeriod = 0

	host := simhost.New()
	provider := &stubProvider{settings: settings.Settings{OpenInMainArea: true}}
	tr := newTestTracker(t, host, provider, cfg)
	rd := &recordingRedirector{}
	tr.SetRedirector(rd)
	tr.ArmGracePeriod()

	leaf := newSearchLeaf(t, host, simhost.AreaMain, nil)
	tr.HandleLeaf(context.Background(), leaf)

	if rd.count() != 0 {
		t.Error("main-area leaf was handed to the redirector")
	}
}

func TestWatchPersistsDrift(t *testing.T) {
	host := simhost.New()
	provider := &stubProvider{settings: settings.Default()}
	tr := newTestTracker(t, host, provider, testConfig())

	leaf := newSearchLeaf(t, host, simhost.AreaMain, searchstate.State{"sortOrder": "modified"})
	tr.HandleLeaf(context.Background(), leaf)

	vs := workspace.ViewState{Type: workspace.ViewTypeSearch, State: searchstate.State{"sortOrder": "alphabetical", "query": "typed"}}
	if err := leaf.SetViewState(context.Background(), vs); err != nil {
		t.Fatalf("SetViewState: %v", err)
	}

	waitFor(t, func() bool { return provider.persistedCount() > 0 }, "drift persisted")

	got := provider.lastPersisted()
	if got["sortOrder"] != "alphabetical" {
		t.Errorf("persisted sortOrder = %v, want alphabetical", got["sortOrder"])
	}
	if _, ok := got[searchstate.QueryKey]; ok {
		t.Error("query persisted despite rememberQuery off")
	}
}

func TestWatchImmunityWindow(t *testing.T) {
	cfg := testConfig()
	cfg.Immunity = time.Hour

	host := simhost.New()
	provider := &stubProvider{settings: settings.Default()}
	tr := newTestTracker(t, host, provider, cfg)

	leaf := newSearchLeaf(t, host, simhost.AreaMain, nil)
	tr.HandleLeaf(context.Background(), leaf)

	vs := workspace.ViewState{Type: workspace.ViewTypeSearch, State: searchstate.State{"sortOrder": "alphabetical"}}
	if err := leaf.SetViewState(context.Background(), vs); err != nil {
		t.Fatalf("SetViewState: %v", err)
	}

	time.Sleep(5 * cfg.PollInterval)
	if provider.persistedCount() != 0 {
		t.Error("drift persisted inside the immunity window")
	}
}

func TestWatchAbandonedWhenLeafLeavesSearch(t *testing.T) {
	host := simhost.New()
	provider := &stubProvider{settings: settings.Default()}
	tr := newTestTracker(t, host, provider, testConfig())

	leaf := newSearchLeaf(t, host, simhost.AreaMain, nil)
	tr.HandleLeaf(context.Background(), leaf)

	if err := leaf.SetViewState(context.Background(), workspace.ViewState{Type: "markdown"}); err != nil {
		t.Fatalf("SetViewState: %v", err)
	}

	waitFor(t, func() bool { return !tr.Processed(leaf.ID()) }, "record dropped after view-type change")
}

func TestClearPeripheralMarks(t *testing.T) {
	host := simhost.New()
	provider := &stubProvider{settings: settings.Default()}
	tr := newTestTracker(t, host, provider, testConfig())

	sidebar := newSearchLeaf(t, host, simhost.AreaLeftSidebar, nil)
	main := newSearchLeaf(t, host, simhost.AreaMain, nil)
	tr.HandleLeaf(context.Background(), sidebar)
	tr.HandleLeaf(context.Background(), main)

	tr.ClearPeripheralMarks()

	if tr.Processed(sidebar.ID()) {
		t.Error("peripheral mark survived ClearPeripheralMarks")
	}
	if !tr.Processed(main.ID()) {
		t.Error("main-area mark was cleared")
	}
}

func TestStartWatchUsesAppliedBaseline(t *testing.T) {
	host := simhost.New()
	provider := &stubProvider{settings: settings.Default()}
	tr := newTestTracker(t, host, provider, testConfig())

	applied := searchstate.State{"sortOrder": "alphabetical"}
	leaf := newSearchLeaf(t, host, simhost.AreaMain, applied)
	tr.MarkProcessed(leaf)
	tr.StartWatch(leaf, applied)

	// Matching state produces no persistence.
	time.Sleep(5 * testConfig().PollInterval)
	if provider.persistedCount() != 0 {
		t.Fatalf("baseline state persisted as drift %d times", provider.persistedCount())
	}

	vs := workspace.ViewState{Type: workspace.ViewTypeSearch, State: searchstate.State{"sortOrder": "byPath"}}
	if err := leaf.SetViewState(context.Background(), vs); err != nil {
		t.Fatalf("SetViewState: %v", err)
	}
	waitFor(t, func() bool { return provider.persistedCount() > 0 }, "drift from applied baseline persisted")
}
