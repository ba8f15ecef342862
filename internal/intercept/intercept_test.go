package intercept

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/searchpin/searchpin/internal/observe"
	"github.com/searchpin/searchpin/internal/searchstate"
	"github.com/searchpin/searchpin/internal/workspace"
	"github.com/searchpin/searchpin/internal/workspace/simhost"
)

type countingDiverter struct {
	mu    sync.Mutex
	calls []workspace.ViewState
}

func (d *countingDiverter) Redirect(ctx context.Context, leaf workspace.Leaf, requested workspace.ViewState) {
	d.mu.Lock()
	d.calls = append(d.calls, requested)
	d.mu.Unlock()
}

func (d *countingDiverter) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func testObserver() *observe.Observer {
	return observe.New(io.Discard, false)
}

func TestCommandInterceptorMatchesSearchCommands(t *testing.T) {
	host := simhost.New()
	host.RegisterCommand("global-search:open", func(ctx context.Context) error { return nil })
	host.RegisterCommand("editor:save", func(ctx context.Context) error { return nil })

	var fired int
	ci := NewCommandInterceptor(host, testObserver(), nil, func() { fired++ })
	if err := ci.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if !ci.Installed() {
		t.Fatal("interceptor reports not installed")
	}

	if err := host.ExecuteCommand(context.Background(), "global-search:open"); err != nil {
		t.Fatalf("ExecuteCommand: %v", err)
	}
	if fired != 1 {
		t.Errorf("onSearch fired %d times after matching command, want 1", fired)
	}

	if err := host.ExecuteCommand(context.Background(), "editor:save"); err != nil {
		t.Fatalf("ExecuteCommand: %v", err)
	}
	if fired != 1 {
		t.Errorf("onSearch fired %d times after non-matching command, want 1", fired)
	}
}

func TestCommandInterceptorUninstallRestoresDispatch(t *testing.T) {
	host := simhost.New()
	host.RegisterCommand("search:openInNewPane", func(ctx context.Context) error { return nil })

	var fired int
	ci := NewCommandInterceptor(host, testObserver(), nil, func() { fired++ })
	if err := ci.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}
	ci.Uninstall()
	if ci.Installed() {
		t.Fatal("interceptor still installed after Uninstall")
	}

	if err := host.ExecuteCommand(context.Background(), "search:openInNewPane"); err != nil {
		t.Fatalf("ExecuteCommand: %v", err)
	}
	if fired != 0 {
		t.Errorf("onSearch fired %d times after uninstall, want 0", fired)
	}
}

func TestCommandInterceptorDegradesWithoutHook(t *testing.T) {
	host := simhost.New()
	host.DisableDispatchHook()

	ci := NewCommandInterceptor(host, testObserver(), nil, func() {})
	if err := ci.Install(); err != nil {
		t.Fatalf("Install on hookless host must degrade silently, got %v", err)
	}
	if ci.Installed() {
		t.Error("interceptor claims installed on hookless host")
	}
}

func TestViewStateInterceptorDiverts(t *testing.T) {
	host := simhost.New()
	diverter := &countingDiverter{}
	vi := NewViewStateInterceptor(testObserver(), diverter, func() bool { return true })

	leaf := host.NewLeaf(simhost.AreaLeftSidebar)
	vi.Attach(leaf)
	if !vi.Attached(leaf.ID()) {
		t.Fatal("leaf not attached")
	}

	vs := workspace.ViewState{Type: workspace.ViewTypeSearch, State: searchstate.State{"query": "hello"}}
	if err := leaf.SetViewState(context.Background(), vs); err != nil {
		t.Fatalf("SetViewState: %v", err)
	}

	if diverter.count() != 1 {
		t.Fatalf("diverted %d times, want 1", diverter.count())
	}
	// The short-circuit keeps the original setter from ever running.
	if leaf.ViewType() == workspace.ViewTypeSearch {
		t.Error("diverted leaf still became a search view")
	}
}

func TestViewStateInterceptorForwardsWhenGated(t *testing.T) {
	host := simhost.New()
	diverter := &countingDiverter{}
	allow := false
	vi := NewViewStateInterceptor(testObserver(), diverter, func() bool { return allow })

	leaf := host.NewLeaf(simhost.AreaLeftSidebar)
	vi.Attach(leaf)

	vs := workspace.ViewState{Type: workspace.ViewTypeSearch}
	if err := leaf.SetViewState(context.Background(), vs); err != nil {
		t.Fatalf("SetViewState: %v", err)
	}
	if diverter.count() != 0 {
		t.Error("diverted despite gate closed")
	}
	if leaf.ViewType() != workspace.ViewTypeSearch {
		t.Error("gated call did not reach the original setter")
	}
}

func TestViewStateInterceptorForwardsOtherViewTypes(t *testing.T) {
	host := simhost.New()
	diverter := &countingDiverter{}
	vi := NewViewStateInterceptor(testObserver(), diverter, func() bool { return true })

	leaf := host.NewLeaf(simhost.AreaLeftSidebar)
	vi.Attach(leaf)

	if err := leaf.SetViewState(context.Background(), workspace.ViewState{Type: "markdown"}); err != nil {
		t.Fatalf("SetViewState: %v", err)
	}
	if diverter.count() != 0 {
		t.Error("non-search view-state diverted")
	}
	if leaf.ViewType() != "markdown" {
		t.Error("non-search view-state not applied")
	}
}

func TestViewStateInterceptorAttachIdempotent(t *testing.T) {
	host := simhost.New()
	diverter := &countingDiverter{}
	vi := NewViewStateInterceptor(testObserver(), diverter, func() bool { return true })

	leaf := host.NewLeaf(simhost.AreaLeftSidebar)
	vi.Attach(leaf)
	vi.Attach(leaf)

	vs := workspace.ViewState{Type: workspace.ViewTypeSearch}
	if err := leaf.SetViewState(context.Background(), vs); err != nil {
		t.Fatalf("SetViewState: %v", err)
	}
	if diverter.count() != 1 {
		t.Errorf("diverted %d times through a double-attached leaf, want 1", diverter.count())
	}
}

func TestViewStateInterceptorDetachRestores(t *testing.T) {
	host := simhost.New()
	diverter := &countingDiverter{}
	vi := NewViewStateInterceptor(testObserver(), diverter, func() bool { return true })

	leaf := host.NewLeaf(simhost.AreaLeftSidebar)
	vi.Attach(leaf)
	vi.Detach(leaf.ID())
	if vi.Attached(leaf.ID()) {
		t.Fatal("leaf still attached after Detach")
	}

	vs := workspace.ViewState{Type: workspace.ViewTypeSearch}
	if err := leaf.SetViewState(context.Background(), vs); err != nil {
		t.Fatalf("SetViewState: %v", err)
	}
	if diverter.count() != 0 {
		t.Error("detached leaf still diverted")
	}
	if leaf.ViewType() != workspace.ViewTypeSearch {
		t.Error("original setter not restored")
	}
}

func TestViewStateInterceptorUninstallAll(t *testing.T) {
	host := simhost.New()
	diverter := &countingDiverter{}
	vi := NewViewStateInterceptor(testObserver(), diverter, func() bool { return true })

	a := host.NewLeaf(simhost.AreaLeftSidebar)
	b := host.NewLeaf(simhost.AreaRightSidebar)
	vi.Attach(a)
	vi.Attach(b)

	vi.UninstallAll()

	for _, leaf := range []*simhost.Leaf{a, b} {
		if err := leaf.SetViewState(context.Background(), workspace.ViewState{Type: workspace.ViewTypeSearch}); err != nil {
			t.Fatalf("SetViewState: %v", err)
		}
	}
	if diverter.count() != 0 {
		t.Errorf("diverted %d times after UninstallAll, want 0", diverter.count())
	}
}
