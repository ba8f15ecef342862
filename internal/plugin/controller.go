// Package plugin wires the classifier, tracker, redirection engine, and
// interceptors into one controller that owns the settings record, the grace
// period, and teardown. All flags the components share live here as explicit
// fields, never as package globals.
package plugin

import (
	"context"
	"sync"
	"time"

	"github.com/searchpin/searchpin/internal/classify"
	"github.com/searchpin/searchpin/internal/intercept"
	"github.com/searchpin/searchpin/internal/observe"
	"github.com/searchpin/searchpin/internal/redirect"
	"github.com/searchpin/searchpin/internal/searchstate"
	"github.com/searchpin/searchpin/internal/settings"
	"github.com/searchpin/searchpin/internal/track"
	"github.com/searchpin/searchpin/internal/workspace"
)

// Options carries the controller's tunables.
type Options struct {
	Tracker               track.Config
	DetachDelay           time.Duration
	SearchCommandPatterns []string
}

// DefaultOptions returns the production tunables.
func DefaultOptions() Options {
	return Options{
		Tracker:     track.DefaultConfig(),
		DetachDelay: redirect.DefaultDetachDelay,
	}
}

// Plugin is the installed instance: one per host, one settings record.
type Plugin struct {
	ws   workspace.Workspace
	obs  *observe.Observer
	opts Options

	gateway *settings.Gateway

	mu      sync.Mutex
	current settings.Settings

	cls     *classify.Classifier
	tracker *track.Tracker
	engine  *redirect.Engine
	cmdInt  *intercept.CommandInterceptor
	vsInt   *intercept.ViewStateInterceptor

	unsubs  []func()
	enabled bool
}

// New creates a plugin bound to a host workspace and storage surface.
func New(ws workspace.Workspace, store workspace.Storage, obs *observe.Observer, opts Options) *Plugin {
	return &Plugin{
		ws:      ws,
		obs:     obs,
		opts:    opts,
		gateway: settings.NewGateway(store),
		current: settings.Default(),
	}
}

// Enable loads settings, installs event subscriptions and interceptors, and
// arms the startup sequence on the host's ready hook.
func (p *Plugin) Enable(ctx context.Context) error {
	ctx, span := p.obs.StartSpan(ctx, "plugin.enable")
	defer span.End()

	s, err := p.gateway.Load()
	if err != nil {
		// A broken blob must not keep the plugin from loading.
		p.obs.Log().Warn().Err(err).Msg("settings load failed, using defaults")
	}
	p.mu.Lock()
	p.current = s
	p.enabled = true
	p.mu.Unlock()
	p.obs.SetDebug(s.Debug)

	p.cls = classify.New(p.ws)
	p.tracker = track.New(p.ws, p.cls, p.obs, p, p.opts.Tracker)
	p.engine = redirect.New(p.ws, p.obs, p.tracker, p.Current, p.opts.DetachDelay)
	p.tracker.SetRedirector(p.engine)
	p.vsInt = intercept.NewViewStateInterceptor(p.obs, p.engine, p.shouldDivert)
	p.cmdInt = intercept.NewCommandInterceptor(p.ws, p.obs, p.opts.SearchCommandPatterns, p.onSearchCommand)

	events := p.ws.Events()
	p.unsubs = append(p.unsubs,
		events.Subscribe(workspace.EventLayoutChange, func(e workspace.Event) {
			p.onLayoutChange(context.Background())
		}),
		events.Subscribe(workspace.EventActiveLeafChange, func(e workspace.Event) {
			if e.Leaf != nil {
				p.tracker.HandleLeaf(context.Background(), e.Leaf)
			}
		}),
		events.Subscribe(workspace.EventLeafDetached, func(e workspace.Event) {
			if e.Leaf != nil {
				p.tracker.Abandon(e.Leaf.ID())
				p.vsInt.Detach(e.Leaf.ID())
			}
		}),
	)

	if s.OpenInMainArea {
		if err := p.cmdInt.Install(); err != nil {
			p.obs.Log().Warn().Err(err).Msg("command interception unavailable")
		}
	}

	p.ws.OnReady(func() {
		p.tracker.ArmGracePeriod()
		if p.Current().ClearSidebarOnStartup {
			p.clearSidebar()
		}
		p.onLayoutChange(context.Background())
	})

	// Pass over leaves that already exist at enable time.
	p.onLayoutChange(ctx)

	p.obs.Log().Info().Msg("searchpin enabled")
	return nil
}

// Close reverses everything Enable installed: event subscriptions, dispatch
// and view-state wrappers, pollers, and pending relocations. A reloaded
// instance must find the host exactly as it was.
func (p *Plugin) Close() error {
	p.mu.Lock()
	if !p.enabled {
		p.mu.Unlock()
		return nil
	}
	p.enabled = false
	unsubs := p.unsubs
	p.unsubs = nil
	p.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	p.cmdInt.Uninstall()
	p.vsInt.UninstallAll()
	p.engine.Close()
	p.tracker.Close()

	p.obs.Log().Info().Msg("searchpin disabled")
	return nil
}

// Current implements track.SettingsProvider.
func (p *Plugin) Current() settings.Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// PersistLastState implements track.SettingsProvider: replaces
// lastSearchState and flushes the whole record.
func (p *Plugin) PersistLastState(s searchstate.State) {
	p.mu.Lock()
	p.current.LastSearchState = s
	snapshot := p.current
	p.mu.Unlock()

	if err := p.gateway.Save(snapshot); err != nil {
		p.obs.Log().Warn().Err(err).Msg("persisting search state failed")
	}
}

// ApplySettings replaces the in-memory record without writing it back, for
// records that are already durable (external file edits). The command
// interceptor tracks the redirection toggle.
func (p *Plugin) ApplySettings(s settings.Settings) {
	p.mu.Lock()
	p.current = s
	enabled := p.enabled
	p.mu.Unlock()
	p.obs.SetDebug(s.Debug)

	if !enabled || p.cmdInt == nil {
		return
	}
	if s.OpenInMainArea {
		if err := p.cmdInt.Install(); err != nil {
			p.obs.Log().Warn().Err(err).Msg("command interception unavailable")
		}
	} else {
		p.cmdInt.Uninstall()
	}
}

// UpdateSettings replaces the record and flushes it, for edits coming from
// the settings panel.
func (p *Plugin) UpdateSettings(s settings.Settings) error {
	p.ApplySettings(s)
	return p.gateway.Save(s)
}

// onLayoutChange is the main lifecycle entry point: invalidate the location
// cache, wrap newly observed peripheral leaves, and sweep search leaves.
func (p *Plugin) onLayoutChange(ctx context.Context) {
	p.cls.Invalidate()

	if p.Current().OpenInMainArea {
		for _, leaf := range p.ws.AllLeaves() {
			if p.cls.Classify(leaf) == classify.Peripheral {
				p.vsInt.Attach(leaf)
			}
		}
	}

	p.tracker.Sweep(ctx)
}

// shouldDivert gates the view-state short-circuit.
func (p *Plugin) shouldDivert() bool {
	return p.Current().OpenInMainArea &&
		!p.tracker.InGracePeriod() &&
		p.tracker.AllowRedirect()
}

// onSearchCommand forces reclassification of peripheral search leaves after a
// search-opening command, then redirects immediately.
func (p *Plugin) onSearchCommand() {
	p.tracker.ClearPeripheralMarks()
	p.tracker.Sweep(context.Background())
}

// clearSidebar detaches lingering peripheral search leaves at startup.
// Best-effort: failures only cost the user a leftover pane.
func (p *Plugin) clearSidebar() {
	for _, leaf := range p.ws.LeavesOfType(workspace.ViewTypeSearch) {
		if p.cls.Classify(leaf) != classify.Peripheral {
			continue
		}
		p.tracker.MarkProcessed(leaf)
		if err := leaf.Detach(); err != nil {
			p.obs.Log().Debug().Str("leaf", leaf.ID()).Err(err).Msg("sidebar cleanup detach failed")
		}
	}
}
