package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/searchpin/searchpin/internal/observe"
	"github.com/searchpin/searchpin/internal/plugin"
	"github.com/searchpin/searchpin/internal/scenario"
	"github.com/searchpin/searchpin/internal/searchstate"
	"github.com/searchpin/searchpin/internal/settings"
	"github.com/searchpin/searchpin/internal/workspace"
	"github.com/searchpin/searchpin/internal/workspace/simhost"
)

// settleTimeout bounds how long an expect step waits for asynchronous
// relocations to finish.
const settleTimeout = 2 * time.Second

type Runner struct {
	Observer *observe.Observer
	Store    workspace.Storage
	Path     string
}

func NewRunner(obs *observe.Observer, store workspace.Storage, path string) *Runner {
	return &Runner{
		Observer: obs,
		Store:    store,
		Path:     path,
	}
}

// Run loads, validates, and replays one scenario against a fresh simulated
// host with the plugin enabled.
func (r *Runner) Run(ctx context.Context) error {
	r.Observer.Log().Info().Str("path", r.Path).Msg("loading scenario")
	sc, err := scenario.Load(r.Path)
	if err != nil {
		return err
	}
	if err := sc.Validate(); err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}

	if sc.Settings != nil {
		data, encErr := settings.Encode(*sc.Settings)
		if encErr != nil {
			return encErr
		}
		if saveErr := r.Store.SaveData(data); saveErr != nil {
			return fmt.Errorf("seed settings: %w", saveErr)
		}
	}

	host := simhost.New()
	p := plugin.New(host, r.Store, r.Observer, plugin.DefaultOptions())
	if err := p.Enable(ctx); err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	host.RegisterCommand(plugin.CmdOpenPinnedSearch, p.OpenPinnedSearch)
	host.RegisterCommand(plugin.CmdSaveCurrentState, p.SaveCurrentState)
	host.RegisterCommand(plugin.CmdClearSavedState, p.ClearSavedState)

	if watchSettings {
		if fs, ok := r.Store.(*settings.FileStore); ok {
			watchCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() {
				if err := settings.Watch(watchCtx, fs, r.Observer.Log(), p.ApplySettings); err != nil {
					r.Observer.Log().Warn().Err(err).Msg("settings watcher failed")
				}
			}()
		} else {
			r.Observer.Log().Warn().Msg("--watch needs a file-backed store, ignoring")
		}
	}

	r.Observer.Log().Info().Str("name", sc.Name).Int("steps", len(sc.Steps)).Msg("replaying scenario")

	leaves := make(map[string]*simhost.Leaf)
	for i, step := range sc.Steps {
		if err := r.runStep(ctx, host, p, leaves, step); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, host *simhost.Host, p *plugin.Plugin, leaves map[string]*simhost.Leaf, step scenario.Step) error {
	switch {
	case step.CreateLeaf != nil:
		leaves[step.CreateLeaf.ID] = host.NewLeaf(areaOf(step.CreateLeaf.Area))
		return nil

	case step.SetViewState != nil:
		leaf := leaves[step.SetViewState.Leaf]
		vs := workspace.ViewState{Type: step.SetViewState.Type, State: step.SetViewState.State}
		return leaf.SetViewState(ctx, vs)

	case step.FireReady:
		host.FireReady()
		return nil

	case step.Wait != "":
		d, _ := time.ParseDuration(step.Wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
			return nil
		}

	case step.Command != "":
		// Host-native commands exist only by name in a scenario; give them a
		// no-op body so dispatch (and its interceptor) still runs.
		switch step.Command {
		case plugin.CmdOpenPinnedSearch, plugin.CmdSaveCurrentState, plugin.CmdClearSavedState:
		default:
			host.RegisterCommand(step.Command, func(ctx context.Context) error { return nil })
		}
		return host.ExecuteCommand(ctx, step.Command)

	case step.OpenPinnedSearch:
		return p.OpenPinnedSearch(ctx)

	case step.SaveCurrentState:
		return p.SaveCurrentState(ctx)

	case step.ClearSavedState:
		return p.ClearSavedState(ctx)

	case step.Expect != nil:
		return r.expect(host, leaves, step.Expect)
	}
	return fmt.Errorf("empty step")
}

// expect retries until the workspace settles or the timeout hits, since
// relocation runs asynchronously.
func (r *Runner) expect(host *simhost.Host, leaves map[string]*simhost.Leaf, e *scenario.Expect) error {
	deadline := time.Now().Add(settleTimeout)
	var last error
	for {
		last = checkExpect(host, leaves, e)
		if last == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return last
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func checkExpect(host *simhost.Host, leaves map[string]*simhost.Leaf, e *scenario.Expect) error {
	if e.SearchLeaves != nil {
		if got := len(host.LeavesOfType(workspace.ViewTypeSearch)); got != *e.SearchLeaves {
			return fmt.Errorf("search leaves = %d, want %d", got, *e.SearchLeaves)
		}
	}
	if e.Detached != nil {
		if leaf := leaves[*e.Detached]; !leaf.Detached() {
			return fmt.Errorf("leaf %q still attached", *e.Detached)
		}
	}
	if e.ActivePinned != nil || e.ActiveQuery != nil {
		active := host.ActiveLeaf()
		if active == nil {
			return fmt.Errorf("no active leaf")
		}
		if e.ActivePinned != nil && active.Pinned() != *e.ActivePinned {
			return fmt.Errorf("active leaf pinned = %v, want %v", active.Pinned(), *e.ActivePinned)
		}
		if e.ActiveQuery != nil {
			if got := searchstate.Query(active.ViewState().State); got != *e.ActiveQuery {
				return fmt.Errorf("active query = %q, want %q", got, *e.ActiveQuery)
			}
		}
	}
	return nil
}

func areaOf(name string) simhost.Area {
	switch name {
	case scenario.AreaLeftSidebar:
		return simhost.AreaLeftSidebar
	case scenario.AreaRightSidebar:
		return simhost.AreaRightSidebar
	default:
		return simhost.AreaMain
	}
}
