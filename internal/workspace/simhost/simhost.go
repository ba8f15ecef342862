// Package simhost is an in-memory reference implementation of the workspace
// host: a pane tree with a main area and two sidebars, a lifecycle event bus,
// and a command registry with an interceptable dispatch. It backs the test
// suite and the scripted scenarios of the run command.
package simhost

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/searchpin/searchpin/internal/workspace"
)

// Area names a region of the simulated workspace tree.
type Area int

const (
	AreaMain Area = iota
	AreaLeftSidebar
	AreaRightSidebar
)

type node struct {
	parent *node
}

func (n *node) Parent() workspace.Container {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

// Host simulates the document-workspace UI.
type Host struct {
	mu sync.Mutex

	root  *node // main-area root container
	tabs  *node // tab group under the root
	left  *node // left sidebar root, detached from the main chain
	right *node

	leaves []*Leaf // document order
	active *Leaf

	events   *workspace.EventBus
	ready    bool
	readyFns []func()
	notices  []string

	commands       map[string]func(ctx context.Context) error
	dispatch       workspace.Dispatch
	noDispatchHook bool
}

// New creates an empty simulated workspace.
func New() *Host {
	root := &node{}
	h := &Host{
		root:     root,
		tabs:     &node{parent: root},
		left:     &node{parent: &node{}}, // sidebar chains never reach the root
		right:    &node{parent: &node{}},
		events:   workspace.NewEventBus(),
		commands: make(map[string]func(ctx context.Context) error),
	}
	h.dispatch = h.runCommand
	return h
}

// DisableDispatchHook makes the host report ErrNotSupported for command
// interception, mimicking hosts without that API.
func (h *Host) DisableDispatchHook() {
	h.mu.Lock()
	h.noDispatchHook = true
	h.mu.Unlock()
}

// Root implements workspace.Workspace.
func (h *Host) Root() workspace.Container { return h.root }

// Events implements workspace.Workspace.
func (h *Host) Events() *workspace.EventBus { return h.events }

// LeavesOfType implements workspace.Workspace.
func (h *Host) LeavesOfType(viewType string) []workspace.Leaf {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []workspace.Leaf
	for _, l := range h.leaves {
		if l.ViewType() == viewType {
			out = append(out, l)
		}
	}
	return out
}

// AllLeaves implements workspace.Workspace.
func (h *Host) AllLeaves() []workspace.Leaf {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]workspace.Leaf, len(h.leaves))
	for i, l := range h.leaves {
		out[i] = l
	}
	return out
}

// ActiveLeaf implements workspace.Workspace.
func (h *Host) ActiveLeaf() workspace.Leaf {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active == nil {
		return nil
	}
	return h.active
}

// CreateLeafInMainArea implements workspace.Workspace.
func (h *Host) CreateLeafInMainArea(ctx context.Context) (workspace.Leaf, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	leaf := h.NewLeaf(AreaMain)
	return leaf, nil
}

// NewLeaf creates an empty leaf in the given area and publishes the layout
// change, the way a host does when the user splits a pane.
func (h *Host) NewLeaf(area Area) *Leaf {
	h.mu.Lock()
	parent := h.tabs
	switch area {
	case AreaLeftSidebar:
		parent = h.left
	case AreaRightSidebar:
		parent = h.right
	}
	leaf := &Leaf{
		host:   h,
		id:     uuid.NewString(),
		parent: parent,
	}
	leaf.setter = leaf.applyViewState
	h.leaves = append(h.leaves, leaf)
	h.mu.Unlock()

	h.events.PublishSimple(workspace.EventLayoutChange)
	return leaf
}

// Reveal implements workspace.Workspace.
func (h *Host) Reveal(leaf workspace.Leaf) error {
	l, ok := leaf.(*Leaf)
	if !ok {
		return fmt.Errorf("simhost: foreign leaf %s", leaf.ID())
	}
	h.SetActive(l)
	return nil
}

// SetActive focuses a leaf and publishes the active-leaf change.
func (h *Host) SetActive(l *Leaf) {
	h.mu.Lock()
	h.active = l
	h.mu.Unlock()
	h.events.PublishLeaf(workspace.EventActiveLeafChange, l)
}

// OnReady implements workspace.Workspace.
func (h *Host) OnReady(fn func()) {
	h.mu.Lock()
	if h.ready {
		h.mu.Unlock()
		fn()
		return
	}
	h.readyFns = append(h.readyFns, fn)
	h.mu.Unlock()
}

// FireReady marks the host's startup (including session restore) complete and
// runs the registered hooks.
func (h *Host) FireReady() {
	h.mu.Lock()
	h.ready = true
	fns := h.readyFns
	h.readyFns = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Notify implements workspace.Workspace.
func (h *Host) Notify(message string) {
	h.mu.Lock()
	h.notices = append(h.notices, message)
	h.mu.Unlock()
}

// Notices returns the transient notices surfaced so far.
func (h *Host) Notices() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.notices))
	copy(out, h.notices)
	return out
}

// RegisterCommand adds an invocable command to the host registry.
func (h *Host) RegisterCommand(id string, fn func(ctx context.Context) error) {
	h.mu.Lock()
	h.commands[id] = fn
	h.mu.Unlock()
}

// ExecuteCommand dispatches a command through the current dispatch chain,
// including any installed wrapper.
func (h *Host) ExecuteCommand(ctx context.Context, commandID string) error {
	h.mu.Lock()
	d := h.dispatch
	h.mu.Unlock()
	return d(ctx, commandID)
}

func (h *Host) runCommand(ctx context.Context, commandID string) error {
	h.mu.Lock()
	fn, ok := h.commands[commandID]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("simhost: unknown command %q", commandID)
	}
	return fn(ctx)
}

// WrapCommandDispatch implements workspace.Workspace.
func (h *Host) WrapCommandDispatch(wrap func(next workspace.Dispatch) workspace.Dispatch) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.noDispatchHook {
		return nil, workspace.ErrNotSupported
	}
	prev := h.dispatch
	h.dispatch = wrap(prev)
	return func() {
		h.mu.Lock()
		h.dispatch = prev
		h.mu.Unlock()
	}, nil
}

func (h *Host) removeLeaf(l *Leaf) {
	h.mu.Lock()
	for i, cur := range h.leaves {
		if cur == l {
			h.leaves = append(h.leaves[:i], h.leaves[i+1:]...)
			break
		}
	}
	if h.active == l {
		h.active = nil
	}
	h.mu.Unlock()

	h.events.PublishLeaf(workspace.EventLeafDetached, l)
	h.events.PublishSimple(workspace.EventLayoutChange)
}
