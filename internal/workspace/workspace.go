// Package workspace defines the host-side surface the plugin consumes: leaf
// handles, view-state access, lifecycle events, and the two interception
// seams (command dispatch, per-leaf view-state setter). The host owns every
// leaf; the plugin only observes and mutates through these interfaces.
package workspace

import (
	"context"
	"errors"

	"github.com/searchpin/searchpin/internal/searchstate"
)

// ViewTypeSearch tags the single view kind this plugin manages.
const ViewTypeSearch = "search"

// ErrNotSupported is returned by hosts that do not expose an optional
// capability, such as the command-dispatch hook.
var ErrNotSupported = errors.New("workspace: capability not supported by host")

// ViewState is the type tag plus opaque state blob a leaf reports and accepts.
type ViewState struct {
	Type  string
	State searchstate.State
}

// ViewStateSetter applies a view-state to a leaf. Hosts treat this as an
// asynchronous operation; callers must tolerate re-entrant events firing
// before it returns.
type ViewStateSetter func(ctx context.Context, vs ViewState) error

// Dispatch executes a host command by identifier.
type Dispatch func(ctx context.Context, commandID string) error

// Container is a non-leaf node in the workspace tree.
type Container interface {
	Parent() Container
}

// Leaf is an opaque handle to a single host pane. A leaf has a location
// derived from its ancestor chain, a view type, and a view-state.
type Leaf interface {
	// ID is stable for the lifetime of the leaf and never reused while the
	// leaf is observable.
	ID() string

	// Parent returns the leaf's containing node, or nil once detached.
	Parent() Container

	// ViewType returns the current view type tag, e.g. "search".
	ViewType() string

	// ViewState returns the leaf's last reported view-state.
	ViewState() ViewState

	// SetViewState applies a view-state through the leaf's current setter
	// chain, including any installed interceptors.
	SetViewState(ctx context.Context, vs ViewState) error

	// WrapViewStateSetter installs a decorator around the leaf's setter.
	// The returned restore function puts the previous setter back exactly
	// and must be called on plugin teardown.
	WrapViewStateSetter(wrap func(next ViewStateSetter) ViewStateSetter) (restore func())

	// SetPinned pins or unpins the leaf.
	SetPinned(pinned bool) error

	// Pinned reports the current pin state.
	Pinned() bool

	// HideContent blanks the leaf's rendered content. Purely visual; used to
	// suppress flicker on a leaf that is about to be detached.
	HideContent()

	// Detach destroys the leaf. Best-effort; the handle becomes unobservable.
	Detach() error
}

// Workspace is the host's layout system as seen by the plugin.
type Workspace interface {
	// Root returns the main-area root container. A leaf whose ancestor chain
	// reaches this node lives in the main area.
	Root() Container

	// LeavesOfType enumerates current leaves carrying the given view type,
	// in document order.
	LeavesOfType(viewType string) []Leaf

	// AllLeaves enumerates every current leaf in document order.
	AllLeaves() []Leaf

	// ActiveLeaf returns the currently focused leaf, or nil.
	ActiveLeaf() Leaf

	// CreateLeafInMainArea creates a fresh empty leaf in the main area.
	CreateLeafInMainArea(ctx context.Context) (Leaf, error)

	// Reveal brings a leaf into view and focuses it.
	Reveal(leaf Leaf) error

	// Events exposes the workspace lifecycle event bus.
	Events() *EventBus

	// OnReady registers a hook invoked once the host finishes its own
	// startup, including session restore.
	OnReady(fn func())

	// Notify surfaces a transient notice to the user. Hosts provide no
	// structured error channel beyond this.
	Notify(message string)

	// WrapCommandDispatch installs a decorator around the host's command
	// dispatch entry point. Hosts without a dispatch hook return
	// ErrNotSupported; the returned restore function reverses the wrap.
	WrapCommandDispatch(wrap func(next Dispatch) Dispatch) (restore func(), err error)
}

// Storage is the host's persistence surface: a single JSON-serializable
// record per plugin installation.
type Storage interface {
	// LoadData returns the stored record, or nil when nothing was saved yet.
	LoadData() ([]byte, error)

	// SaveData replaces the stored record.
	SaveData(data []byte) error
}
