package simhost

import (
	"context"
	"fmt"
	"sync"

	"github.com/searchpin/searchpin/internal/workspace"
)

// Leaf is a simulated pane. The setter field is the head of the view-state
// setter chain; interceptors wrap it and restore it symmetrically.
type Leaf struct {
	host *Host
	id   string

	mu       sync.Mutex
	parent   *node
	vs       workspace.ViewState
	setter   workspace.ViewStateSetter
	pinned   bool
	hidden   bool
	detached bool
}

// ID implements workspace.Leaf.
func (l *Leaf) ID() string { return l.id }

// Parent implements workspace.Leaf.
func (l *Leaf) Parent() workspace.Container {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.parent == nil {
		return nil
	}
	return l.parent
}

// ViewType implements workspace.Leaf.
func (l *Leaf) ViewType() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.vs.Type
}

// ViewState implements workspace.Leaf.
func (l *Leaf) ViewState() workspace.ViewState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.vs
}

// SetViewState implements workspace.Leaf. The call runs through the current
// setter chain so installed interceptors see it.
func (l *Leaf) SetViewState(ctx context.Context, vs workspace.ViewState) error {
	l.mu.Lock()
	setter := l.setter
	detached := l.detached
	l.mu.Unlock()
	if detached {
		return fmt.Errorf("simhost: leaf %s is detached", l.id)
	}
	return setter(ctx, vs)
}

// applyViewState is the original, unwrapped setter.
func (l *Leaf) applyViewState(ctx context.Context, vs workspace.ViewState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	l.vs = vs
	l.mu.Unlock()
	l.host.events.PublishSimple(workspace.EventLayoutChange)
	return nil
}

// WrapViewStateSetter implements workspace.Leaf.
func (l *Leaf) WrapViewStateSetter(wrap func(next workspace.ViewStateSetter) workspace.ViewStateSetter) (restore func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev := l.setter
	l.setter = wrap(prev)
	return func() {
		l.mu.Lock()
		l.setter = prev
		l.mu.Unlock()
	}
}

// SetPinned implements workspace.Leaf.
func (l *Leaf) SetPinned(pinned bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.detached {
		return fmt.Errorf("simhost: leaf %s is detached", l.id)
	}
	l.pinned = pinned
	return nil
}

// Pinned implements workspace.Leaf.
func (l *Leaf) Pinned() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pinned
}

// HideContent implements workspace.Leaf.
func (l *Leaf) HideContent() {
	l.mu.Lock()
	l.hidden = true
	l.mu.Unlock()
}

// Hidden reports whether the leaf's content was blanked.
func (l *Leaf) Hidden() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hidden
}

// Detach implements workspace.Leaf.
func (l *Leaf) Detach() error {
	l.mu.Lock()
	if l.detached {
		l.mu.Unlock()
		return nil
	}
	l.detached = true
	l.parent = nil
	l.mu.Unlock()

	l.host.removeLeaf(l)
	return nil
}

// Detached reports whether the leaf was destroyed.
func (l *Leaf) Detached() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.detached
}
