// Package classify decides whether a workspace leaf lives in the main area or
// a peripheral area (sidebar), with a cache to avoid repeated tree walks.
package classify

import (
	"sync"

	"github.com/searchpin/searchpin/internal/workspace"
)

// Location is a leaf's placement within the workspace tree.
type Location int

const (
	Peripheral Location = iota
	Main
)

func (l Location) String() string {
	if l == Main {
		return "main"
	}
	return "peripheral"
}

// maxAncestorDepth bounds the ancestor walk so a malformed or cyclic tree
// never loops. A chain deeper than this is treated as peripheral.
const maxAncestorDepth = 10

// Classifier memoizes main-vs-peripheral classification per leaf. Results
// stay valid until the next layout change, at which point the whole cache is
// cleared in bulk.
type Classifier struct {
	ws workspace.Workspace

	mu    sync.Mutex
	cache map[string]Location
}

// New creates a classifier bound to one workspace.
func New(ws workspace.Workspace) *Classifier {
	return &Classifier{
		ws:    ws,
		cache: make(map[string]Location),
	}
}

// Classify walks the leaf's ancestor chain. Reaching the workspace root
// within the depth bound means the leaf is in the main area; exceeding the
// bound, or running off a detached chain, fails safe to peripheral.
func (c *Classifier) Classify(leaf workspace.Leaf) Location {
	c.mu.Lock()
	if loc, ok := c.cache[leaf.ID()]; ok {
		c.mu.Unlock()
		return loc
	}
	c.mu.Unlock()

	loc := c.walk(leaf)

	c.mu.Lock()
	c.cache[leaf.ID()] = loc
	c.mu.Unlock()
	return loc
}

func (c *Classifier) walk(leaf workspace.Leaf) Location {
	root := c.ws.Root()
	node := leaf.Parent()
	for depth := 0; depth < maxAncestorDepth; depth++ {
		if node == nil {
			return Peripheral
		}
		if node == root {
			return Main
		}
		node = node.Parent()
	}
	return Peripheral
}

// Invalidate clears the whole cache. Called on every layout-change event.
func (c *Classifier) Invalidate() {
	c.mu.Lock()
	c.cache = make(map[string]Location)
	c.mu.Unlock()
}
