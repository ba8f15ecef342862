// Package intercept provides the two optional seams that catch search-view
// creation paths bypassing the lifecycle events: a decorator around the
// host's command dispatch and per-leaf decorators around view-state setters.
// Both forward by default, short-circuit under a documented predicate, and
// uninstall by restoring the original behavior exactly.
package intercept

import (
	"context"
	"errors"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/searchpin/searchpin/internal/observe"
	"github.com/searchpin/searchpin/internal/workspace"
)

// DefaultSearchCommandPatterns matches the command identifiers that open a
// search view on stock hosts.
var DefaultSearchCommandPatterns = []string{
	"global-search:*",
	"search:open*",
}

// CommandInterceptor wraps the host's command dispatch. After the underlying
// command runs, a matching identifier forces reclassification of peripheral
// search leaves and an immediate redirection pass.
type CommandInterceptor struct {
	ws       workspace.Workspace
	obs      *observe.Observer
	patterns []string
	onSearch func()

	mu      sync.Mutex
	restore func()
}

// NewCommandInterceptor creates the interceptor. onSearch runs after every
// dispatched command whose ID matches one of the glob patterns.
func NewCommandInterceptor(ws workspace.Workspace, obs *observe.Observer, patterns []string, onSearch func()) *CommandInterceptor {
	if len(patterns) == 0 {
		patterns = DefaultSearchCommandPatterns
	}
	return &CommandInterceptor{
		ws:       ws,
		obs:      obs,
		patterns: patterns,
		onSearch: onSearch,
	}
}

// Install wraps the host dispatch. Hosts without a dispatch hook get a
// one-time warning and the path stays disabled; that is not an error.
func (c *CommandInterceptor) Install() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.restore != nil {
		return nil
	}

	restore, err := c.ws.WrapCommandDispatch(func(next workspace.Dispatch) workspace.Dispatch {
		return func(ctx context.Context, commandID string) error {
			err := next(ctx, commandID)
			if c.matches(commandID) {
				c.obs.Log().Debug().Str("command", commandID).Msg("search-opening command observed")
				c.onSearch()
			}
			return err
		}
	})
	if err != nil {
		if errors.Is(err, workspace.ErrNotSupported) {
			c.obs.Log().Warn().Msg("host exposes no command-dispatch hook, command interception disabled")
			return nil
		}
		return err
	}

	c.restore = restore
	return nil
}

// Installed reports whether the dispatch wrap is active.
func (c *CommandInterceptor) Installed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restore != nil
}

// Uninstall restores the original dispatch.
func (c *CommandInterceptor) Uninstall() {
	c.mu.Lock()
	restore := c.restore
	c.restore = nil
	c.mu.Unlock()
	if restore != nil {
		restore()
	}
}

func (c *CommandInterceptor) matches(commandID string) bool {
	for _, pattern := range c.patterns {
		if ok, err := doublestar.Match(pattern, commandID); err == nil && ok {
			return true
		}
	}
	return false
}
