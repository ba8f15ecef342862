// Package scenario loads scripted workspace sessions from JSON or YAML files.
// A scenario seeds a settings record, drives the simulated host step by step,
// and asserts on the resulting layout. The run command executes them.
package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/searchpin/searchpin/internal/searchstate"
	"github.com/searchpin/searchpin/internal/settings"
)

// Area names accepted by createLeaf steps.
const (
	AreaMain         = "main"
	AreaLeftSidebar  = "left-sidebar"
	AreaRightSidebar = "right-sidebar"
)

// Scenario is one scripted session.
type Scenario struct {
	Name     string             `json:"name" yaml:"name"`
	Settings *settings.Settings `json:"settings,omitempty" yaml:"settings,omitempty"`
	Steps    []Step             `json:"steps" yaml:"steps"`
}

// Step is a single action. Exactly one field may be set per step.
type Step struct {
	CreateLeaf       *CreateLeaf   `json:"createLeaf,omitempty" yaml:"createLeaf,omitempty"`
	SetViewState     *SetViewState `json:"setViewState,omitempty" yaml:"setViewState,omitempty"`
	FireReady        bool          `json:"fireReady,omitempty" yaml:"fireReady,omitempty"`
	Wait             string        `json:"wait,omitempty" yaml:"wait,omitempty"`
	Command          string        `json:"command,omitempty" yaml:"command,omitempty"`
	OpenPinnedSearch bool          `json:"openPinnedSearch,omitempty" yaml:"openPinnedSearch,omitempty"`
	SaveCurrentState bool          `json:"saveCurrentState,omitempty" yaml:"saveCurrentState,omitempty"`
	ClearSavedState  bool          `json:"clearSavedState,omitempty" yaml:"clearSavedState,omitempty"`
	Expect           *Expect       `json:"expect,omitempty" yaml:"expect,omitempty"`
}

// CreateLeaf adds an empty leaf to the simulated workspace.
type CreateLeaf struct {
	// ID is the alias later steps use to refer to this leaf.
	ID   string `json:"id" yaml:"id"`
	Area string `json:"area" yaml:"area"`
}

// SetViewState applies a view-state to a leaf created earlier.
type SetViewState struct {
	Leaf  string            `json:"leaf" yaml:"leaf"`
	Type  string            `json:"type" yaml:"type"`
	State searchstate.State `json:"state,omitempty" yaml:"state,omitempty"`
}

// Expect asserts on the workspace after the preceding steps settled. Nil
// fields are not checked.
type Expect struct {
	SearchLeaves *int    `json:"searchLeaves,omitempty" yaml:"searchLeaves,omitempty"`
	Detached     *string `json:"detached,omitempty" yaml:"detached,omitempty"`
	ActivePinned *bool   `json:"activePinned,omitempty" yaml:"activePinned,omitempty"`
	ActiveQuery  *string `json:"activeQuery,omitempty" yaml:"activeQuery,omitempty"`
}

// Load reads a scenario from a JSON or YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var sc Scenario
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &sc); err != nil {
			return nil, fmt.Errorf("unmarshal JSON scenario: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &sc); err != nil {
			return nil, fmt.Errorf("unmarshal YAML scenario: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported scenario format: %s (use .json or .yaml)", filepath.Ext(path))
	}

	return &sc, nil
}

// Validate checks the scenario for structural problems before execution.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario has no steps")
	}

	known := make(map[string]bool)
	for i, step := range s.Steps {
		if n := step.actionCount(); n != 1 {
			return fmt.Errorf("step %d: want exactly one action, got %d", i+1, n)
		}
		if c := step.CreateLeaf; c != nil {
			if c.ID == "" {
				return fmt.Errorf("step %d: createLeaf needs an id", i+1)
			}
			if known[c.ID] {
				return fmt.Errorf("step %d: duplicate leaf id %q", i+1, c.ID)
			}
			switch c.Area {
			case AreaMain, AreaLeftSidebar, AreaRightSidebar:
			default:
				return fmt.Errorf("step %d: unknown area %q", i+1, c.Area)
			}
			known[c.ID] = true
		}
		if sv := step.SetViewState; sv != nil {
			if !known[sv.Leaf] {
				return fmt.Errorf("step %d: setViewState refers to unknown leaf %q", i+1, sv.Leaf)
			}
			if sv.Type == "" {
				return fmt.Errorf("step %d: setViewState needs a view type", i+1)
			}
		}
		if step.Wait != "" {
			if _, err := time.ParseDuration(step.Wait); err != nil {
				return fmt.Errorf("step %d: bad wait duration: %w", i+1, err)
			}
		}
		if e := step.Expect; e != nil && e.Detached != nil && !known[*e.Detached] {
			return fmt.Errorf("step %d: expect refers to unknown leaf %q", i+1, *e.Detached)
		}
	}
	return nil
}

func (s *Step) actionCount() int {
	n := 0
	if s.CreateLeaf != nil {
		n++
	}
	if s.SetViewState != nil {
		n++
	}
	if s.FireReady {
		n++
	}
	if s.Wait != "" {
		n++
	}
	if s.Command != "" {
		n++
	}
	if s.OpenPinnedSearch {
		n++
	}
	if s.SaveCurrentState {
		n++
	}
	if s.ClearSavedState {
		n++
	}
	if s.Expect != nil {
		n++
	}
	return n
}
