// Package settings owns the single persisted plugin record: the remembered
// search state plus the behavior toggles. The record is loaded once at
// startup merged over defaults, mutated in memory, and flushed whole to
// storage on each mutation.
package settings

import (
	"encoding/json"
	"fmt"

	"github.com/searchpin/searchpin/internal/searchstate"
	"github.com/searchpin/searchpin/internal/workspace"
)

// Settings is the persisted plugin record. Unknown or missing fields in the
// stored blob fall back to the defaults.
type Settings struct {
	LastSearchState       searchstate.State `json:"lastSearchState,omitempty" yaml:"lastSearchState,omitempty"`
	RememberQuery         bool              `json:"rememberQuery" yaml:"rememberQuery"`
	AutoPin               bool              `json:"autoPin" yaml:"autoPin"`
	OpenInMainArea        bool              `json:"openInMainArea" yaml:"openInMainArea"`
	ClearSidebarOnStartup bool              `json:"clearSidebarOnStartup" yaml:"clearSidebarOnStartup"`
	Debug                 bool              `json:"debug" yaml:"debug"`
}

// Default returns the out-of-the-box record: redirect to the main area with
// auto-pin, forget the live query, leave restored sidebars alone.
func Default() Settings {
	return Settings{
		RememberQuery:         false,
		AutoPin:               true,
		OpenInMainArea:        true,
		ClearSidebarOnStartup: false,
		Debug:                 false,
	}
}

// Decode unmarshals a stored blob over the defaults. A nil or empty blob
// yields the defaults unchanged.
func Decode(data []byte) (Settings, error) {
	s := Default()
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Default(), fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// Encode serializes the record for storage.
func Encode(s Settings) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	return data, nil
}

// Gateway loads and saves the settings record through a host storage surface.
type Gateway struct {
	store workspace.Storage
}

// NewGateway wraps a host storage implementation.
func NewGateway(store workspace.Storage) *Gateway {
	return &Gateway{store: store}
}

// Load reads the stored record merged over defaults.
func (g *Gateway) Load() (Settings, error) {
	data, err := g.store.LoadData()
	if err != nil {
		return Default(), fmt.Errorf("load settings: %w", err)
	}
	return Decode(data)
}

// Save replaces the stored record.
func (g *Gateway) Save(s Settings) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	if err := g.store.SaveData(data); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
