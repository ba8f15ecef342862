package cli

import (
	"os"
	"path/filepath"

	"github.com/searchpin/searchpin/internal/observe"
	"github.com/searchpin/searchpin/internal/settings"
	"github.com/searchpin/searchpin/internal/workspace"
)

// getStore builds the plugin data store selected by the global flags. The
// returned closer is a no-op for file-backed stores.
func getStore(obs *observe.Observer) (workspace.Storage, func()) {
	path := dataPath
	if path == "" {
		home, _ := os.UserHomeDir()
		name := "settings.json"
		if useSQLite {
			name = "data.db"
		}
		path = filepath.Join(home, ".searchpin", name)
	}

	if useSQLite {
		store, err := settings.NewSQLiteStore(path)
		if err != nil {
			obs.Log().Fatal().Err(err).Msg("Failed to init store")
		}
		return store, func() { _ = store.Close() }
	}

	return settings.NewFileStore(path), func() {}
}
