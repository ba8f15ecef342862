package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/searchpin/searchpin/internal/observe"
	"github.com/searchpin/searchpin/internal/settings"
	"github.com/searchpin/searchpin/internal/ui/panel"
)

var (
	verbose       bool
	ciMode        bool
	dataPath      string
	useSQLite     bool
	watchSettings bool
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "searchpin",
	Short: "Search view placement and persistence runtime",
	Long: `Searchpin keeps search views in the main editor area and carries their
configuration across sessions. The run command replays a scripted workspace
scenario against the simulated host.`,
}

var runCmd = &cobra.Command{
	Use:   "run [scenario-file]",
	Short: "Replay a workspace scenario against the simulated host",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runScenario(args[0])
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Open the interactive settings panel",
	Run: func(cmd *cobra.Command, args []string) {
		openPanel()
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(settingsCmd)
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	RootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "Plugin data path (default ~/.searchpin/settings.json)")
	RootCmd.PersistentFlags().BoolVar(&useSQLite, "sqlite", false, "Keep plugin data in a sqlite database instead of a JSON file")
	runCmd.Flags().BoolVar(&ciMode, "ci", false, "CI mode: JSON log output")
	runCmd.Flags().BoolVar(&watchSettings, "watch", false, "Hot-reload the settings file during the run")
}

func runScenario(path string) {
	var obs *observe.Observer
	if ciMode {
		obs = observe.NewJSON(os.Stdout, verbose)
	} else {
		obs = observe.New(os.Stdout, verbose)
	}
	defer obs.Close()

	store, closeStore := getStore(obs)
	defer closeStore()

	runner := NewRunner(obs, store, path)
	if err := runner.Run(context.Background()); err != nil {
		obs.Log().Error().Err(err).Msg("scenario failed")
		os.Exit(1)
	}
	fmt.Println("Scenario complete.")
}

// panelController drives the settings panel directly against storage, no live
// host involved.
type panelController struct {
	gw  *settings.Gateway
	cur settings.Settings
}

func (c *panelController) Current() settings.Settings { return c.cur }

func (c *panelController) UpdateSettings(s settings.Settings) error {
	if err := c.gw.Save(s); err != nil {
		return err
	}
	c.cur = s
	return nil
}

func (c *panelController) ClearSavedState(ctx context.Context) error {
	s := c.cur
	s.LastSearchState = nil
	return c.UpdateSettings(s)
}

func openPanel() {
	obs := observe.New(os.Stderr, verbose)
	defer obs.Close()

	store, closeStore := getStore(obs)
	defer closeStore()

	gw := settings.NewGateway(store)
	cur, err := gw.Load()
	if err != nil {
		obs.Log().Warn().Err(err).Msg("settings load failed, editing defaults")
	}

	if err := panel.Run(&panelController{gw: gw, cur: cur}); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
