package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/searchpin/searchpin/internal/observe"
	"github.com/searchpin/searchpin/internal/settings"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect the persisted plugin record",
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the persisted settings and saved search state",
	Run: func(cmd *cobra.Command, args []string) {
		obs := observe.New(os.Stderr, verbose)
		defer obs.Close()

		store, closeStore := getStore(obs)
		defer closeStore()

		s, err := settings.NewGateway(store).Load()
		if err != nil {
			fmt.Printf("Failed to load plugin data: %v\n", err)
			os.Exit(1)
		}

		out, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
	},
}

var stateClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop the saved search state, keeping the toggles",
	Run: func(cmd *cobra.Command, args []string) {
		obs := observe.New(os.Stderr, verbose)
		defer obs.Close()

		store, closeStore := getStore(obs)
		defer closeStore()

		gw := settings.NewGateway(store)
		s, err := gw.Load()
		if err != nil {
			fmt.Printf("Failed to load plugin data: %v\n", err)
			os.Exit(1)
		}
		s.LastSearchState = nil
		if err := gw.Save(s); err != nil {
			fmt.Printf("Failed to save plugin data: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Saved search state cleared.")
	},
}

func init() {
	RootCmd.AddCommand(stateCmd)
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateClearCmd)
}
