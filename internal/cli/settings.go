package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/law-makers/mediacrawl/internal/config"
	"github.com/law-makers/mediacrawl/internal/ui"
)

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist a setting in the data directory",
	Long: `Stores a setting in settings.yaml inside the data directory. Stored
settings apply to every later run unless an environment variable or a flag
overrides them.`,
	Example: `  mediacrawl set proxy 127.0.0.1:8080
  mediacrawl set headless true
  mediacrawl set detail-timeout 90s`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

var getCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Show effective settings",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGet,
}

var unsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a persisted setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnset,
}

func init() {
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(unsetCmd)
}

func openSettings(cmd *cobra.Command) (*config.Settings, error) {
	a := GetApp(cmd)
	return config.OpenSettings(filepath.Join(a.Config.DataDir, config.SettingsFile))
}

func runSet(cmd *cobra.Command, args []string) error {
	st, err := openSettings(cmd)
	if err != nil {
		return err
	}
	if err := st.Set(args[0], args[1]); err != nil {
		return fmt.Errorf("%w (known keys: %v)", err, config.Keys())
	}
	if err := st.Save(); err != nil {
		return err
	}
	return printSettings(cmd, st)
}

func runUnset(cmd *cobra.Command, args []string) error {
	st, err := openSettings(cmd)
	if err != nil {
		return err
	}
	if err := st.Unset(args[0]); err != nil {
		return err
	}
	if err := st.Save(); err != nil {
		return err
	}
	return printSettings(cmd, st)
}

func printSettings(cmd *cobra.Command, st *config.Settings) error {
	data, err := json.MarshalIndent(st.Values(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	cfg := GetApp(cmd).Config
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		v, err := cfg.Value(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, v)
		return nil
	}

	for _, key := range config.Keys() {
		v, _ := cfg.Value(key)
		fmt.Fprintf(out, "%s%-22s%s %s\n", ui.ColorCyan, key, ui.ColorReset, v)
	}
	return nil
}
