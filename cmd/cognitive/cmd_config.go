package main

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/cognitive/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd, configPathCmd)
	configCmd.PersistentFlags().Bool("show-secrets", false, "print api keys and tokens unmasked")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the config file",
}

func showSecrets(cmd *cobra.Command) bool {
	show, _ := cmd.Flags().GetBool("show-secrets")
	return show
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every key with its effective value",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := config.ListValues(loadConfig(), !showSecrets(cmd))
		if err != nil {
			return fmt.Errorf("list config: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, k := range slices.Sorted(maps.Keys(values)) {
			fmt.Fprintf(w, "%s\t%v\n", k, values[k])
		}
		return w.Flush()
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one value, e.g. cognitive.backoff.max",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		val, err := config.GetValue(cfgPath, key)
		if err != nil {
			return err
		}
		if config.IsSecretKey(key) && !showSecrets(cmd) {
			val = config.MaskSecrets(map[string]any{key: val})[key]
		}
		fmt.Fprintln(os.Stdout, val)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write one value; JSON literals are decoded, anything else is a string",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, raw := args[0], args[1]
		if err := config.SetValue(cfgPath, key, raw); err != nil {
			return err
		}
		if config.IsSecretKey(key) {
			raw = "***"
		}
		fmt.Fprintf(os.Stdout, "%s = %s (written to %s)\n", key, raw, cfgPath)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(os.Stdout, cfgPath)
	},
}
