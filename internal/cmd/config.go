package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zfogg/nearby/cli/pkg/config"
	clierrors "github.com/zfogg/nearby/cli/pkg/errors"
	"github.com/zfogg/nearby/cli/pkg/formatter"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change CLI settings",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the user config file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), config.GetConfigFilePath())
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the effective value of a setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !config.IsKnownKey(args[0]) {
			return clierrors.ValidationError("key", fmt.Sprintf("unknown setting %q", args[0]))
		}
		fmt.Fprintln(cmd.OutOrStdout(), config.GetString(args[0]))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Save a setting to the user config file",
	Example: `  nearby config set api.base_url https://nearby.example/api/v1
  nearby config set output.format table`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if !config.IsKnownKey(key) {
			return clierrors.ValidationError("key", fmt.Sprintf("unknown setting %q", key))
		}
		if err := config.SetString(key, value); err != nil {
			return clierrors.NewCLIError(clierrors.ErrorTypeUnknown, "Could not save config", err)
		}
		formatter.PrintSuccess("✓ %s saved to %s", key, config.GetConfigFilePath())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}
