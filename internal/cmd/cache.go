package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zfogg/nearby/cli/pkg/cache"
	"github.com/zfogg/nearby/cli/pkg/config"
	"github.com/zfogg/nearby/cli/pkg/formatter"
	"github.com/zfogg/nearby/cli/pkg/output"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local cache of lists and messages",
}

var cacheKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the saved lists",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cache.Open(config.GetString("cache.path"))
		if err != nil {
			return err
		}
		defer store.Close()

		keys, err := store.Keys(cmd.Context())
		if err != nil {
			return err
		}
		rows := make([][]string, len(keys))
		for i, k := range keys {
			rows[i] = []string{k}
		}
		return output.PrintList("Saved lists", keys, []string{"KEY"}, rows)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete everything cached",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cache.Open(config.GetString("cache.path"))
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Clear(cmd.Context()); err != nil {
			return err
		}
		formatter.PrintSuccess("✓ Cache cleared")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheKeysCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
