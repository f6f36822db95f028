package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/zfogg/nearby/cli/pkg/config"
	clierrors "github.com/zfogg/nearby/cli/pkg/errors"
	"github.com/zfogg/nearby/cli/pkg/logger"
	"github.com/zfogg/nearby/cli/pkg/output"
)

var (
	verbose    bool
	configPath string
	outputFmt  string
	pageSize   int
)

var rootCmd = &cobra.Command{
	Use:   "nearby",
	Short: "Nearby CLI - places, check-ins and friends near you",
	Long: `Nearby CLI is a command-line client for Nearby. Browse your feed,
react and comment, follow friends, read notifications and chat, all from
the terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(configPath); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		logger.Init(verbose)

		if cmd.Flags().Changed("output") {
			config.Set("output.format", outputFmt)
		}
		if !output.ValidateOutputFormat(config.GetString("output.format")) {
			return clierrors.ValidationError("output", "must be one of text, json, table")
		}
		if pageSize > 0 {
			config.Set("paging.page_size", pageSize)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Close()
	},
}

// Execute runs the command tree and exits non-zero on failure. Failures
// already shown as a toast are not printed again.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	if !isReported(err) {
		fmt.Fprint(os.Stderr, clierrors.FormatError(err))
	}
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ~/.config/nearby/cli/config.toml)")
	rootCmd.PersistentFlags().StringVar(&outputFmt, "output", "text", "Output format: text, json, table")
	rootCmd.PersistentFlags().IntVar(&pageSize, "page-size", 0, "Items per page (default from config)")

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(commentsCmd)
	rootCmd.AddCommand(reviewsCmd)
	rootCmd.AddCommand(checkinsCmd)
	rootCmd.AddCommand(listsCmd)
	rootCmd.AddCommand(followersCmd)
	rootCmd.AddCommand(followingCmd)
	rootCmd.AddCommand(followCmd)
	rootCmd.AddCommand(unfollowCmd)
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(messagesCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
