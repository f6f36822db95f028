package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/zfogg/nearby/cli/pkg/formatter"
	"github.com/zfogg/nearby/cli/pkg/output"
	"github.com/zfogg/nearby/cli/pkg/service"
)

var (
	notificationsMore    bool
	notificationsOffline bool
	readAll              bool
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notifs"},
	Short:   "Show your notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			ns := service.NewNotificationService(a.deps())
			if err := loadScreen(ctx, ns.Screen(), notificationsMore, notificationsOffline); err != nil {
				return err
			}
			items := ns.Items()
			headers, rows := formatter.NotificationRows(items)
			return output.PrintList("Notifications", items, headers, rows)
		})
	},
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read [notification-id]",
	Short: "Mark a notification read, or all of them with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !readAll && len(args) == 0 {
			return cmd.Usage()
		}
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			ns := service.NewNotificationService(a.deps())
			if err := ensureLoaded(ctx, ns.Screen()); err != nil {
				return err
			}
			defer ns.Screen().Persist(ctx)

			if readAll {
				marked, err := ns.MarkAllRead(ctx)
				if err == nil && marked == 0 {
					formatter.PrintInfo("Nothing unread")
				}
				return err
			}

			ran, err := ns.MarkRead(ctx, args[0])
			if err != nil {
				return err
			}
			if !ran {
				formatter.PrintInfo("%s is already read", args[0])
			}
			return nil
		})
	},
}

var notificationsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count unread notifications on the first page",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			ns := service.NewNotificationService(a.deps())
			if err := loadScreen(ctx, ns.Screen(), false, notificationsOffline); err != nil {
				return err
			}
			return output.PrintRecord("", map[string]interface{}{"unread": ns.UnreadCount()})
		})
	},
}

func init() {
	addPagingFlags(notificationsCmd, &notificationsMore, &notificationsOffline)
	notificationsReadCmd.Flags().BoolVar(&readAll, "all", false, "Mark every loaded notification read")
	notificationsCmd.AddCommand(notificationsReadCmd)
	notificationsCmd.AddCommand(notificationsCountCmd)
}
