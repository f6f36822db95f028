package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zfogg/nearby/cli/pkg/formatter"
	"github.com/zfogg/nearby/cli/pkg/output"
	"github.com/zfogg/nearby/cli/pkg/prompter"
	"github.com/zfogg/nearby/cli/pkg/service"
)

var (
	feedMore     bool
	feedOffline  bool
	reactRemove  bool
	commentsMore bool
	commentsOff  bool
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Show activity from people you follow",
	Long: `Show the activity feed, newest first.

Use --more to append the next page to the list shown last time, and
--offline to show that list without contacting the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			feed := service.NewFeedService(a.deps())
			if err := loadScreen(ctx, feed.Screen(), feedMore, feedOffline); err != nil {
				return err
			}
			items := feed.Items()
			headers, rows := formatter.FeedRows(items)
			return output.PrintList("Feed", items, headers, rows)
		})
	},
}

var feedReactCmd = &cobra.Command{
	Use:   "react <activity-id> <emoji>",
	Short: "React to an activity",
	Long:  "Add an emoji reaction to an activity, or take it back with --remove.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		itemID, emoji := args[0], args[1]
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			feed := service.NewFeedService(a.deps())
			if err := ensureLoaded(ctx, feed.Screen()); err != nil {
				return err
			}

			var ran bool
			var err error
			if reactRemove {
				ran, err = feed.Unreact(ctx, itemID, emoji)
			} else {
				ran, err = feed.React(ctx, itemID, emoji)
			}
			if err != nil {
				return err
			}
			feed.Screen().Persist(ctx)

			if !ran {
				if reactRemove {
					formatter.PrintInfo("You have not reacted with %s", emoji)
				} else {
					formatter.PrintInfo("You already reacted with %s", emoji)
				}
				return nil
			}
			for _, it := range feed.Items() {
				if it.ID == itemID {
					formatter.PrintInfo("%s  %s", it.ID, formatter.Reactions(it))
				}
			}
			return nil
		})
	},
}

var commentsCmd = &cobra.Command{
	Use:   "comments <activity-id>",
	Short: "Show the comments on an activity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			thread := service.NewCommentService(a.deps(), args[0])
			if err := loadScreen(ctx, thread.Screen(), commentsMore, commentsOff); err != nil {
				return err
			}
			items := thread.Items()
			headers, rows := formatter.CommentRows(items)
			return output.PrintList("Comments", items, headers, rows)
		})
	},
}

var commentsAddCmd = &cobra.Command{
	Use:   "add <activity-id> [text]",
	Short: "Comment on an activity",
	Long:  "Post a comment. Without text on the command line the comment is read from the terminal.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := strings.Join(args[1:], " ")
		if body == "" {
			var err error
			body, err = prompter.PromptMultilineString("Comment", 50)
			if err != nil {
				return err
			}
		}
		if err := service.ValidateComment(body); err != nil {
			return err
		}

		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			thread := service.NewCommentService(a.deps(), args[0])
			if err := ensureLoaded(ctx, thread.Screen()); err != nil {
				return err
			}
			ran, comment, err := thread.Submit(ctx, body)
			if err != nil {
				return err
			}
			if !ran {
				formatter.PrintInfo("A comment is already being posted")
				return nil
			}
			thread.Screen().Persist(ctx)

			if output.GetOutputFormat() == output.FormatJSON {
				return output.Print("", comment)
			}
			return nil
		})
	},
}

func init() {
	addPagingFlags(feedCmd, &feedMore, &feedOffline)
	feedReactCmd.Flags().BoolVar(&reactRemove, "remove", false, "Remove your reaction instead of adding it")
	feedCmd.AddCommand(feedReactCmd)

	addPagingFlags(commentsCmd, &commentsMore, &commentsOff)
	commentsCmd.AddCommand(commentsAddCmd)
}
