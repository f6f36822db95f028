package cmd

import (
	"context"

	"github.com/spf13/cobra"

	clierrors "github.com/zfogg/nearby/cli/pkg/errors"
	"github.com/zfogg/nearby/cli/pkg/formatter"
	"github.com/zfogg/nearby/cli/pkg/output"
	"github.com/zfogg/nearby/cli/pkg/service"
)

var (
	reviewsMore     bool
	reviewsOffline  bool
	reviewPlace     string
	checkinsMore    bool
	checkinsOffline bool
	listsMore       bool
	listsOffline    bool
)

var reviewsCmd = &cobra.Command{
	Use:   "reviews <place-id>",
	Short: "Show the reviews of a place",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			reviews := service.NewReviewService(a.deps(), args[0])
			if err := loadScreen(ctx, reviews.Screen(), reviewsMore, reviewsOffline); err != nil {
				return err
			}
			items := reviews.Items()
			headers, rows := formatter.ReviewRows(items)
			return output.PrintList("Reviews", items, headers, rows)
		})
	},
}

var reviewsLikeCmd = &cobra.Command{
	Use:   "like <review-id>",
	Short: "Like a review, or unlike it if you already do",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if reviewPlace == "" {
			return clierrors.ValidationError("place", "--place is required")
		}
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			reviews := service.NewReviewService(a.deps(), reviewPlace)
			if err := ensureLoaded(ctx, reviews.Screen()); err != nil {
				return err
			}
			ran, review, err := reviews.ToggleLike(ctx, args[0])
			if err != nil {
				return err
			}
			if !ran {
				formatter.PrintInfo("Already updating this review")
				return nil
			}
			reviews.Screen().Persist(ctx)

			if review.Liked {
				formatter.PrintSuccess("♥ Liked review %s (%d likes)", review.ID, review.LikeCount)
			} else {
				formatter.PrintSuccess("Unliked review %s (%d likes)", review.ID, review.LikeCount)
			}
			return nil
		})
	},
}

var checkinsCmd = &cobra.Command{
	Use:   "checkins [user-id]",
	Short: "Show check-ins, yours unless a user is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			screen := service.CheckinsScreen(a.deps(), userArg(a, args))
			if err := loadScreen(ctx, screen, checkinsMore, checkinsOffline); err != nil {
				return err
			}
			items := screen.Snapshot()
			headers, rows := formatter.CheckinRows(items)
			return output.PrintList("Check-ins", items, headers, rows)
		})
	},
}

var listsCmd = &cobra.Command{
	Use:   "lists [user-id]",
	Short: "Show place lists, yours unless a user is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			screen := service.ListsScreen(a.deps(), userArg(a, args))
			if err := loadScreen(ctx, screen, listsMore, listsOffline); err != nil {
				return err
			}
			items := screen.Snapshot()
			headers, rows := formatter.ListRows(items)
			return output.PrintList("Lists", items, headers, rows)
		})
	},
}

// userArg returns the user named on the command line, or the viewer.
func userArg(a *app, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return a.viewer.ID
}

func init() {
	addPagingFlags(reviewsCmd, &reviewsMore, &reviewsOffline)
	reviewsLikeCmd.Flags().StringVar(&reviewPlace, "place", "", "Place the review belongs to")
	reviewsCmd.AddCommand(reviewsLikeCmd)

	addPagingFlags(checkinsCmd, &checkinsMore, &checkinsOffline)
	addPagingFlags(listsCmd, &listsMore, &listsOffline)
}
