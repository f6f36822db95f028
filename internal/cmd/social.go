package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/zfogg/nearby/cli/pkg/api"
	"github.com/zfogg/nearby/cli/pkg/formatter"
	"github.com/zfogg/nearby/cli/pkg/output"
	"github.com/zfogg/nearby/cli/pkg/paging"
	"github.com/zfogg/nearby/cli/pkg/service"
)

var (
	followersMore    bool
	followersOffline bool
	followingMore    bool
	followingOffline bool
)

func connectionsCommand(dir api.Direction, short string, more, offline *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(dir) + " [user-id]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				conns := service.NewConnectionService(a.deps(), userArg(a, args), dir)
				if err := loadScreen(ctx, conns.Screen(), *more, *offline); err != nil {
					return err
				}
				items := conns.Items()
				headers, rows := formatter.ConnectionRows(items)
				title := "Followers"
				if dir == api.Following {
					title = "Following"
				}
				return output.PrintList(title, items, headers, rows)
			})
		},
	}
	addPagingFlags(cmd, more, offline)
	return cmd
}

var (
	followersCmd = connectionsCommand(api.Followers, "Show who follows a user, you by default", &followersMore, &followersOffline)
	followingCmd = connectionsCommand(api.Following, "Show who a user follows, you by default", &followingMore, &followingOffline)
)

var followCmd = &cobra.Command{
	Use:   "follow <user-id>",
	Short: "Follow a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setFollowing(cmd, args[0], true)
	},
}

var unfollowCmd = &cobra.Command{
	Use:   "unfollow <user-id>",
	Short: "Stop following a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setFollowing(cmd, args[0], false)
	},
}

// setFollowing brings the viewer's following list in line with want for
// targetID, acting only when it differs.
func setFollowing(cmd *cobra.Command, targetID string, want bool) error {
	return withApp(cmd, true, func(ctx context.Context, a *app) error {
		following := service.NewConnectionService(a.deps(), a.viewer.ID, api.Following)
		if err := ensureLoaded(ctx, following.Screen()); err != nil {
			return err
		}
		current, err := findConnection(ctx, following.Screen(), targetID)
		if err != nil {
			return err
		}

		if current.Following == want {
			if want {
				formatter.PrintInfo("Already following %s", targetID)
			} else {
				formatter.PrintInfo("Not following %s", targetID)
			}
			return nil
		}
		if _, err := following.ToggleFollow(ctx, targetID); err != nil {
			return err
		}
		following.Screen().Persist(ctx)
		return nil
	})
}

// findConnection looks for targetID on the list, loading further pages
// until it turns up or the list ends.
func findConnection(ctx context.Context, c *paging.Controller[api.Connection], targetID string) (api.Connection, error) {
	for {
		if conn, ok := c.Items().Get(targetID); ok {
			return conn, nil
		}
		if !c.HasMore() {
			return api.Connection{}, nil
		}
		fetched, err := c.Load(ctx, paging.LoadMore)
		if err != nil {
			return api.Connection{}, err
		}
		if !fetched {
			return api.Connection{}, nil
		}
	}
}
