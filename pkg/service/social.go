package service

import (
	"context"

	"github.com/zfogg/nearby/cli/pkg/api"
	clierrors "github.com/zfogg/nearby/cli/pkg/errors"
	"github.com/zfogg/nearby/cli/pkg/loading"
	"github.com/zfogg/nearby/cli/pkg/logger"
	"github.com/zfogg/nearby/cli/pkg/optimistic"
	"github.com/zfogg/nearby/cli/pkg/paging"
)

// ConnectionService is a user's followers or following list.
type ConnectionService struct {
	deps   Deps
	userID string
	dir    api.Direction
	screen *paging.Controller[api.Connection]
	runner *optimistic.Runner
}

// NewConnectionService creates the dir list of userID
func NewConnectionService(d Deps, userID string, dir api.Direction) *ConnectionService {
	d = d.WithDefaults()
	fetch := func(ctx context.Context, page, limit int) (paging.Page[api.Connection], error) {
		return d.API.Connections(ctx, userID, dir, page, limit)
	}
	return &ConnectionService{
		deps:   d,
		userID: userID,
		dir:    dir,
		screen: paging.NewController(fetch, d.options(string(dir)+":"+userID, "Load "+string(dir))),
		runner: d.runner(),
	}
}

// Screen returns the underlying controller.
func (cs *ConnectionService) Screen() *paging.Controller[api.Connection] { return cs.screen }

// Load refreshes or extends the list.
func (cs *ConnectionService) Load(ctx context.Context, action paging.Action) (bool, error) {
	logger.Debug("Loading connections", "user", cs.userID, "direction", cs.dir, "action", action)
	return cs.screen.Load(ctx, action)
}

// Items returns the list as currently shown.
func (cs *ConnectionService) Items() []api.Connection { return cs.screen.Snapshot() }

func (cs *ConnectionService) ownFollowing() bool {
	return cs.dir == api.Following && cs.userID == cs.deps.Viewer.ID
}

// ToggleFollow follows or unfollows targetID. On the viewer's own following
// list an unfollow removes the row; elsewhere the row's state flips. Either
// way the change shows at once and is undone if the server refuses.
func (cs *ConnectionService) ToggleFollow(ctx context.Context, targetID string) (bool, error) {
	if targetID == cs.deps.Viewer.ID {
		return false, clierrors.ValidationError("user", "you cannot follow yourself")
	}
	items := cs.screen.Items()
	tag := loading.Tag{Section: loading.SectionFollow, Target: targetID}
	current, ok := items.Get(targetID)
	if !ok {
		return cs.follow(ctx, tag, targetID)
	}

	if current.Following && cs.ownFollowing() {
		op := optimistic.Op{Tag: tag, Label: "Unfollow", Success: "Unfollowed " + current.User.Name()}
		return optimistic.Delete(ctx, cs.runner, op, items, targetID, func(ctx context.Context) error {
			_, err := cs.deps.API.Unfollow(ctx, targetID)
			return err
		})
	}

	label := "Follow"
	if current.Following {
		label = "Unfollow"
	}
	op := optimistic.Op{Tag: tag, Label: label}
	ran, _, err := optimistic.Replace(ctx, cs.runner, op, items, targetID,
		func(c api.Connection) api.Connection {
			c.Following = !c.Following
			return c
		},
		func(ctx context.Context, prev api.Connection) (api.Connection, error) {
			var (
				c   *api.Connection
				err error
			)
			if prev.Following {
				c, err = cs.deps.API.Unfollow(ctx, targetID)
			} else {
				c, err = cs.deps.API.Follow(ctx, targetID)
			}
			if err != nil {
				return api.Connection{}, err
			}
			return *c, nil
		})
	return ran, err
}

// follow follows a user who is not on this list. There is nothing to show
// early; on the viewer's own following list the new row is added once the
// server agrees.
func (cs *ConnectionService) follow(ctx context.Context, tag loading.Tag, targetID string) (bool, error) {
	ran, _, err := optimistic.Run(ctx, cs.runner, optimistic.Mutation[api.Connection]{
		Tag:   tag,
		Label: "Follow",
		Commit: func(ctx context.Context) (api.Connection, error) {
			c, err := cs.deps.API.Follow(ctx, targetID)
			if err != nil {
				return api.Connection{}, err
			}
			return *c, nil
		},
		Reconcile: func(c api.Connection) {
			if cs.ownFollowing() && c.Following {
				cs.screen.Items().Prepend(c)
			}
		},
		Success: "Now following " + targetID,
	})
	return ran, err
}
