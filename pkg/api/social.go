package api

import (
	"context"
	"fmt"

	"github.com/zfogg/nearby/cli/pkg/logger"
	"github.com/zfogg/nearby/cli/pkg/paging"
)

// Direction selects followers or following.
type Direction string

const (
	Followers Direction = "followers"
	Following Direction = "following"
)

// Connections retrieves one page of a user's followers or followees
func (a *API) Connections(ctx context.Context, userID string, dir Direction, page, limit int) (paging.Page[Connection], error) {
	logger.Debug("Fetching connections", "user_id", userID, "direction", dir, "page", page)
	return getList[Connection](ctx, a, fmt.Sprintf("/users/%s/%s", userID, dir), page, limit)
}

// Follow follows a user and returns the new connection state
func (a *API) Follow(ctx context.Context, userID string) (*Connection, error) {
	logger.Debug("Following user", "user_id", userID)

	req, err := a.c.AuthR(ctx)
	if err != nil {
		return nil, err
	}
	return one[Connection](req.Post(fmt.Sprintf("/users/%s/follow", userID)))
}

// Unfollow unfollows a user and returns the new connection state
func (a *API) Unfollow(ctx context.Context, userID string) (*Connection, error) {
	logger.Debug("Unfollowing user", "user_id", userID)

	req, err := a.c.AuthR(ctx)
	if err != nil {
		return nil, err
	}
	return one[Connection](req.Delete(fmt.Sprintf("/users/%s/follow", userID)))
}
