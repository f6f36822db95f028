package api

import (
	"context"
	"fmt"

	"github.com/zfogg/nearby/cli/pkg/logger"
	"github.com/zfogg/nearby/cli/pkg/paging"
)

// Feed retrieves one page of the viewer's activity feed
func (a *API) Feed(ctx context.Context, page, limit int) (paging.Page[FeedItem], error) {
	logger.Debug("Fetching feed", "page", page, "limit", limit)
	return getList[FeedItem](ctx, a, "/feed", page, limit)
}

// Comments retrieves one page of comments on an activity
func (a *API) Comments(ctx context.Context, activityID string, page, limit int) (paging.Page[Comment], error) {
	logger.Debug("Fetching comments", "activity_id", activityID, "page", page)
	return getList[Comment](ctx, a, fmt.Sprintf("/feed/%s/comments", activityID), page, limit)
}

// AddComment posts a comment on an activity
func (a *API) AddComment(ctx context.Context, activityID, body string) (*Comment, error) {
	logger.Debug("Adding comment", "activity_id", activityID)

	req, err := a.c.AuthR(ctx)
	if err != nil {
		return nil, err
	}
	return one[Comment](req.
		SetBody(map[string]string{"body": body}).
		Post(fmt.Sprintf("/feed/%s/comments", activityID)))
}

// AddReaction adds an emoji reaction to an activity
func (a *API) AddReaction(ctx context.Context, activityID, emoji string) (*Reaction, error) {
	logger.Debug("Adding reaction", "activity_id", activityID, "emoji", emoji)

	req, err := a.c.AuthR(ctx)
	if err != nil {
		return nil, err
	}
	return one[Reaction](req.
		SetBody(map[string]string{"emoji": emoji}).
		Post(fmt.Sprintf("/activities/%s/reactions", activityID)))
}

// RemoveReaction deletes a reaction
func (a *API) RemoveReaction(ctx context.Context, reactionID string) error {
	logger.Debug("Removing reaction", "reaction_id", reactionID)

	req, err := a.c.AuthR(ctx)
	if err != nil {
		return err
	}
	_, err = decode[struct{}](req.Delete(fmt.Sprintf("/reactions/%s", reactionID)))
	return err
}
