package api

import (
	"context"
	"fmt"

	"github.com/zfogg/nearby/cli/pkg/logger"
	"github.com/zfogg/nearby/cli/pkg/paging"
)

// Notifications retrieves one page of the viewer's notifications
func (a *API) Notifications(ctx context.Context, page, limit int) (paging.Page[Notification], error) {
	logger.Debug("Fetching notifications", "page", page, "limit", limit)
	return getList[Notification](ctx, a, "/notifications", page, limit)
}

// MarkNotificationRead marks one notification as read
func (a *API) MarkNotificationRead(ctx context.Context, id string) (*Notification, error) {
	logger.Debug("Marking notification read", "notification_id", id)

	req, err := a.c.AuthR(ctx)
	if err != nil {
		return nil, err
	}
	return one[Notification](req.Post(fmt.Sprintf("/notifications/%s/read", id)))
}
