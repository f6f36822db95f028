package service

import (
	"context"

	"github.com/zfogg/nearby/cli/pkg/api"
	"github.com/zfogg/nearby/cli/pkg/loading"
	"github.com/zfogg/nearby/cli/pkg/logger"
	"github.com/zfogg/nearby/cli/pkg/optimistic"
	"github.com/zfogg/nearby/cli/pkg/paging"
	"github.com/zfogg/nearby/cli/pkg/toast"
)

// NotificationService is the viewer's notification list.
type NotificationService struct {
	deps   Deps
	screen *paging.Controller[api.Notification]
	runner *optimistic.Runner
}

// NewNotificationService creates a new notification service
func NewNotificationService(d Deps) *NotificationService {
	d = d.WithDefaults()
	return &NotificationService{
		deps:   d,
		screen: paging.NewController(d.API.Notifications, d.options("notifications", "Load notifications")),
		runner: d.runner(),
	}
}

// Screen returns the underlying controller.
func (ns *NotificationService) Screen() *paging.Controller[api.Notification] { return ns.screen }

// Load refreshes or extends the list.
func (ns *NotificationService) Load(ctx context.Context, action paging.Action) (bool, error) {
	logger.Debug("Loading notifications", "action", action)
	return ns.screen.Load(ctx, action)
}

// Items returns the notifications as currently shown.
func (ns *NotificationService) Items() []api.Notification { return ns.screen.Snapshot() }

// UnreadCount counts loaded unread notifications.
func (ns *NotificationService) UnreadCount() int {
	n := 0
	for _, item := range ns.screen.Snapshot() {
		if !item.Read {
			n++
		}
	}
	return n
}

// MarkRead marks id read. Already-read notifications are left alone.
func (ns *NotificationService) MarkRead(ctx context.Context, id string) (bool, error) {
	if n, ok := ns.screen.Items().Get(id); ok && n.Read {
		return false, nil
	}
	op := optimistic.Op{
		Tag:   loading.Tag{Section: loading.SectionMarkRead, Target: id},
		Label: "Mark notification read",
	}
	ran, _, err := optimistic.Replace(ctx, ns.runner, op, ns.screen.Items(), id,
		func(n api.Notification) api.Notification {
			n.Read = true
			return n
		},
		func(ctx context.Context, _ api.Notification) (api.Notification, error) {
			n, err := ns.deps.API.MarkNotificationRead(ctx, id)
			if err != nil {
				return api.Notification{}, err
			}
			return *n, nil
		})
	return ran, err
}

// MarkAllRead marks every loaded unread notification read, one request
// each. It stops at the first failure; earlier ones stay read.
func (ns *NotificationService) MarkAllRead(ctx context.Context) (int, error) {
	marked := 0
	for _, n := range ns.screen.Snapshot() {
		if n.Read {
			continue
		}
		ran, err := ns.MarkRead(ctx, n.ID)
		if err != nil {
			return marked, err
		}
		if ran {
			marked++
		}
	}
	if marked > 0 {
		ns.deps.Toasts.Report(toast.Success("Marked %d notification%s read", marked, pluralize(marked)))
	}
	return marked, nil
}
