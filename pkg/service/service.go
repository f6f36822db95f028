// Package service assembles the screens of the CLI: each one pairs a
// paging.Controller with the optimistic mutations that apply to its records.
package service

import (
	"context"

	"github.com/zfogg/nearby/cli/pkg/api"
	"github.com/zfogg/nearby/cli/pkg/loading"
	"github.com/zfogg/nearby/cli/pkg/optimistic"
	"github.com/zfogg/nearby/cli/pkg/paging"
	"github.com/zfogg/nearby/cli/pkg/toast"
)

// Deps is what every screen needs. Loading and Toasts should be shared
// across screens so the spinner and toast line see everything.
type Deps struct {
	API      *api.API
	Loading  *loading.Set[loading.Tag]
	Toasts   toast.Reporter
	Store    paging.Store
	PageSize int
	// Viewer is the logged-in user. Placeholders are attributed to them.
	Viewer api.User
}

// WithDefaults fills a missing loading set and toast reporter.
func (d Deps) WithDefaults() Deps {
	if d.Loading == nil {
		d.Loading = loading.NewSet[loading.Tag]()
	}
	if d.Toasts == nil {
		d.Toasts = toast.Discard
	}
	if d.PageSize <= 0 {
		d.PageSize = paging.DefaultPageSize
	}
	return d
}

func (d Deps) options(key, label string) paging.Options {
	return paging.Options{
		Key:      key,
		Label:    label,
		PageSize: d.PageSize,
		Loading:  d.Loading,
		Toasts:   d.Toasts,
		Store:    d.Store,
	}
}

func (d Deps) runner() *optimistic.Runner {
	return optimistic.NewRunner(d.Loading, d.Toasts)
}

// CheckinsScreen pages through userID's check-ins.
func CheckinsScreen(d Deps, userID string) *paging.Controller[api.Checkin] {
	d = d.WithDefaults()
	return paging.NewController(func(ctx context.Context, page, limit int) (paging.Page[api.Checkin], error) {
		return d.API.Checkins(ctx, userID, page, limit)
	}, d.options("checkins:"+userID, "Load check-ins"))
}

// ListsScreen pages through userID's place lists.
func ListsScreen(d Deps, userID string) *paging.Controller[api.PlaceList] {
	d = d.WithDefaults()
	return paging.NewController(func(ctx context.Context, page, limit int) (paging.Page[api.PlaceList], error) {
		return d.API.Lists(ctx, userID, page, limit)
	}, d.options("lists:"+userID, "Load lists"))
}

// ConversationsScreen pages through the viewer's conversations.
func ConversationsScreen(d Deps) *paging.Controller[api.Conversation] {
	d = d.WithDefaults()
	return paging.NewController(d.API.Conversations, d.options("conversations", "Load conversations"))
}

func pluralize(count int) string {
	if count == 1 {
		return ""
	}
	return "s"
}
