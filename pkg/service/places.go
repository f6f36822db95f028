package service

import (
	"context"

	"github.com/zfogg/nearby/cli/pkg/api"
	"github.com/zfogg/nearby/cli/pkg/loading"
	"github.com/zfogg/nearby/cli/pkg/logger"
	"github.com/zfogg/nearby/cli/pkg/optimistic"
	"github.com/zfogg/nearby/cli/pkg/paging"
)

// ReviewService is one place's reviews and their likes.
type ReviewService struct {
	deps    Deps
	placeID string
	screen  *paging.Controller[api.Review]
	runner  *optimistic.Runner
}

// NewReviewService creates the review list for placeID
func NewReviewService(d Deps, placeID string) *ReviewService {
	d = d.WithDefaults()
	fetch := func(ctx context.Context, page, limit int) (paging.Page[api.Review], error) {
		return d.API.Reviews(ctx, placeID, page, limit)
	}
	return &ReviewService{
		deps:    d,
		placeID: placeID,
		screen:  paging.NewController(fetch, d.options("reviews:"+placeID, "Load reviews")),
		runner:  d.runner(),
	}
}

// Screen returns the underlying controller.
func (rs *ReviewService) Screen() *paging.Controller[api.Review] { return rs.screen }

// Load refreshes or extends the reviews.
func (rs *ReviewService) Load(ctx context.Context, action paging.Action) (bool, error) {
	logger.Debug("Loading reviews", "place", rs.placeID, "action", action)
	return rs.screen.Load(ctx, action)
}

// Items returns the reviews as currently shown.
func (rs *ReviewService) Items() []api.Review { return rs.screen.Snapshot() }

// ToggleLike likes reviewID, or unlikes it if the viewer already does. The
// count changes at once and reverts if the server refuses.
func (rs *ReviewService) ToggleLike(ctx context.Context, reviewID string) (bool, api.Review, error) {
	op := optimistic.Op{
		Tag:   loading.Tag{Section: loading.SectionLike, Target: reviewID},
		Label: "Like review",
	}
	flip := func(r api.Review) api.Review {
		if r.Liked {
			r.LikeCount--
		} else {
			r.LikeCount++
		}
		r.Liked = !r.Liked
		return r
	}
	return optimistic.Replace(ctx, rs.runner, op, rs.screen.Items(), reviewID, flip,
		func(ctx context.Context, prev api.Review) (api.Review, error) {
			var (
				r   *api.Review
				err error
			)
			if prev.Liked {
				r, err = rs.deps.API.UnlikeReview(ctx, reviewID)
			} else {
				r, err = rs.deps.API.LikeReview(ctx, reviewID)
			}
			if err != nil {
				return api.Review{}, err
			}
			return *r, nil
		})
}
