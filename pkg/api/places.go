package api

import (
	"context"
	"fmt"

	"github.com/zfogg/nearby/cli/pkg/logger"
	"github.com/zfogg/nearby/cli/pkg/paging"
)

// Reviews retrieves one page of reviews for a place
func (a *API) Reviews(ctx context.Context, placeID string, page, limit int) (paging.Page[Review], error) {
	logger.Debug("Fetching reviews", "place_id", placeID, "page", page)
	return getList[Review](ctx, a, fmt.Sprintf("/places/%s/reviews", placeID), page, limit)
}

// LikeReview likes a review and returns its updated state
func (a *API) LikeReview(ctx context.Context, reviewID string) (*Review, error) {
	logger.Debug("Liking review", "review_id", reviewID)

	req, err := a.c.AuthR(ctx)
	if err != nil {
		return nil, err
	}
	return one[Review](req.Post(fmt.Sprintf("/reviews/%s/like", reviewID)))
}

// UnlikeReview removes the viewer's like and returns the updated review
func (a *API) UnlikeReview(ctx context.Context, reviewID string) (*Review, error) {
	logger.Debug("Unliking review", "review_id", reviewID)

	req, err := a.c.AuthR(ctx)
	if err != nil {
		return nil, err
	}
	return one[Review](req.Delete(fmt.Sprintf("/reviews/%s/like", reviewID)))
}

// Checkins retrieves one page of a user's check-ins
func (a *API) Checkins(ctx context.Context, userID string, page, limit int) (paging.Page[Checkin], error) {
	logger.Debug("Fetching check-ins", "user_id", userID, "page", page)
	return getList[Checkin](ctx, a, fmt.Sprintf("/users/%s/checkins", userID), page, limit)
}

// Lists retrieves one page of a user's place lists
func (a *API) Lists(ctx context.Context, userID string, page, limit int) (paging.Page[PlaceList], error) {
	logger.Debug("Fetching lists", "user_id", userID, "page", page)
	return getList[PlaceList](ctx, a, fmt.Sprintf("/users/%s/lists", userID), page, limit)
}
