package service_test

import (
	"net/http"

	"github.com/zfogg/nearby/cli/pkg/api"
	clierrors "github.com/zfogg/nearby/cli/pkg/errors"
	"github.com/zfogg/nearby/cli/pkg/paging"
	"github.com/zfogg/nearby/cli/pkg/service"
)

func (s *ServiceTestSuite) loadedReviews() *service.ReviewService {
	s.backend.Reviews["p1"] = []api.Review{
		{ID: "rev-1", PlaceID: "p1", Rating: 4, LikeCount: 2},
		{ID: "rev-2", PlaceID: "p1", Rating: 5, LikeCount: 0},
	}
	reviews := service.NewReviewService(s.deps, "p1")
	_, err := reviews.Load(s.ctx, paging.Refresh)
	s.Require().NoError(err)
	return reviews
}

func (s *ServiceTestSuite) TestToggleLikeShowsAtOnce() {
	reviews := s.loadedReviews()
	release := s.backend.Hold("POST /reviews/:id/like")

	type result struct {
		review api.Review
		err    error
	}
	done := make(chan result, 1)
	go func() {
		_, r, err := reviews.ToggleLike(s.ctx, "rev-1")
		done <- result{r, err}
	}()

	s.waitFor(func() bool { return s.backend.Calls("POST /reviews/:id/like") == 1 })
	shown := reviews.Items()[0]
	s.True(shown.Liked)
	s.Equal(3, shown.LikeCount)

	release()
	res := <-done
	s.Require().NoError(res.err)
	s.True(res.review.Liked)
	s.Equal(3, reviews.Items()[0].LikeCount)

	_, _, err := reviews.ToggleLike(s.ctx, "rev-1")
	s.Require().NoError(err)
	s.False(reviews.Items()[0].Liked)
	s.Equal(2, reviews.Items()[0].LikeCount)
	s.Equal(1, s.backend.Calls("DELETE /reviews/:id/like"))
}

func (s *ServiceTestSuite) TestToggleLikeFailureRollsBack() {
	reviews := s.loadedReviews()
	before := reviews.Items()

	s.backend.Fail("POST /reviews/:id/like", http.StatusForbidden, "", 1)
	_, _, err := reviews.ToggleLike(s.ctx, "rev-2")
	s.Require().Error(err)
	s.True(clierrors.IsType(err, clierrors.ErrorTypeForbidden))
	s.Equal(before, reviews.Items())
}

func (s *ServiceTestSuite) TestCheckinsAndListsScreens() {
	s.backend.Checkins["sam"] = []api.Checkin{{ID: "ch1", UserID: "sam"}, {ID: "ch2", UserID: "sam"}, {ID: "ch3", UserID: "sam"}}
	s.backend.Lists["sam"] = []api.PlaceList{{ID: "l1", OwnerID: "sam", Name: "Coffee"}}

	checkins := service.CheckinsScreen(s.deps, "sam")
	_, err := checkins.Load(s.ctx, paging.Refresh)
	s.Require().NoError(err)
	_, err = checkins.Load(s.ctx, paging.LoadMore)
	s.Require().NoError(err)
	s.Equal([]string{"ch1", "ch2", "ch3"}, ids(checkins.Snapshot()))
	s.Equal("checkins:sam", checkins.Key())

	lists := service.ListsScreen(s.deps, "sam")
	_, err = lists.Load(s.ctx, paging.Refresh)
	s.Require().NoError(err)
	s.Equal([]string{"l1"}, ids(lists.Snapshot()))
	s.False(lists.HasMore())
}

func (s *ServiceTestSuite) followingScreen() *service.ConnectionService {
	s.backend.Follows["me"] = map[string]bool{"lee": true, "sam": true}
	following := service.NewConnectionService(s.deps, "me", api.Following)
	_, err := following.Load(s.ctx, paging.Refresh)
	s.Require().NoError(err)
	s.Require().Equal([]string{"lee", "sam"}, ids(following.Items()))
	return following
}

func (s *ServiceTestSuite) TestUnfollowFromOwnListRemovesRow() {
	following := s.followingScreen()

	ran, err := following.ToggleFollow(s.ctx, "lee")
	s.Require().NoError(err)
	s.True(ran)
	s.Equal([]string{"sam"}, ids(following.Items()))
	s.False(s.backend.Follows["me"]["lee"])
}

func (s *ServiceTestSuite) TestUnfollowFailureRestoresRow() {
	following := s.followingScreen()
	s.backend.Fail("DELETE /users/:id/follow", http.StatusInternalServerError, "db down", 1)

	_, err := following.ToggleFollow(s.ctx, "lee")
	s.Require().Error(err)
	s.Equal([]string{"lee", "sam"}, ids(following.Items()))
	s.Len(s.toasts.Failures(), 1)
	s.Equal("Unfollow failed", s.toasts.Failures()[0].Title)
}

func (s *ServiceTestSuite) TestFollowFromFollowersFlipsState() {
	s.backend.Follows["lee"] = map[string]bool{"sam": true}
	followers := service.NewConnectionService(s.deps, "sam", api.Followers)
	_, err := followers.Load(s.ctx, paging.Refresh)
	s.Require().NoError(err)
	s.Require().Equal([]string{"lee"}, ids(followers.Items()))
	s.False(followers.Items()[0].Following)

	_, err = followers.ToggleFollow(s.ctx, "lee")
	s.Require().NoError(err)
	s.True(followers.Items()[0].Following)
	s.True(s.backend.Follows["me"]["lee"])
}

func (s *ServiceTestSuite) TestFollowUserNotOnList() {
	following := s.followingScreen()

	ran, err := following.ToggleFollow(s.ctx, "kim")
	s.Require().NoError(err)
	s.True(ran)
	s.Equal([]string{"kim", "lee", "sam"}, ids(following.Items()))
}

func (s *ServiceTestSuite) TestCannotFollowSelf() {
	following := s.followingScreen()
	_, err := following.ToggleFollow(s.ctx, "me")
	s.True(clierrors.IsType(err, clierrors.ErrorTypeValidation))
	s.Zero(s.backend.Calls("POST /users/:id/follow"))
}

func (s *ServiceTestSuite) loadedNotifications() *service.NotificationService {
	s.backend.Notifications = []api.Notification{
		{ID: "n1", Kind: "follow", Message: "sam followed you"},
		{ID: "n2", Kind: "comment", Message: "lee commented", Read: true},
		{ID: "n3", Kind: "reaction", Message: "kim reacted"},
	}
	s.deps.PageSize = 10
	ns := service.NewNotificationService(s.deps)
	_, err := ns.Load(s.ctx, paging.Refresh)
	s.Require().NoError(err)
	return ns
}

func (s *ServiceTestSuite) TestMarkRead() {
	ns := s.loadedNotifications()
	s.Equal(2, ns.UnreadCount())

	ran, err := ns.MarkRead(s.ctx, "n1")
	s.Require().NoError(err)
	s.True(ran)
	s.True(ns.Items()[0].Read)

	ran, err = ns.MarkRead(s.ctx, "n2")
	s.NoError(err)
	s.False(ran, "already read")
	s.Equal(1, s.backend.Calls("POST /notifications/:id/read"))
	s.Equal(1, ns.UnreadCount())
}

func (s *ServiceTestSuite) TestMarkReadFailureRollsBack() {
	ns := s.loadedNotifications()
	s.backend.Fail("POST /notifications/:id/read", http.StatusInternalServerError, "db down", 1)

	_, err := ns.MarkRead(s.ctx, "n3")
	s.Require().Error(err)
	s.False(ns.Items()[2].Read)
	s.Equal(2, ns.UnreadCount())
}

func (s *ServiceTestSuite) TestMarkAllRead() {
	ns := s.loadedNotifications()

	marked, err := ns.MarkAllRead(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, marked)
	s.Zero(ns.UnreadCount())
	s.Equal("Marked 2 notifications read", s.toasts.Toasts()[0].Message)
}
