package service_test

import (
	"net/http"

	"github.com/zfogg/nearby/cli/pkg/api"
	"github.com/zfogg/nearby/cli/pkg/cache"
	clierrors "github.com/zfogg/nearby/cli/pkg/errors"
	"github.com/zfogg/nearby/cli/pkg/loading"
	"github.com/zfogg/nearby/cli/pkg/optimistic"
	"github.com/zfogg/nearby/cli/pkg/paging"
	"github.com/zfogg/nearby/cli/pkg/service"
)

const reactRoute = "POST /activities/:id/reactions"

func (s *ServiceTestSuite) loadedFeed() *service.FeedService {
	feed := service.NewFeedService(s.deps)
	fetched, err := feed.Load(s.ctx, paging.Refresh)
	s.Require().NoError(err)
	s.Require().True(fetched)
	return feed
}

func (s *ServiceTestSuite) reactionsOf(feed *service.FeedService, id string) []api.Reaction {
	item, ok := feed.Screen().Items().Get(id)
	s.Require().True(ok)
	return item.Reactions
}

func (s *ServiceTestSuite) TestFeedPagesUntilExhausted() {
	feed := s.loadedFeed()
	s.Equal([]string{"a1", "a2"}, ids(feed.Items()))

	for _, want := range []int{4, 5} {
		fetched, err := feed.Load(s.ctx, paging.LoadMore)
		s.Require().NoError(err)
		s.True(fetched)
		s.Len(feed.Items(), want)
	}
	s.False(feed.Screen().HasMore())

	fetched, err := feed.Load(s.ctx, paging.LoadMore)
	s.NoError(err)
	s.False(fetched)
	s.Equal(3, s.backend.Calls("GET /feed"))
	s.Equal([]string{"a1", "a2", "a3", "a4", "a5"}, ids(feed.Items()))
}

func (s *ServiceTestSuite) TestFeedFailureToastsAndKeepsItems() {
	feed := s.loadedFeed()
	s.backend.Fail("GET /feed", http.StatusInternalServerError, "db down", 1)

	_, err := feed.Load(s.ctx, paging.LoadMore)
	s.Require().Error(err)
	s.Equal([]string{"a1", "a2"}, ids(feed.Items()))
	s.Require().Len(s.toasts.Failures(), 1)
	s.Equal("Load feed failed", s.toasts.Failures()[0].Title)
}

func (s *ServiceTestSuite) TestReactShowsServerReaction() {
	feed := s.loadedFeed()

	ran, err := feed.React(s.ctx, "a1", "👍")
	s.Require().NoError(err)
	s.True(ran)

	rs := s.reactionsOf(feed, "a1")
	s.Require().Len(rs, 1)
	s.False(optimistic.IsPlaceholder(rs[0].ID))
	s.Equal("me", rs[0].UserID)
	s.Equal(1, feed.Items()[0].ReactionCounts()["👍"])
	s.Len(s.backend.Feed[0].Reactions, 1)
}

func (s *ServiceTestSuite) TestOfflineReactionShowsPlaceholderThenNone() {
	feed := s.loadedFeed()
	release := s.backend.Hold(reactRoute)
	s.backend.Fail(reactRoute, http.StatusServiceUnavailable, "offline", 1)

	done := make(chan error, 1)
	go func() {
		_, err := feed.React(s.ctx, "a1", "👍")
		done <- err
	}()

	s.waitFor(func() bool { return s.backend.Calls(reactRoute) == 1 })
	s.Equal(1, placeholders(s.reactionsOf(feed, "a1")), "one placeholder while in flight")
	s.True(s.deps.Loading.IsLoading(loading.Tag{Section: loading.SectionReact, Target: "a1:👍"}))

	release()
	err := <-done
	s.Require().Error(err)

	s.Empty(s.reactionsOf(feed, "a1"), "placeholder removed on failure")
	s.Len(s.toasts.Failures(), 1)
	s.Zero(s.deps.Loading.Len())
}

func (s *ServiceTestSuite) TestPendingReactionIsNeverSaved() {
	store, err := cache.Open(":memory:")
	s.Require().NoError(err)
	s.T().Cleanup(func() { store.Close() })
	s.deps.Store = store

	feed := s.loadedFeed()
	release := s.backend.Hold(reactRoute)
	s.backend.Fail(reactRoute, http.StatusServiceUnavailable, "offline", 1)

	done := make(chan error, 1)
	go func() {
		_, err := feed.React(s.ctx, "a1", "👍")
		done <- err
	}()
	s.waitFor(func() bool { return s.backend.Calls(reactRoute) == 1 })
	s.Require().Equal(1, placeholders(s.reactionsOf(feed, "a1")))

	// a page arriving mid-reaction saves the list
	_, err = feed.Load(s.ctx, paging.LoadMore)
	s.Require().NoError(err)

	snap, ok, err := store.LoadSnapshot(s.ctx, "feed")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.NotContains(string(snap.Items), paging.PlaceholderPrefix)

	release()
	s.Require().Error(<-done)

	restored := service.NewFeedService(s.deps)
	ok, err = restored.Screen().Restore(s.ctx)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal([]string{"a1", "a2", "a3", "a4"}, ids(restored.Items()))
	item, _ := restored.Screen().Items().Get("a1")
	s.Empty(item.Reactions)

	ran, err := restored.React(s.ctx, "a1", "👍")
	s.Require().NoError(err)
	s.True(ran, "the failed reaction is not remembered as sent")
}

func (s *ServiceTestSuite) TestDuplicateReactionSendsOnce() {
	feed := s.loadedFeed()
	release := s.backend.Hold(reactRoute)

	done := make(chan error, 1)
	go func() {
		_, err := feed.React(s.ctx, "a1", "🔥")
		done <- err
	}()
	s.waitFor(func() bool { return s.backend.Calls(reactRoute) == 1 })

	ran, err := feed.React(s.ctx, "a1", "🔥")
	s.NoError(err)
	s.False(ran)

	release()
	s.Require().NoError(<-done)
	s.Equal(1, s.backend.Calls(reactRoute))
	s.Len(s.reactionsOf(feed, "a1"), 1)
}

func (s *ServiceTestSuite) TestUnreactFailureRestoresReaction() {
	feed := s.loadedFeed()
	_, err := feed.React(s.ctx, "a1", "👍")
	s.Require().NoError(err)
	_, err = feed.React(s.ctx, "a1", "❤️")
	s.Require().NoError(err)
	before := s.reactionsOf(feed, "a1")

	s.backend.Fail("DELETE /reactions/:id", http.StatusInternalServerError, "db down", 1)
	ran, err := feed.Unreact(s.ctx, "a1", "👍")
	s.True(ran)
	s.Require().Error(err)
	s.True(clierrors.IsType(err, clierrors.ErrorTypeServer))
	s.Equal(before, s.reactionsOf(feed, "a1"))
}

func (s *ServiceTestSuite) TestUnreactMissingOnServerKeepsRemoval() {
	feed := s.loadedFeed()
	_, err := feed.React(s.ctx, "a1", "👍")
	s.Require().NoError(err)

	s.backend.Fail("DELETE /reactions/:id", http.StatusNotFound, "reaction not found", 1)
	ran, err := feed.Unreact(s.ctx, "a1", "👍")
	s.True(ran)
	s.NoError(err)
	s.Empty(s.reactionsOf(feed, "a1"))
}

func (s *ServiceTestSuite) TestToggleReaction() {
	feed := s.loadedFeed()

	_, err := feed.ToggleReaction(s.ctx, "a2", "👍")
	s.Require().NoError(err)
	s.Len(s.reactionsOf(feed, "a2"), 1)

	_, err = feed.ToggleReaction(s.ctx, "a2", "👍")
	s.Require().NoError(err)
	s.Empty(s.reactionsOf(feed, "a2"))
	s.Empty(s.backend.Feed[1].Reactions)
}

func (s *ServiceTestSuite) TestReactionValidation() {
	feed := s.loadedFeed()

	_, err := feed.React(s.ctx, "a1", "")
	s.True(clierrors.IsType(err, clierrors.ErrorTypeValidation))
	_, err = feed.React(s.ctx, "a1", "thumbs up")
	s.True(clierrors.IsType(err, clierrors.ErrorTypeValidation))
	_, err = feed.React(s.ctx, "nope", "👍")
	s.True(clierrors.IsType(err, clierrors.ErrorTypeNotFound))

	s.Zero(s.backend.Calls(reactRoute))
}

func (s *ServiceTestSuite) TestSubmitComment() {
	comments := service.NewCommentService(s.deps, "a1")
	_, err := comments.Load(s.ctx, paging.Refresh)
	s.Require().NoError(err)
	s.Empty(comments.Items())

	ran, c, err := comments.Submit(s.ctx, "  great flat white  ")
	s.Require().NoError(err)
	s.True(ran)
	s.False(optimistic.IsPlaceholder(c.ID))
	s.Equal("great flat white", c.Body)
	s.Equal([]string{c.ID}, ids(comments.Items()))
	s.Len(s.backend.Comments["a1"], 1)
	s.Equal("Comment posted", s.toasts.Toasts()[0].Message)
}

func (s *ServiceTestSuite) TestSubmitCommentFailureRestores() {
	s.backend.Comments["a1"] = []api.Comment{{ID: "c0", ActivityID: "a1", Body: "first"}}
	comments := service.NewCommentService(s.deps, "a1")
	_, err := comments.Load(s.ctx, paging.Refresh)
	s.Require().NoError(err)

	s.backend.Fail("POST /feed/:id/comments", http.StatusInternalServerError, "db down", 1)
	ran, _, err := comments.Submit(s.ctx, "second")
	s.True(ran)
	s.Require().Error(err)
	s.Equal([]string{"c0"}, ids(comments.Items()))
	s.Len(s.toasts.Failures(), 1)
}

func (s *ServiceTestSuite) TestSubmitEmptyCommentNeverCallsServer() {
	comments := service.NewCommentService(s.deps, "a1")
	ran, _, err := comments.Submit(s.ctx, "   ")
	s.False(ran)
	s.True(clierrors.IsType(err, clierrors.ErrorTypeValidation))
	s.Zero(s.backend.Calls("POST /feed/:id/comments"))
}
