package service_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zfogg/nearby/cli/internal/fakeserver"
	"github.com/zfogg/nearby/cli/pkg/api"
	"github.com/zfogg/nearby/cli/pkg/cache"
	"github.com/zfogg/nearby/cli/pkg/client"
	"github.com/zfogg/nearby/cli/pkg/optimistic"
	"github.com/zfogg/nearby/cli/pkg/paging"
	"github.com/zfogg/nearby/cli/pkg/realtime"
	"github.com/zfogg/nearby/cli/pkg/service"
)

func (s *ServiceTestSuite) conversation() (*service.ConversationService, *cache.Store) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.backend.Conversations = []api.Conversation{{ID: "c1", Title: "Saturday brunch"}}
	for i := 3; i >= 1; i-- {
		s.backend.Messages["c1"] = append(s.backend.Messages["c1"], api.Message{
			ID:             fmt.Sprintf("m%d", i),
			ConversationID: "c1",
			AuthorID:       "sam",
			Body:           fmt.Sprintf("message %d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		})
	}

	store, err := cache.Open(":memory:")
	s.Require().NoError(err)
	s.T().Cleanup(func() { store.Close() })

	conv := service.NewConversationService(s.deps, "c1", store)
	_, err = conv.Load(s.ctx, paging.Refresh)
	s.Require().NoError(err)
	return conv, store
}

func (s *ServiceTestSuite) TestConversationLoadMirrorsHistory() {
	conv, _ := s.conversation()
	s.Equal([]string{"m3", "m2"}, ids(conv.Items()))

	cached, err := conv.Cached(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"m3", "m2"}, ids(cached))

	_, err = conv.Load(s.ctx, paging.LoadMore)
	s.Require().NoError(err)
	cached, err = conv.Cached(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"m3", "m2", "m1"}, ids(cached))
}

func (s *ServiceTestSuite) TestConversationRefreshPrunesMissedRemovals() {
	conv, store := s.conversation()
	_, err := conv.Load(s.ctx, paging.LoadMore)
	s.Require().NoError(err)

	// m2 is deleted while we are not listening
	s.backend.ForgetMessage("c1", "m2")
	_, err = conv.Load(s.ctx, paging.Refresh)
	s.Require().NoError(err)
	s.Equal([]string{"m3", "m1"}, ids(conv.Items()))

	cached, err := conv.Cached(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"m3", "m1"}, ids(cached))

	// with everything gone, a refresh empties the mirror
	s.backend.ForgetMessage("c1", "m3")
	s.backend.ForgetMessage("c1", "m1")
	_, err = conv.Load(s.ctx, paging.Refresh)
	s.Require().NoError(err)
	recs, err := store.Mirror(s.ctx, "conversation:c1")
	s.Require().NoError(err)
	s.Empty(recs)
}

func (s *ServiceTestSuite) TestConversationRefreshKeepsOlderHistory() {
	conv, _ := s.conversation()
	_, err := conv.Load(s.ctx, paging.LoadMore)
	s.Require().NoError(err)

	_, err = conv.Load(s.ctx, paging.Refresh)
	s.Require().NoError(err)
	s.True(conv.Screen().HasMore())

	cached, err := conv.Cached(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"m3", "m2", "m1"}, ids(cached))
}

func (s *ServiceTestSuite) TestConversationSend() {
	conv, _ := s.conversation()

	ran, msg, err := conv.Send(s.ctx, "on my way")
	s.Require().NoError(err)
	s.True(ran)
	s.False(optimistic.IsPlaceholder(msg.ID))
	s.Equal(msg.ID, conv.Items()[0].ID)
	s.Len(conv.Items(), 3)

	cached, err := conv.Cached(s.ctx)
	s.Require().NoError(err)
	s.Equal(msg.ID, cached[0].ID)
}

func (s *ServiceTestSuite) TestConversationSendFailureRemovesPlaceholder() {
	conv, _ := s.conversation()
	s.backend.Fail("POST /conversations/:id/messages", http.StatusInternalServerError, "db down", 1)

	_, _, err := conv.Send(s.ctx, "on my way")
	s.Require().Error(err)
	s.Equal([]string{"m3", "m2"}, ids(conv.Items()))

	cached, err := conv.Cached(s.ctx)
	s.Require().NoError(err)
	s.Len(cached, 2, "placeholders are never cached")
}

func (s *ServiceTestSuite) TestConversationAppliesEvents() {
	conv, _ := s.conversation()
	m4 := api.Message{ID: "m4", ConversationID: "c1", Body: "new", CreatedAt: time.Now().UTC()}

	s.True(conv.Apply(s.ctx, realtime.MessageAdded{ConversationID: "c1", Message: m4}))
	s.True(conv.Apply(s.ctx, realtime.MessageAdded{ConversationID: "c1", Message: m4}))
	s.Equal([]string{"m4", "m3", "m2"}, ids(conv.Items()))

	s.False(conv.Apply(s.ctx, realtime.MessageAdded{ConversationID: "other", Message: api.Message{ID: "x"}}))

	edited := m4
	edited.Body = "edited"
	conv.Apply(s.ctx, realtime.MessageUpdated{ConversationID: "c1", Message: edited})
	s.Equal("edited", conv.Items()[0].Body)

	conv.Apply(s.ctx, realtime.MessageRemoved{ConversationID: "c1", MessageID: "m3"})
	s.Equal([]string{"m4", "m2"}, ids(conv.Items()))
	cached, err := conv.Cached(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"m4", "m2"}, ids(cached))
	s.Equal("edited", cached[0].Body)

	lee := api.User{ID: "lee", Username: "lee"}
	conv.Apply(s.ctx, realtime.ParticipantChanged{ConversationID: "c1", User: lee, Joined: true})
	s.Equal([]string{"lee"}, ids(conv.Participants()))
	conv.Apply(s.ctx, realtime.ParticipantChanged{ConversationID: "c1", User: lee})
	s.Empty(conv.Participants())
}

func (s *ServiceTestSuite) TestConversationSubscribe() {
	conv, _ := s.conversation()
	updates, cancel := conv.Subscribe()
	defer cancel()

	s.Equal([]string{"m3", "m2"}, ids(<-updates))

	conv.Apply(s.ctx, realtime.MessageAdded{ConversationID: "c1", Message: api.Message{ID: "m4"}})
	conv.Apply(s.ctx, realtime.MessageAdded{ConversationID: "c1", Message: api.Message{ID: "m5"}})
	// only the latest state is kept for a slow reader
	s.Equal([]string{"m5", "m4", "m3", "m2"}, ids(<-updates))

	cancel()
	_, open := <-updates
	s.False(open)
	s.NotPanics(func() {
		conv.Apply(s.ctx, realtime.MessageAdded{ConversationID: "c1", Message: api.Message{ID: "m6"}})
	})
}

func (s *ServiceTestSuite) TestConversationFollowsRealtime() {
	conv, _ := s.conversation()

	wsURL := "ws" + strings.TrimPrefix(s.srv.URL, "http") + fakeserver.BasePath + "/ws"
	cfg := realtime.DefaultConfig(wsURL)
	cfg.ConnectTimeout = 2 * time.Second
	rt := realtime.NewClient(cfg, client.StaticToken(s.token))
	s.Require().NoError(rt.Connect(s.ctx))
	defer rt.Close()
	s.waitFor(func() bool { return s.backend.Sockets() == 1 })

	ctx, stop := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- conv.Run(ctx, rt.Events()) }()

	// a message from someone else arrives only through the socket
	sam := s.backend.AddUser(api.User{ID: "sam", Username: "sam"}, "sam@example.com", "password1")
	_, err := s.apiFor(sam).SendMessage(s.ctx, "c1", "see you there")
	s.Require().NoError(err)
	s.waitFor(func() bool { return len(conv.Items()) == 3 })
	s.Equal("see you there", conv.Items()[0].Body)

	// our own message arrives twice, once per path, and is shown once
	_, mine, err := conv.Send(s.ctx, "me too")
	s.Require().NoError(err)
	s.waitFor(func() bool {
		cached, err := conv.Cached(s.ctx)
		return err == nil && len(cached) == 4
	})
	count := 0
	for _, m := range conv.Items() {
		if m.ID == mine.ID {
			count++
		}
		s.False(optimistic.IsPlaceholder(m.ID))
	}
	s.Equal(1, count)
	s.Len(conv.Items(), 4)

	stop()
	s.ErrorIs(<-done, context.Canceled)
}

func (s *ServiceTestSuite) TestOwnEchoReplacesPlaceholder() {
	var current atomic.Pointer[service.ConversationService]
	type view struct{ placeholders, confirmed int }
	seen := make(chan view, 1)

	// the server's broadcast reaches us before its reply
	router := gin.New()
	router.POST(fakeserver.BasePath+"/conversations/:id/messages", func(c *gin.Context) {
		msg := api.Message{ID: "m-srv", ConversationID: "c1", AuthorID: viewer.ID, Body: "on my way", CreatedAt: time.Now().UTC()}
		conv := current.Load()
		conv.Apply(c.Request.Context(), realtime.MessageAdded{ConversationID: "c1", Message: msg})
		var v view
		for _, m := range conv.Items() {
			if optimistic.IsPlaceholder(m.ID) {
				v.placeholders++
			} else if m.ID == "m-srv" {
				v.confirmed++
			}
		}
		seen <- v
		c.JSON(http.StatusCreated, gin.H{"success": true, "data": msg})
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	d := s.deps
	d.API = api.New(client.New(client.Options{
		BaseURL: srv.URL + fakeserver.BasePath,
		Timeout: 5 * time.Second,
		Tokens:  client.StaticToken(s.token),
	}))
	conv := service.NewConversationService(d, "c1", nil)
	current.Store(conv)

	ran, msg, err := conv.Send(s.ctx, "on my way")
	s.Require().NoError(err)
	s.True(ran)
	s.Equal("m-srv", msg.ID)
	s.Equal(view{placeholders: 0, confirmed: 1}, <-seen, "never both while the send is in flight")
	s.Equal([]string{"m-srv"}, ids(conv.Items()))
}

func (s *ServiceTestSuite) TestEchoFromOtherSenderIsNotClaimed() {
	conv, _ := s.conversation()
	release := s.backend.Hold("POST /conversations/:id/messages")

	done := make(chan error, 1)
	go func() {
		_, _, err := conv.Send(s.ctx, "hello")
		done <- err
	}()
	s.waitFor(func() bool { return s.backend.Calls("POST /conversations/:id/messages") == 1 })

	conv.Apply(s.ctx, realtime.MessageAdded{ConversationID: "c1", Message: api.Message{ID: "m-sam", AuthorID: "sam", Body: "hello"}})
	items := conv.Items()
	s.Require().Len(items, 4)
	s.Equal("m-sam", items[0].ID)
	s.True(optimistic.IsPlaceholder(items[1].ID))

	release()
	s.Require().NoError(<-done)
	s.Len(conv.Items(), 4)
	for _, m := range conv.Items() {
		s.False(optimistic.IsPlaceholder(m.ID))
	}
}
