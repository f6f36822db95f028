package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zfogg/nearby/cli/pkg/api"
	clierrors "github.com/zfogg/nearby/cli/pkg/errors"
	"github.com/zfogg/nearby/cli/pkg/loading"
	"github.com/zfogg/nearby/cli/pkg/logger"
	"github.com/zfogg/nearby/cli/pkg/optimistic"
	"github.com/zfogg/nearby/cli/pkg/paging"
	"github.com/zfogg/nearby/cli/pkg/validation"
)

// MaxEmojiLength bounds a reaction in runes; skin tones and ZWJ sequences
// take several.
const MaxEmojiLength = 8

// FeedService is the activity feed and its emoji reactions.
type FeedService struct {
	deps   Deps
	screen *paging.Controller[api.FeedItem]
	runner *optimistic.Runner
}

// NewFeedService creates a new feed service
func NewFeedService(d Deps) *FeedService {
	d = d.WithDefaults()
	return &FeedService{
		deps:   d,
		screen: paging.NewController(d.API.Feed, d.options("feed", "Load feed")),
		runner: d.runner(),
	}
}

// Screen returns the underlying controller.
func (fs *FeedService) Screen() *paging.Controller[api.FeedItem] { return fs.screen }

// Load refreshes or extends the feed.
func (fs *FeedService) Load(ctx context.Context, action paging.Action) (bool, error) {
	logger.Debug("Loading feed", "action", action)
	return fs.screen.Load(ctx, action)
}

// Items returns the feed as currently shown.
func (fs *FeedService) Items() []api.FeedItem { return fs.screen.Snapshot() }

// ValidateEmoji checks a reaction before it is sent.
func ValidateEmoji(emoji string) error {
	return validation.Var("emoji", emoji, fmt.Sprintf("required,max=%d,nospace", MaxEmojiLength))
}

func reactTag(itemID, emoji string) loading.Tag {
	return loading.Tag{Section: loading.SectionReact, Target: itemID + ":" + emoji}
}

// React adds the viewer's emoji reaction to itemID. The reaction shows up
// at once and is taken back if the server refuses it. ran is false when the
// viewer already reacted or the same reaction is already being sent.
func (fs *FeedService) React(ctx context.Context, itemID, emoji string) (bool, error) {
	if err := ValidateEmoji(emoji); err != nil {
		return false, err
	}
	items := fs.screen.Items()
	item, ok := items.Get(itemID)
	if !ok {
		return false, clierrors.NotFoundError("Activity", itemID)
	}
	if _, mine := item.FindReaction(fs.deps.Viewer.ID, emoji); mine {
		logger.Debug("Already reacted", "item", itemID, "emoji", emoji)
		return false, nil
	}

	placeholder := api.Reaction{
		ID:         optimistic.PlaceholderID(),
		ActivityID: itemID,
		UserID:     fs.deps.Viewer.ID,
		Emoji:      emoji,
		CreatedAt:  time.Now().UTC(),
	}

	ran, _, err := optimistic.Run(ctx, fs.runner, optimistic.Mutation[api.Reaction]{
		Tag:   reactTag(itemID, emoji),
		Label: "Add reaction",
		Apply: func() func() {
			items.Update(itemID, func(it api.FeedItem) api.FeedItem {
				it.Reactions = append(append([]api.Reaction(nil), it.Reactions...), placeholder)
				return it
			})
			return func() {
				items.Update(itemID, func(it api.FeedItem) api.FeedItem {
					it.Reactions = withoutReaction(it.Reactions, placeholder.ID)
					return it
				})
			}
		},
		Commit: func(ctx context.Context) (api.Reaction, error) {
			r, err := fs.deps.API.AddReaction(ctx, itemID, emoji)
			if err != nil {
				return api.Reaction{}, err
			}
			return *r, nil
		},
		Reconcile: func(server api.Reaction) {
			items.Update(itemID, func(it api.FeedItem) api.FeedItem {
				it.Reactions = swapReaction(it.Reactions, placeholder.ID, server)
				return it
			})
		},
	})
	return ran, err
}

// Unreact removes the viewer's emoji reaction from itemID. It is put back
// if the server refuses.
func (fs *FeedService) Unreact(ctx context.Context, itemID, emoji string) (bool, error) {
	items := fs.screen.Items()
	item, ok := items.Get(itemID)
	if !ok {
		return false, clierrors.NotFoundError("Activity", itemID)
	}
	mine, found := item.FindReaction(fs.deps.Viewer.ID, emoji)
	if !found {
		return false, nil
	}

	ran, _, err := optimistic.Run(ctx, fs.runner, optimistic.Mutation[struct{}]{
		Tag:   reactTag(itemID, emoji),
		Label: "Remove reaction",
		Apply: func() func() {
			var at int
			items.Update(itemID, func(it api.FeedItem) api.FeedItem {
				at = indexOfReaction(it.Reactions, mine.ID)
				it.Reactions = withoutReaction(it.Reactions, mine.ID)
				return it
			})
			return func() {
				items.Update(itemID, func(it api.FeedItem) api.FeedItem {
					it.Reactions = insertReaction(it.Reactions, at, mine)
					return it
				})
			}
		},
		Commit: func(ctx context.Context) (struct{}, error) {
			err := fs.deps.API.RemoveReaction(ctx, mine.ID)
			if api.IsNotFound(err) {
				// already gone server-side
				return struct{}{}, nil
			}
			return struct{}{}, err
		},
	})
	return ran, err
}

// ToggleReaction adds emoji if the viewer has not reacted with it yet and
// removes it otherwise.
func (fs *FeedService) ToggleReaction(ctx context.Context, itemID, emoji string) (bool, error) {
	item, ok := fs.screen.Items().Get(itemID)
	if ok {
		if _, mine := item.FindReaction(fs.deps.Viewer.ID, emoji); mine {
			return fs.Unreact(ctx, itemID, emoji)
		}
	}
	return fs.React(ctx, itemID, emoji)
}

func indexOfReaction(rs []api.Reaction, id string) int {
	for i, r := range rs {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// withoutReaction returns a copy of rs without id.
func withoutReaction(rs []api.Reaction, id string) []api.Reaction {
	out := make([]api.Reaction, 0, len(rs))
	for _, r := range rs {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

func insertReaction(rs []api.Reaction, at int, r api.Reaction) []api.Reaction {
	if indexOfReaction(rs, r.ID) >= 0 {
		return rs
	}
	if at < 0 || at > len(rs) {
		at = len(rs)
	}
	out := make([]api.Reaction, 0, len(rs)+1)
	out = append(out, rs[:at]...)
	out = append(out, r)
	return append(out, rs[at:]...)
}

// swapReaction replaces the placeholder with the server's reaction. If the
// server's reaction is already present the placeholder is just dropped.
func swapReaction(rs []api.Reaction, placeholderID string, server api.Reaction) []api.Reaction {
	if indexOfReaction(rs, server.ID) >= 0 {
		return withoutReaction(rs, placeholderID)
	}
	out := make([]api.Reaction, len(rs))
	copy(out, rs)
	if i := indexOfReaction(out, placeholderID); i >= 0 {
		out[i] = server
	}
	return out
}

// CommentService is one feed item's comment thread.
type CommentService struct {
	deps       Deps
	activityID string
	screen     *paging.Controller[api.Comment]
	runner     *optimistic.Runner
}

// MaxCommentLength bounds a comment body in runes.
const MaxCommentLength = 2000

// NewCommentService creates the comment thread for activityID
func NewCommentService(d Deps, activityID string) *CommentService {
	d = d.WithDefaults()
	fetch := func(ctx context.Context, page, limit int) (paging.Page[api.Comment], error) {
		return d.API.Comments(ctx, activityID, page, limit)
	}
	return &CommentService{
		deps:       d,
		activityID: activityID,
		screen:     paging.NewController(fetch, d.options("comments:"+activityID, "Load comments")),
		runner:     d.runner(),
	}
}

// Screen returns the underlying controller.
func (cs *CommentService) Screen() *paging.Controller[api.Comment] { return cs.screen }

// Load refreshes or extends the thread.
func (cs *CommentService) Load(ctx context.Context, action paging.Action) (bool, error) {
	logger.Debug("Loading comments", "activity", cs.activityID, "action", action)
	return cs.screen.Load(ctx, action)
}

// Items returns the thread, newest first.
func (cs *CommentService) Items() []api.Comment { return cs.screen.Snapshot() }

// ValidateComment checks a comment body before it is sent. Surrounding
// whitespace does not count.
func ValidateComment(body string) error {
	return validation.Var("comment", strings.TrimSpace(body), fmt.Sprintf("required,max=%d", MaxCommentLength))
}

// Submit posts body. The comment appears at the top of the thread at once
// and becomes the server's record on success; it is removed on failure.
func (cs *CommentService) Submit(ctx context.Context, body string) (bool, api.Comment, error) {
	body = strings.TrimSpace(body)
	if err := ValidateComment(body); err != nil {
		return false, api.Comment{}, err
	}
	logger.Debug("Submitting comment", "activity", cs.activityID, "length", len(body))

	placeholder := api.Comment{
		ID:         optimistic.PlaceholderID(),
		ActivityID: cs.activityID,
		Author:     cs.deps.Viewer,
		Body:       body,
		CreatedAt:  time.Now().UTC(),
	}
	op := optimistic.Op{
		Tag:     loading.Tag{Section: loading.SectionSubmit, Target: "comment:" + cs.activityID},
		Label:   "Post comment",
		Success: "Comment posted",
	}
	return optimistic.Insert(ctx, cs.runner, op, cs.screen.Items(), 0, placeholder,
		func(ctx context.Context) (api.Comment, error) {
			c, err := cs.deps.API.AddComment(ctx, cs.activityID, body)
			if err != nil {
				return api.Comment{}, err
			}
			return *c, nil
		})
}
