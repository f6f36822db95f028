package service

import (
	"context"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/zfogg/nearby/cli/pkg/api"
	"github.com/zfogg/nearby/cli/pkg/cache"
	clierrors "github.com/zfogg/nearby/cli/pkg/errors"
	"github.com/zfogg/nearby/cli/pkg/loading"
	"github.com/zfogg/nearby/cli/pkg/logger"
	"github.com/zfogg/nearby/cli/pkg/optimistic"
	"github.com/zfogg/nearby/cli/pkg/paging"
	"github.com/zfogg/nearby/cli/pkg/realtime"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MirrorStore keeps a local copy of a conversation. *cache.Store
// implements it.
type MirrorStore interface {
	PutMirror(ctx context.Context, scope, id string, data []byte, sortAt time.Time) error
	DeleteMirror(ctx context.Context, scope, id string) error
	PruneMirror(ctx context.Context, scope string, keep []string, since time.Time) (int, error)
	Mirror(ctx context.Context, scope string) ([]cache.MirrorRecord, error)
}

// ConversationService is one conversation: its message history, paged
// from the server and kept current by real-time events, newest first.
type ConversationService struct {
	deps         Deps
	id           string
	screen       *paging.Controller[api.Message]
	participants *paging.Collection[api.User]
	runner       *optimistic.Runner
	mirror       MirrorStore

	mu      sync.Mutex
	subs    map[int]chan []api.Message
	nextSub int

	// pendingMu orders placeholder swaps between Send and Apply.
	pendingMu sync.Mutex
	pending   []pendingSend
}

// pendingSend is a message shown as a placeholder and not yet confirmed.
type pendingSend struct {
	placeholderID string
	body          string
}

// NewConversationService creates conversation id. mirror may be nil.
func NewConversationService(d Deps, id string, mirror MirrorStore) *ConversationService {
	d = d.WithDefaults()
	fetch := func(ctx context.Context, page, limit int) (paging.Page[api.Message], error) {
		return d.API.Messages(ctx, id, page, limit)
	}
	return &ConversationService{
		deps:         d,
		id:           id,
		screen:       paging.NewController(fetch, d.options("messages:"+id, "Load messages")),
		participants: paging.NewCollection[api.User](),
		runner:       d.runner(),
		mirror:       mirror,
		subs:         make(map[int]chan []api.Message),
	}
}

func (cs *ConversationService) scope() string { return "conversation:" + cs.id }

// ID returns the conversation id.
func (cs *ConversationService) ID() string { return cs.id }

// Screen returns the underlying controller.
func (cs *ConversationService) Screen() *paging.Controller[api.Message] { return cs.screen }

// Items returns the messages, newest first.
func (cs *ConversationService) Items() []api.Message { return cs.screen.Snapshot() }

// Participants returns the users seen joining.
func (cs *ConversationService) Participants() []api.User { return cs.participants.Items() }

// Load refreshes or extends the history and mirrors what it got.
func (cs *ConversationService) Load(ctx context.Context, action paging.Action) (bool, error) {
	fetched, err := cs.screen.Load(ctx, action)
	if err != nil || !fetched {
		return fetched, err
	}
	items := cs.screen.Snapshot()
	for _, m := range items {
		cs.put(ctx, m)
	}
	if action == paging.Refresh {
		cs.prune(ctx, items)
	}
	cs.publish()
	return true, nil
}

// prune drops mirrored messages the refreshed page no longer holds. Messages
// older than the page are kept unless the page is the whole history.
func (cs *ConversationService) prune(ctx context.Context, items []api.Message) {
	if cs.mirror == nil {
		return
	}
	keep := make([]string, 0, len(items))
	var since time.Time
	for _, m := range items {
		keep = append(keep, m.ID)
		if cs.screen.HasMore() && (since.IsZero() || m.CreatedAt.Before(since)) {
			since = m.CreatedAt
		}
	}
	if cs.screen.HasMore() && since.IsZero() {
		return
	}
	removed, err := cs.mirror.PruneMirror(context.WithoutCancel(ctx), cs.scope(), keep, since)
	if err != nil {
		logger.Warn("Failed to prune message cache", "conversation", cs.id, "error", err)
		return
	}
	if removed > 0 {
		logger.Debug("Pruned message cache", "conversation", cs.id, "removed", removed)
	}
}

// Send posts body. The message appears at once and becomes the server's
// record on success, or disappears on failure.
func (cs *ConversationService) Send(ctx context.Context, body string) (bool, api.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return false, api.Message{}, clierrors.ValidationError("message", "cannot be empty")
	}

	placeholder := api.Message{
		ID:             optimistic.PlaceholderID(),
		ConversationID: cs.id,
		AuthorID:       cs.deps.Viewer.ID,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}
	items := cs.screen.Items()
	ran, msg, err := optimistic.Run(ctx, cs.runner, optimistic.Mutation[api.Message]{
		Tag:   loading.Tag{Section: loading.SectionSubmit, Target: "message:" + cs.id},
		Label: "Send message",
		Apply: func() func() {
			cs.pendingMu.Lock()
			cs.pending = append(cs.pending, pendingSend{placeholderID: placeholder.ID, body: body})
			items.Prepend(placeholder)
			cs.pendingMu.Unlock()
			cs.publish()
			return func() {
				cs.pendingMu.Lock()
				cs.dropPending(placeholder.ID)
				items.Remove(placeholder.ID)
				cs.pendingMu.Unlock()
				cs.publish()
			}
		},
		Commit: func(ctx context.Context) (api.Message, error) {
			m, err := cs.deps.API.SendMessage(ctx, cs.id, body)
			if err != nil {
				return api.Message{}, err
			}
			return *m, nil
		},
		Reconcile: func(m api.Message) {
			cs.pendingMu.Lock()
			cs.dropPending(placeholder.ID)
			switch {
			case items.Swap(placeholder.ID, m):
			case items.Update(m.ID, func(api.Message) api.Message { return m }):
				// the real-time copy arrived first and already took the
				// placeholder's place
			default:
				items.Prepend(m)
			}
			cs.pendingMu.Unlock()
			cs.put(ctx, m)
			cs.publish()
		},
	})
	return ran, msg, err
}

// Apply folds one event into the conversation. It returns false for events
// of other conversations.
func (cs *ConversationService) Apply(ctx context.Context, ev realtime.Event) bool {
	if ev.Conversation() != cs.id {
		return false
	}
	items := cs.screen.Items()

	switch e := ev.(type) {
	case realtime.MessageAdded:
		cs.pendingMu.Lock()
		if !items.Contains(e.Message.ID) {
			if id, ok := cs.claimPending(e.Message); ok {
				items.Swap(id, e.Message)
			} else {
				items.Prepend(e.Message)
			}
		}
		cs.pendingMu.Unlock()
		cs.put(ctx, e.Message)
	case realtime.MessageUpdated:
		if !items.Update(e.Message.ID, func(api.Message) api.Message { return e.Message }) {
			logger.Debug("Update for unloaded message", "id", e.Message.ID)
		}
		cs.put(ctx, e.Message)
	case realtime.MessageRemoved:
		items.Remove(e.MessageID)
		if cs.mirror != nil {
			if err := cs.mirror.DeleteMirror(ctx, cs.scope(), e.MessageID); err != nil {
				logger.Warn("Failed to update message cache", "conversation", cs.id, "error", err)
			}
		}
	case realtime.ParticipantChanged:
		if e.Joined {
			cs.participants.Upsert(e.User)
		} else {
			cs.participants.Remove(e.User.ID)
		}
	default:
		logger.Debug("Unhandled conversation event", "type", ev)
		return false
	}

	cs.publish()
	return true
}

// claimPending returns the placeholder standing in for m when m is the
// server's copy of a message the viewer is still sending. The oldest match
// is claimed. cs.pendingMu is held.
func (cs *ConversationService) claimPending(m api.Message) (string, bool) {
	if m.AuthorID != cs.deps.Viewer.ID {
		return "", false
	}
	for i, p := range cs.pending {
		if p.body == m.Body {
			cs.pending = append(cs.pending[:i:i], cs.pending[i+1:]...)
			return p.placeholderID, true
		}
	}
	return "", false
}

// dropPending forgets the send behind placeholderID. cs.pendingMu is held.
func (cs *ConversationService) dropPending(placeholderID string) {
	for i, p := range cs.pending {
		if p.placeholderID == placeholderID {
			cs.pending = append(cs.pending[:i:i], cs.pending[i+1:]...)
			return
		}
	}
}

// Run applies events until events is closed or ctx is done.
func (cs *ConversationService) Run(ctx context.Context, events <-chan realtime.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			cs.Apply(ctx, ev)
		}
	}
}

// Subscribe returns a channel that holds the latest list of messages. The
// current list is delivered at once; a slow reader only misses
// intermediate states. Call cancel to stop.
func (cs *ConversationService) Subscribe() (<-chan []api.Message, func()) {
	ch := make(chan []api.Message, 1)

	cs.mu.Lock()
	id := cs.nextSub
	cs.nextSub++
	cs.subs[id] = ch
	ch <- cs.screen.Snapshot()
	cs.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			cs.mu.Lock()
			delete(cs.subs, id)
			cs.mu.Unlock()
			close(ch)
		})
	}
}

func (cs *ConversationService) publish() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if len(cs.subs) == 0 {
		return
	}
	snap := cs.screen.Snapshot()
	for _, ch := range cs.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (cs *ConversationService) put(ctx context.Context, m api.Message) {
	if cs.mirror == nil || optimistic.IsPlaceholder(m.ID) {
		return
	}
	data, err := json.Marshal(m)
	if err != nil {
		logger.Warn("Failed to encode message", "id", m.ID, "error", err)
		return
	}
	if err := cs.mirror.PutMirror(context.WithoutCancel(ctx), cs.scope(), m.ID, data, m.CreatedAt); err != nil {
		logger.Warn("Failed to update message cache", "conversation", cs.id, "error", err)
	}
}

// Cached returns the mirrored messages, newest first, without touching the
// network.
func (cs *ConversationService) Cached(ctx context.Context) ([]api.Message, error) {
	if cs.mirror == nil {
		return nil, nil
	}
	recs, err := cs.mirror.Mirror(ctx, cs.scope())
	if err != nil {
		return nil, err
	}
	out := make([]api.Message, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		var m api.Message
		if err := json.Unmarshal(recs[i].Data, &m); err != nil {
			return nil, clierrors.DecodeError(err)
		}
		out = append(out, m)
	}
	return out, nil
}
