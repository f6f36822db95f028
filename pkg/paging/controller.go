package paging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/zfogg/nearby/cli/pkg/loading"
	"github.com/zfogg/nearby/cli/pkg/logger"
	"github.com/zfogg/nearby/cli/pkg/toast"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Action is what the caller wants from a Load.
type Action int

const (
	// Refresh restarts at page 1 and replaces the collection.
	Refresh Action = iota
	// LoadMore fetches the page after the cursor and appends it.
	LoadMore
)

func (a Action) String() string {
	switch a {
	case Refresh:
		return "refresh"
	case LoadMore:
		return "load-more"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ErrUnknownAction is returned by Load for an Action outside the enum.
var ErrUnknownAction = errors.New("paging: unknown action")

// Page is one fetched page.
type Page[T any] struct {
	Items      []T
	Pagination Pagination
}

// Fetcher loads page number page of size limit.
type Fetcher[T any] func(ctx context.Context, page, limit int) (Page[T], error)

// Options configures a Controller.
type Options struct {
	// Key names the collection in loading tags, toasts and the store,
	// e.g. "feed" or "comments:42".
	Key string
	// Label is the user-facing name used in failure toasts, e.g. "Load feed".
	Label    string
	PageSize int
	Loading  *loading.Set[loading.Tag]
	Toasts   toast.Reporter
	Store    Store
}

// Controller keeps a Collection in step with a paginated endpoint.
type Controller[T Item] struct {
	fetch   Fetcher[T]
	key     string
	label   string
	loading *loading.Set[loading.Tag]
	toasts  toast.Reporter
	store   Store

	items *Collection[T]

	mu         sync.Mutex
	cursor     Cursor
	generation uint64
	cancelMore context.CancelFunc
}

// NewController builds a controller. Missing options get defaults: a
// private loading set and a toast reporter that discards.
func NewController[T Item](fetch Fetcher[T], opts Options) *Controller[T] {
	if opts.Loading == nil {
		opts.Loading = loading.NewSet[loading.Tag]()
	}
	if opts.Toasts == nil {
		opts.Toasts = toast.Discard
	}
	if opts.Label == "" {
		opts.Label = "Load " + opts.Key
	}
	return &Controller[T]{
		fetch:   fetch,
		key:     opts.Key,
		label:   opts.Label,
		loading: opts.Loading,
		toasts:  opts.Toasts,
		store:   opts.Store,
		items:   NewCollection[T](),
		cursor:  NewCursor(opts.PageSize),
	}
}

// Key returns the collection key.
func (c *Controller[T]) Key() string { return c.key }

// Items returns the live collection. Optimistic mutations operate on it
// directly.
func (c *Controller[T]) Items() *Collection[T] { return c.items }

// Snapshot returns a copy of the current records.
func (c *Controller[T]) Snapshot() []T { return c.items.Items() }

// Cursor returns a copy of the cursor.
func (c *Controller[T]) Cursor() Cursor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// HasMore reports whether LoadMore would fetch.
func (c *Controller[T]) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor.HasMore()
}

// Tag returns the loading tag used for action.
func (c *Controller[T]) Tag(action Action) loading.Tag {
	section := loading.SectionRefresh
	if action == LoadMore {
		section = loading.SectionLoadMore
	}
	return loading.Tag{Section: section, Target: c.key}
}

// Load runs action. fetched is false when the call was a no-op: the same
// load was already running, LoadMore had nothing left, or the result was
// superseded by a refresh. On failure the error is reported as a toast and
// returned; the collection and cursor are left as they were.
func (c *Controller[T]) Load(ctx context.Context, action Action) (fetched bool, err error) {
	switch action {
	case Refresh:
		return c.refresh(ctx)
	case LoadMore:
		return c.loadMore(ctx)
	default:
		return false, fmt.Errorf("%w: %d", ErrUnknownAction, int(action))
	}
}

func (c *Controller[T]) refresh(ctx context.Context) (bool, error) {
	release, ok := c.loading.TryAcquire(c.Tag(Refresh))
	if !ok {
		logger.Debug("Refresh already running", "key", c.key)
		return false, nil
	}
	defer release()

	c.mu.Lock()
	c.generation++
	gen := c.generation
	if c.cancelMore != nil {
		c.cancelMore()
		c.cancelMore = nil
	}
	limit := c.cursor.Limit
	c.mu.Unlock()

	logger.Debug("Refreshing", "key", c.key, "limit", limit)
	page, err := c.fetch(ctx, 1, limit)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false, nil
	}
	if err != nil {
		return false, c.fail(err)
	}

	c.cursor.Reset()
	c.cursor.Advance()
	c.cursor.Record(page.Pagination, len(page.Items))
	c.items.Replace(page.Items)
	c.persist(ctx)
	return true, nil
}

func (c *Controller[T]) loadMore(ctx context.Context) (bool, error) {
	release, ok := c.loading.TryAcquire(c.Tag(LoadMore))
	if !ok {
		logger.Debug("Load more already running", "key", c.key)
		return false, nil
	}
	defer release()

	c.mu.Lock()
	if c.loading.IsLoading(c.Tag(Refresh)) {
		c.mu.Unlock()
		logger.Debug("Load more skipped during refresh", "key", c.key)
		return false, nil
	}
	if !c.cursor.HasMore() {
		c.mu.Unlock()
		return false, nil
	}
	gen := c.generation
	next := c.cursor.Next()
	limit := c.cursor.Limit
	ctx, cancel := context.WithCancel(ctx)
	c.cancelMore = cancel
	c.mu.Unlock()
	defer cancel()

	logger.Debug("Loading more", "key", c.key, "page", next, "limit", limit)
	page, err := c.fetch(ctx, next, limit)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		logger.Debug("Discarding superseded page", "key", c.key, "page", next)
		return false, nil
	}
	c.cancelMore = nil
	if err != nil {
		return false, c.fail(err)
	}

	c.cursor.Advance()
	c.cursor.Record(page.Pagination, len(page.Items))
	added := c.items.Append(page.Items)
	logger.Debug("Appended page", "key", c.key, "page", next, "fetched", len(page.Items), "added", added)
	c.persist(ctx)
	return true, nil
}

// fail reports err unless the caller canceled. c.mu is held.
func (c *Controller[T]) fail(err error) error {
	logger.Warn("Page fetch failed", "key", c.key, "error", err)
	if !errors.Is(err, context.Canceled) {
		c.toasts.Report(toast.Failure(c.label, err))
	}
	return fmt.Errorf("%s: %w", c.label, err)
}

// Persist saves the current state to the store, if one is configured.
func (c *Controller[T]) Persist(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.persist(ctx)
}

// persist saves confirmed records only: placeholders are skipped and
// records implementing Confirmer are saved without their pending parts.
// c.mu is held. Store errors are logged, not surfaced: the in-memory state
// is already correct.
func (c *Controller[T]) persist(ctx context.Context) {
	if c.store == nil {
		return
	}
	var confirmed []T
	for _, it := range c.items.Items() {
		if IsPlaceholder(it.ItemID()) {
			continue
		}
		if cf, ok := any(it).(Confirmer[T]); ok {
			it = cf.Confirmed()
		}
		confirmed = append(confirmed, it)
	}
	if confirmed == nil {
		confirmed = []T{}
	}
	data, err := json.Marshal(confirmed)
	if err != nil {
		logger.Warn("Encoding snapshot failed", "key", c.key, "error", err)
		return
	}
	snap := Snapshot{Key: c.key, Items: data, Cursor: c.cursor, SavedAt: time.Now()}
	if err := c.store.SaveSnapshot(context.WithoutCancel(ctx), snap); err != nil {
		logger.Warn("Saving snapshot failed", "key", c.key, "error", err)
	}
}

// Restore loads the last saved state from the store. It returns false when
// there is no store or nothing saved.
func (c *Controller[T]) Restore(ctx context.Context) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	snap, ok, err := c.store.LoadSnapshot(ctx, c.key)
	if err != nil || !ok {
		return false, err
	}

	var items []T
	if err := json.Unmarshal(snap.Items, &items); err != nil {
		return false, fmt.Errorf("decoding snapshot %s: %w", c.key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursor = snap.Cursor
	if c.cursor.Limit <= 0 {
		c.cursor.Limit = DefaultPageSize
	}
	c.items.Replace(items)
	logger.Debug("Restored snapshot", "key", c.key, "items", len(items), "page", c.cursor.Page)
	return true, nil
}
