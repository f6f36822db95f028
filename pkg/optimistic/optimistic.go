// Package optimistic applies a local change before the server confirms it,
// then reconciles: the server's record replaces the placeholder on success,
// and the pre-mutation state is restored on failure.
package optimistic

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	clierrors "github.com/zfogg/nearby/cli/pkg/errors"
	"github.com/zfogg/nearby/cli/pkg/loading"
	"github.com/zfogg/nearby/cli/pkg/logger"
	"github.com/zfogg/nearby/cli/pkg/paging"
	"github.com/zfogg/nearby/cli/pkg/toast"
)

// PlaceholderID returns a fresh id for a local-only record.
func PlaceholderID() string {
	return paging.PlaceholderPrefix + uuid.NewString()
}

// IsPlaceholder reports whether id was made by PlaceholderID.
func IsPlaceholder(id string) bool {
	return paging.IsPlaceholder(id)
}

// Runner executes mutations under loading tags and reports failures.
type Runner struct {
	loading *loading.Set[loading.Tag]
	toasts  toast.Reporter
}

// NewRunner builds a Runner. A nil set or reporter gets a private set and a
// discarding reporter.
func NewRunner(set *loading.Set[loading.Tag], toasts toast.Reporter) *Runner {
	if set == nil {
		set = loading.NewSet[loading.Tag]()
	}
	if toasts == nil {
		toasts = toast.Discard
	}
	return &Runner{loading: set, toasts: toasts}
}

// Loading returns the tag set the runner guards with.
func (r *Runner) Loading() *loading.Set[loading.Tag] { return r.loading }

// Mutation describes one optimistic change.
type Mutation[R any] struct {
	// Tag identifies the target and action; a second run with the same tag
	// while the first is in flight does nothing.
	Tag loading.Tag
	// Label names the action in toasts, e.g. "Add reaction".
	Label string
	// Apply changes local state and returns how to undo it.
	Apply func() (undo func())
	// Commit performs the network request.
	Commit func(ctx context.Context) (R, error)
	// Reconcile merges the server result into local state. Optional.
	Reconcile func(result R)
	// Success, if set, is shown as a toast after Reconcile.
	Success string
}

// Run executes m. ran is false when m.Tag was already in flight. On
// failure the undo from Apply runs, a toast is reported and the error is
// returned.
func Run[R any](ctx context.Context, r *Runner, m Mutation[R]) (ran bool, result R, err error) {
	release, ok := r.loading.TryAcquire(m.Tag)
	if !ok {
		logger.Debug("Mutation already in flight", "tag", m.Tag)
		return false, result, nil
	}
	defer release()

	undo := func() {}
	if m.Apply != nil {
		if u := m.Apply(); u != nil {
			undo = u
		}
	}

	result, err = m.Commit(ctx)
	if err != nil {
		undo()
		logger.Warn("Mutation failed, rolled back", "tag", m.Tag, "error", err)
		r.toasts.Report(toast.Failure(m.Label, err))
		return true, result, fmt.Errorf("%s: %w", m.Label, err)
	}

	if m.Reconcile != nil {
		m.Reconcile(result)
	}
	if m.Success != "" {
		r.toasts.Report(toast.Success("%s", m.Success))
	}
	logger.Debug("Mutation committed", "tag", m.Tag)
	return true, result, nil
}

// Op names a mutation for the collection helpers.
type Op struct {
	Tag     loading.Tag
	Label   string
	Success string
}

// Insert adds placeholder at index now and swaps in the server's record on
// success. On failure the placeholder is removed.
func Insert[T paging.Item](ctx context.Context, r *Runner, op Op, coll *paging.Collection[T], index int, placeholder T, commit func(ctx context.Context) (T, error)) (bool, T, error) {
	tempID := placeholder.ItemID()
	return Run(ctx, r, Mutation[T]{
		Tag:     op.Tag,
		Label:   op.Label,
		Success: op.Success,
		Apply: func() func() {
			coll.Insert(index, placeholder)
			return func() { coll.Remove(tempID) }
		},
		Commit: commit,
		Reconcile: func(server T) {
			if !coll.Swap(tempID, server) {
				// the collection was refreshed meanwhile
				logger.Debug("Placeholder gone before reconcile", "id", tempID)
			}
		},
	})
}

// Delete removes the record id now. On failure it is re-inserted where it
// was.
func Delete[T paging.Item](ctx context.Context, r *Runner, op Op, coll *paging.Collection[T], id string, commit func(ctx context.Context) error) (bool, error) {
	ran, _, err := Run(ctx, r, Mutation[struct{}]{
		Tag:     op.Tag,
		Label:   op.Label,
		Success: op.Success,
		Apply: func() func() {
			prev, idx, ok := coll.Remove(id)
			if !ok {
				return nil
			}
			return func() { coll.Insert(idx, prev) }
		},
		Commit: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, commit(ctx)
		},
	})
	return ran, err
}

// Replace shows change(current) for record id now and the server's record
// on success. On failure the prior record is put back.
func Replace[T paging.Item](ctx context.Context, r *Runner, op Op, coll *paging.Collection[T], id string, change func(T) T, commit func(ctx context.Context, prev T) (T, error)) (bool, T, error) {
	prev, ok := coll.Get(id)
	if !ok {
		var zero T
		return false, zero, clierrors.NotFoundError("Record", id)
	}
	return Run(ctx, r, Mutation[T]{
		Tag:     op.Tag,
		Label:   op.Label,
		Success: op.Success,
		Apply: func() func() {
			coll.Update(id, change)
			return func() {
				coll.Update(id, func(T) T { return prev })
			}
		},
		Commit: func(ctx context.Context) (T, error) {
			return commit(ctx, prev)
		},
		Reconcile: func(server T) {
			coll.Swap(id, server)
		},
	})
}
