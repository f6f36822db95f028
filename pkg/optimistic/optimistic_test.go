package optimistic

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clierrors "github.com/zfogg/nearby/cli/pkg/errors"
	"github.com/zfogg/nearby/cli/pkg/loading"
	"github.com/zfogg/nearby/cli/pkg/paging"
	"github.com/zfogg/nearby/cli/pkg/toast"
)

type like struct {
	ID    string
	Liked bool
	Count int
}

func (l like) ItemID() string { return l.ID }

func idsOf(items []like) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func newRunner() (*Runner, *toast.Recorder) {
	rec := &toast.Recorder{}
	return NewRunner(loading.NewSet[loading.Tag](), rec), rec
}

func TestPlaceholderID(t *testing.T) {
	a, b := PlaceholderID(), PlaceholderID()
	assert.True(t, IsPlaceholder(a))
	assert.NotEqual(t, a, b)
	assert.False(t, IsPlaceholder("c-1"))
}

func TestInsert_SuccessCarriesServerIdentity(t *testing.T) {
	r, toasts := newRunner()
	coll := paging.NewCollection(like{ID: "c-1"}, like{ID: "c-2"})
	placeholder := like{ID: PlaceholderID()}

	ran, got, err := Insert(context.Background(), r,
		Op{Tag: loading.Tag{Section: loading.SectionSubmit, Target: "post-1"}, Label: "Post comment", Success: "Comment posted"},
		coll, 0, placeholder,
		func(ctx context.Context) (like, error) {
			// the placeholder is visible while the request is in flight
			assert.True(t, coll.Contains(placeholder.ID))
			return like{ID: "c-3"}, nil
		})

	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, "c-3", got.ID)
	assert.Equal(t, []string{"c-3", "c-1", "c-2"}, idsOf(coll.Items()))
	assert.False(t, coll.Contains(placeholder.ID))
	require.Len(t, toasts.Toasts(), 1)
	assert.Equal(t, toast.KindSuccess, toasts.Toasts()[0].Kind)
}

func TestInsert_FailureRestoresExactState(t *testing.T) {
	r, toasts := newRunner()
	coll := paging.NewCollection(like{ID: "c-1"}, like{ID: "c-2"})
	before := coll.Items()

	ran, _, err := Insert(context.Background(), r,
		Op{Tag: loading.Tag{Section: loading.SectionSubmit, Target: "post-1"}, Label: "Post comment"},
		coll, 1, like{ID: PlaceholderID()},
		func(ctx context.Context) (like, error) {
			return like{}, clierrors.NetworkError("offline")
		})

	assert.True(t, ran)
	require.Error(t, err)
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeNetwork))
	assert.Equal(t, before, coll.Items())

	failures := toasts.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "Post comment failed", failures[0].Title)
	assert.Equal(t, "offline", failures[0].Message)
	assert.Empty(t, r.Loading().Active())
}

func TestDelete_FailureReinsertsAtPriorIndex(t *testing.T) {
	r, _ := newRunner()
	coll := paging.NewCollection(like{ID: "a"}, like{ID: "b"}, like{ID: "c"})

	ran, err := Delete(context.Background(), r,
		Op{Tag: loading.Tag{Section: loading.SectionFollow, Target: "b"}, Label: "Unfollow"},
		coll, "b",
		func(ctx context.Context) error {
			assert.False(t, coll.Contains("b"))
			return errors.New("connection refused")
		})

	assert.True(t, ran)
	assert.Error(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, idsOf(coll.Items()))
}

func TestDelete_Success(t *testing.T) {
	r, _ := newRunner()
	coll := paging.NewCollection(like{ID: "a"}, like{ID: "b"})

	ran, err := Delete(context.Background(), r,
		Op{Tag: loading.Tag{Section: loading.SectionFollow, Target: "a"}, Label: "Unfollow"},
		coll, "a",
		func(ctx context.Context) error { return nil })

	assert.True(t, ran)
	assert.NoError(t, err)
	assert.Equal(t, []string{"b"}, idsOf(coll.Items()))
}

func TestReplace_ToggleAndRollback(t *testing.T) {
	r, _ := newRunner()
	coll := paging.NewCollection(like{ID: "rev-1", Liked: false, Count: 4})
	toggle := func(l like) like {
		l.Liked = !l.Liked
		if l.Liked {
			l.Count++
		} else {
			l.Count--
		}
		return l
	}
	op := Op{Tag: loading.Tag{Section: loading.SectionLike, Target: "rev-1"}, Label: "Like review"}

	_, got, err := Replace(context.Background(), r, op, coll, "rev-1", toggle,
		func(ctx context.Context, prev like) (like, error) {
			cur, _ := coll.Get("rev-1")
			assert.True(t, cur.Liked)
			assert.Equal(t, 5, cur.Count)
			assert.False(t, prev.Liked)
			// server count differs from the local guess
			return like{ID: "rev-1", Liked: true, Count: 9}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, 9, got.Count)
	cur, _ := coll.Get("rev-1")
	assert.Equal(t, like{ID: "rev-1", Liked: true, Count: 9}, cur)

	_, _, err = Replace(context.Background(), r, op, coll, "rev-1", toggle,
		func(ctx context.Context, prev like) (like, error) {
			return like{}, clierrors.ServerError()
		})
	require.Error(t, err)
	cur, _ = coll.Get("rev-1")
	assert.Equal(t, like{ID: "rev-1", Liked: true, Count: 9}, cur)
}

func TestReplace_MissingRecord(t *testing.T) {
	r, _ := newRunner()
	coll := paging.NewCollection[like]()
	ran, _, err := Replace(context.Background(), r, Op{Label: "Like review"}, coll, "nope",
		func(l like) like { return l },
		func(ctx context.Context, prev like) (like, error) { return prev, nil })

	assert.False(t, ran)
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeNotFound))
}

func TestRun_DuplicateInFlightMakesOneCall(t *testing.T) {
	r, _ := newRunner()
	coll := paging.NewCollection(like{ID: "x"})
	tag := loading.Tag{Section: loading.SectionReact, Target: "x:👍"}

	var calls int32
	started := make(chan struct{})
	gate := make(chan struct{})

	m := Mutation[int]{
		Tag:   tag,
		Label: "Add reaction",
		Apply: func() func() {
			coll.Update("x", func(l like) like { l.Count++; return l })
			return func() { coll.Update("x", func(l like) like { l.Count--; return l }) }
		},
		Commit: func(ctx context.Context) (int, error) {
			atomic.AddInt32(&calls, 1)
			close(started)
			<-gate
			return 1, nil
		},
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ran, _, err := Run(context.Background(), r, m)
		assert.True(t, ran)
		assert.NoError(t, err)
	}()
	<-started

	ran, _, err := Run(context.Background(), r, m)
	assert.False(t, ran)
	assert.NoError(t, err)

	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	cur, _ := coll.Get("x")
	assert.Equal(t, 1, cur.Count, "no double count")
}

func TestRun_NilApplyAndReconcile(t *testing.T) {
	r := NewRunner(nil, nil)
	ran, got, err := Run(context.Background(), r, Mutation[string]{
		Tag:    loading.Tag{Section: loading.SectionMarkRead, Target: "n-1"},
		Label:  "Mark read",
		Commit: func(ctx context.Context) (string, error) { return "ok", nil },
	})
	assert.True(t, ran)
	assert.NoError(t, err)
	assert.Equal(t, "ok", got)
}
