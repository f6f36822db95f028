package cmd

import (
	"context"
	"errors"
	"sync"

	"github.com/spf13/cobra"

	"github.com/zfogg/nearby/cli/pkg/api"
	"github.com/zfogg/nearby/cli/pkg/auth"
	"github.com/zfogg/nearby/cli/pkg/cache"
	"github.com/zfogg/nearby/cli/pkg/client"
	"github.com/zfogg/nearby/cli/pkg/config"
	"github.com/zfogg/nearby/cli/pkg/credentials"
	"github.com/zfogg/nearby/cli/pkg/loading"
	"github.com/zfogg/nearby/cli/pkg/logger"
	"github.com/zfogg/nearby/cli/pkg/output"
	"github.com/zfogg/nearby/cli/pkg/paging"
	"github.com/zfogg/nearby/cli/pkg/service"
	"github.com/zfogg/nearby/cli/pkg/toast"
)

// app is everything one command invocation uses. It is built after config
// is loaded and closed before the process exits.
type app struct {
	creds    *credentials.Store
	client   *client.Client
	api      *api.API
	loading  *loading.Set[loading.Tag]
	toasts   *toast.Center
	reporter *failureCounter
	cache    *cache.Store
	viewer   api.User
}

// failureCounter passes toasts on and remembers whether a failure was shown.
type failureCounter struct {
	next toast.Reporter

	mu     sync.Mutex
	failed bool
}

func (f *failureCounter) Report(t toast.Toast) {
	if t.Kind == toast.KindFailure {
		f.mu.Lock()
		f.failed = true
		f.mu.Unlock()
	}
	f.next.Report(t)
}

func (f *failureCounter) Failed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failed
}

// reportedError marks an error the user has already seen as a toast.
type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

func isReported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}

func newApp(needViewer bool) (*app, error) {
	creds := credentials.NewStore(config.GetCredentialsPath())
	c := client.NewFromConfig(creds)

	set := loading.NewSet[loading.Tag]()
	if output.GetOutputFormat() != output.FormatJSON {
		set.OnChange(output.LoadingLine(set))
	}
	center := toast.New(output.ToastSink(), config.GetInt("toast.buffer"))

	a := &app{
		creds:    creds,
		client:   c,
		api:      api.New(c),
		loading:  set,
		toasts:   center,
		reporter: &failureCounter{next: center},
	}

	if config.GetBool("cache.enabled") {
		store, err := cache.Open(config.GetString("cache.path"))
		if err != nil {
			// the cache is an optimization; run without it
			logger.Warn("Cache unavailable", "path", config.GetString("cache.path"), "error", err)
		} else {
			a.cache = store
		}
	}

	if needViewer {
		viewer, err := service.NewAuthService(a.api, creds).Viewer()
		if err != nil {
			a.Close()
			return nil, auth.NewSessionRecovery(creds).HandleSessionError(err)
		}
		a.viewer = viewer
	}
	return a, nil
}

func (a *app) deps() service.Deps {
	d := service.Deps{
		API:      a.api,
		Loading:  a.loading,
		Toasts:   a.reporter,
		PageSize: config.GetInt("paging.page_size"),
		Viewer:   a.viewer,
	}
	if a.cache != nil {
		d.Store = a.cache
	}
	return d
}

// finish turns err into the command's result: errors already toasted are
// marked so Execute does not print them twice, and a rejected session
// clears the stored credentials.
func (a *app) finish(err error) error {
	if err == nil {
		return nil
	}
	err = auth.NewSessionRecovery(a.creds).HandleSessionError(err)
	if a.reporter.Failed() {
		return reportedError{err}
	}
	return err
}

// Close flushes toasts and closes the cache.
func (a *app) Close() {
	a.toasts.Close()
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			logger.Warn("Failed to close cache", "error", err)
		}
	}
}

// withApp builds an app for cmd, runs fn and closes the app.
func withApp(cmd *cobra.Command, needViewer bool, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(needViewer)
	if err != nil {
		return err
	}
	err = a.finish(fn(cmd.Context(), a))
	a.Close()
	return err
}

// loadScreen fills c for display. With more set the saved cursor is
// restored and the next page appended; otherwise the list is refreshed.
// With offline set only the saved copy is shown.
func loadScreen[T paging.Item](ctx context.Context, c *paging.Controller[T], more, offline bool) error {
	restored := false
	if more || offline {
		ok, err := c.Restore(ctx)
		if err != nil {
			logger.Warn("Could not restore saved list", "key", c.Key(), "error", err)
		}
		restored = ok
	}
	if offline {
		if !restored {
			output.PrintWarning("Nothing saved for %s yet", c.Key())
		}
		return nil
	}

	action := paging.Refresh
	if more && restored {
		action = paging.LoadMore
	}
	fetched, err := c.Load(ctx, action)
	if err != nil {
		return err
	}
	if !fetched && action == paging.LoadMore {
		output.PrintInfo("No more items")
	}
	return nil
}

// ensureLoaded makes sure c holds something to act on: the saved copy if
// there is one, else the first page.
func ensureLoaded[T paging.Item](ctx context.Context, c *paging.Controller[T]) error {
	if ok, _ := c.Restore(ctx); ok {
		return nil
	}
	_, err := c.Load(ctx, paging.Refresh)
	return err
}

func addPagingFlags(cmd *cobra.Command, more, offline *bool) {
	cmd.Flags().BoolVar(more, "more", false, "Append the next page to the last list shown")
	cmd.Flags().BoolVar(offline, "offline", false, "Show the saved list without contacting the server")
}
