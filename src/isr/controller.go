package isr

import (
	"context"
	"sync"
	"time"

	"github.com/quillpress/quill/src/jobs"
	"github.com/quillpress/quill/src/logging"
	"github.com/quillpress/quill/src/oops"
	"github.com/quillpress/quill/src/perf"
	"github.com/quillpress/quill/src/utils"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type Options struct {
	// Pages older than this are served once more and then regenerated.
	StaleWindow time.Duration
	// Applies to each background regeneration and each first render.
	RegenerateTimeout time.Duration
	// The number of pages rendered at once by Prerender.
	PrerenderConcurrency int
	// Drop a route's page when regeneration finds its content gone.
	// Otherwise the old page is served until a regeneration succeeds.
	EvictOnNotFound bool

	// Defaults to time.Now.
	Now func() time.Time
}

func DefaultOptions() Options {
	return Options{
		StaleWindow:          60 * time.Second,
		RegenerateTimeout:    30 * time.Second,
		PrerenderConcurrency: 4,
		EvictOnNotFound:      true,
	}
}

type Controller struct {
	store  Store
	render RenderFunc
	opts   Options

	job   *jobs.Job
	group singleflight.Group

	mu           sync.Mutex
	regenerating map[string]bool
}

// NewController returns a controller whose background regenerations run
// under the returned job. Cancel the job on shutdown and wait for it to
// finish.
func NewController(store Store, render RenderFunc, opts Options) (*Controller, *jobs.Job) {
	def := DefaultOptions()
	if opts.StaleWindow <= 0 {
		opts.StaleWindow = def.StaleWindow
	}
	if opts.RegenerateTimeout <= 0 {
		opts.RegenerateTimeout = def.RegenerateTimeout
	}
	opts.PrerenderConcurrency = utils.Max(opts.PrerenderConcurrency, 1)
	if opts.Now == nil {
		opts.Now = time.Now
	}

	job := jobs.NewPool("page regeneration")
	return &Controller{
		store:        store,
		render:       render,
		opts:         opts,
		job:          job,
		regenerating: make(map[string]bool),
	}, job
}

// Prerender renders every route and stores the results. If any route fails,
// nothing is stored and the first error is returned.
func (c *Controller) Prerender(ctx context.Context, routes []string) error {
	pages := make([]*Page, len(routes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.PrerenderConcurrency)
	for i, route := range routes {
		i, route := i, route
		g.Go(func() error {
			page, err := c.render(gctx, route)
			if err != nil {
				return oops.New(err, "failed to prerender %s", route)
			}
			if page == nil {
				return oops.New(nil, "renderer returned no page for %s", route)
			}
			pages[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	now := c.opts.Now()
	for i, route := range routes {
		page := *pages[i]
		page.GeneratedAt = now
		if err := c.store.Put(ctx, route, page); err != nil {
			return oops.New(err, "failed to store prerendered page for %s", route)
		}
	}
	return nil
}

// Serve returns the page for route. A cached page is returned as-is; a stale
// one also kicks off a background regeneration. A route with no cached page
// is rendered before returning. If that render fails for any reason, Serve
// returns ErrNotFound and nothing is cached.
func (c *Controller) Serve(ctx context.Context, route string) (Page, Outcome, error) {
	page, ok, err := c.store.Get(ctx, route)
	if err != nil {
		logging.ExtractLogger(ctx).Error().Err(err).Str("route", route).Msg("failed to read page cache, rendering instead")
		ok = false
	}

	if ok {
		if c.opts.Now().Before(page.GeneratedAt.Add(c.opts.StaleWindow)) {
			return page, Fresh, nil
		}
		c.regenerateInBackground(route, page.GeneratedAt)
		return page, Stale, nil
	}

	b := perf.ExtractPerf(ctx).StartBlock("ISR", "First render of "+route)
	defer b.End()

	// Requests coalesced onto this render must not fail because the first
	// requester went away.
	genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.RegenerateTimeout)
	defer cancel()

	generated, err := c.generate(genCtx, route, true)
	if err != nil {
		if !isNotFound(err) {
			logging.ExtractLogger(ctx).Warn().Err(err).Str("route", route).Msg("first render failed, responding not found")
		}
		return Page{}, Generated, ErrNotFound
	}
	return generated, Generated, nil
}

// Revalidate regenerates route immediately, whether or not its page is
// stale. It returns ErrNotFound if the content is gone.
func (c *Controller) Revalidate(ctx context.Context, route string) (Page, error) {
	return c.generate(ctx, route, false)
}

func (c *Controller) regenerateInBackground(route string, staleGeneratedAt time.Time) {
	c.mu.Lock()
	if c.regenerating[route] {
		c.mu.Unlock()
		return
	}
	c.regenerating[route] = true
	c.mu.Unlock()

	started := c.job.Go(func(ctx context.Context) {
		defer c.doneRegenerating(route)

		ctx, cancel := context.WithTimeout(ctx, c.opts.RegenerateTimeout)
		defer cancel()
		logger := logging.ExtractLogger(ctx).With().Str("route", route).Logger()

		// The stale page may have been replaced between the read that
		// triggered this and now.
		if current, ok, err := c.store.Get(ctx, route); err == nil && ok && !current.GeneratedAt.Equal(staleGeneratedAt) {
			return
		}

		if _, err := c.generate(ctx, route, false); err != nil {
			if isNotFound(err) {
				logger.Info().Bool("evicted", c.opts.EvictOnNotFound).Msg("content for page is gone")
			} else {
				logger.Error().Err(err).Msg("failed to regenerate page, keeping the stale one")
			}
			return
		}
		logger.Debug().Msg("regenerated page")
	})
	if !started {
		c.doneRegenerating(route)
	}
}

func (c *Controller) doneRegenerating(route string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.regenerating, route)
}

func (c *Controller) isRegenerating(route string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regenerating[route]
}

// generate renders route and replaces its stored page. Concurrent calls for
// the same route share one render. With reuseStored, a page stored since the
// caller last looked is returned instead of rendering again.
func (c *Controller) generate(ctx context.Context, route string, reuseStored bool) (Page, error) {
	v, err, _ := c.group.Do(route, func() (interface{}, error) {
		if reuseStored {
			if stored, ok, err := c.store.Get(ctx, route); err == nil && ok {
				return stored, nil
			}
		}

		page, err := c.render(ctx, route)
		if err != nil {
			if isNotFound(err) {
				if c.opts.EvictOnNotFound {
					if err := c.store.Delete(ctx, route); err != nil {
						logging.ExtractLogger(ctx).Error().Err(err).Str("route", route).Msg("failed to evict page")
					}
				}
				return nil, ErrNotFound
			}
			return nil, err
		}
		if page == nil {
			return nil, oops.New(nil, "renderer returned no page for %s", route)
		}

		res := page.clone()
		res.GeneratedAt = c.opts.Now()
		if err := c.store.Put(ctx, route, res); err != nil {
			// The page is still good for this request. The next request
			// renders it again.
			logging.ExtractLogger(ctx).Error().Err(err).Str("route", route).Msg("failed to store page")
		}
		return res, nil
	})
	if err != nil {
		return Page{}, err
	}
	return v.(Page).clone(), nil
}
