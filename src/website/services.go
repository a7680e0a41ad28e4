package website

import (
	"context"
	"time"

	"github.com/quillpress/quill/src/assets"
	"github.com/quillpress/quill/src/comments"
	"github.com/quillpress/quill/src/config"
	"github.com/quillpress/quill/src/content"
	"github.com/quillpress/quill/src/db"
	"github.com/quillpress/quill/src/isr"
	"github.com/quillpress/quill/src/jobs"
	"github.com/quillpress/quill/src/logging"
	"github.com/quillpress/quill/src/oops"
)

// Services is everything the handlers need. Nothing here is global, so tests
// can build one out of fakes.
type Services struct {
	Fetcher    content.Fetcher
	Images     assets.Resolver
	Controller *isr.Controller

	// Receives comments from the no-JS form.
	CommentSink comments.Sink
	// Backs POST /api/createComment.
	CommentStore comments.Store

	// Empty disables POST /api/revalidate.
	RevalidateSecret string
}

const dbStartupWait = 30 * time.Second

// NewServices builds the services described by config.Config. The returned
// jobs must be canceled on shutdown. The returned func releases connections
// once they have finished.
func NewServices(ctx context.Context) (_ *Services, _ jobs.Jobs, _ func(), err error) {
	cfg := config.Config
	s := &Services{
		RevalidateSecret: cfg.Generation.RevalidateSecret,
	}

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	defer func() {
		if err != nil {
			closeAll()
		}
	}()

	switch cfg.ContentSource {
	case config.SourcePostgres:
		pool, err := db.NewConnPoolWithRetry(ctx, dbStartupWait)
		if err != nil {
			return nil, nil, nil, oops.New(err, "failed to connect to the content database")
		}
		closers = append(closers, pool.Close)

		s.Fetcher = &content.PostgresFetcher{Conn: pool}
		s.CommentStore = &comments.PostgresStore{Conn: pool}
		if cfg.S3.Bucket != "" {
			images, err := assets.NewS3Images(ctx, cfg.S3)
			if err != nil {
				return nil, nil, nil, oops.New(err, "failed to set up S3 image URLs")
			}
			s.Images = images
		} else {
			logging.Warn().Msg("no S3 bucket configured, images will not be shown")
		}
	default:
		client := content.NewSanityClient(cfg.Sanity)
		s.Fetcher = client
		s.CommentStore = &comments.SanityStore{Client: client}
		s.Images = assets.SanityImages{
			ProjectID: cfg.Sanity.ProjectID,
			Dataset:   cfg.Sanity.Dataset,
		}
	}

	var pages isr.Store
	if cfg.Redis.Addr != "" {
		redisStore := isr.NewRedisStore(cfg.Redis)
		if err := redisStore.Ping(ctx); err != nil {
			redisStore.Close()
			return nil, nil, nil, err
		}
		closers = append(closers, func() {
			if err := redisStore.Close(); err != nil {
				logging.Warn().Err(err).Msg("failed to close redis client")
			}
		})
		pages = redisStore
		logging.Info().Str("addr", cfg.Redis.Addr).Msg("caching pages in redis")
	} else {
		pages = isr.NewMemoryStore()
	}

	controller, regenerationJob := isr.NewController(pages, RenderPostPage(s.Fetcher, s.Images), isr.Options{
		StaleWindow:          cfg.Generation.StaleWindow(),
		RegenerateTimeout:    cfg.Generation.RegenerateTimeout(),
		PrerenderConcurrency: cfg.Generation.PrerenderConcurrency,
		EvictOnNotFound:      cfg.Generation.EvictOnNotFound,
	})
	s.Controller = controller

	if cfg.Comments.SinkURL != "" {
		s.CommentSink = comments.NewHTTPSink(cfg.Comments.SinkURL)
	} else {
		s.CommentSink = &comments.StoreSink{Store: s.CommentStore}
	}

	return s, jobs.Jobs{regenerationJob}, closeAll, nil
}
