package isr

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/quillpress/quill/src/config"
	"github.com/quillpress/quill/src/oops"
	"github.com/quillpress/quill/src/perf"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each page as one JSON value, so several server processes
// can share generated pages.
type RedisStore struct {
	Client    *redis.Client
	KeyPrefix string
}

func NewRedisStore(cfg config.RedisConfig) *RedisStore {
	return &RedisStore{
		Client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		KeyPrefix: cfg.KeyPrefix,
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.Client.Ping(ctx).Err(); err != nil {
		return oops.New(err, "failed to reach redis at %s", s.Client.Options().Addr)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.Client.Close()
}

func (s *RedisStore) key(route string) string {
	return s.KeyPrefix + route
}

func (s *RedisStore) Get(ctx context.Context, route string) (Page, bool, error) {
	b := perf.ExtractPerf(ctx).StartBlock("REDIS", "get page")
	defer b.End()

	data, err := s.Client.Get(ctx, s.key(route)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Page{}, false, nil
	} else if err != nil {
		return Page{}, false, oops.New(err, "failed to get page for %s", route)
	}

	page, err := decodePage(data)
	if err != nil {
		return Page{}, false, oops.New(err, "failed to decode cached page for %s", route)
	}
	return page, true, nil
}

func (s *RedisStore) Put(ctx context.Context, route string, page Page) error {
	data, err := encodePage(page)
	if err != nil {
		return oops.New(err, "failed to encode page for %s", route)
	}
	if err := s.Client.Set(ctx, s.key(route), data, 0).Err(); err != nil {
		return oops.New(err, "failed to store page for %s", route)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, route string) error {
	if err := s.Client.Del(ctx, s.key(route)).Err(); err != nil {
		return oops.New(err, "failed to delete page for %s", route)
	}
	return nil
}

func encodePage(page Page) ([]byte, error) {
	return json.Marshal(page)
}

func decodePage(data []byte) (Page, error) {
	var page Page
	err := json.Unmarshal(data, &page)
	return page, err
}
