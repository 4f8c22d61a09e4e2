// Package service implements the story ingestion and query service
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"newswire/internal/adapters/hn"
	perr "newswire/internal/platform/errors"
	"newswire/internal/platform/logger"
	"newswire/internal/services/ratelimit"
	"newswire/internal/services/stories/domain"
	"newswire/internal/services/storycache"
)

const (
	defaultLimit     = 20
	maxLimit         = 100
	defaultWarmCount = 30
	defaultFanout    = 8

	// limiter identifier for index fetches not attributable to a caller
	indexIdentifier = "index"
)

// Fetcher is the upstream surface the service needs
type Fetcher interface {
	TopStories(ctx context.Context) ([]int64, error)
	Item(ctx context.Context, id int64) (hn.Item, error)
}

// Config for the service
type Config struct {
	// WarmCount stories are fetched eagerly after a full refresh
	WarmCount int
	// Fanout bounds concurrent upstream fetches
	Fanout int
	// RefreshTimeout bounds a background index refresh
	RefreshTimeout time.Duration
}

// Service implements domain.QueryPort and domain.RefresherPort
type Service struct {
	fetcher Fetcher
	cache   *storycache.Cache
	limiter *ratelimit.Limiter
	cfg     Config
	log     logger.Logger

	// background refresh bookkeeping
	bg sync.WaitGroup
}

// New constructs the service with defaults applied
func New(fetcher Fetcher, cache *storycache.Cache, limiter *ratelimit.Limiter, cfg Config) *Service {
	if cfg.WarmCount <= 0 {
		cfg.WarmCount = defaultWarmCount
	}
	if cfg.Fanout <= 0 {
		cfg.Fanout = defaultFanout
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 30 * time.Second
	}
	return &Service{
		fetcher: fetcher,
		cache:   cache,
		limiter: limiter,
		cfg:     cfg,
		log:     *logger.Named("stories"),
	}
}

func storyKey(id int64) string { return fmt.Sprintf("story:%d", id) }

// TopStories returns the story index, cache first
// a cache hit that is due a refresh kicks one lock guarded background fetch
func (s *Service) TopStories(ctx context.Context) ([]int64, error) {
	if payload, ok := s.cache.Get(ctx, storycache.IndexKey); ok {
		var ids []int64
		if err := json.Unmarshal([]byte(payload), &ids); err == nil {
			if s.cache.ShouldRefresh(ctx) {
				s.kickRefresh()
			}
			return ids, nil
		}
		s.log.Warn().Msg("cached index is corrupt, refetching")
	}
	return s.fetchIndex(ctx, indexIdentifier)
}

// fetchIndex admits through the limiter, fetches and caches the index
func (s *Service) fetchIndex(ctx context.Context, identifier string) ([]int64, error) {
	ok, err := s.limiter.Admit(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, perr.TooManyRequestsf("rate limit exceeded for %s", identifier)
	}
	ids, err := s.fetcher.TopStories(ctx)
	if err != nil {
		return nil, err
	}
	s.storeIndex(ctx, ids)
	return ids, nil
}

// storeIndex writes the index pair and bumps the staleness marker
func (s *Service) storeIndex(ctx context.Context, ids []int64) {
	b, err := json.Marshal(ids)
	if err != nil {
		s.log.Error().Err(err).Msg("index marshal failed")
		return
	}
	if err := s.cache.Set(ctx, storycache.IndexKey, string(b)); err != nil {
		return // already logged by the cache
	}
	_ = s.cache.Touch(ctx, storycache.IndexKey)
}

// kickRefresh starts one background index refresh if no other is in flight
func (s *Service) kickRefresh() {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RefreshTimeout)
		defer cancel()
		s.refreshIndex(ctx)
	}()
}

// refreshIndex refetches the index under the refresh lock
// failure leaves the cached entries untouched so readers keep the backup
func (s *Service) refreshIndex(ctx context.Context) {
	ok, err := s.cache.TryLockRefresh(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("refresh lock unavailable")
		return
	}
	if !ok {
		return // another refresh is in flight
	}
	defer s.cache.UnlockRefresh(ctx)

	ids, err := s.fetcher.TopStories(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("background refresh failed, serving stale")
		return
	}
	s.storeIndex(ctx, ids)
}

// Story returns one story, cache first
func (s *Service) Story(ctx context.Context, id int64) (domain.Story, error) {
	key := storyKey(id)
	if payload, ok := s.cache.Get(ctx, key); ok {
		var st domain.Story
		if err := json.Unmarshal([]byte(payload), &st); err == nil {
			return st, nil
		}
		s.log.Warn().Int64("id", id).Msg("cached story is corrupt, refetching")
	}

	ok, err := s.limiter.Admit(ctx, key)
	if err != nil {
		return domain.Story{}, err
	}
	if !ok {
		return domain.Story{}, perr.TooManyRequestsf("rate limit exceeded for story %d", id)
	}

	item, err := s.fetcher.Item(ctx, id)
	if err != nil {
		return domain.Story{}, err
	}
	st := fromItem(item)
	s.cacheStory(ctx, st)
	return st, nil
}

func (s *Service) cacheStory(ctx context.Context, st domain.Story) {
	b, err := json.Marshal(st)
	if err != nil {
		s.log.Error().Err(err).Int64("id", st.ID).Msg("story marshal failed")
		return
	}
	_ = s.cache.Set(ctx, storyKey(st.ID), string(b))
}

// List serves one page of the index with filtering and sorting
// the limiter runs once per call under the caller supplied identifier
func (s *Service) List(ctx context.Context, q domain.ListQuery) (domain.ListResult, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	identifier := q.Identifier
	if identifier == "" {
		identifier = indexIdentifier
	}

	ok, err := s.limiter.Admit(ctx, identifier)
	if err != nil {
		return domain.ListResult{}, err
	}
	if !ok {
		return domain.ListResult{}, perr.TooManyRequestsf("rate limit exceeded for %s", identifier)
	}

	index, err := s.index(ctx)
	if err != nil {
		return domain.ListResult{}, err
	}

	start := (q.Page - 1) * q.Limit
	end := start + q.Limit
	if start >= len(index) {
		return domain.ListResult{Stories: []domain.Story{}, Total: len(index)}, nil
	}
	if end > len(index) {
		end = len(index)
	}
	pageIDs := index[start:end]

	stories, err := s.resolve(ctx, pageIDs)
	if err != nil {
		return domain.ListResult{}, err
	}

	stories = filterStories(stories, q.Search, q.Type)
	sortStories(stories, q.Sort)

	return domain.ListResult{
		Stories: stories,
		HasMore: end < len(index),
		Total:   len(index),
	}, nil
}

// index reads the cached index without a second admission
// cold caches fetch directly; List already admitted the caller
func (s *Service) index(ctx context.Context) ([]int64, error) {
	if payload, ok := s.cache.Get(ctx, storycache.IndexKey); ok {
		var ids []int64
		if err := json.Unmarshal([]byte(payload), &ids); err == nil {
			if s.cache.ShouldRefresh(ctx) {
				s.kickRefresh()
			}
			return ids, nil
		}
	}
	ids, err := s.fetcher.TopStories(ctx)
	if err != nil {
		return nil, err
	}
	s.storeIndex(ctx, ids)
	return ids, nil
}

// resolve returns stories for ids in index order, fetching cache misses
// with a bounded fan-out; items gone upstream are dropped from the page
func (s *Service) resolve(ctx context.Context, ids []int64) ([]domain.Story, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = storyKey(id)
	}
	cached := s.cache.GetMany(ctx, keys)

	found := make(map[int64]domain.Story, len(ids))
	var misses []int64
	for i, id := range ids {
		payload, ok := cached[keys[i]]
		if !ok {
			misses = append(misses, id)
			continue
		}
		var st domain.Story
		if err := json.Unmarshal([]byte(payload), &st); err != nil {
			misses = append(misses, id)
			continue
		}
		found[id] = st
	}

	if len(misses) > 0 {
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.Fanout)
		for _, id := range misses {
			g.Go(func() error {
				item, err := s.fetcher.Item(gctx, id)
				if err != nil {
					if perr.IsCode(err, perr.ErrorCodeNotFound) {
						return nil // dropped from the page
					}
					return err
				}
				st := fromItem(item)
				s.cacheStory(gctx, st)
				mu.Lock()
				found[id] = st
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	out := make([]domain.Story, 0, len(ids))
	for _, id := range ids {
		if st, ok := found[id]; ok {
			out = append(out, st)
		}
	}
	return out, nil
}

// RefreshCache drops the namespace, refetches the index and warms the head
func (s *Service) RefreshCache(ctx context.Context) error {
	if _, err := s.cache.InvalidateAll(ctx, storycache.IndexKey); err != nil {
		return err
	}
	if _, err := s.cache.InvalidateAll(ctx, "story:"); err != nil {
		return err
	}

	ids, err := s.fetcher.TopStories(ctx)
	if err != nil {
		return err
	}
	s.storeIndex(ctx, ids)

	warm := ids
	if len(warm) > s.cfg.WarmCount {
		warm = warm[:s.cfg.WarmCount]
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Fanout)
	for _, id := range warm {
		g.Go(func() error {
			item, err := s.fetcher.Item(gctx, id)
			if err != nil {
				if perr.IsCode(err, perr.ErrorCodeNotFound) {
					return nil
				}
				s.log.Warn().Err(err).Int64("id", id).Msg("warm fetch failed")
				return nil // warming is best effort
			}
			s.cacheStory(gctx, fromItem(item))
			return nil
		})
	}
	return g.Wait()
}

func fromItem(it hn.Item) domain.Story {
	return domain.Story{
		ID:          it.ID,
		Title:       it.Title,
		URL:         it.URL,
		Score:       it.Score,
		By:          it.By,
		Time:        it.Time,
		Descendants: it.Descendants,
		Type:        it.Type,
	}
}

func filterStories(in []domain.Story, search, typ string) []domain.Story {
	if search == "" && typ == "" {
		return in
	}
	needle := strings.ToLower(search)
	out := make([]domain.Story, 0, len(in))
	for _, st := range in {
		if typ != "" && st.Type != typ {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(st.Title), needle) &&
			!strings.Contains(strings.ToLower(st.By), needle) {
			continue
		}
		out = append(out, st)
	}
	return out
}

// sortStories orders descending by the requested field, stable on ties
// an empty sort keeps upstream index order
func sortStories(in []domain.Story, by string) {
	switch by {
	case domain.SortScore:
		sort.SliceStable(in, func(i, j int) bool { return in[i].Score > in[j].Score })
	case domain.SortTime:
		sort.SliceStable(in, func(i, j int) bool { return in[i].Time > in[j].Time })
	case domain.SortComments:
		sort.SliceStable(in, func(i, j int) bool { return in[i].Descendants > in[j].Descendants })
	}
}
