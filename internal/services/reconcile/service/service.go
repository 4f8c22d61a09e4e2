// Package service runs the reconciliation jobs that square cache state
// against postgres
package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	perr "newswire/internal/platform/errors"
	"newswire/internal/platform/logger"
	"newswire/internal/platform/store"
	"newswire/internal/services/reconcile/domain"
	"newswire/internal/services/reconcile/repo"
)

const (
	defaultNamespace  = "hn"
	defaultBatchSize  = 100
	defaultBatchPause = 50 * time.Millisecond
	drainFanout       = 8
)

// Config tunes job batching
type Config struct {
	Namespace  string
	BatchSize  int
	BatchPause time.Duration
}

// Service executes reconciliation jobs against the store pair
type Service struct {
	db      store.TxRunner
	kv      store.KV
	repo    *repo.PG
	refresh domain.RefreshFunc
	cfg     Config
	log     logger.Logger

	now      func() time.Time
	sleep    func(time.Duration)
	newRunID func() string
}

// New constructs the reconciliation service. refresh may be nil when no
// cache rebuild source is wired; the refresh-cache job then reports failure
func New(db store.TxRunner, kv store.KV, refresh domain.RefreshFunc, cfg Config) *Service {
	if cfg.Namespace == "" {
		cfg.Namespace = defaultNamespace
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BatchPause <= 0 {
		cfg.BatchPause = defaultBatchPause
	}
	return &Service{
		db:       db,
		kv:       kv,
		repo:     repo.NewPG(),
		refresh:  refresh,
		cfg:      cfg,
		log:      *logger.Named("reconcile"),
		now:      time.Now,
		sleep:    time.Sleep,
		newRunID: uuid.NewString,
	}
}

// Jobs lists the job names Run accepts
func (s *Service) Jobs() []string {
	return []string{domain.JobViewCounts, domain.JobOrphanPrune, domain.JobRefreshCache}
}

// Run executes one job and always hands back a well formed report.
// Panics inside a job are contained here and turned into a failed report
func (s *Service) Run(ctx context.Context, job string) (rep domain.Report, err error) {
	start := s.now()
	rep = domain.Report{
		Success:   true,
		Job:       job,
		RunID:     s.newRunID(),
		Counters:  map[string]int{},
		Timestamp: start.UTC(),
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("job", job).Any("panic", r).Msg("job panicked")
			rep.Success = false
			rep.Errors = append(rep.Errors, fmt.Sprintf("panic: %v", r))
		}
		rep.DurationMs = s.now().Sub(start).Milliseconds()
	}()

	switch job {
	case domain.JobViewCounts:
		s.viewCounts(ctx, &rep)
	case domain.JobOrphanPrune:
		s.orphanPrune(ctx, &rep)
	case domain.JobRefreshCache:
		s.refreshCache(ctx, &rep)
	default:
		rep.Success = false
		return rep, perr.NotFoundf("unknown job %q", job)
	}

	s.log.Info().
		Str("job", job).
		Str("run_id", rep.RunID).
		Bool("success", rep.Success).
		Int("errors", len(rep.Errors)).
		Msg("job finished")
	return rep, nil
}

func (s *Service) fail(rep *domain.Report, err error, msg string) {
	s.log.Error().Err(err).Str("job", rep.Job).Msg(msg)
	rep.Success = false
	rep.Errors = append(rep.Errors, fmt.Sprintf("%s: %v", msg, err))
}

func (s *Service) itemErr(rep *domain.Report, err error, format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	s.log.Warn().Err(err).Str("job", rep.Job).Msg(msg)
	rep.Errors = append(rep.Errors, fmt.Sprintf("%s: %v", msg, err))
	rep.Counters["errors"]++
}

// viewCounts drains the per story view counters into story_stats.
// GETDEL makes the drain atomic per key, so a partial run never double
// counts on the next pass; deltas whose upsert fails are folded back into
// the live counter instead of being lost
func (s *Service) viewCounts(ctx context.Context, rep *domain.Report) {
	prefix := s.cfg.Namespace + ":views:story:"
	keys, err := s.kv.Scan(ctx, prefix+"*")
	if err != nil {
		s.fail(rep, err, "scan view counters")
		return
	}
	rep.Counters["scanned"] = len(keys)

	for batch := range batches(keys, s.cfg.BatchSize) {
		var mu sync.Mutex
		ids := make([]int64, 0, len(batch))
		deltas := make(map[int64]int64, len(batch))

		// per-key drains are independent, fan out within the batch
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(drainFanout)
		for _, key := range batch {
			g.Go(func() error {
				id, perKeyErr := strconv.ParseInt(strings.TrimPrefix(key, prefix), 10, 64)
				if perKeyErr != nil {
					mu.Lock()
					s.itemErr(rep, perKeyErr, "malformed counter key %q", key)
					mu.Unlock()
					return nil
				}
				raw, ok, getErr := s.kv.GetDel(gctx, key)
				if getErr != nil {
					mu.Lock()
					s.itemErr(rep, getErr, "drain counter for story %d", id)
					mu.Unlock()
					return nil
				}
				if !ok {
					return nil
				}
				delta, parseErr := strconv.ParseInt(raw, 10, 64)
				if parseErr != nil {
					mu.Lock()
					s.itemErr(rep, parseErr, "malformed counter value for story %d", id)
					mu.Unlock()
					return nil
				}
				if delta == 0 {
					return nil
				}
				mu.Lock()
				ids = append(ids, id)
				deltas[id] = delta
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
		if len(ids) == 0 {
			continue
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		existing, exErr := s.repo.ExistingStoryIDs(ctx, s.db, ids)
		if exErr != nil {
			// one bad batch never aborts the rest; put the drained deltas
			// back so the next pass sees them
			s.itemErr(rep, exErr, "look up story rows for batch of %d", len(ids))
			for _, id := range ids {
				s.redeposit(ctx, rep, id, deltas[id])
			}
			s.sleep(s.cfg.BatchPause)
			continue
		}
		for _, id := range ids {
			rep.Counters["processed"]++
			if _, ok := existing[id]; !ok {
				// counter outlived its row; drop the delta and the cache entry
				s.pruneCacheEntry(ctx, rep, id)
				rep.Counters["dropped"]++
				continue
			}
			if upErr := s.repo.AddViewCount(ctx, s.db, id, deltas[id]); upErr != nil {
				s.itemErr(rep, upErr, "upsert view count for story %d", id)
				s.redeposit(ctx, rep, id, deltas[id])
				continue
			}
			rep.Counters["updated"]++
		}
		s.sleep(s.cfg.BatchPause)
	}
}

// orphanPrune removes cache entries and saved-set members whose story row
// is gone from postgres
func (s *Service) orphanPrune(ctx context.Context, rep *domain.Report) {
	prefix := s.cfg.Namespace + ":story:"
	keys, err := s.kv.Scan(ctx, prefix+"*")
	if err != nil {
		s.fail(rep, err, "scan story cache")
		return
	}
	saved, err := s.kv.SMembers(ctx, s.cfg.Namespace+":saved")
	if err != nil {
		s.fail(rep, err, "read saved set")
		return
	}

	// one candidate per story id, from either source
	cached := map[int64]bool{}
	fromSaved := map[int64]bool{}
	ids := make([]int64, 0, len(keys)+len(saved))
	add := func(id int64, set map[int64]bool) {
		if !cached[id] && !fromSaved[id] {
			ids = append(ids, id)
		}
		set[id] = true
	}
	for _, key := range keys {
		rest, _, _ := strings.Cut(strings.TrimPrefix(key, prefix), ":")
		id, parseErr := strconv.ParseInt(rest, 10, 64)
		if parseErr != nil {
			continue
		}
		add(id, cached)
	}
	for _, member := range saved {
		id, parseErr := strconv.ParseInt(member, 10, 64)
		if parseErr != nil {
			s.itemErr(rep, parseErr, "malformed saved member %q", member)
			continue
		}
		add(id, fromSaved)
	}
	rep.Counters["scanned"] = len(ids)

	for batch := range batches(ids, s.cfg.BatchSize) {
		existing, exErr := s.repo.ExistingStoryIDs(ctx, s.db, batch)
		if exErr != nil {
			s.itemErr(rep, exErr, "look up story rows for batch of %d", len(batch))
			s.sleep(s.cfg.BatchPause)
			continue
		}
		for _, id := range batch {
			if _, ok := existing[id]; ok {
				continue
			}
			if cached[id] {
				if !s.pruneCacheEntry(ctx, rep, id) {
					continue
				}
				rep.Counters["cachePruned"]++
			}
			if fromSaved[id] {
				member := strconv.FormatInt(id, 10)
				if _, remErr := s.kv.SRem(ctx, s.cfg.Namespace+":saved", member); remErr != nil {
					s.itemErr(rep, remErr, "drop saved member for story %d", id)
					continue
				}
				if n, delErr := s.repo.DeleteSaved(ctx, s.db, id); delErr != nil {
					s.itemErr(rep, delErr, "drop saved rows for story %d", id)
				} else {
					rep.Counters["savedRowsPruned"] += int(n)
				}
				rep.Counters["savedPruned"]++
			}
		}
		s.sleep(s.cfg.BatchPause)
	}
}

// redeposit folds a drained delta back into the live counter. INCRBY adds
// onto whatever concurrent views accumulated since the drain, so nothing
// is overwritten
func (s *Service) redeposit(ctx context.Context, rep *domain.Report, id, delta int64) {
	key := s.cfg.Namespace + ":views:story:" + strconv.FormatInt(id, 10)
	if _, err := s.kv.IncrBy(ctx, key, delta); err != nil {
		s.itemErr(rep, err, "redeposit counter for story %d", id)
		return
	}
	rep.Counters["redeposited"]++
}

// pruneCacheEntry removes every tier of a story's cache entry
func (s *Service) pruneCacheEntry(ctx context.Context, rep *domain.Report, id int64) bool {
	key := s.cfg.Namespace + ":story:" + strconv.FormatInt(id, 10)
	if _, err := s.kv.Del(ctx, key, key+":backup", key+":last_updated"); err != nil {
		s.itemErr(rep, err, "drop cache entry for story %d", id)
		return false
	}
	return true
}

// refreshCache rebuilds the story cache through the injected source
func (s *Service) refreshCache(ctx context.Context, rep *domain.Report) {
	if s.refresh == nil {
		s.fail(rep, fmt.Errorf("no refresh source configured"), "refresh cache")
		return
	}
	if err := s.refresh(ctx); err != nil {
		s.fail(rep, err, "refresh cache")
		return
	}
	rep.Counters["refreshed"] = 1
}

// batches yields the input in fixed size chunks
func batches[T any](in []T, size int) func(func([]T) bool) {
	return func(yield func([]T) bool) {
		for start := 0; start < len(in); start += size {
			end := min(start+size, len(in))
			if !yield(in[start:end]) {
				return
			}
		}
	}
}
