package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"newswire/internal/platform/store"
	"newswire/internal/platform/store/storetest"
	"newswire/internal/services/reconcile/domain"
)

type cmdTag string

func (c cmdTag) String() string { return string(c) }
func (c cmdTag) RowsAffected() int64 {
	s := string(c)
	n, _ := strconv.ParseInt(s[strings.LastIndexByte(s, ' ')+1:], 10, 64)
	return n
}

// idRows serves a canned list of int64 ids
type idRows struct {
	ids []int64
	i   int
}

func (r *idRows) Next() bool { return r.i < len(r.ids) }
func (r *idRows) Scan(dest ...any) error {
	if p, ok := dest[0].(*int64); ok {
		*p = r.ids[r.i]
	}
	r.i++
	return nil
}
func (r *idRows) Err() error        { return nil }
func (r *idRows) Close()            {}
func (r *idRows) Columns() []string { return []string{"id"} }

// fakeDB answers the two queries the jobs issue from an in memory id set
type fakeDB struct {
	stories map[int64]bool

	upserts   map[int64]int64
	upsertErr map[int64]error
	savedRows map[int64]int64
	deleted   []int64

	// lookupFails makes the next N id lookups error with lookupErr
	lookupFails int
	lookupErr   error
}

func newFakeDB(ids ...int64) *fakeDB {
	db := &fakeDB{
		stories:   map[int64]bool{},
		upserts:   map[int64]int64{},
		upsertErr: map[int64]error{},
		savedRows: map[int64]int64{},
	}
	for _, id := range ids {
		db.stories[id] = true
	}
	return db
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (store.CommandTag, error) {
	id := args[0].(int64)
	switch {
	case strings.Contains(sql, "story_stats"):
		if err := db.upsertErr[id]; err != nil {
			return nil, err
		}
		db.upserts[id] += args[1].(int64)
		return cmdTag("INSERT 0 1"), nil
	case strings.Contains(sql, "saved_stories"):
		db.deleted = append(db.deleted, id)
		return cmdTag(fmt.Sprintf("DELETE %d", db.savedRows[id])), nil
	}
	return nil, fmt.Errorf("unexpected exec: %s", sql)
}

func (db *fakeDB) Query(_ context.Context, sql string, args ...any) (store.Rows, error) {
	if !strings.Contains(sql, "FROM stories") {
		return nil, fmt.Errorf("unexpected query: %s", sql)
	}
	if db.lookupFails > 0 {
		db.lookupFails--
		return nil, db.lookupErr
	}
	var out []int64
	for _, id := range args[0].([]int64) {
		if db.stories[id] {
			out = append(out, id)
		}
	}
	return &idRows{ids: out}, nil
}

func (db *fakeDB) QueryRow(context.Context, string, ...any) store.Row { return nil }
func (db *fakeDB) Tx(ctx context.Context, fn func(q store.RowQuerier) error) error {
	return fn(db)
}

type harness struct {
	svc    *Service
	kv     *storetest.KV
	db     *fakeDB
	sleeps int
}

func newHarness(t *testing.T, db *fakeDB, refresh domain.RefreshFunc) *harness {
	t.Helper()
	h := &harness{kv: storetest.NewKV(), db: db}
	h.svc = New(db, h.kv, refresh, Config{})
	h.svc.sleep = func(time.Duration) { h.sleeps++ }
	h.svc.newRunID = func() string { return "run-1" }
	return h
}

func counterKey(id int64) string { return "hn:views:story:" + strconv.FormatInt(id, 10) }

func TestViewCountsDrainsAndUpserts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newFakeDB(1, 2), nil)
	h.kv.Set(ctx, counterKey(1), "5", 0)
	h.kv.Set(ctx, counterKey(2), "3", 0)

	rep, err := h.svc.Run(ctx, domain.JobViewCounts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Success || len(rep.Errors) != 0 {
		t.Fatalf("report = %+v, want clean success", rep)
	}
	if rep.RunID != "run-1" || rep.Job != domain.JobViewCounts {
		t.Fatalf("identity fields = %q/%q", rep.RunID, rep.Job)
	}
	if rep.Counters["scanned"] != 2 || rep.Counters["updated"] != 2 {
		t.Fatalf("counters = %v", rep.Counters)
	}
	if h.db.upserts[1] != 5 || h.db.upserts[2] != 3 {
		t.Fatalf("upserts = %v", h.db.upserts)
	}
	if _, ok, _ := h.kv.Get(ctx, counterKey(1)); ok {
		t.Fatal("counter 1 survived the drain")
	}

	// second pass sees nothing and changes nothing
	rep2, err := h.svc.Run(ctx, domain.JobViewCounts)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if rep2.Counters["scanned"] != 0 || rep2.Counters["updated"] != 0 {
		t.Fatalf("second run counters = %v", rep2.Counters)
	}
	if h.db.upserts[1] != 5 {
		t.Fatalf("second run double counted: %v", h.db.upserts)
	}
}

func TestViewCountsDropsCountersWithoutRows(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newFakeDB(1), nil)
	h.kv.Set(ctx, counterKey(1), "2", 0)
	h.kv.Set(ctx, counterKey(99), "7", 0)
	h.kv.Set(ctx, "hn:story:99", `{"id":99}`, 0)

	rep, err := h.svc.Run(ctx, domain.JobViewCounts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Counters["updated"] != 1 || rep.Counters["dropped"] != 1 {
		t.Fatalf("counters = %v", rep.Counters)
	}
	if _, ok := h.db.upserts[99]; ok {
		t.Fatal("upserted a story with no row")
	}
	if _, ok, _ := h.kv.Get(ctx, counterKey(99)); ok {
		t.Fatal("dropped counter left behind")
	}
	if _, ok, _ := h.kv.Get(ctx, "hn:story:99"); ok {
		t.Fatal("cache entry for the dead story survived")
	}
}

func TestViewCountsItemErrorsContinue(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB()
	for id := int64(1); id <= 10; id++ {
		db.stories[id] = true
	}
	db.upsertErr[3] = errors.New("deadlock")
	db.upsertErr[7] = errors.New("deadlock")
	h := newHarness(t, db, nil)
	for id := int64(1); id <= 10; id++ {
		h.kv.Set(ctx, counterKey(id), "1", 0)
	}

	rep, err := h.svc.Run(ctx, domain.JobViewCounts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Success {
		t.Fatal("item errors must not fail the job")
	}
	if len(rep.Errors) != 2 {
		t.Fatalf("Errors = %v, want 2", rep.Errors)
	}
	if rep.Counters["updated"] != 8 || rep.Counters["processed"] != 10 {
		t.Fatalf("counters = %v", rep.Counters)
	}

	// failed upserts put their drained deltas back for the next pass
	if rep.Counters["redeposited"] != 2 {
		t.Fatalf("redeposited = %d, want 2", rep.Counters["redeposited"])
	}
	for _, id := range []int64{3, 7} {
		if v, ok, _ := h.kv.Get(ctx, counterKey(id)); !ok || v != "1" {
			t.Fatalf("counter %d after failed upsert = (%q,%v), want redeposited", id, v, ok)
		}
	}

	// once the fault clears, the next run folds the deltas in exactly once
	db.upsertErr = map[int64]error{}
	if _, err := h.svc.Run(ctx, domain.JobViewCounts); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	for id := int64(1); id <= 10; id++ {
		if h.db.upserts[id] != 1 {
			t.Fatalf("upserts[%d] = %d, want exactly 1", id, h.db.upserts[id])
		}
	}
}

func TestViewCountsBatchLookupFailureContinues(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB()
	db.lookupFails = 1
	db.lookupErr = errors.New("pg gone")
	h := newHarness(t, db, nil)
	for id := int64(1); id <= 250; id++ {
		db.stories[id] = true
		h.kv.Set(ctx, counterKey(id), "1", 0)
	}

	rep, err := h.svc.Run(ctx, domain.JobViewCounts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Success {
		t.Fatal("one failed batch must not fail the job")
	}
	if len(rep.Errors) != 1 {
		t.Fatalf("Errors = %v, want the one batch failure", rep.Errors)
	}
	if rep.Counters["updated"] != 150 {
		t.Fatalf("updated = %d, want the two surviving batches", rep.Counters["updated"])
	}
	if rep.Counters["redeposited"] != 100 {
		t.Fatalf("redeposited = %d, want the failed batch back in redis", rep.Counters["redeposited"])
	}
	if h.kv.Len() != 100 {
		t.Fatalf("live counters = %d, want 100 redeposited", h.kv.Len())
	}
	if h.sleeps != 3 {
		t.Fatalf("sleeps = %d, the failed batch must still pace", h.sleeps)
	}

	// the retry drains the redeposited batch; no view is counted twice
	rep2, err := h.svc.Run(ctx, domain.JobViewCounts)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !rep2.Success || rep2.Counters["updated"] != 100 {
		t.Fatalf("second run = %+v", rep2)
	}
	for id := int64(1); id <= 250; id++ {
		if h.db.upserts[id] != 1 {
			t.Fatalf("upserts[%d] = %d, want exactly 1", id, h.db.upserts[id])
		}
	}
}

func TestOrphanPruneBatchLookupFailureContinues(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB()
	db.lookupFails = 1
	db.lookupErr = errors.New("pg gone")
	h := newHarness(t, db, nil)
	for id := int64(1); id <= 150; id++ {
		h.kv.Set(ctx, "hn:story:"+strconv.FormatInt(id, 10), "{}", 0)
	}

	rep, err := h.svc.Run(ctx, domain.JobOrphanPrune)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Success {
		t.Fatal("one failed batch must not fail the job")
	}
	if len(rep.Errors) != 1 {
		t.Fatalf("Errors = %v, want the one batch failure", rep.Errors)
	}
	// no rows exist, so every id in the surviving batch is an orphan
	if rep.Counters["cachePruned"] != 50 {
		t.Fatalf("cachePruned = %d, want the second batch pruned", rep.Counters["cachePruned"])
	}
}

func TestViewCountsMalformedValue(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newFakeDB(9), nil)
	h.kv.Set(ctx, counterKey(9), "not-a-number", 0)

	rep, err := h.svc.Run(ctx, domain.JobViewCounts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Success || len(rep.Errors) != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if rep.Counters["updated"] != 0 {
		t.Fatalf("counters = %v", rep.Counters)
	}
}

func TestViewCountsScanFailureFailsJob(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newFakeDB(), nil)
	h.kv.FailOn = map[string]error{"Scan": errors.New("redis down")}

	rep, err := h.svc.Run(ctx, domain.JobViewCounts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Success {
		t.Fatal("scan failure must fail the job")
	}
	if len(rep.Errors) != 1 {
		t.Fatalf("Errors = %v", rep.Errors)
	}
}

func TestViewCountsBatchPacing(t *testing.T) {
	ctx := context.Background()
	db := newFakeDB()
	h := newHarness(t, db, nil)
	for id := int64(1); id <= 250; id++ {
		db.stories[id] = true
		h.kv.Set(ctx, counterKey(id), "1", 0)
	}

	if _, err := h.svc.Run(ctx, domain.JobViewCounts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.sleeps != 3 {
		t.Fatalf("sleeps = %d, want one per batch of 100", h.sleeps)
	}
	if h.db.upserts[250] != 1 {
		t.Fatalf("upserts = %d entries", len(h.db.upserts))
	}
}

func TestOrphanPrune(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newFakeDB(1), nil)
	h.db.savedRows[2] = 4

	// story 1 still has a row, story 2 is gone from postgres
	h.kv.Set(ctx, "hn:story:1", `{"id":1}`, 0)
	h.kv.Set(ctx, "hn:story:2", `{"id":2}`, 0)
	h.kv.Set(ctx, "hn:story:2:backup", `{"id":2}`, 0)
	h.kv.Set(ctx, "hn:story:2:last_updated", "123", 0)
	h.kv.SAdd("hn:saved", "1", "2", "3")

	rep, err := h.svc.Run(ctx, domain.JobOrphanPrune)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Success || len(rep.Errors) != 0 {
		t.Fatalf("report = %+v", rep)
	}
	if rep.Counters["scanned"] != 3 {
		t.Fatalf("scanned = %d, want 3 candidates", rep.Counters["scanned"])
	}
	if rep.Counters["cachePruned"] != 1 || rep.Counters["savedPruned"] != 2 {
		t.Fatalf("counters = %v", rep.Counters)
	}
	if rep.Counters["savedRowsPruned"] != 4 {
		t.Fatalf("savedRowsPruned = %d", rep.Counters["savedRowsPruned"])
	}

	if _, ok, _ := h.kv.Get(ctx, "hn:story:1"); !ok {
		t.Fatal("live story was pruned")
	}
	for _, key := range []string{"hn:story:2", "hn:story:2:backup", "hn:story:2:last_updated"} {
		if _, ok, _ := h.kv.Get(ctx, key); ok {
			t.Fatalf("%s survived the prune", key)
		}
	}
	members, _ := h.kv.SMembers(ctx, "hn:saved")
	if len(members) != 1 || members[0] != "1" {
		t.Fatalf("saved = %v, want [1]", members)
	}
	if len(h.db.deleted) != 2 {
		t.Fatalf("deleted saved rows for %v, want stories 2 and 3", h.db.deleted)
	}
}

func TestOrphanPruneMalformedSavedMember(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newFakeDB(), nil)
	h.kv.SAdd("hn:saved", "abc")

	rep, err := h.svc.Run(ctx, domain.JobOrphanPrune)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Success || len(rep.Errors) != 1 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestRefreshCacheJob(t *testing.T) {
	ctx := context.Background()
	calls := 0
	h := newHarness(t, newFakeDB(), func(context.Context) error {
		calls++
		return nil
	})
	rep, err := h.svc.Run(ctx, domain.JobRefreshCache)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Success || calls != 1 || rep.Counters["refreshed"] != 1 {
		t.Fatalf("report = %+v, calls = %d", rep, calls)
	}
}

func TestRefreshCacheWithoutSource(t *testing.T) {
	h := newHarness(t, newFakeDB(), nil)
	rep, err := h.svc.Run(context.Background(), domain.JobRefreshCache)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Success {
		t.Fatal("missing refresh source must fail the job")
	}
}

func TestRunUnknownJob(t *testing.T) {
	h := newHarness(t, newFakeDB(), nil)
	rep, err := h.svc.Run(context.Background(), "vacuum-moon")
	if err == nil {
		t.Fatal("want error for unknown job")
	}
	if rep.Success {
		t.Fatal("unknown job must not report success")
	}
}

func TestRunContainsPanics(t *testing.T) {
	h := newHarness(t, newFakeDB(), func(context.Context) error {
		panic("boom")
	})
	rep, err := h.svc.Run(context.Background(), domain.JobRefreshCache)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Success {
		t.Fatal("panic must fail the report")
	}
	if len(rep.Errors) != 1 || !strings.Contains(rep.Errors[0], "panic") {
		t.Fatalf("Errors = %v", rep.Errors)
	}
	if rep.DurationMs < 0 {
		t.Fatalf("DurationMs = %d", rep.DurationMs)
	}
}

func TestJobsList(t *testing.T) {
	h := newHarness(t, newFakeDB(), nil)
	jobs := h.svc.Jobs()
	want := []string{domain.JobViewCounts, domain.JobOrphanPrune, domain.JobRefreshCache}
	if len(jobs) != len(want) {
		t.Fatalf("Jobs = %v", jobs)
	}
	for i, j := range want {
		if jobs[i] != j {
			t.Fatalf("Jobs[%d] = %q, want %q", i, jobs[i], j)
		}
	}
}
