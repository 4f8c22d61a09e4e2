// Package storetest provides an in memory KV for tests
package storetest

import (
	"context"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"

	"newswire/internal/platform/store"
)

type entry struct {
	val string
	exp time.Time // zero means no expiry
}

// KV is an in memory store.KV with a controllable clock and error injection.
// Safe for concurrent use.
type KV struct {
	mu    sync.Mutex
	vals  map[string]entry
	sets  map[string]map[string]struct{}
	zsets map[string]map[string]int64 // member -> score in ns
	seq   int64                       // disambiguates same-instant window members

	// Now is the clock used for expiry; defaults to time.Now
	Now func() time.Time

	// Err fails every call when set
	Err error
	// FailOn fails only the named op, e.g. "Get" or "TouchWindow"
	FailOn map[string]error
}

var _ store.KV = (*KV)(nil)

// NewKV returns an empty fake
func NewKV() *KV {
	return &KV{
		vals:  map[string]entry{},
		sets:  map[string]map[string]struct{}{},
		zsets: map[string]map[string]int64{},
		Now:   time.Now,
	}
}

func (f *KV) fail(op string) error {
	if f.Err != nil {
		return f.Err
	}
	if e, ok := f.FailOn[op]; ok {
		return e
	}
	return nil
}

func (f *KV) expired(e entry) bool {
	return !e.exp.IsZero() && !f.Now().Before(e.exp)
}

func (f *KV) Get(_ context.Context, key string) (string, bool, error) {
	if err := f.fail("Get"); err != nil {
		return "", false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.vals[key]
	if !ok || f.expired(e) {
		delete(f.vals, key)
		return "", false, nil
	}
	return e.val, true, nil
}

func (f *KV) Set(_ context.Context, key, val string, ttl time.Duration) error {
	if err := f.fail("Set"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setLocked(key, val, ttl)
	return nil
}

func (f *KV) setLocked(key, val string, ttl time.Duration) {
	e := entry{val: val}
	if ttl > 0 {
		e.exp = f.Now().Add(ttl)
	}
	f.vals[key] = e
}

func (f *KV) SetMany(_ context.Context, entries []store.Entry) error {
	if err := f.fail("SetMany"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range entries {
		f.setLocked(e.Key, e.Val, e.TTL)
	}
	return nil
}

func (f *KV) GetMany(_ context.Context, keys []string) ([]*string, error) {
	if err := f.fail("GetMany"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*string, len(keys))
	for i, k := range keys {
		e, ok := f.vals[k]
		if !ok || f.expired(e) {
			delete(f.vals, k)
			continue
		}
		v := e.val
		out[i] = &v
	}
	return out, nil
}

func (f *KV) Del(_ context.Context, keys ...string) (int64, error) {
	if err := f.fail("Del"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if e, ok := f.vals[k]; ok && !f.expired(e) {
			n++
		}
		delete(f.vals, k)
		if _, ok := f.zsets[k]; ok {
			delete(f.zsets, k)
			n++
		}
	}
	return n, nil
}

func (f *KV) Scan(_ context.Context, pattern string) ([]string, error) {
	if err := f.fail("Scan"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k, e := range f.vals {
		if f.expired(e) {
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *KV) SetNX(_ context.Context, key, val string, ttl time.Duration) (bool, error) {
	if err := f.fail("SetNX"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.vals[key]; ok && !f.expired(e) {
		return false, nil
	}
	f.setLocked(key, val, ttl)
	return true, nil
}

func (f *KV) GetDel(_ context.Context, key string) (string, bool, error) {
	if err := f.fail("GetDel"); err != nil {
		return "", false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.vals[key]
	delete(f.vals, key)
	if !ok || f.expired(e) {
		return "", false, nil
	}
	return e.val, true, nil
}

func (f *KV) SMembers(_ context.Context, key string) ([]string, error) {
	if err := f.fail("SMembers"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sets[key]))
	for m := range f.sets[key] {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (f *KV) SRem(_ context.Context, key string, members ...string) (int64, error) {
	if err := f.fail("SRem"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range members {
		if _, ok := f.sets[key][m]; ok {
			delete(f.sets[key], m)
			n++
		}
	}
	return n, nil
}

func (f *KV) TouchWindow(_ context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	if err := f.fail("TouchWindow"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	zs := f.zsets[key]
	if zs == nil {
		zs = map[string]int64{}
		f.zsets[key] = zs
	}
	cutoff := now.UnixNano() - window.Nanoseconds()
	for m, score := range zs {
		if score <= cutoff {
			delete(zs, m)
		}
	}
	f.seq++
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + strconv.FormatInt(f.seq, 10)
	zs[member] = now.UnixNano()
	return int64(len(zs)), nil
}

func (f *KV) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	if err := f.fail("IncrBy"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var cur int64
	e, ok := f.vals[key]
	if ok && !f.expired(e) {
		n, err := strconv.ParseInt(e.val, 10, 64)
		if err != nil {
			return 0, err
		}
		cur = n
	} else {
		e = entry{}
	}
	cur += delta
	e.val = strconv.FormatInt(cur, 10)
	f.vals[key] = e
	return cur, nil
}

func (f *KV) Ping(context.Context) error { return f.fail("Ping") }
func (f *KV) Close() error               { return nil }

// SAdd seeds set members; the seam only reads and prunes sets
func (f *KV) SAdd(key string, members ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sets[key] == nil {
		f.sets[key] = map[string]struct{}{}
	}
	for _, m := range members {
		f.sets[key][m] = struct{}{}
	}
}

// TTLOf reports the remaining TTL of a key for assertions
func (f *KV) TTLOf(key string) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.vals[key]
	if !ok || f.expired(e) {
		return 0, false
	}
	if e.exp.IsZero() {
		return 0, true
	}
	return e.exp.Sub(f.Now()), true
}

// Len reports how many live string keys the fake holds
func (f *KV) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.vals {
		if !f.expired(e) {
			n++
		}
	}
	return n
}
