// Package repo holds the postgres queries used by reconciliation jobs
package repo

import (
	"context"

	perr "newswire/internal/platform/errors"
	"newswire/internal/platform/store"
)

// PG is the postgres-backed reconciliation repo
type PG struct{}

// NewPG returns the postgres repo
func NewPG() *PG { return &PG{} }

// ExistingStoryIDs returns the subset of ids that have a stories row
func (PG) ExistingStoryIDs(ctx context.Context, q store.RowQuerier, ids []int64) (map[int64]struct{}, error) {
	if len(ids) == 0 {
		return map[int64]struct{}{}, nil
	}
	const sql = `SELECT id FROM stories WHERE id = ANY($1)`
	got, err := store.Many(ctx, q, func(r store.Row) (int64, error) {
		var id int64
		err := r.Scan(&id)
		return id, err
	}, sql, ids)
	if err != nil {
		return nil, perr.FromPostgres(err, "select story ids")
	}
	out := make(map[int64]struct{}, len(got))
	for _, id := range got {
		out[id] = struct{}{}
	}
	return out, nil
}

// AddViewCount folds a drained counter delta into story_stats
func (PG) AddViewCount(ctx context.Context, q store.RowQuerier, storyID, delta int64) error {
	const sql = `
		INSERT INTO story_stats (story_id, view_count, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (story_id) DO UPDATE
		SET view_count = story_stats.view_count + EXCLUDED.view_count,
		    updated_at = now()`
	if err := store.ExecOne(ctx, q, sql, storyID, delta); err != nil {
		return perr.FromPostgresf(err, "upsert view count for story %d", storyID)
	}
	return nil
}

// DeleteSaved removes saved rows for stories that no longer exist
func (PG) DeleteSaved(ctx context.Context, q store.RowQuerier, storyID int64) (int64, error) {
	const sql = `DELETE FROM saved_stories WHERE story_id = $1`
	tag, err := store.Exec(ctx, q, sql, storyID)
	if err != nil {
		return 0, perr.FromPostgresf(err, "delete saved rows for story %d", storyID)
	}
	return tag.RowsAffected(), nil
}
