package domain

import "context"

// QueryPort serves cached story reads
type QueryPort interface {
	TopStories(ctx context.Context) ([]int64, error)
	Story(ctx context.Context, id int64) (Story, error)
	List(ctx context.Context, q ListQuery) (ListResult, error)
}

// RefresherPort rebuilds the cache from the upstream source
type RefresherPort interface {
	RefreshCache(ctx context.Context) error
}
