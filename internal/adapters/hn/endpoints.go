package hn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	perr "newswire/internal/platform/errors"
)

// TopStories fetches the current top story ids
func (c *Client) TopStories(ctx context.Context) ([]int64, error) {
	resp, err := c.Do(ctx, "/topstories.json")
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Msg("hn close body failed")
		}
	}()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var out []int64
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "hn topstories decode failed")
	}
	return out, nil
}

// Item fetches a single item by id
// the upstream answers 200 with a literal null body for unknown ids; that and
// deleted or dead items surface as not found, never retried
func (c *Client) Item(ctx context.Context, id int64) (Item, error) {
	path := fmt.Sprintf("/item/%d.json", id)
	resp, err := c.Do(ctx, path)
	if err != nil {
		return Item{}, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Str("path", path).Msg("hn close body failed")
		}
	}()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Item{}, err
	}
	if isNull(b) {
		return Item{}, perr.NotFoundf("hn item %d not found", id)
	}
	var out Item
	if err := json.Unmarshal(b, &out); err != nil {
		return Item{}, perr.Wrapf(err, perr.ErrorCodeJSON, "hn item %d decode failed", id)
	}
	if out.Deleted || out.Dead {
		return Item{}, perr.NotFoundf("hn item %d deleted or dead", id)
	}
	return out, nil
}

func isNull(b []byte) bool {
	return len(bytes.TrimSpace(b)) == 0 || bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}
