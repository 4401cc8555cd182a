package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
)

// Resource is a REST collection of wire records of type W, rooted at path
// (e.g. "/api/citas"). It implements the remote half of a syncing repository.
type Resource[W any] struct {
	c    *Client
	path string
}

// NewResource returns the collection at path on c.
func NewResource[W any](c *Client, path string) *Resource[W] {
	return &Resource[W]{c: c, path: path}
}

// Path returns the collection root.
func (r *Resource[W]) Path() string { return r.path }

// List fetches every record with GET {path}. A record that cannot be decoded
// into W is skipped and logged, so one bad element never hides the rest.
func (r *Resource[W]) List(ctx context.Context) ([]W, error) {
	return r.ListAt(ctx, "", nil)
}

// ListAt fetches GET {path}/{sub} with an optional query. sub must already be
// path-escaped.
func (r *Resource[W]) ListAt(ctx context.Context, sub string, query url.Values) ([]W, error) {
	var raw []json.RawMessage
	if err := r.c.Do(ctx, http.MethodGet, r.join(sub), query, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]W, 0, len(raw))
	for i, elem := range raw {
		var w W
		if err := json.Unmarshal(elem, &w); err != nil {
			r.c.log.Warn("skipping undecodable record", "path", r.path, "index", i, "error", err)
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

// Get fetches GET {path}/{id}.
func (r *Resource[W]) Get(ctx context.Context, id int64) (W, error) {
	var w W
	err := r.c.Do(ctx, http.MethodGet, r.item(id), nil, nil, &w)
	return w, err
}

// Create sends POST {path} and returns the record as stored by the API,
// including its assigned identifier.
func (r *Resource[W]) Create(ctx context.Context, w W) (W, error) {
	var created W
	err := r.c.Do(ctx, http.MethodPost, r.path, nil, w, &created)
	return created, err
}

// Update sends PUT {path}/{id} and returns the record as stored by the API.
func (r *Resource[W]) Update(ctx context.Context, id int64, w W) (W, error) {
	var updated W
	err := r.c.Do(ctx, http.MethodPut, r.item(id), nil, w, &updated)
	return updated, err
}

// Delete sends DELETE {path}/{id}.
func (r *Resource[W]) Delete(ctx context.Context, id int64) error {
	return r.c.Do(ctx, http.MethodDelete, r.item(id), nil, nil, nil)
}

// Patch sends PATCH {path}/{id}/{sub} with an optional query and body, and
// returns the updated record.
func (r *Resource[W]) Patch(ctx context.Context, id int64, sub string, query url.Values, body any) (W, error) {
	var updated W
	p := r.item(id)
	if sub != "" {
		p += "/" + sub
	}
	err := r.c.Do(ctx, http.MethodPatch, p, query, body, &updated)
	return updated, err
}

func (r *Resource[W]) item(id int64) string {
	return r.path + "/" + strconv.FormatInt(id, 10)
}

func (r *Resource[W]) join(sub string) string {
	if sub == "" {
		return r.path
	}
	return r.path + "/" + sub
}
