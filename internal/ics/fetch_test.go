package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const etag = `"v1"`

// feedServer serves body with an ETag, answering 304 to a matching
// If-None-Match, or 500 while failing is set.
func feedServer(t *testing.T, body []byte, failing *atomic.Bool, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if failing.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchOneCachesAndRevalidates(t *testing.T) {
	t.Parallel()

	var failing atomic.Bool
	var hits atomic.Int32
	body := readFixture(t)
	srv := feedServer(t, body, &failing, &hits)

	f := NewFetcher(t.TempDir(), srv.Client())
	src := Source{ID: "team", URL: srv.URL + "/team.ics"}

	res, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, body, res.Body)

	meta, err := loadMeta(f.cacheDirFor(src.URL))
	require.NoError(t, err)
	assert.Equal(t, etag, meta.ETag)
	assert.Equal(t, src.URL, meta.URL)

	res, err = f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.FromCache, "304 serves the cached body")
	assert.Equal(t, body, res.Body)

	failing.Store(true)
	res, err = f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, res.FromCache, "upstream errors fall back to the cache")
	assert.Equal(t, body, res.Body)
	assert.Equal(t, int32(3), hits.Load())
}

func TestFetchOneWithoutCacheFails(t *testing.T) {
	t.Parallel()

	var failing atomic.Bool
	var hits atomic.Int32
	failing.Store(true)
	srv := feedServer(t, nil, &failing, &hits)

	f := NewFetcher(t.TempDir(), srv.Client())
	_, err := f.FetchOne(context.Background(), Source{ID: "x", URL: srv.URL})
	assert.ErrorContains(t, err, "500")

	_, err = f.FetchOne(context.Background(), Source{ID: "x"})
	assert.Error(t, err)
}

func TestFetchAllReportsPerSource(t *testing.T) {
	t.Parallel()

	var failing atomic.Bool
	var hits atomic.Int32
	srv := feedServer(t, readFixture(t), &failing, &hits)

	dir := t.TempDir()
	f := NewFetcher(dir, srv.Client())
	results, errs := f.FetchAll(context.Background(), []Source{
		{ID: "ok", URL: srv.URL},
		{ID: "empty"},
	})
	require.Len(t, results, 1)
	assert.Equal(t, "ok", results[0].Source.ID)
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "source empty")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
