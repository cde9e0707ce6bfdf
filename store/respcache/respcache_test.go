package respcache

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halftrip/cachepurge"
)

func tripServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Path == "/private" {
			w.Header().Set("Cache-Control", "no-store")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"id":"t1"}]`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, client *http.Client, url string) (string, string) {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body), resp.Header.Get(CacheHeader)
}

func TestTransportCachesGets(t *testing.T) {
	var hits int32
	srv := tripServer(t, &hits)
	c := New(Options{})
	client := &http.Client{Transport: NewTransport(c, "api-v1", nil)}

	body, hit := get(t, client, srv.URL+"/trips")
	assert.Equal(t, `[{"id":"t1"}]`, body)
	assert.Empty(t, hit)

	body, hit = get(t, client, srv.URL+"/trips")
	assert.Equal(t, `[{"id":"t1"}]`, body)
	assert.Equal(t, "HIT", hit)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
	assert.Equal(t, 1, c.Len())
}

func TestTransportSkipsNoStore(t *testing.T) {
	var hits int32
	srv := tripServer(t, &hits)
	c := New(Options{})
	client := &http.Client{Transport: NewTransport(c, "api-v1", nil)}

	get(t, client, srv.URL+"/private")
	get(t, client, srv.URL+"/private")
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
	assert.Zero(t, c.Len())
}

func TestClearDeletesEveryBucket(t *testing.T) {
	var hits int32
	srv := tripServer(t, &hits)
	c := New(Options{})
	v1 := &http.Client{Transport: NewTransport(c, "api-v1", nil)}
	assets := &http.Client{Transport: NewTransport(c, "assets", nil)}
	get(t, v1, srv.URL+"/trips")
	get(t, assets, srv.URL+"/logo.svg")
	require.Equal(t, []string{"api-v1", "assets"}, c.Buckets())

	require.NoError(t, c.Clear(context.Background()))
	assert.Empty(t, c.Buckets())
	assert.Zero(t, c.Len())

	_, hit := get(t, v1, srv.URL+"/trips")
	assert.Empty(t, hit, "cleared entries must not be served")
	assert.Equal(t, []string{"api-v1"}, c.Buckets())
	assert.EqualValues(t, 3, atomic.LoadInt32(&hits))

	require.NoError(t, c.Clear(context.Background()))
}

func TestNilCacheIsUnavailable(t *testing.T) {
	var c *Cache
	err := c.Clear(context.Background())
	assert.ErrorIs(t, err, cachepurge.ErrUnavailable)
	assert.Equal(t, defaultName, c.Name())
}

func TestBucketExpiry(t *testing.T) {
	c := New(Options{TTL: 10 * time.Millisecond})
	b := c.Open("short")
	b.Put(1, &Entry{StatusCode: 200})
	time.Sleep(50 * time.Millisecond)
	_, ok := b.Get(1)
	assert.False(t, ok)
}
