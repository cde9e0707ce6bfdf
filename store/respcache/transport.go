package respcache

import (
	"bytes"
	"io"
	"net/http"

	"github.com/halftrip/cachepurge/internal/keyhash"
)

// CacheHeader is set to "HIT" on responses served from the cache.
const CacheHeader = "X-Halftrip-Cache"

// Transport caches successful GET responses in one bucket of a Cache. The bucket is
// looked up per request so a cleared cache starts from an empty bucket.
type Transport struct {
	Cache  *Cache
	Bucket string
	// Vary lists request headers that are part of the cache key.
	Vary []string
	// Base performs the real request; nil means http.DefaultTransport.
	Base http.RoundTripper
}

// NewTransport returns a Transport writing to the named bucket of c.
func NewTransport(c *Cache, bucket string, base http.RoundTripper, vary ...string) *Transport {
	return &Transport{Cache: c, Bucket: bucket, Vary: vary, Base: base}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if req.Method != http.MethodGet || req.Header.Get("Cache-Control") == "no-store" {
		return base.RoundTrip(req)
	}

	bucket := t.Cache.Open(t.Bucket)
	key := keyhash.Request(req, t.Vary...)
	if e, ok := bucket.Get(key); ok {
		return e.response(req), nil
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Cache-Control") == "no-store" {
		return resp, nil
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	bucket.Put(key, &Entry{StatusCode: resp.StatusCode, Headers: resp.Header.Clone(), Body: body})
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

func (e *Entry) response(req *http.Request) *http.Response {
	h := e.Headers.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set(CacheHeader, "HIT")
	return &http.Response{
		Status:        http.StatusText(e.StatusCode),
		StatusCode:    e.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}
