package mw

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// CacheHeader reports whether a response came from the cache.
const CacheHeader = "X-Cache"

// snapshotEntry is a stored catalog response.
type snapshotEntry struct {
	status      int
	contentType string
	body        []byte
}

// teeWriter copies everything written to the client into buf.
type teeWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w *teeWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *teeWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// NewCacheStore returns a store whose expired entries are swept every two TTLs.
func NewCacheStore(ttl time.Duration) *cache.Cache {
	return cache.New(ttl, 2*ttl)
}

// Cache serves repeated GET requests for the same URI from memory for ttl.
// Only 2xx responses are stored.
func Cache(store *cache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		uri := c.Request.URL.RequestURI()
		if v, ok := store.Get(uri); ok {
			entry := v.(snapshotEntry)
			c.Header(CacheHeader, "HIT")
			c.Data(entry.status, entry.contentType, entry.body)
			c.Abort()
			return
		}

		c.Header(CacheHeader, "MISS")
		tee := &teeWriter{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = tee
		c.Next()

		status := tee.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}
		store.Set(uri, snapshotEntry{
			status:      status,
			contentType: tee.Header().Get("Content-Type"),
			body:        tee.buf.Bytes(),
		}, ttl)
		slog.Debug("response cached", "uri", uri, "status", status, "ttl", ttl)
	}
}
