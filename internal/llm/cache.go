package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"
)

// ResponseCache keeps validated model output for identical (model, text) pairs.
type ResponseCache struct {
	c *cache.Cache
}

func NewResponseCache(ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ResponseCache{c: cache.New(ttl, 2*ttl)}
}

// CacheKey hashes model and input so raw statement text is never a map key.
func CacheKey(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

func (rc *ResponseCache) Get(key string) ([]byte, bool) {
	if rc == nil {
		return nil, false
	}
	v, ok := rc.c.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (rc *ResponseCache) Set(key string, value []byte) {
	if rc == nil {
		return
	}
	rc.c.Set(key, value, cache.DefaultExpiration)
}

func (rc *ResponseCache) Len() int {
	if rc == nil {
		return 0
	}
	return rc.c.ItemCount()
}
