package llm

import (
	"strings"
	"testing"
	"time"
)

func TestResponseCache(t *testing.T) {
	c := NewResponseCache(time.Minute)
	k := CacheKey("gpt-4o-mini", "Total: 420")

	if _, ok := c.Get(k); ok {
		t.Fatal("empty cache returned a hit")
	}
	c.Set(k, []byte(`{"total":"420.00"}`))
	got, ok := c.Get(k)
	if !ok || string(got) != `{"total":"420.00"}` {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if k == CacheKey("gpt-4o", "Total: 420") {
		t.Fatal("cache key must depend on the model")
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}

	var nilCache *ResponseCache
	nilCache.Set(k, nil)
	if _, ok := nilCache.Get(k); ok {
		t.Fatal("nil cache should never hit")
	}
}

func TestBuildUserPromptTruncates(t *testing.T) {
	long := strings.Repeat("₹", 2000) // 3 bytes each
	p := BuildUserPrompt(RefineRequest{RawText: long})
	if !strings.Contains(p, "…(truncated)") {
		t.Fatal("expected truncation marker")
	}
	if strings.ContainsRune(p, '�') {
		t.Fatal("truncation split a multi-byte rune")
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
		"```\n{}\n```":            `{}`,
	}
	for in, want := range tests {
		if got := StripCodeFence(in); got != want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}
