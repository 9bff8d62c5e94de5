package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_StableAcrossKeyOrder(t *testing.T) {
	a := map[string]interface{}{"handler": "auto", "query": "q", "params": map[string]interface{}{"b": 1, "a": 2}}
	b := map[string]interface{}{"params": map[string]interface{}{"a": 2, "b": 1}, "query": "q", "handler": "auto"}
	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, fa, fb)
	assert.Len(t, fa, 64)

	c := map[string]interface{}{"handler": "chat", "query": "q", "params": map[string]interface{}{"a": 2, "b": 1}}
	fc, _ := Fingerprint(c)
	assert.NotEqual(t, fa, fc)
}

func TestCanonical_StructMatchesMap(t *testing.T) {
	type req struct {
		Query   string `json:"query"`
		Handler string `json:"handler"`
	}
	s, err := Canonical(req{Query: "q", Handler: "h"})
	require.NoError(t, err)
	assert.Equal(t, `{"handler":"h","query":"q"}`, string(s))
}

func TestMD5Key(t *testing.T) {
	k, err := MD5Key("mcp_request_", map[string]interface{}{"user_data": map[string]interface{}{"limit": 10}})
	require.NoError(t, err)
	assert.Regexp(t, `^mcp_request_[0-9a-f]{32}$`, k)
}

func TestMemoryCache_TTL(t *testing.T) {
	c, err := NewMemoryCache(10, 0)
	require.NoError(t, err)
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(v))

	now = now.Add(2 * time.Minute)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := NewMemoryCache(2, 0)
	require.NoError(t, err)
	ctx := context.Background()
	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)
	_, _, _ = c.Get(ctx, "a")
	_ = c.Set(ctx, "c", []byte("3"), 0)

	_, ok, _ := c.Get(ctx, "b")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "a")
	assert.True(t, ok)
}

func TestMemoryCache_ByteLimit(t *testing.T) {
	c, err := NewMemoryCache(0, 5)
	require.NoError(t, err)
	ctx := context.Background()
	_ = c.Set(ctx, "a", []byte("123"), 0)
	_ = c.Set(ctx, "b", []byte("456"), 0)
	assert.Equal(t, 1, c.Len())

	_, err = NewMemoryCache(0, 0)
	assert.Error(t, err)
}

func TestJSONHelpers(t *testing.T) {
	c, _ := NewMemoryCache(4, 0)
	ctx := context.Background()
	require.NoError(t, SetJSON(ctx, c, "k", []string{"x", "y"}, 0))
	var out []string
	ok, err := GetJSON(ctx, c, "k", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"x", "y"}, out)

	ok, err = GetJSON(ctx, c, "missing", &out)
	assert.NoError(t, err)
	assert.False(t, ok)
}
