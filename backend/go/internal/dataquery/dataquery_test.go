package dataquery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AIAssistant/backend/go/internal/cache"
	"AIAssistant/backend/go/internal/config"
	"AIAssistant/backend/go/internal/models"
)

func noSleep(context.Context, time.Duration) error { return nil }

func sampleResult() *models.QueryResult {
	return &models.QueryResult{
		Success: true,
		Message: "查询成功",
		Data: map[string]*models.Table{
			"user_data": {Columns: []string{"id", "name"}, Rows: [][]interface{}{{float64(1), "张三"}, {float64(2), nil}}},
		},
	}
}

func newTestHTTP(t *testing.T, url string, attempts int) *HTTPClient {
	t.Helper()
	c, err := NewHTTPClient(config.DataQueryConfig{BaseURL: url + "/", APIKey: "secret", Timeout: "5s"}, attempts, nil)
	require.NoError(t, err)
	c.Retry.Sleep = noSleep
	return c
}

func TestHTTPClient_Query(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, queryPath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(sampleResult())
	}))
	defer srv.Close()

	crm := int64(42)
	res, err := newTestHTTP(t, srv.URL, 1).Query(context.Background(), &models.QueryRequest{
		Sources:   map[string]interface{}{"user_data": map[string]interface{}{"limit": 10}},
		CRMUserID: &crm,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.RowCount())
	assert.Equal(t, float64(42), got["crm_user_id"])
	assert.Contains(t, got, "user_data")
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(sampleResult())
	}))
	defer srv.Close()

	res, err := newTestHTTP(t, srv.URL, 3).Query(context.Background(), &models.QueryRequest{
		Sources: map[string]interface{}{"user_data": map[string]interface{}{}},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestHTTPClient_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	res, err := newTestHTTP(t, srv.URL, 3).Query(context.Background(), &models.QueryRequest{
		Sources: map[string]interface{}{"user_data": map[string]interface{}{}},
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "HTTP错误: 403", res.Message)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestValidate(t *testing.T) {
	c := newTestHTTP(t, "http://127.0.0.1:1", 1)
	res, err := c.Query(context.Background(), &models.QueryRequest{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "请求数据为空", res.Message)

	res, err = c.Query(context.Background(), &models.QueryRequest{Sources: map[string]interface{}{"stock_price": nil}})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "stock_price")
}

type fakeInvoker struct {
	result *mcp.CallToolResult
	err    error
	args   map[string]interface{}
	tool   string
}

func (f *fakeInvoker) Call(ctx context.Context, tool string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	f.tool, f.args = tool, args
	return f.result, f.err
}

func TestMCPClient_Query(t *testing.T) {
	body, _ := json.Marshal(sampleResult())
	inv := &fakeInvoker{result: mcp.NewToolResultText(string(body))}
	res, err := NewMCPClient(inv, "").Query(context.Background(), &models.QueryRequest{
		Sources: map[string]interface{}{"user_data": map[string]interface{}{"limit": 5}},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, DefaultTool, inv.tool)
	assert.Contains(t, inv.args, "user_data")

	inv = &fakeInvoker{err: errors.New("pipe closed")}
	res, err = NewMCPClient(inv, "").Query(context.Background(), &models.QueryRequest{
		Sources: map[string]interface{}{"user_data": nil},
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "pipe closed")
}

type countingClient struct {
	calls  int
	result *models.QueryResult
}

func (c *countingClient) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResult, error) {
	c.calls++
	return c.result, nil
}

func TestCached_DedupsSuccessfulQueries(t *testing.T) {
	mem, err := cache.NewMemoryCache(16, 0)
	require.NoError(t, err)
	inner := &countingClient{result: sampleResult()}
	c := NewCached(inner, mem, time.Minute, nil)

	req := func() *models.QueryRequest {
		return &models.QueryRequest{Sources: map[string]interface{}{"user_data": map[string]interface{}{"limit": 1}}}
	}
	first, err := c.Query(context.Background(), req())
	require.NoError(t, err)
	second, err := c.Query(context.Background(), req())
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first.RowCount(), second.RowCount())

	inner.result = &models.QueryResult{Success: false, Message: "x"}
	other := &models.QueryRequest{Sources: map[string]interface{}{"mt4_user": nil}}
	_, _ = c.Query(context.Background(), other)
	_, _ = c.Query(context.Background(), other)
	assert.Equal(t, 3, inner.calls, "失败的结果不缓存")
}

func TestNewCached_DisabledWithoutTTL(t *testing.T) {
	inner := &countingClient{}
	assert.Same(t, inner, NewCached(inner, nil, time.Minute, nil))
}

func TestRenderMarkdown(t *testing.T) {
	parts := RenderMarkdown(sampleResult(), 0, nil)
	require.Len(t, parts, 1)
	assert.Contains(t, parts[0], "## user_data（基本信息）")
	assert.Contains(t, parts[0], "| id | name |")
	assert.Contains(t, parts[0], "| 1 | `张三` |")
	assert.Contains(t, parts[0], "| 2 | `null` |")

	assert.Nil(t, RenderMarkdown(&models.QueryResult{Success: true}, 0, nil))
}

func TestRenderMarkdown_SplitsLargeTables(t *testing.T) {
	rows := make([][]interface{}, 50)
	for i := range rows {
		rows[i] = []interface{}{float64(i), strings.Repeat("x", 20)}
	}
	res := &models.QueryResult{Success: true, Data: map[string]*models.Table{
		"user_login_log": {Columns: []string{"id", "ip"}, Rows: rows},
		"user_data":      {Columns: []string{"id"}, Rows: nil},
	}}
	parts := RenderMarkdown(res, 400, nil)
	require.Greater(t, len(parts), 2)
	for _, p := range parts {
		assert.LessOrEqual(t, len([]rune(p)), 400*95/100+60)
	}
	assert.Contains(t, parts[0], "无数据")
	assert.Contains(t, parts[len(parts)-1], "| id | ip |")
}

func TestDescribe(t *testing.T) {
	d := Describe()
	assert.True(t, strings.HasPrefix(d, "- mt4_trade: MT4交易"))
	assert.Contains(t, d, "- user_data: 基本信息")
}
