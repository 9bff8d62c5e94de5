package dataquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"AIAssistant/backend/go/internal/config"
	"AIAssistant/backend/go/internal/models"
	pkghttp "AIAssistant/backend/go/pkg/http"
	"AIAssistant/backend/go/pkg/logger"
	"AIAssistant/backend/go/pkg/retry"
)

const queryPath = "/api/v1/getdata/data"

// HTTPClient 通过 HTTP 调用数据仓库，传输错误与 5xx 会按退避策略重试。
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *pkghttp.Client
	log     *logger.Logger

	// Retry 是传输失败时的重试策略
	Retry retry.Config
}

// NewHTTPClient 根据配置创建 HTTP 客户端，attempts 为最多尝试次数。
func NewHTTPClient(cfg config.DataQueryConfig, attempts int, log *logger.Logger) (*HTTPClient, error) {
	timeout := 120 * time.Second
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("无效的查询超时配置 %q: %w", cfg.Timeout, err)
		}
		timeout = d
	}
	c, err := pkghttp.NewClient("dataquery", cfg.CircuitBreaker, timeout)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  c,
		log:     log.WithComponent("dataquery"),
		Retry: retry.Config{
			Attempts:  attempts,
			Retryable: transient,
		},
	}, nil
}

// transient 判断错误是否值得重试：4xx 与取消不重试。
func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *pkghttp.StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError
	}
	return true
}

func (c *HTTPClient) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResult, error) {
	if bad := validate(req); bad != nil {
		return bad, nil
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	body := Body(req)

	start := time.Now()
	var result models.QueryResult
	err := retry.Do(ctx, c.Retry, func(ctx context.Context) error {
		result = models.QueryResult{}
		return c.client.PostJSON(ctx, c.baseURL+queryPath, headers, body, &result)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.WithError(models.ErrorInfo{Message: err.Error(), Type: "dataquery_http"}).Error("数据查询失败")
		var se *pkghttp.StatusError
		if errors.As(err, &se) {
			return &models.QueryResult{Success: false, Message: fmt.Sprintf("HTTP错误: %d", se.StatusCode)}, nil
		}
		return &models.QueryResult{Success: false, Message: fmt.Sprintf("网络请求失败: %v", err)}, nil
	}
	c.log.WithPayload(map[string]interface{}{
		"query_types": req.QueryTypes(),
		"rows":        result.RowCount(),
		"elapsed_ms":  time.Since(start).Milliseconds(),
	}).Debug("数据查询完成")
	return &result, nil
}
