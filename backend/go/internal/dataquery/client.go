// Package dataquery 访问数据仓库查询服务，支持 HTTP 与 MCP 两种传输方式。
package dataquery

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"AIAssistant/backend/go/internal/models"
)

// Client 执行一次数据查询。
// 上游返回的失败体现在 QueryResult.Success 中，error 只用于调用被取消等无法得到结果的情况。
type Client interface {
	Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResult, error)
}

// QueryTypes 是数据仓库支持的查询类型及其中文名称。
var QueryTypes = map[string]string{
	"user_data":       "基本信息",
	"user_login_log":  "登录",
	"user_amount_log": "资金",
	"user_transfer":   "转账",
	"mt4_user":        "MT4用户",
	"mt5_user":        "MT5用户",
	"mt4_trade":       "MT4交易",
	"mt5_trade":       "MT5交易",
	"mt5_position":    "MT5持仓",
	"mt_login":        "MT登录",
}

// Describe 返回查询类型列表的文字描述，按类型名排序，用于提示词。
func Describe() string {
	keys := make([]string, 0, len(QueryTypes))
	for k := range QueryTypes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "- %s: %s\n", k, QueryTypes[k])
	}
	return sb.String()
}

// validate 检查请求，不合法时返回失败结果。
func validate(req *models.QueryRequest) *models.QueryResult {
	if req == nil || len(req.Sources) == 0 {
		return &models.QueryResult{Success: false, Message: "请求数据为空"}
	}
	var unknown []string
	for _, t := range req.QueryTypes() {
		if _, ok := QueryTypes[t]; !ok {
			unknown = append(unknown, t)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &models.QueryResult{
			Success: false,
			Message: fmt.Sprintf("不支持的查询类型: %s", strings.Join(unknown, ", ")),
		}
	}
	return nil
}

// Body 返回发往查询服务的请求体：各查询类型作为顶层键，crm_user_id 用于授权校验。
func Body(req *models.QueryRequest) map[string]interface{} {
	body := make(map[string]interface{}, len(req.Sources)+1)
	for k, v := range req.Sources {
		body[k] = v
	}
	if req.CRMUserID != nil {
		body["crm_user_id"] = *req.CRMUserID
	}
	return body
}
