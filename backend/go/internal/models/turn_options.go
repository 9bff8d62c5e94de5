package models

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrUnknownOption 表示轮次配置中出现了不被识别的键。
var ErrUnknownOption = errors.New("未知的配置项")

// ResponseMode 控制子智能体调用模型的方式。
type ResponseMode string

const (
	ResponseStream ResponseMode = "stream" // 逐块输出
	ResponseReport ResponseMode = "report" // 一次性输出
	ResponseInvoke ResponseMode = "invoke" // 一次性调用，结果以 chat 事件输出
)

// 导出文件格式
const (
	FormatMarkdown = "markdown"
	FormatXLSX     = "xlsx"
	FormatDOCX     = "docx"
)

const maxRetryCap = 3

// TurnOptions 是一个对话轮次的显式配置。
type TurnOptions struct {
	LLMResponseType       ResponseMode `json:"llm_response_type"`
	IsCacheRequest        bool         `json:"is_cache_request"`
	CacheTTL              int          `json:"cache_ttl"`
	MaxRetryAttempts      int          `json:"max_retry_attempts"`
	SplitMaxTokens        int          `json:"split_max_tokens"`
	SplitChunkSize        int          `json:"split_chunk_size"`
	SplitChunkOverlap     int          `json:"split_chunk_overlap"`
	SplitMaxItemsPerChunk int          `json:"split_max_items_per_chunk"`
	IsSaveFile            bool         `json:"is_save_file"`
	ResultFormat          string       `json:"result_format"`

	// InterruptionChecker 返回 true 表示调用方要求中断，不参与序列化。
	InterruptionChecker func() bool `json:"-"`
}

// DefaultTurnOptions 返回内置默认值。
func DefaultTurnOptions() TurnOptions {
	return TurnOptions{
		LLMResponseType:       ResponseReport,
		IsCacheRequest:        true,
		CacheTTL:              300,
		MaxRetryAttempts:      3,
		SplitMaxTokens:        100000,
		SplitChunkSize:        100000,
		SplitChunkOverlap:     200,
		SplitMaxItemsPerChunk: 100,
		IsSaveFile:            true,
		ResultFormat:          FormatMarkdown,
	}
}

// Interrupted 调用中断检查器，未配置时返回 false。
func (o *TurnOptions) Interrupted() bool {
	if o == nil || o.InterruptionChecker == nil {
		return false
	}
	return o.InterruptionChecker()
}

// Retries 返回实际生效的最大重试次数。
func (o *TurnOptions) Retries() int {
	if o == nil {
		return 0
	}
	if o.MaxRetryAttempts > maxRetryCap {
		return maxRetryCap
	}
	return o.MaxRetryAttempts
}

// Fingerprint 返回参与缓存键计算的可序列化部分。
func (o *TurnOptions) Fingerprint() map[string]interface{} {
	return map[string]interface{}{
		"llm_response_type":         string(o.LLMResponseType),
		"split_max_tokens":          o.SplitMaxTokens,
		"split_chunk_size":          o.SplitChunkSize,
		"split_chunk_overlap":       o.SplitChunkOverlap,
		"split_max_items_per_chunk": o.SplitMaxItemsPerChunk,
		"is_save_file":              o.IsSaveFile,
		"result_format":             o.ResultFormat,
	}
}

// Validate 校验取值范围。
func (o *TurnOptions) Validate() error {
	switch o.LLMResponseType {
	case ResponseStream, ResponseReport, ResponseInvoke:
	default:
		return fmt.Errorf("llm_response_type 取值无效: %q", o.LLMResponseType)
	}
	switch o.ResultFormat {
	case FormatMarkdown, FormatXLSX, FormatDOCX:
	default:
		return fmt.Errorf("result_format 取值无效: %q", o.ResultFormat)
	}
	ints := map[string]int{
		"cache_ttl":                 o.CacheTTL,
		"max_retry_attempts":        o.MaxRetryAttempts,
		"split_max_tokens":          o.SplitMaxTokens,
		"split_chunk_size":          o.SplitChunkSize,
		"split_chunk_overlap":       o.SplitChunkOverlap,
		"split_max_items_per_chunk": o.SplitMaxItemsPerChunk,
	}
	for k, v := range ints {
		if v < 0 {
			return fmt.Errorf("%s 不能为负数: %d", k, v)
		}
	}
	return nil
}

// DecodeTurnOptions 在 defaults 基础上应用 raw 中的配置项。
// 未知的键会被拒绝，interruption_checker 只接受 func() bool。
func DecodeTurnOptions(raw map[string]interface{}, defaults TurnOptions) (TurnOptions, error) {
	opts := defaults
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := raw[k]
		var err error
		switch k {
		case "llm_response_type":
			var s string
			s, err = asString(k, v)
			opts.LLMResponseType = ResponseMode(s)
		case "result_format":
			opts.ResultFormat, err = asString(k, v)
		case "is_cache_request":
			opts.IsCacheRequest, err = asBool(k, v)
		case "is_save_file":
			opts.IsSaveFile, err = asBool(k, v)
		case "cache_ttl":
			opts.CacheTTL, err = asInt(k, v)
		case "max_retry_attempts":
			opts.MaxRetryAttempts, err = asInt(k, v)
		case "split_max_tokens":
			opts.SplitMaxTokens, err = asInt(k, v)
		case "split_chunk_size":
			opts.SplitChunkSize, err = asInt(k, v)
		case "split_chunk_overlap":
			opts.SplitChunkOverlap, err = asInt(k, v)
		case "split_max_items_per_chunk":
			opts.SplitMaxItemsPerChunk, err = asInt(k, v)
		case "interruption_checker":
			fn, ok := v.(func() bool)
			if !ok {
				return opts, fmt.Errorf("interruption_checker 必须是 func() bool，实际为 %T", v)
			}
			opts.InterruptionChecker = fn
		default:
			return opts, fmt.Errorf("%w: %s", ErrUnknownOption, k)
		}
		if err != nil {
			return opts, err
		}
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

func asString(key string, v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s 必须是字符串，实际为 %T", key, v)
	}
	return s, nil
}

func asBool(key string, v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s 必须是布尔值，实际为 %T", key, v)
	}
	return b, nil
}

// asInt 同时接受 Go 整数和 JSON 解码得到的 float64。
func asInt(key string, v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%s 必须是整数，实际为 %v", key, n)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("%s 必须是整数，实际为 %T", key, v)
}
