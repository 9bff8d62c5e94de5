package agent

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// ExtractJSON 解析模型输出中的 JSON。
// 优先取 ```json 代码块中的内容，其次是整个文本；直接解析失败时尝试修复。
func ExtractJSON(text string) (interface{}, bool) {
	body := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(body); m != nil {
		body = strings.TrimSpace(m[1])
	}
	if body == "" {
		return nil, false
	}

	var v interface{}
	if err := json.Unmarshal([]byte(body), &v); err == nil {
		return v, true
	}
	// 修复只用于看起来像 JSON 的文本，避免把普通文本修成字符串
	if !strings.HasPrefix(body, "{") && !strings.HasPrefix(body, "[") {
		return nil, false
	}
	repaired, err := jsonrepair.JSONRepair(body)
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(repaired), &v); err != nil {
		return nil, false
	}
	return v, true
}

// ExtractJSONObject 与 ExtractJSON 相同，但要求结果是对象。
func ExtractJSONObject(text string) (map[string]interface{}, bool) {
	v, ok := ExtractJSON(text)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]interface{})
	return m, ok
}
