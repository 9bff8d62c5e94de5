package models

import "strconv"

// IntentResult 是意图识别智能体的输出。
type IntentResult struct {
	SelectedService string                 `json:"selected_service"`
	Parameters      map[string]interface{} `json:"parameters,omitempty"`
	DataSources     map[string]interface{} `json:"data_sources,omitempty"`
	Confidence      float64                `json:"confidence,omitempty"`
	Reasoning       string                 `json:"reasoning,omitempty"`
	AssistantID     string                 `json:"value,omitempty"` // 选中助手的ID
	AssistantName   string                 `json:"assistant_name,omitempty"`
	Tip             string                 `json:"tip,omitempty"`
	DoNext          bool                   `json:"do_next,omitempty"`
}

// IntentFromMap 从模型返回的 JSON 对象构造意图结果，缺失或类型不符的字段保持零值。
func IntentFromMap(m map[string]interface{}) *IntentResult {
	if m == nil {
		return nil
	}
	r := &IntentResult{}
	r.SelectedService, _ = m["selected_service"].(string)
	r.Parameters, _ = m["parameters"].(map[string]interface{})
	r.DataSources, _ = m["data_sources"].(map[string]interface{})
	r.Reasoning, _ = m["reasoning"].(string)
	r.AssistantName, _ = m["assistant_name"].(string)
	r.Tip, _ = m["tip"].(string)
	r.DoNext, _ = m["do_next"].(bool)
	switch c := m["confidence"].(type) {
	case float64:
		r.Confidence = c
	case int:
		r.Confidence = float64(c)
	}
	switch v := m["value"].(type) {
	case string:
		r.AssistantID = v
	case float64:
		r.AssistantID = strconv.FormatInt(int64(v), 10)
	case int:
		r.AssistantID = strconv.Itoa(v)
	}
	return r
}

// ToMap 把意图结果转换回通用结构，用于事件输出和参数传递。
func (r *IntentResult) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"selected_service": r.SelectedService,
		"confidence":       r.Confidence,
		"do_next":          r.DoNext,
	}
	if r.Parameters != nil {
		m["parameters"] = r.Parameters
	}
	if r.DataSources != nil {
		m["data_sources"] = r.DataSources
	}
	if r.Reasoning != "" {
		m["reasoning"] = r.Reasoning
	}
	if r.AssistantID != "" {
		m["value"] = r.AssistantID
	}
	if r.AssistantName != "" {
		m["assistant_name"] = r.AssistantName
	}
	if r.Tip != "" {
		m["tip"] = r.Tip
	}
	return m
}
