package models

import (
	"encoding/json"
	"strconv"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AIAssistant 是后台配置的分析助手，对应 ai_assistant 表。
type AIAssistant struct {
	gorm.Model
	Name                 string         `gorm:"size:255;not null;index"`
	Description          string         `gorm:"size:2048"`
	ModelName            string         `gorm:"size:128"`
	ModelDefinition      string         `gorm:"type:text"`
	OutputFormatDocument string         `gorm:"type:text"`
	OutputFormatTable    string         `gorm:"type:text"`
	QueryTypes           datatypes.JSON // []string
	Enabled              bool           `gorm:"default:true"`
}

func (AIAssistant) TableName() string {
	return "ai_assistant"
}

// Assistant 是助手在智能体之间传递的视图。
type Assistant struct {
	ID                   string   `json:"assistant_id"`
	Name                 string   `json:"name"`
	Description          string   `json:"description"`
	Model                string   `json:"model,omitempty"`
	ModelDefinition      string   `json:"model_definition"`
	OutputFormatDocument string   `json:"output_format_document,omitempty"`
	OutputFormatTable    string   `json:"output_format_table,omitempty"`
	QueryTypes           []string `json:"query_types"`
}

// View 把数据库行转换为视图，QueryTypes 解析失败时视为空。
func (a *AIAssistant) View() *Assistant {
	v := &Assistant{
		ID:                   strconv.FormatUint(uint64(a.ID), 10),
		Name:                 a.Name,
		Description:          a.Description,
		Model:                a.ModelName,
		ModelDefinition:      a.ModelDefinition,
		OutputFormatDocument: a.OutputFormatDocument,
		OutputFormatTable:    a.OutputFormatTable,
	}
	if len(a.QueryTypes) > 0 {
		_ = json.Unmarshal(a.QueryTypes, &v.QueryTypes)
	}
	return v
}

// ToMap 转换为通用结构，作为任务结果的一部分向下游传递。
func (a *Assistant) ToMap() map[string]interface{} {
	types := make([]interface{}, len(a.QueryTypes))
	for i, t := range a.QueryTypes {
		types[i] = t
	}
	return map[string]interface{}{
		"assistant_id":           a.ID,
		"name":                   a.Name,
		"description":            a.Description,
		"model":                  a.Model,
		"model_definition":       a.ModelDefinition,
		"output_format_document": a.OutputFormatDocument,
		"output_format_table":    a.OutputFormatTable,
		"query_types":            types,
	}
}

// AssistantFromMap 是 ToMap 的逆操作。
func AssistantFromMap(m map[string]interface{}) *Assistant {
	if m == nil {
		return nil
	}
	a := &Assistant{}
	a.ID, _ = m["assistant_id"].(string)
	a.Name, _ = m["name"].(string)
	a.Description, _ = m["description"].(string)
	a.Model, _ = m["model"].(string)
	a.ModelDefinition, _ = m["model_definition"].(string)
	a.OutputFormatDocument, _ = m["output_format_document"].(string)
	a.OutputFormatTable, _ = m["output_format_table"].(string)
	switch qt := m["query_types"].(type) {
	case []string:
		a.QueryTypes = append(a.QueryTypes, qt...)
	case []interface{}:
		for _, t := range qt {
			if s, ok := t.(string); ok {
				a.QueryTypes = append(a.QueryTypes, s)
			}
		}
	}
	return a
}
