package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReportRecord 是一次报告生成的结果记录，只追加不修改。
type ReportRecord struct {
	gorm.Model
	TurnID      string         `gorm:"size:64;index"`
	UserID      string         `gorm:"size:64;index"`
	AssistantID string         `gorm:"size:64"`
	Query       string         `gorm:"type:text"`
	Score       float64        `gorm:"default:0"`
	Tags        datatypes.JSON // []string
	Prompt      string         `gorm:"type:longtext"`
	Response    string         `gorm:"type:longtext"`
	FileName    string         `gorm:"size:255"`
	FileURL     string         `gorm:"size:1024"`
}

func (ReportRecord) TableName() string {
	return "ai_assistant_report_log"
}

// TrainingLog 记录分析助手一次分析的输入输出，供离线评估与提示词调优。
type TrainingLog struct {
	gorm.Model
	TurnID        string `gorm:"size:64;index"`
	UserID        string `gorm:"size:64;index"`
	AssistantID   string `gorm:"size:64;index"`
	AssistantName string `gorm:"size:128"`
	Success       bool
	Prompt        string `gorm:"type:longtext"`
	Response      string `gorm:"type:longtext"`
	Extra         datatypes.JSON
}

func (TrainingLog) TableName() string {
	return "ai_training_log"
}

// AnalysisSummary 随分析助手的 final 事件输出，服务层据此写入训练日志。
type AnalysisSummary struct {
	AssistantID   string `json:"assistant_id"`
	AssistantName string `json:"assistant_name,omitempty"`
	Prompt        string `json:"prompt,omitempty"`
	Response      string `json:"response,omitempty"`
}

// AnalysisSummaryFrom 从事件的 Result 中取出 AnalysisSummary，回放的事件经过 JSON 编解码后是 map。
func AnalysisSummaryFrom(v interface{}) *AnalysisSummary {
	switch r := v.(type) {
	case *AnalysisSummary:
		return r
	case map[string]interface{}:
		s := &AnalysisSummary{}
		s.AssistantID, _ = r["assistant_id"].(string)
		s.AssistantName, _ = r["assistant_name"].(string)
		s.Prompt, _ = r["prompt"].(string)
		s.Response, _ = r["response"].(string)
		if s.AssistantID == "" && s.Prompt == "" && s.Response == "" {
			return nil
		}
		return s
	}
	return nil
}
