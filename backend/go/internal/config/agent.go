package config

import "AIAssistant/backend/go/internal/models"

// TurnDefaults 把进程级配置转换为轮次配置的默认值。
func (a AgentConfig) TurnDefaults() models.TurnOptions {
	opts := models.DefaultTurnOptions()
	if a.LLMResponseType != "" {
		opts.LLMResponseType = models.ResponseMode(a.LLMResponseType)
	}
	opts.IsCacheRequest = a.IsCacheRequest
	opts.CacheTTL = a.CacheTTL
	opts.MaxRetryAttempts = a.MaxRetryAttempts
	if a.SplitMaxTokens > 0 {
		opts.SplitMaxTokens = a.SplitMaxTokens
	}
	if a.SplitChunkSize > 0 {
		opts.SplitChunkSize = a.SplitChunkSize
	}
	opts.SplitChunkOverlap = a.SplitChunkOverlap
	if a.SplitMaxItemsPerChunk > 0 {
		opts.SplitMaxItemsPerChunk = a.SplitMaxItemsPerChunk
	}
	return opts
}
