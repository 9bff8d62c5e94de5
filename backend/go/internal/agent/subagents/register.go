package subagents

import (
	"AIAssistant/backend/go/internal/agent"
)

// Register 把所有子智能体注册到注册表中。每次创建都得到一个新实例。
func Register(reg *agent.Registry, deps *Deps) {
	reg.Register(agent.AgentMetadata{
		Kind:              KindIntent,
		Capability:        "识别用户意图，选择服务、助手与数据来源",
		InputDescription:  "用户提问与历史对话，可选 action",
		OutputDescription: "意图结果：selected_service、data_sources、value 等",
	}, func() agent.SubAgent { return NewIntentRecognizer(deps) })

	reg.Register(agent.AgentMetadata{
		Kind:              KindExtractParameters,
		Capability:        "按提示词提取结构化参数",
		InputDescription:  "提取提示词与用户提问",
		OutputDescription: "参数对象",
	}, func() agent.SubAgent { return NewParameterExtractor(deps) })

	reg.Register(agent.AgentMetadata{
		Kind:              KindAssistant,
		Capability:        "获取分析助手的定义",
		InputDescription:  "assistant_id 或 assistant_name",
		OutputDescription: "助手信息，结果中的 assistant 供后续任务使用",
	}, func() agent.SubAgent { return NewAssistantAgent(deps) })

	reg.Register(agent.AgentMetadata{
		Kind:              KindGetUsers,
		Capability:        "从数据仓库查询用户数据",
		InputDescription:  "data_sources，可选 crm_user_id 与 assistant",
		OutputDescription: "按查询类型渲染的 Markdown 列表，结果中的 request 为实际请求",
	}, func() agent.SubAgent { return NewDataFetcher(deps) })

	reg.Register(agent.AgentMetadata{
		Kind:              KindDataAnalyze,
		Capability:        "分析数据并生成报告，数据过大时分片归并",
		InputDescription:  "analyze_data，可选 assistant、data_request、intent_data",
		OutputDescription: "分析报告文本，保存文件时结果中包含 file",
	}, func() agent.SubAgent { return NewDataAnalyzer(deps) })

	reg.Register(agent.AgentMetadata{
		Kind:              KindPlanner,
		Capability:        "根据任务列表生成任务计划",
		InputDescription:  "tasks",
		OutputDescription: "任务计划文本",
	}, func() agent.SubAgent { return NewPlanner(deps) })

	reg.Register(agent.AgentMetadata{
		Kind:              KindSummarizer,
		Capability:        "总结最后一个任务的结果",
		InputDescription:  "data",
		OutputDescription: "总结文本",
	}, func() agent.SubAgent { return NewSummarizer(deps) })

	reg.Register(agent.AgentMetadata{
		Kind:              KindGeneralChat,
		Capability:        "通用对话",
		InputDescription:  "用户提问与历史对话",
		OutputDescription: "回答文本",
	}, func() agent.SubAgent { return NewGeneralChat(deps) })
}

// NewRegistry 创建并注册所有子智能体。
func NewRegistry(deps *Deps) *agent.Registry {
	reg := agent.NewRegistry()
	Register(reg, deps)
	return reg
}
