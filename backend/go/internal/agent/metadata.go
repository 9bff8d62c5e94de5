package agent

// AgentMetadata 描述一种子智能体的能力，用于规划提示词与服务目录。
type AgentMetadata struct {
	Kind              string `json:"kind"`               // 注册表中的唯一类型名
	Capability        string `json:"capability"`         // 能力的总体描述
	InputDescription  string `json:"input_description"`  // 所需参数说明
	OutputDescription string `json:"output_description"` // 结果说明
}
