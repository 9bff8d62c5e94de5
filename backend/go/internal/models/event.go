package models

// EventType 是事件的类型，消费者依据它进行路由。
type EventType string

const (
	EventLog       EventType = "log"
	EventPlan      EventType = "plan"
	EventChat      EventType = "chat"
	EventStep      EventType = "step"
	EventSummarize EventType = "summarize"
	EventFile      EventType = "file"
	EventFinal     EventType = "final"
	EventError     EventType = "error"
	EventCompleted EventType = "completed"
	EventRunning   EventType = "running"

	// 以下只出现在对外输出中
	EventMDInfo EventType = "md_info"
	EventInfo   EventType = "info"
)

// EventStatus 是事件状态。
type EventStatus string

const (
	StatusStarted   EventStatus = "started"
	StatusRunning   EventStatus = "running"
	StatusCompleted EventStatus = "completed"
	StatusError     EventStatus = "error"
	StatusFailed    EventStatus = "failed"
	StatusSuccess   EventStatus = "success"
)

// step 事件的子类型
const (
	StepTitle      = "title"
	StepCompletion = "completion"
	StepSuccess    = "success"
	StepExecute    = "execute"
)

// Event 是一次对话轮次中产生的增量结果，也是核心对外的唯一输出词汇。
type Event struct {
	Type       EventType       `json:"type"`
	TypeName   string          `json:"type_name,omitempty"`
	Name       string          `json:"name,omitempty"`
	Title      string          `json:"title,omitempty"`
	Status     EventStatus     `json:"status,omitempty"`
	Message    string          `json:"message,omitempty"`
	Content    interface{}     `json:"content,omitempty"`
	Output     interface{}     `json:"output,omitempty"`
	Result     interface{}     `json:"result,omitempty"`
	File       *FileDescriptor `json:"file,omitempty"`
	Task       string          `json:"task,omitempty"`
	FailedTask string          `json:"failed_task,omitempty"`
	Error      string          `json:"error,omitempty"`
	ChunkIndex int             `json:"chunk_index,omitempty"`
	ChunkTotal int             `json:"chunk_total,omitempty"`
}

// IsTerminal 报告该事件是否会结束一个轮次的事件流。
func (e *Event) IsTerminal() bool {
	switch e.Type {
	case EventFinal, EventCompleted, EventError:
		return true
	}
	return false
}

// Clone 返回事件的浅拷贝。
func (e *Event) Clone() *Event {
	c := *e
	if e.File != nil {
		f := *e.File
		c.File = &f
	}
	return &c
}

// NewError 构造一个错误事件。
func NewError(name, message string) *Event {
	return &Event{Type: EventError, Name: name, Status: StatusError, Message: message}
}

// NewLog 构造一个日志事件。
func NewLog(title string, content interface{}) *Event {
	return &Event{Type: EventLog, Title: title, Content: content}
}
