package agent

// State 是子智能体的生命周期状态。
type State int

const (
	StateInit State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Terminal 报告状态是否为终态。
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// canTransition 只允许 INIT -> RUNNING -> 终态，INIT 也可以直接进入取消或失败。
func canTransition(from, to State) bool {
	switch from {
	case StateInit:
		return to == StateRunning || to == StateCancelled || to == StateFailed
	case StateRunning:
		return to.Terminal()
	}
	return false
}
