// Package task 定义对话轮次中的任务，以及按顺序驱动任务的管理器。
package task

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidTask 表示任务列表不合法。
var ErrInvalidTask = errors.New("任务定义不合法")

// Link 把上一个任务结果中的 Source 字段传给当前任务的 Target 参数。
type Link struct {
	Source string
	Target string
}

// Task 是流水线中的一个步骤，由 Kind 指定执行它的子智能体。
type Task struct {
	ID          string
	Name        string
	Description string
	Kind        string
	Params      map[string]interface{}
	Links       []Link
}

// New 创建一个任务，ID 的格式为 <kind>_<uuid>。
func New(name, description, kind string, params map[string]interface{}, links ...Link) *Task {
	if params == nil {
		params = make(map[string]interface{})
	}
	return &Task{
		ID:          fmt.Sprintf("%s_%s", kind, uuid.NewString()),
		Name:        name,
		Description: description,
		Kind:        kind,
		Params:      params,
		Links:       links,
	}
}

// ResolveParams 合并静态参数与上一个任务的结果。
// 来源字段存在时覆盖同名的静态参数，不存在时目标参数保持不变。
func (t *Task) ResolveParams(prev map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(t.Params)+len(t.Links))
	for k, v := range t.Params {
		out[k] = v
	}
	for _, l := range t.Links {
		if v, ok := prev[l.Source]; ok {
			out[l.Target] = v
		}
	}
	return out
}

// Prompt 返回提供给任务计划的描述。
func (t *Task) Prompt() map[string]interface{} {
	return map[string]interface{}{
		"name":        t.Name,
		"description": t.Description,
		"kind":        t.Kind,
	}
}

// Validate 检查任务列表：类型不能为空，第一个任务没有可以引用的结果。
func Validate(tasks []*Task) error {
	for i, t := range tasks {
		if t == nil || t.Kind == "" {
			return fmt.Errorf("%w: 第 %d 个任务缺少执行类型", ErrInvalidTask, i+1)
		}
		if i == 0 && len(t.Links) > 0 {
			return fmt.Errorf("%w: 第一个任务 %s 不能引用上一个任务的结果", ErrInvalidTask, t.Name)
		}
		for _, l := range t.Links {
			if l.Source == "" || l.Target == "" {
				return fmt.Errorf("%w: 任务 %s 的参数映射不完整", ErrInvalidTask, t.Name)
			}
		}
	}
	return nil
}
