package subagents

import (
	"context"
	"fmt"
	"sync"
	"time"

	"AIAssistant/backend/go/internal/agent"
	"AIAssistant/backend/go/internal/config"
	"AIAssistant/backend/go/internal/llm/llmtest"
	"AIAssistant/backend/go/internal/models"
)

type fakeDirectory struct {
	items []*models.Assistant
}

func (d *fakeDirectory) Get(ctx context.Context, id string) (*models.Assistant, error) {
	for _, a := range d.items {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (d *fakeDirectory) FindByName(ctx context.Context, name string) (*models.Assistant, error) {
	for _, a := range d.items {
		if a.Name == name {
			return a, nil
		}
	}
	return nil, nil
}

func (d *fakeDirectory) List(ctx context.Context) ([]*models.Assistant, error) {
	return d.items, nil
}

type fakeQuery struct {
	result *models.QueryResult
	last   *models.QueryRequest
}

func (q *fakeQuery) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResult, error) {
	q.last = req
	return q.result, nil
}

type fakeExporter struct {
	mu   sync.Mutex
	reqs []*models.ExportRequest
}

func (e *fakeExporter) Export(ctx context.Context, req *models.ExportRequest) (*models.FileDescriptor, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reqs = append(e.reqs, req)
	ext := map[string]string{models.FormatMarkdown: "md", models.FormatXLSX: "xlsx", models.FormatDOCX: "docx"}[req.Format]
	return &models.FileDescriptor{Filename: fmt.Sprintf("%s.%s", req.Name, ext), Format: req.Format, TaskID: req.TaskID}, nil
}

type collector struct {
	events []*models.Event
}

func (c *collector) emit(ev *models.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func (c *collector) ofType(t models.EventType) []*models.Event {
	var out []*models.Event
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (c *collector) last() *models.Event {
	if len(c.events) == 0 {
		return nil
	}
	return c.events[len(c.events)-1]
}

func (c *collector) text(t models.EventType) string {
	s := ""
	for _, e := range c.ofType(t) {
		s += e.Message
	}
	return s
}

var fixedNow = time.Date(2025, 9, 8, 10, 0, 0, 0, time.UTC)

func newDeps(model *llmtest.Scripted) *Deps {
	return &Deps{
		LLM:        model,
		Assistants: &fakeDirectory{},
		DataQuery:  &fakeQuery{},
		Exporter:   &fakeExporter{},
		Config:     config.Default().Agent,
		Services: func() []Service {
			return []Service{{Name: "chat", Description: "通用对话"}, {Name: "report", Description: "报告"}}
		},
		Now: func() time.Time { return fixedNow },
	}
}

func input(query string, params map[string]interface{}) *agent.Input {
	opts := models.DefaultTurnOptions()
	return &agent.Input{TurnID: "turn-1", Query: query, Params: params, Options: &opts}
}
