package orchestrator

import (
	"AIAssistant/backend/go/internal/models"
)

// streamBuffer 是事件通道的容量。
const streamBuffer = 64

// EventStream 是一个轮次的事件流。生产者是唯一的写入方，事件流结束时关闭通道。
type EventStream struct {
	ch      chan *models.Event
	err     error
	handler string
}

func newEventStream() *EventStream {
	return &EventStream{ch: make(chan *models.Event, streamBuffer)}
}

// Events 返回事件通道，通道关闭表示轮次结束。
func (s *EventStream) Events() <-chan *models.Event {
	return s.ch
}

// Err 在通道关闭后返回轮次的结束原因。被取消时为 agent.ErrInterrupted。
func (s *EventStream) Err() error {
	return s.err
}

// Handler 在通道关闭后返回处理本轮的处理器名称，命中缓存时为 "cache"。
func (s *EventStream) Handler() string {
	return s.handler
}

// Collect 读完整个事件流。
func (s *EventStream) Collect() ([]*models.Event, error) {
	var events []*models.Event
	for ev := range s.ch {
		events = append(events, ev)
	}
	return events, s.err
}
