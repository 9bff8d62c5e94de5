// Package service 管理对话轮次的生命周期：解析请求、登记取消标记、驱动编排器并落库。
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"AIAssistant/backend/go/internal/agent"
	"AIAssistant/backend/go/internal/handler"
	"AIAssistant/backend/go/internal/models"
	"AIAssistant/backend/go/internal/orchestrator"
	"AIAssistant/backend/go/internal/store"
	"AIAssistant/backend/go/pkg/logger"
	"AIAssistant/backend/go/pkg/metrics"
)

var (
	// ErrInvalidRequest 表示请求参数错误，API 层返回 400。
	ErrInvalidRequest = errors.New("请求参数错误")
	// ErrTurnNotFound 表示轮次不存在或已经结束。
	ErrTurnNotFound = errors.New("轮次不存在或已结束")
)

// Runner 执行一个轮次，由 orchestrator.Orchestrator 实现。
type Runner interface {
	AutoOrchestrate(ctx context.Context, turn *orchestrator.Turn) *orchestrator.EventStream
}

// Publisher 发布轮次事件，由 kafka.EventPublisher 实现。
type Publisher interface {
	Publish(ctx context.Context, turnID, correlationID string, seq int, ev *models.Event) error
}

// ChatRequest 是发起一个轮次的请求体。
type ChatRequest struct {
	TurnID  string                 `json:"turn_id,omitempty"`
	Query   string                 `json:"query"`
	History []models.Message       `json:"history,omitempty"`
	Action  string                 `json:"action,omitempty"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// TurnHandle 是进行中的轮次。Events 关闭后 Err 返回结束原因。
type TurnHandle struct {
	ID     string
	Events <-chan *models.Event

	done chan struct{}
	err  error
}

// Wait 等待轮次结束。
func (h *TurnHandle) Wait() error {
	<-h.done
	return h.err
}

type activeTurn struct {
	userID    string
	cancelled atomic.Bool
}

// AssistantService 串联编排器与各类持久化，持久化依赖都是可选的。
type AssistantService struct {
	runner    Runner
	defaults  models.TurnOptions
	turns     store.TurnStore
	sink      store.Sink
	publisher Publisher
	log       *logger.Logger

	mu     sync.Mutex
	active map[string]*activeTurn
}

// Option 配置 AssistantService。
type Option func(*AssistantService)

func WithTurnStore(s store.TurnStore) Option {
	return func(a *AssistantService) { a.turns = s }
}

func WithSink(s store.Sink) Option {
	return func(a *AssistantService) { a.sink = s }
}

func WithPublisher(p Publisher) Option {
	return func(a *AssistantService) { a.publisher = p }
}

func WithLogger(l *logger.Logger) Option {
	return func(a *AssistantService) { a.log = l }
}

// NewAssistantService 创建服务，defaults 是请求未指定时使用的轮次配置。
func NewAssistantService(runner Runner, defaults models.TurnOptions, opts ...Option) *AssistantService {
	s := &AssistantService{
		runner:   runner,
		defaults: defaults,
		sink:     store.NopSink{},
		log:      logger.Nop(),
		active:   make(map[string]*activeTurn),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithComponent("assistant_service")
	return s
}

// StartTurn 校验请求并在后台开始执行轮次。ctx 结束视为调用方断开，轮次随之中断。
func (s *AssistantService) StartTurn(ctx context.Context, userID string, req *ChatRequest) (*TurnHandle, error) {
	if req == nil || strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query 不能为空", ErrInvalidRequest)
	}
	opts, err := models.DecodeTurnOptions(req.Options, s.defaults)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	id := req.TurnID
	if id == "" {
		id = uuid.New().String()
	}
	flag := &activeTurn{userID: userID}
	s.mu.Lock()
	if _, exists := s.active[id]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: 轮次 %s 正在执行", ErrInvalidRequest, id)
	}
	s.active[id] = flag
	s.mu.Unlock()
	metrics.Default().ActiveTurns.Inc()

	// 调用方指定的检查器与取消标记同时生效
	external := opts.InterruptionChecker
	opts.InterruptionChecker = func() bool {
		return flag.cancelled.Load() || (external != nil && external())
	}

	log := s.log.WithTurn(id)
	rec := &models.TurnRecord{
		ID:          id,
		UserID:      userID,
		Query:       req.Query,
		Action:      req.Action,
		Status:      models.TurnStatusRunning,
		SubmittedAt: time.Now(),
	}
	if s.turns != nil {
		if err := s.turns.Create(ctx, rec); err != nil {
			log.WithError(models.ErrorInfo{Message: err.Error(), Type: "turn_store"}).Warn("记录轮次失败")
		}
	}

	stream := s.runner.AutoOrchestrate(ctx, &orchestrator.Turn{
		ID:      id,
		UserID:  userID,
		Query:   req.Query,
		History: req.History,
		Action:  req.Action,
		Options: &opts,
	})
	out := make(chan *models.Event)
	h := &TurnHandle{ID: id, Events: out, done: make(chan struct{})}
	go s.pump(ctx, rec, flag, stream, out, h)
	return h, nil
}

// pump 转发事件并处理副作用。调用方断开后继续读完事件流，保证编排器能退出。
func (s *AssistantService) pump(ctx context.Context, rec *models.TurnRecord, flag *activeTurn, stream *orchestrator.EventStream, out chan<- *models.Event, h *TurnHandle) {
	defer close(h.done)
	defer close(out)
	defer s.release(rec.ID)

	log := s.log.WithTurn(rec.ID)
	seq := 0
	var last, final *models.Event
	detached := false
	for ev := range stream.Events() {
		seq++
		if s.publisher != nil {
			if err := s.publisher.Publish(context.WithoutCancel(ctx), rec.ID, rec.UserID, seq, ev); err != nil {
				log.WithError(models.ErrorInfo{Message: err.Error(), Type: "publish"}).Warn("发布事件失败")
			}
		}
		last = ev
		if ev.Type == models.EventFinal {
			final = ev
		}
		if detached {
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			detached = true
			flag.cancelled.Store(true)
		}
	}
	h.err = stream.Err()

	rec.Handler = stream.Handler()
	rec.EventCount = seq
	rec.CompletedAt = time.Now()
	switch {
	case errors.Is(h.err, agent.ErrInterrupted):
		rec.Status = models.TurnStatusCancelled
	case h.err != nil:
		rec.Status = models.TurnStatusFailed
		rec.Error = h.err.Error()
	case last != nil && last.Type == models.EventError:
		rec.Status = models.TurnStatusFailed
		rec.Error = last.Message
	default:
		rec.Status = models.TurnStatusSuccess
	}
	if final != nil {
		rec.File = final.File
	}

	// 落库不受调用方断开的影响
	bg := context.WithoutCancel(ctx)
	if s.turns != nil {
		if err := s.turns.Finish(bg, rec); err != nil {
			log.WithError(models.ErrorInfo{Message: err.Error(), Type: "turn_store"}).Warn("更新轮次状态失败")
		}
	}
	if final != nil {
		if err := s.sink.SaveReport(bg, reportRecord(rec, final)); err != nil {
			log.WithError(models.ErrorInfo{Message: err.Error(), Type: "sink"}).Warn("保存报告日志失败")
		}
		if tl := trainingLog(rec, final); tl != nil {
			if err := s.sink.SaveTraining(bg, tl); err != nil {
				log.WithError(models.ErrorInfo{Message: err.Error(), Type: "sink"}).Warn("保存训练日志失败")
			}
		}
	}
	log.WithPayload(map[string]interface{}{"status": rec.Status, "handler": rec.Handler, "events": seq}).Info("轮次结束")
}

func reportRecord(rec *models.TurnRecord, final *models.Event) *models.ReportRecord {
	r := &models.ReportRecord{
		TurnID:   rec.ID,
		UserID:   rec.UserID,
		Query:    rec.Query,
		Response: final.Message,
	}
	if final.File != nil {
		r.FileName = final.File.Filename
		r.FileURL = final.File.URL
	}
	if sum := models.AnalysisSummaryFrom(final.Result); sum != nil {
		r.AssistantID = sum.AssistantID
		r.Prompt = sum.Prompt
		if sum.Response != "" {
			r.Response = sum.Response
		}
	}
	return r
}

// trainingLog 只为分析助手的轮次生成训练日志，缓存回放的轮次不记录。
func trainingLog(rec *models.TurnRecord, final *models.Event) *models.TrainingLog {
	if rec.Handler != handler.NameAgent {
		return nil
	}
	sum := models.AnalysisSummaryFrom(final.Result)
	if sum == nil {
		return nil
	}
	extra := map[string]interface{}{"query": rec.Query}
	if final.File != nil {
		extra["file_url"] = final.File.URL
	}
	raw, _ := json.Marshal(extra)
	return &models.TrainingLog{
		TurnID:        rec.ID,
		UserID:        rec.UserID,
		AssistantID:   sum.AssistantID,
		AssistantName: sum.AssistantName,
		Success:       rec.Status == models.TurnStatusSuccess,
		Prompt:        sum.Prompt,
		Response:      sum.Response,
		Extra:         datatypes.JSON(raw),
	}
}

func (s *AssistantService) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, id)
	metrics.Default().ActiveTurns.Dec()
}

// Cancel 标记轮次中断。userID 不为空时只能取消自己的轮次。
func (s *AssistantService) Cancel(id, userID string) error {
	s.mu.Lock()
	flag, ok := s.active[id]
	s.mu.Unlock()
	if !ok || (userID != "" && flag.userID != "" && flag.userID != userID) {
		return ErrTurnNotFound
	}
	flag.cancelled.Store(true)
	s.log.WithTurn(id).Info("轮次已标记中断")
	return nil
}

// Active 返回进行中的轮次数。
func (s *AssistantService) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// GetTurn 查询轮次记录，未配置轮次存储时返回 ErrTurnNotFound。
func (s *AssistantService) GetTurn(ctx context.Context, id string) (*models.TurnRecord, error) {
	if s.turns == nil {
		return nil, ErrTurnNotFound
	}
	rec, err := s.turns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrTurnNotFound
	}
	return rec, nil
}

// ListTurns 分页列出用户的轮次记录，按提交时间倒序。limit 超出范围时取 20。
func (s *AssistantService) ListTurns(ctx context.Context, userID string, page, limit int) ([]*models.TurnRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: 缺少用户 ID", ErrInvalidRequest)
	}
	if s.turns == nil {
		return []*models.TurnRecord{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if page < 1 {
		page = 1
	}
	recs, err := s.turns.GetByUserID(ctx, userID, page, limit)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []*models.TurnRecord{}
	}
	return recs, nil
}
