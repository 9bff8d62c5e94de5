package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AIAssistant/backend/go/internal/agent"
	"AIAssistant/backend/go/internal/agent/subagents"
	"AIAssistant/backend/go/internal/assistant_service/service"
	"AIAssistant/backend/go/internal/handler"
	"AIAssistant/backend/go/internal/models"
	"AIAssistant/backend/go/internal/orchestrator"
)

type stub struct {
	agent.Base
	body func(s *stub, in *agent.Input) error
}

func (s *stub) Execute(ctx context.Context, in *agent.Input, emit agent.Emitter) error {
	return s.Run(ctx, in, emit, func(ctx context.Context) error { return s.body(s, in) })
}

func register(reg *agent.Registry, kind string, body func(s *stub, in *agent.Input) error) {
	reg.Register(agent.AgentMetadata{Kind: kind, Capability: kind}, func() agent.SubAgent {
		return &stub{Base: agent.NewBase(kind, nil, nil), body: body}
	})
}

func newTestAPI(opts ...Option) *API {
	gin.SetMode(gin.TestMode)
	agents := agent.NewRegistry()
	register(agents, subagents.KindIntent, func(s *stub, in *agent.Input) error {
		return s.Complete(map[string]interface{}{"selected_service": "chat"}, "")
	})
	register(agents, subagents.KindGeneralChat, func(s *stub, in *agent.Input) error {
		for in.Query == "等待" {
			if err := s.CheckInterruption(); err != nil {
				return err
			}
			if err := s.Emit(&models.Event{Type: models.EventChat, Status: models.StatusRunning, Message: "."}); err != nil {
				return err
			}
			time.Sleep(time.Millisecond)
		}
		if err := s.Emit(&models.Event{Type: models.EventChat, Status: models.StatusRunning, Message: "你好"}); err != nil {
			return err
		}
		return s.Complete("你好", "")
	})
	handlers := handler.NewDefaultRegistry(&handler.Deps{})
	svc := service.NewAssistantService(orchestrator.New(agents, handlers), models.DefaultTurnOptions())
	return NewAPI(svc, handlers, agents, opts...)
}

func newServer(t *testing.T, a *API) *httptest.Server {
	srv := httptest.NewServer(NewRouter(gin.TestMode, a, nil))
	t.Cleanup(srv.Close)
	return srv
}

type sseFrame struct {
	name string
	data string
}

func readFrames(resp *http.Response) []sseFrame {
	var frames []sseFrame
	var name string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			frames = append(frames, sseFrame{name: name, data: strings.TrimPrefix(line, "data:")})
			name = ""
		}
	}
	return frames
}

func readSSE(t *testing.T, resp *http.Response) []*models.Event {
	t.Helper()
	var events []*models.Event
	for _, f := range readFrames(resp) {
		if f.name != "message" {
			continue
		}
		var ev models.Event
		require.NoError(t, json.Unmarshal([]byte(f.data), &ev))
		events = append(events, &ev)
	}
	return events
}

func TestChatHandler_StreamsEvents(t *testing.T) {
	srv := newServer(t, newTestAPI())

	body := `{"turn_id":"t1","query":"hello","options":{"llm_response_type":"stream"}}`
	resp, err := http.Post(srv.URL+"/api/v1/assistant/chat", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "t1", resp.Header.Get(TurnHeader))
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	events := readSSE(t, resp)
	require.NotEmpty(t, events)
	var chat []string
	for _, ev := range events {
		if ev.Type == models.EventChat {
			chat = append(chat, ev.Message)
		}
	}
	assert.Equal(t, []string{"你好"}, chat)
	assert.Equal(t, models.EventCompleted, events[len(events)-1].Type)
}

func TestChatHandler_Cancelled(t *testing.T) {
	srv := newServer(t, newTestAPI())

	resp, err := http.Post(srv.URL+"/api/v1/assistant/chat", "application/json", strings.NewReader(`{"turn_id":"t-wait","query":"等待"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// 读到第一条事件后再取消
	br := bufio.NewReader(resp.Body)
	for {
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data:") {
			break
		}
	}
	cancelResp, err := http.Post(srv.URL+"/api/v1/assistant/turns/t-wait/cancel", "application/json", nil)
	require.NoError(t, err)
	cancelResp.Body.Close()
	assert.Equal(t, http.StatusAccepted, cancelResp.StatusCode)

	frames := readFrames(&http.Response{Body: io.NopCloser(br)})
	require.NotEmpty(t, frames)
	last := frames[len(frames)-1]
	assert.Equal(t, CancelledEvent, last.name)
	assert.JSONEq(t, `{"turn_id":"t-wait","status":"cancelled"}`, last.data)
	for _, f := range frames[:len(frames)-1] {
		var ev models.Event
		require.NoError(t, json.Unmarshal([]byte(f.data), &ev))
		assert.False(t, ev.IsTerminal(), "中断的轮次没有终止事件")
	}
}

func TestChatHandler_BadRequests(t *testing.T) {
	srv := newServer(t, newTestAPI())
	cases := map[string]string{
		"malformed":      `{"query":`,
		"empty query":    `{"query":""}`,
		"unknown option": `{"query":"hi","options":{"nope":true}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/assistant/chat", "application/json", strings.NewReader(body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestCancelHandler_UnknownTurn(t *testing.T) {
	a := newTestAPI()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assistant/turns/none/cancel", nil)
	NewRouter(gin.TestMode, a, nil).ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTurnHandler_NoStore(t *testing.T) {
	a := newTestAPI()
	w := httptest.NewRecorder()
	NewRouter(gin.TestMode, a, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/assistant/turns/x", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListTurnsHandler(t *testing.T) {
	a := newTestAPI()
	router := NewRouter(gin.TestMode, a, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/assistant/turns", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/assistant/turns?page=2", nil)
	req.Header.Set(UserHeader, "u1")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"turns":[],"page":2}`, w.Body.String())
}

func TestHandlersHandler(t *testing.T) {
	a := newTestAPI()
	w := httptest.NewRecorder()
	NewRouter(gin.TestMode, a, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/assistant/handlers", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Handlers []handlerInfo          `json:"handlers"`
		Agents   []agent.AgentMetadata  `json:"agents"`
		Extra    map[string]interface{} `json:"instances"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	names := make([]string, len(body.Handlers))
	for i, h := range body.Handlers {
		names[i] = h.Name
	}
	assert.ElementsMatch(t, []string{"agent", "chat", "mcp", "report"}, names)
	assert.Len(t, body.Agents, 2)
	assert.Nil(t, body.Extra)
}

func TestHealthHandler(t *testing.T) {
	ok := newTestAPI(WithHealthCheck("redis", func(context.Context) error { return nil }))
	w := httptest.NewRecorder()
	NewRouter(gin.TestMode, ok, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"ok"`)

	bad := newTestAPI(
		WithHealthCheck("redis", func(context.Context) error { return nil }),
		WithHealthCheck("mongodb", func(context.Context) error { return errors.New("down") }),
	)
	w = httptest.NewRecorder()
	NewRouter(gin.TestMode, bad, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"mongodb":"down"`)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
}

func TestMetricsEndpoint(t *testing.T) {
	a := newTestAPI()
	w := httptest.NewRecorder()
	NewRouter(gin.TestMode, a, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/assistant"
}

func TestWebSocketHandler(t *testing.T) {
	srv := newServer(t, newTestAPI())
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(ClientMessage{ChatRequest: service.ChatRequest{Query: "hello"}}))

	var events []*models.Event
	for {
		var ev models.Event
		if err := conn.ReadJSON(&ev); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "意外的关闭: %v", err)
			break
		}
		events = append(events, &ev)
	}
	require.NotEmpty(t, events)
	assert.Equal(t, models.EventCompleted, events[len(events)-1].Type)
}

func TestWebSocketHandler_Cancel(t *testing.T) {
	srv := newServer(t, newTestAPI())
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(ClientMessage{ChatRequest: service.ChatRequest{Query: "等待"}}))
	var ev models.Event
	require.NoError(t, conn.ReadJSON(&ev))
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "cancel"}))

	for {
		var ev models.Event
		err := conn.ReadJSON(&ev)
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, CloseTurnCancelled), "意外的关闭: %v", err)
			break
		}
		assert.False(t, ev.IsTerminal(), "中断的轮次没有终止事件")
	}
}

func TestWebSocketHandler_RejectedRequest(t *testing.T) {
	srv := newServer(t, newTestAPI())
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	var buf bytes.Buffer
	buf.WriteString(`{"query":"hi","options":{"nope":1}}`)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, buf.Bytes()))

	var ev models.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, models.EventError, ev.Type)
	assert.Contains(t, ev.Message, "nope")

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
}
