// Package circuitbreaker 实现连续失败计数的熔断器，保护模型调用、数据仓库 HTTP 调用和入站 HTTP 请求。
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State 是熔断器的状态。
type State int

const (
	// Closed 正常放行请求。
	Closed State = iota
	// Open 拒绝所有请求，直到超时后进入 HalfOpen。
	Open
	// HalfOpen 每次只放行一个探测请求，连续成功 successThreshold 次后关闭。
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen 表示熔断器拒绝了请求：处于 Open，或 HalfOpen 下已有探测请求在执行。
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker 是熔断器的接口。
type CircuitBreaker interface {
	// Execute 在熔断器允许时执行 req，req 返回的错误计为失败。
	Execute(req func() (interface{}, error)) (interface{}, error)
	State() State
	Name() string
}

// StateHook 在状态变化后被调用，调用时不持有熔断器的锁。
type StateHook func(name string, from, to State)

// Option 配置熔断器。
type Option func(*breaker)

// WithName 设置熔断器名称，用于指标与日志。
func WithName(name string) Option {
	return func(b *breaker) { b.name = name }
}

// WithStateHook 注册状态变化回调。
func WithStateHook(hook StateHook) Option {
	return func(b *breaker) { b.hooks = append(b.hooks, hook) }
}

// WithClock 替换时间来源，主要用于测试。
func WithClock(now func() time.Time) Option {
	return func(b *breaker) { b.now = now }
}

type breaker struct {
	name             string
	failureThreshold uint32
	successThreshold uint32
	timeout          time.Duration
	now              func() time.Time
	hooks            []StateHook

	mutex     sync.Mutex
	state     State
	failures  uint32
	successes uint32
	openedAt  time.Time
	probing   bool
}

// New 创建熔断器。
// failureThreshold: Closed 状态下连续失败多少次后打开，0 按 1 处理。
// successThreshold: HalfOpen 状态下连续成功多少次后关闭，0 按 1 处理。
// timeout: 打开后经过多久进入 HalfOpen。
func New(failureThreshold, successThreshold uint32, timeout time.Duration, opts ...Option) CircuitBreaker {
	if failureThreshold == 0 {
		failureThreshold = 1
	}
	if successThreshold == 0 {
		successThreshold = 1
	}
	b := &breaker{
		name:             "default",
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *breaker) Name() string { return b.name }

func (b *breaker) State() State {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.state == Open && b.expired() {
		return HalfOpen
	}
	return b.state
}

func (b *breaker) Execute(req func() (interface{}, error)) (interface{}, error) {
	if err := b.before(); err != nil {
		return nil, err
	}
	res, err := req()
	b.after(err == nil)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (b *breaker) expired() bool {
	return !b.now().Before(b.openedAt.Add(b.timeout))
}

func (b *breaker) before() error {
	b.mutex.Lock()
	var changed []transition
	if b.state == Open && b.expired() {
		changed = append(changed, b.setState(HalfOpen))
	}
	var err error
	switch b.state {
	case Open:
		err = ErrCircuitOpen
	case HalfOpen:
		if b.probing {
			err = ErrCircuitOpen
		} else {
			b.probing = true
		}
	}
	b.mutex.Unlock()
	b.fire(changed)
	return err
}

func (b *breaker) after(ok bool) {
	b.mutex.Lock()
	var changed []transition
	switch b.state {
	case Closed:
		if ok {
			b.failures = 0
			break
		}
		b.failures++
		if b.failures >= b.failureThreshold {
			changed = append(changed, b.setState(Open))
		}
	case HalfOpen:
		b.probing = false
		if !ok {
			changed = append(changed, b.setState(Open))
			break
		}
		b.successes++
		if b.successes >= b.successThreshold {
			changed = append(changed, b.setState(Closed))
		}
	}
	b.mutex.Unlock()
	b.fire(changed)
}

type transition struct{ from, to State }

// setState 切换状态并清零计数，调用方持有锁。
func (b *breaker) setState(to State) transition {
	t := transition{from: b.state, to: to}
	b.state = to
	b.failures = 0
	b.successes = 0
	b.probing = false
	if to == Open {
		b.openedAt = b.now()
	}
	return t
}

func (b *breaker) fire(changed []transition) {
	for _, t := range changed {
		for _, hook := range b.hooks {
			hook(b.name, t.from, t.to)
		}
	}
}
