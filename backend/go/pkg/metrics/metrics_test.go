package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObservers(t *testing.T) {
	m := MustNew(prometheus.NewRegistry())

	m.ObserveLLMCall("stream", nil)
	m.ObserveLLMCall("stream", errors.New("x"))
	m.ObserveCache("turn", true)
	m.ObserveTurn("report", "success")
	m.ObserveTask("get_users", "COMPLETED", 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCalls.WithLabelValues("stream", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCalls.WithLabelValues("stream", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits.WithLabelValues("turn", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Turns.WithLabelValues("report", "success")))
}

func TestDefaultIsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}
