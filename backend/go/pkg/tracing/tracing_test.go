package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AIAssistant/backend/go/internal/config"
)

func TestInitDisabledIsIdempotent(t *testing.T) {
	require.NoError(t, Init(config.TracingConfig{Enabled: false}, "test"))
	// 第二次调用不会重新初始化
	require.NoError(t, Init(config.TracingConfig{Enabled: true, Endpoint: "::bad::"}, "test"))

	ctx, span := StartSpan(context.Background(), "unit")
	assert.NotNil(t, ctx)
	span.End()
	assert.NoError(t, Shutdown(context.Background()))
}
