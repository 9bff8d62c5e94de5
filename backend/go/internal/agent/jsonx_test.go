package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	m, ok := ExtractJSONObject("结果如下：\n```json\n{\"selected_service\": \"chat\"}\n```")
	assert.True(t, ok)
	assert.Equal(t, "chat", m["selected_service"])

	m, ok = ExtractJSONObject(`{"a": 1}`)
	assert.True(t, ok)
	assert.Equal(t, float64(1), m["a"])

	// 尾逗号与单引号由修复处理
	m, ok = ExtractJSONObject(`{'a': 'x', 'b': [1, 2,],}`)
	assert.True(t, ok)
	assert.Equal(t, "x", m["a"])

	_, ok = ExtractJSONObject("抱歉，我无法回答")
	assert.False(t, ok)

	_, ok = ExtractJSONObject("[1, 2]")
	assert.False(t, ok, "数组不是对象")

	_, ok = ExtractJSON("")
	assert.False(t, ok)
}
