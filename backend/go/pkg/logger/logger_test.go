package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AIAssistant/backend/go/internal/models"
)

func TestWithDoesNotMutateReceiver(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	base.SetFormatter(&logrus.JSONFormatter{})
	l := &Logger{entry: logrus.NewEntry(base).WithField("service_name", "svc")}

	l.WithTurn("t-1").WithError(models.ErrorInfo{Message: "boom"}).Error("failed")
	l.Info("plain")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first, second map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "t-1", first["turn_id"])
	assert.NotNil(t, first["error"])
	assert.NotContains(t, second, "turn_id")
	assert.NotContains(t, second, "error")
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() { Nop().WithComponent("x").Info("discarded") })
}
