package mcp_host

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AIAssistant/backend/go/internal/config"
)

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.MCPServerConfig{
		Transport: "stdio",
		Command:   "warehouse-mcp",
		Args:      []string{"--readonly"},
		Env:       map[string]string{"B": "2", "A": "1"},
	})
	assert.Equal(t, "data", opts.ServerName)
	assert.Equal(t, []string{"A=1", "B=2"}, opts.Env)
	assert.Equal(t, "stdio", opts.TransportType)
}

func TestCall_NoServers(t *testing.T) {
	h := NewHost()
	_, err := h.Call(context.Background(), "query_data", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestConnect_UnsupportedTransport(t *testing.T) {
	h := NewHost()
	err := h.Connect(context.Background(), ConnectOptions{ServerName: "x", TransportType: "grpc"})
	assert.Error(t, err)
	assert.NoError(t, h.CloseAll())
}
