package toolbridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientInProcess(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = ModeInProcess
	cfg.ProjectRoot = t.TempDir()

	c, err := NewClient(cfg)
	require.NoError(t, err)
	defer c.Close()

	status := c.StartupProbe(context.Background())
	assert.True(t, status.FallbackActive)
	assert.Equal(t, "forced inprocess mode", status.FallbackReason)

	files, err := c.CallLocalTool(context.Background(), "list_project_files", Args{"pattern": "*.md"})
	require.NoError(t, err)
	assert.Equal(t, []string{}, files)
	assert.NotEmpty(t, Version)
}
