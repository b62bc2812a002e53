package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit_WritesFile(t *testing.T) {
	prev := L()
	t.Cleanup(func() { Set(prev) })

	file := filepath.Join(t.TempDir(), "logs", "app.log")
	require.NoError(t, Init("info", file))

	Info("post created", zap.String("id", "abc"))
	Debug("dropped below level")
	_ = Sync()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "post created")
	assert.Contains(t, string(data), `"id":"abc"`)
	assert.NotContains(t, string(data), "dropped below level")
}

func TestInit_BadLevel(t *testing.T) {
	assert.Error(t, Init("loud", ""))
}

func TestSet_Observer(t *testing.T) {
	prev := L()
	t.Cleanup(func() { Set(prev) })

	core, logs := observer.New(zapcore.WarnLevel)
	Set(zap.New(core))

	Warn("queue full", zap.String("action", "like"))
	Info("ignored")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "queue full", entry.Message)
	assert.Equal(t, "like", entry.ContextMap()["action"])
}
