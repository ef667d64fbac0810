package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, root, content string) {
	t.Helper()
	dir := filepath.Join(root, "config")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ai-workflow.config.json"), []byte(content), 0o600))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.True(t, cfg.AutoActions.Task.Complete.AutoActivateNext)
}

func TestLoad_AutoActivateNextDisabled(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `{"autoActions":{"task":{"complete":{"autoActivateNext":false}}}}`)

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.False(t, cfg.AutoActions.Task.Complete.AutoActivateNext)
}

func TestLoad_MissingKeyDefaultsTrue(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `{"autoActions":{}}`)

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.True(t, cfg.AutoActions.Task.Complete.AutoActivateNext)
}

func TestLoad_MalformedFileErrors(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `{"autoActions":`)

	_, err := Load(root)
	require.Error(t, err)
}
