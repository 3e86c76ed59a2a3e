package kbc_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/arnavsurve/crawlstep/pkg/kbc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvironment_CreatesOutputFolders(t *testing.T) {
	dataDir := t.TempDir()

	env, err := kbc.NewEnvironment(dataDir, "123.456")
	require.NoError(t, err)

	assert.DirExists(t, filepath.Join(dataDir, "out", "tables"))
	assert.DirExists(t, filepath.Join(dataDir, "out", "files"))
	assert.Equal(t, filepath.Join(dataDir, "config.json"), env.ConfigPath())
	assert.Equal(t, "123.456", env.RunID)
}

func TestReadState(t *testing.T) {
	env, err := kbc.NewEnvironment(t.TempDir(), "")
	require.NoError(t, err)

	state, err := env.ReadState()
	require.NoError(t, err)
	assert.Empty(t, state.Cookies, "missing state file yields empty state")

	require.NoError(t, os.MkdirAll(filepath.Dir(env.InStatePath()), 0755))
	require.NoError(t, os.WriteFile(env.InStatePath(), []byte(`{"cookies":[{"name":"sid","value":"abc"}]}`), 0644))

	state, err = env.ReadState()
	require.NoError(t, err)
	require.Len(t, state.Cookies, 1)
	assert.Equal(t, "sid", state.Cookies[0]["name"])

	require.NoError(t, os.WriteFile(env.InStatePath(), []byte(`{not json`), 0644))
	_, err = env.ReadState()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing state file")
}

func TestWriteState(t *testing.T) {
	env, err := kbc.NewEnvironment(t.TempDir(), "")
	require.NoError(t, err)

	require.NoError(t, env.WriteState(&kbc.State{}))
	data, err := os.ReadFile(env.OutStatePath())
	require.NoError(t, err)
	assert.JSONEq(t, `{"cookies":[]}`, string(data))
}

func TestOutFileManifest(t *testing.T) {
	env, err := kbc.NewEnvironment(t.TempDir(), "")
	require.NoError(t, err)

	def := env.CreateOutFileDefinition("cookies.json", []string{"auth"}, true)
	assert.Equal(t, filepath.Join(env.FilesOutPath(), "cookies.json"), def.FullPath)

	require.NoError(t, env.WriteManifest(def))

	data, err := os.ReadFile(def.FullPath + ".manifest")
	require.NoError(t, err)
	var manifest map[string]any
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, true, manifest["is_permanent"])
	assert.Equal(t, []any{"auth"}, manifest["tags"])
}
