package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/require"
)

func TestConfigInitWritesSample(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	stdout, _, err := runCommand(t, []string{"config", "init", "--path", path})
	require.NoError(t, err)
	require.Contains(t, stdout, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, toml.Unmarshal(data, &decoded))
	require.Contains(t, decoded, "engine")
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("# mine\n"), 0o644))

	_, _, err := runCommand(t, []string{"config", "init", "--path", path})
	require.ErrorContains(t, err, "already exists")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "# mine\n", string(data))

	_, _, err = runCommand(t, []string{"config", "init", "--path", path, "--force"})
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.NotEqual(t, "# mine\n", string(data))
}
