package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func TestCheckConfig(t *testing.T) {
	t.Setenv("STREAM_ENABLED", "false")

	out, err := execute(t, "check-config", "--thresholds", "")
	require.NoError(t, err)
	assert.Contains(t, out, "thresholds:       (defaults)")
	assert.Contains(t, out, "stream:           disabled")
	assert.Contains(t, out, "Configuration OK")
}

func TestCheckConfig_BadThresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not_a_field: 1\n"), 0o600))

	_, err := execute(t, "check-config", "--thresholds", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load thresholds")
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "fetch", "stream", "check-config", "jobs"} {
		assert.True(t, names[want], want)
	}
}
