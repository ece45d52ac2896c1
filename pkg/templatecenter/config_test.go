package templatecenter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.True(t, cfg.Enabled)
		assert.Equal(t, []DocumentStatus{StatusApproved, StatusCompleted}, cfg.DefaultGateDocStates)
		assert.Equal(t, 90, cfg.AuditRetentionDays)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tc.yaml")
		content := "enabled: false\ndefaultGateDocStates: [completed]\nauditRetentionDays: 7\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.False(t, cfg.Enabled)
		assert.Equal(t, []DocumentStatus{StatusCompleted}, cfg.DefaultGateDocStates)
		assert.Equal(t, 7, cfg.AuditRetentionDays)
	})

	t.Run("malformed yaml errors", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tc.yaml")
		require.NoError(t, os.WriteFile(path, []byte("enabled: [nope"), 0o600))
		_, err := LoadConfig(path)
		require.Error(t, err)
	})
}
