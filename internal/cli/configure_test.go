package cli

import (
	"path/filepath"
	"testing"

	"github.com/paondev/tapakasih/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureCommand(t *testing.T) {
	t.Run("saves wizard answers", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tapakasih.json")
		answers := "aaa.bbb.ccc\nhttps://collector.example.com\nn\n5\n\n"

		output, err := execute(t, answers, "configure", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, output, "Configuration saved to: "+path)

		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "aaa.bbb.ccc", cfg.DeveloperToken)
		assert.Equal(t, "https://collector.example.com", cfg.Endpoint)
		assert.False(t, cfg.OfflineQueue)
		assert.Equal(t, 5, cfg.RetryAttempts)
	})

	t.Run("help text", func(t *testing.T) {
		output, err := execute(t, "", "configure", "--help")
		require.NoError(t, err)
		assert.Contains(t, output, "interactive configuration wizard")
	})
}
