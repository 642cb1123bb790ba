package config

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWizardRun(t *testing.T) {
	t.Run("accepts defaults", func(t *testing.T) {
		in := strings.NewReader("aaa.bbb.ccc\n\n\n\n\n")
		var out bytes.Buffer

		cfg, err := NewWizard(in, &out).Run(DefaultConfig())

		require.NoError(t, err)
		assert.Equal(t, "aaa.bbb.ccc", cfg.DeveloperToken)
		assert.Equal(t, "https://api.pycompany.com", cfg.Endpoint)
		assert.True(t, cfg.OfflineQueue)
		assert.Equal(t, 3, cfg.RetryAttempts)
		assert.False(t, cfg.DebugLogs)
	})

	t.Run("re-prompts on invalid answers", func(t *testing.T) {
		answers := []string{
			"not-a-token",
			"aaa.bbb.ccc",
			"ftp://collector",
			"https://collector.example.com",
			"n",
			"-4",
			"5",
			"y",
		}
		in := strings.NewReader(strings.Join(answers, "\n") + "\n")
		var out bytes.Buffer

		cfg, err := NewWizard(in, &out).Run(DefaultConfig())

		require.NoError(t, err)
		assert.Equal(t, "https://collector.example.com", cfg.Endpoint)
		assert.False(t, cfg.OfflineQueue)
		assert.Equal(t, 5, cfg.RetryAttempts)
		assert.True(t, cfg.DebugLogs)
		assert.Equal(t, 3, strings.Count(out.String(), "Error:"))
	})

	t.Run("input ends early", func(t *testing.T) {
		_, err := NewWizard(strings.NewReader(""), &bytes.Buffer{}).Run(DefaultConfig())
		assert.Error(t, err)
	})

	t.Run("does not modify base", func(t *testing.T) {
		base := DefaultConfig()
		_, err := NewWizard(strings.NewReader("aaa.bbb.ccc\n\nn\n1\ny\n"), &bytes.Buffer{}).Run(base)
		require.NoError(t, err)
		assert.Empty(t, base.DeveloperToken)
		assert.True(t, base.OfflineQueue)
	})
}
