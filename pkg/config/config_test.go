package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess(t *testing.T) {
	// Default config
	config, err := Process([]string{})
	require.NoError(t, err)
	assert.Equal(t, 100, config.Game.MaxHealth)
	assert.Equal(t, 3, config.Game.ShotsToKill)

	dir := t.TempDir()

	// yaml config
	{
		yaml := filepath.Join(dir, "config.yaml")
		err = os.WriteFile(yaml, []byte(`
gateway:
  port: 1234
`), 0644)
		require.NoError(t, err)
		config, err = Process([]string{yaml})
		require.NoError(t, err)
		assert.Equal(t, 1234, config.Gateway.Port)
		// Untouched sections keep their defaults.
		assert.Equal(t, 100, config.Game.MaxHealth)
	}

	// json config
	{
		json := filepath.Join(dir, "config.json")
		err = os.WriteFile(json, []byte(`{
  "gateway": {
    "port": 1235
  }
}`), 0644)
		require.NoError(t, err)
		config, err = Process([]string{json})
		require.NoError(t, err)
		assert.Equal(t, 1235, config.Gateway.Port)
	}

	// multiple yaml, later files win
	{
		yaml1 := filepath.Join(dir, "config1.yaml")
		err = os.WriteFile(yaml1, []byte(`
gateway:
  port: 1234
`), 0644)
		require.NoError(t, err)

		yaml2 := filepath.Join(dir, "config2.yaml")
		err = os.WriteFile(yaml2, []byte(`
gateway:
  port: 4321
bots:
  count: 2
`), 0644)
		require.NoError(t, err)
		config, err = Process([]string{yaml1, yaml2})
		require.NoError(t, err)
		assert.Equal(t, 4321, config.Gateway.Port)
		assert.Equal(t, 2, config.Bots.Count)
	}

	// missing file
	{
		_, err = Process([]string{filepath.Join(dir, "nope.yaml")})
		require.Error(t, err)
	}

	// invalid game settings are rejected
	{
		bad := filepath.Join(dir, "bad.yaml")
		err = os.WriteFile(bad, []byte(`
game:
  maxHealth: 4
`), 0644)
		require.NoError(t, err)
		_, err = Process([]string{bad})
		require.Error(t, err)
	}
}

func TestGameConfigSettings(t *testing.T) {
	config, err := Process([]string{})
	require.NoError(t, err)

	settings := config.Game.Settings()
	require.NoError(t, settings.Validate())
	assert.Equal(t, 34, settings.DamagePerHit())
}
