package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port    int      `env:"TEST_CFG_PORT" envDefault:"8080"`
	Name    string   `env:"TEST_CFG_NAME" envDefault:"auth"`
	Origins []string `env:"TEST_CFG_ORIGINS" envDefault:"*" envSeparator:","`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg))
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "auth", cfg.Name)
	assert.Equal(t, []string{"*"}, cfg.Origins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9999")
	t.Setenv("TEST_CFG_ORIGINS", "https://a.example,https://b.example")

	var cfg testConfig
	require.NoError(t, Load(&cfg))
	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "not-a-number")

	var cfg testConfig
	assert.Error(t, Load(&cfg))
}
