package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.PrimaryModel)
	assert.Equal(t, []string{"gpt-4o", "gpt-3.5-turbo"}, cfg.FallbackModels)
	assert.Equal(t, 30*time.Second, cfg.CompletionTimeout)
	assert.Equal(t, time.Hour, cfg.ResponseCacheTTL)
	assert.False(t, cfg.UseDistributedCache)
}

func TestGetEnvAsList(t *testing.T) {
	t.Setenv("TEST_LIST", "a, b,,c ")
	assert.Equal(t, []string{"a", "b", "c"}, getEnvAsList("TEST_LIST", ""))

	t.Setenv("TEST_LIST_EMPTY", "  ")
	assert.Nil(t, getEnvAsList("TEST_LIST_EMPTY", ""))
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Setenv("TEST_DUR", "45s")
	assert.Equal(t, 45*time.Second, getEnvAsDuration("TEST_DUR", time.Minute))
	assert.Equal(t, time.Minute, getEnvAsDuration("TEST_DUR_MISSING", time.Minute))
}
