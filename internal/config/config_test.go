package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/resume-scorer/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 10, cfg.MaxActiveForks)
	assert.Equal(t, 120*time.Second, cfg.WorkerTimeout)
	assert.Equal(t, 30*time.Second, cfg.ForkAcquireTimeout)
	assert.Equal(t, 30*time.Minute, cfg.ForkSweepInterval)
	assert.Equal(t, 24*time.Hour, cfg.ForkRetention)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.False(t, cfg.SemanticSkillHint)
	assert.True(t, cfg.IsDev())
	assert.False(t, cfg.IsProd())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("MAX_ACTIVE_FORKS", "3")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SEMANTIC_SKILL_HINT", "true")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProd())
	assert.Equal(t, 3, cfg.MaxActiveForks)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.EventsEnabled())
	assert.True(t, cfg.CacheEnabled())
	assert.True(t, cfg.SemanticSkillHint)
}

func TestFeatureToggles_DisabledByDefault(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.False(t, cfg.EventsEnabled())
	assert.False(t, cfg.CacheEnabled())
}
