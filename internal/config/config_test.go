package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocompare/internal/errors"
)

var envKeys = []string{
	"COMPARE_ALPHA", "COMPARE_WORKERS", "COMPARE_TASK_TIMEOUT", "COMPARE_MAX_SAMPLED_SUBJECTS",
	"COMPARE_SEED", "COMPARE_STRATIFY", "COMPARE_ADDR", "DATABASE_DRIVER", "DATABASE_URL",
	"DATABASE_TABLE", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadMergesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "compare.yaml")
	content := `
analysis:
  alpha: 0.01
  stratify: true
execution:
  workers: 8
  task_timeout: 30s
memory:
  max_sampled_subjects: 500
  seed: 0
log_level: DEBUG
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.01, cfg.Analysis.Alpha)
	assert.True(t, cfg.Analysis.Stratify)
	assert.Equal(t, 0.05, cfg.Analysis.NormalityAlpha, "unset keys keep defaults")
	assert.Equal(t, 8, cfg.Execution.Workers)
	assert.Equal(t, 30*time.Second, cfg.Execution.TaskTimeout)
	assert.Equal(t, 500, cfg.Memory.MaxSampledSubjects)
	assert.Equal(t, int64(0), cfg.Memory.Seed, "explicit zero seed is honoured")
	assert.Equal(t, "DEBUG", cfg.LogLevel)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "compare.yaml")
	require.NoError(t, os.WriteFile(path, []byte("execution:\n  workers: 8\n"), 0o644))
	t.Setenv("COMPARE_WORKERS", "3")
	t.Setenv("COMPARE_SEED", "7")
	t.Setenv("DATABASE_URL", "postgres://localhost/trial")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Execution.Workers)
	assert.Equal(t, int64(7), cfg.Memory.Seed)
	assert.Equal(t, "postgres://localhost/trial", cfg.Database.URL)
	assert.Equal(t, 2, cfg.Execution.MixedWeight)
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Run("bad env number", func(t *testing.T) {
		t.Setenv("COMPARE_WORKERS", "many")
		_, err := Load("")
		require.Error(t, err)
		assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
	})

	t.Run("bad duration in file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "c.yaml")
		require.NoError(t, os.WriteFile(path, []byte("execution:\n  task_timeout: soon\n"), 0o644))
		_, err := Load(path)
		require.Error(t, err)
		assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "c.yaml")
		require.NoError(t, os.WriteFile(path, []byte("analysis: [unclosed"), 0o644))
		_, err := Load(path)
		assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
	})
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Analysis.Alpha = 1.5
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Memory.ChunkLimit = cfg.Memory.FullLimit / 2
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Execution.Workers = 1
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Execution.MixedWeight, "mixed weight is capped by the pool size")
}
