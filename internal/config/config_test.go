package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CPPMUNGE_CODES_HEADER", "")
	t.Setenv("CPPMUNGE_FLAGS", "")
	t.Setenv("CPPMUNGE_MSVC", "")

	cfg := Load()
	assert.Equal(t, "ErrCodes.h", cfg.CodesHeader)
	assert.Equal(t, 0, cfg.Flags)
	assert.False(t, cfg.MSVC)
	assert.Equal(t, 8, cfg.WorkerCount)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CPPMUNGE_CODES_HEADER", "include/FXErrCodes.h")
	t.Setenv("CPPMUNGE_FLAGS", "4")
	t.Setenv("CPPMUNGE_MSVC", "yes")
	t.Setenv("WORKER_COUNT", "not-a-number")

	cfg := Load()
	assert.Equal(t, "include/FXErrCodes.h", cfg.CodesHeader)
	assert.Equal(t, 4, cfg.Flags)
	assert.True(t, cfg.MSVC)
	assert.Equal(t, 8, cfg.WorkerCount)
}
