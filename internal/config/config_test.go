package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, 4025, cfg.DropPort)
	assert.Equal(t, 4080, cfg.HTTPPort)
	assert.Equal(t, "spool", cfg.SpoolDir)
	assert.Equal(t, 3, cfg.LoginMaxFails)
	assert.Equal(t, time.Minute, cfg.LoginLockout)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DROP_PORT", "9025")
	t.Setenv("SPOOL_DIR", " /var/spool/maildrop ")
	t.Setenv("LOGIN_MAX_FAILS", "5")
	t.Setenv("LOGIN_LOCKOUT", "2m")

	cfg := Load()
	assert.Equal(t, 9025, cfg.DropPort)
	assert.Equal(t, "/var/spool/maildrop", cfg.SpoolDir)
	assert.Equal(t, 5, cfg.LoginMaxFails)
	assert.Equal(t, 2*time.Minute, cfg.LoginLockout)
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("DROP_PORT", "not-a-port")
	t.Setenv("LOGIN_LOCKOUT", "-5s")

	cfg := Load()
	assert.Equal(t, 4025, cfg.DropPort)
	assert.Equal(t, time.Minute, cfg.LoginLockout)
}
