package database

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDSN(t *testing.T) {
	assert.Equal(t, "postgresql://u:p@db:5432/chat", normalizeDSN(" postgresql+asyncpg://u:p@db:5432/chat "))
	assert.Equal(t, "postgres://u@db/chat", normalizeDSN("postgres+pgx://u@db/chat"))
	assert.Equal(t, "postgres://u@db/chat?sslmode=disable", normalizeDSN("postgres://u@db/chat?sslmode=disable"))
	assert.Equal(t, "", normalizeDSN("   "))
}

func TestApplyPoolDefaults(t *testing.T) {
	cfg, err := pgxpool.ParseConfig("postgres://u@localhost/chat")
	require.NoError(t, err)
	cfg.MaxConns = 0
	cfg.MaxConnIdleTime = 0
	cfg.MaxConnLifetime = 0
	cfg.HealthCheckPeriod = 0

	applyPoolDefaults(cfg)

	assert.EqualValues(t, 4, cfg.MaxConns)
	assert.Equal(t, 5*time.Minute, cfg.MaxConnIdleTime)
	assert.Equal(t, time.Hour, cfg.MaxConnLifetime)
	assert.Equal(t, time.Minute, cfg.HealthCheckPeriod)
}

func TestConnectRejectsEmptyDSN(t *testing.T) {
	_, err := Connect(context.Background(), "  ")
	assert.Error(t, err)
}
