package database

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "auth",
		Password: "pw",
		DBName:   "authcore",
		SSLMode:  "require",
	}
	assert.Equal(t, "postgres://auth:pw@db.internal:5433/authcore?sslmode=require", cfg.DSN())
}

func TestRetryBackoff_ExponentialWithJitter(t *testing.T) {
	for attempt, base := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		for i := 0; i < 50; i++ {
			got := retryBackoff(attempt)
			min := time.Duration(float64(base) * (1 - retryJitterFraction))
			max := time.Duration(float64(base) * (1 + retryJitterFraction))
			assert.GreaterOrEqual(t, got, min)
			assert.LessOrEqual(t, got, max)
		}
	}
}

func TestRetryBackoff_NegativeAttemptClamped(t *testing.T) {
	got := retryBackoff(-3)
	assert.Greater(t, got, time.Duration(0))
	assert.LessOrEqual(t, got, 2*time.Second)
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, isConnectionError(nil))
	assert.False(t, isConnectionError(errors.New("syntax error at or near")))
	assert.True(t, isConnectionError(errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")))
	assert.True(t, isConnectionError(errors.New("read tcp: i/o timeout")))
}
