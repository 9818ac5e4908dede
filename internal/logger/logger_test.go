package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLogLevelFromEnv(t *testing.T) {
	t.Setenv("REMINDER_LOG_LEVEL", "debug")
	assert.Equal(t, zerolog.DebugLevel, New("test").GetLevel())
}

func TestUnknownLogLevelFallsBackToInfo(t *testing.T) {
	t.Setenv("REMINDER_LOG_LEVEL", "chatty")
	assert.Equal(t, zerolog.InfoLevel, New("test").GetLevel())
}
