package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewParsesLevel(t *testing.T) {
	log := New("warn", "json")
	assert.Equal(t, zerolog.WarnLevel, log.GetLevel())
}

func TestNewFallsBackToInfo(t *testing.T) {
	log := New("shouting", "json")
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}
