package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8090", cfg.Server.Port)
	assert.Equal(t, "http://localhost:8001", cfg.Interview.BaseURL)
	assert.Equal(t, "mock-interview-videos", cfg.AWS.VideosBucket)
	assert.Equal(t, "mock-interview-answers", cfg.AWS.AnswersBucket)
	assert.NotEmpty(t, cfg.WebRTC.ICEUrls)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("WEBRTC_ICE_URLS", "stun:a.example:3478, turn:b.example:3478")
	t.Setenv("INTERVIEW_API_TIMEOUT_SEC", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, []string{"stun:a.example:3478", "turn:b.example:3478"}, cfg.WebRTC.ICEUrls)
	assert.Equal(t, 7, cfg.Interview.TimeoutSeconds)
}

func TestDatabaseURLWins(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db.example:5432/reports")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db.example:5432/reports", cfg.Database.DSN())
}

func TestDSNFromParts(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: "5432", User: "u", Password: "p", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", c.DSN())
}
