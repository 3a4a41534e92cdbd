package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"latepass-system/models"
)

func TestGenerationDeadline(t *testing.T) {
	start := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
	cfg := models.LatePassConfig{MaxGenerationDelayMinutes: 10, MaxAcceptanceDelayMinutes: 15}

	assert.Equal(t, start.Add(10*time.Minute), GenerationDeadline(start, cfg))
	assert.Equal(t, start.Add(15*time.Minute), AcceptanceDeadline(start, cfg))
}

func TestCanGenerate(t *testing.T) {
	start := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
	cfg := models.LatePassConfig{MaxGenerationDelayMinutes: 10, MaxAcceptanceDelayMinutes: 15}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "before session start", now: start.Add(-time.Second), want: false},
		{name: "at session start", now: start, want: true},
		{name: "inside window", now: start.Add(8 * time.Minute), want: true},
		{name: "at deadline", now: start.Add(10 * time.Minute), want: true},
		{name: "one second past deadline", now: start.Add(10*time.Minute + time.Second), want: false},
		{name: "long after", now: start.Add(time.Hour), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanGenerate(start, cfg, tt.now))
		})
	}
}

func TestCanAccept(t *testing.T) {
	expiresAt := time.Date(2025, 9, 1, 9, 15, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "before expiry", now: expiresAt.Add(-time.Minute), want: true},
		{name: "at expiry", now: expiresAt, want: true},
		{name: "one second past expiry", now: expiresAt.Add(time.Second), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAccept(expiresAt, tt.now))
		})
	}
}
