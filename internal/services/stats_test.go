package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsService_Dashboard(t *testing.T) {
	env := setupTestService(t, defaultConfig())

	// Three arrivals: 4, 9 and 14 minutes after the 09:00 start; one more
	// ticket is left to expire and one is canceled.
	offsets := []time.Duration{4 * time.Minute, 9 * time.Minute, 14 * time.Minute}
	for i, offset := range offsets {
		ticket := issueAt(t, env, studentID(i), offset)
		env.clock.Set(sessionStart.Add(offset))
		_, err := env.svc.Redeem(context.Background(), ticket.QRCodeData)
		require.NoError(t, err)
	}

	canceled := issueAt(t, env, "student-canceled", 5*time.Minute)
	_, err := env.svc.Cancel(context.Background(), canceled.ID, "admin-1", "issued twice")
	require.NoError(t, err)

	issueAt(t, env, "student-no-show", 6*time.Minute)
	env.clock.Set(sessionStart.Add(20 * time.Minute))
	_, err = env.svc.SweepExpired(context.Background())
	require.NoError(t, err)

	stats, err := NewStatsService(env.store, env.timetables).Dashboard(context.Background())
	require.NoError(t, err)

	assert.Zero(t, stats.Issued)
	assert.Equal(t, 3, stats.Used)
	assert.Equal(t, 1, stats.Expired)
	assert.Equal(t, 1, stats.Canceled)
	assert.Equal(t, 3, stats.SampleSize)
	// (4 + 9 + 14) / 3 = 9 minutes.
	assert.True(t, stats.AverageLatenessMinutes.Equal(decimal.NewFromInt(9)),
		"got %s", stats.AverageLatenessMinutes)
}

func TestStatsService_Dashboard_NoRedemptions(t *testing.T) {
	env := setupTestService(t, defaultConfig())
	issueAt(t, env, "student-1", 5*time.Minute)

	stats, err := NewStatsService(env.store, env.timetables).Dashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Issued)
	assert.Zero(t, stats.SampleSize)
	assert.True(t, stats.AverageLatenessMinutes.IsZero())
}

func TestStatsService_Dashboard_FractionalAverage(t *testing.T) {
	env := setupTestService(t, defaultConfig())

	// 90 seconds and 2 minutes late averages to 1.75 minutes.
	for i, offset := range []time.Duration{90 * time.Second, 2 * time.Minute} {
		ticket := issueAt(t, env, studentID(i), offset)
		env.clock.Set(sessionStart.Add(offset))
		_, err := env.svc.Redeem(context.Background(), ticket.QRCodeData)
		require.NoError(t, err)
	}

	stats, err := NewStatsService(env.store, env.timetables).Dashboard(context.Background())
	require.NoError(t, err)

	assert.True(t, stats.AverageLatenessMinutes.Equal(decimal.RequireFromString("1.75")),
		"got %s", stats.AverageLatenessMinutes)
}

func studentID(i int) string {
	return string(rune('a'+i)) + "-student"
}
