package services

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"latepass-system/internal/status"
)

func TestTicketNumberAllocator_Next(t *testing.T) {
	db, mock := redismock.NewClientMock()
	allocator := NewTicketNumberAllocator(db)

	mock.ExpectIncr("latepass:ticket_counter:2025").SetVal(1)

	number, err := allocator.Next(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, "LPT-2025-000001", number)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketNumberAllocator_Next_StrictlyIncreasing(t *testing.T) {
	db, mock := redismock.NewClientMock()
	allocator := NewTicketNumberAllocator(db)

	mock.ExpectIncr("latepass:ticket_counter:2025").SetVal(41)
	mock.ExpectIncr("latepass:ticket_counter:2025").SetVal(42)

	first, err := allocator.Next(context.Background(), 2025)
	require.NoError(t, err)
	second, err := allocator.Next(context.Background(), 2025)
	require.NoError(t, err)

	assert.Equal(t, "LPT-2025-000041", first)
	assert.Equal(t, "LPT-2025-000042", second)
	assert.Less(t, first, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketNumberAllocator_Next_YearScopedKeys(t *testing.T) {
	db, mock := redismock.NewClientMock()
	allocator := NewTicketNumberAllocator(db)

	// A new year starts a fresh counter key at 1.
	mock.ExpectIncr("latepass:ticket_counter:2025").SetVal(999999)
	mock.ExpectIncr("latepass:ticket_counter:2026").SetVal(1)

	last, err := allocator.Next(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, "LPT-2025-999999", last)

	first, err := allocator.Next(context.Background(), 2026)
	require.NoError(t, err)
	assert.Equal(t, "LPT-2026-000001", first)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketNumberAllocator_Next_Exhausted(t *testing.T) {
	db, mock := redismock.NewClientMock()
	allocator := NewTicketNumberAllocator(db)

	mock.ExpectIncr("latepass:ticket_counter:2025").SetVal(1000000)

	_, err := allocator.Next(context.Background(), 2025)
	assert.ErrorIs(t, err, status.ErrTicketNumberExhausted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketNumberAllocator_Next_RedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	allocator := NewTicketNumberAllocator(db)

	mock.ExpectIncr("latepass:ticket_counter:2025").SetErr(errors.New("connection refused"))

	_, err := allocator.Next(context.Background(), 2025)
	require.Error(t, err)
	assert.NotErrorIs(t, err, status.ErrTicketNumberExhausted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
