package services

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"latepass-system/internal/status"
)

// maxTicketsPerYear caps the 6-digit counter segment of a ticket number.
const maxTicketsPerYear = 999999

// NumberAllocator hands out globally unique, year-scoped ticket numbers.
type NumberAllocator interface {
	Next(ctx context.Context, year int) (string, error)
}

// TicketNumberAllocator hands out LPT-YYYY-NNNNNN numbers. The counter lives
// in Redis and is advanced with INCR, so concurrent issuance can never
// observe the same value. The counter key is year-scoped; a new year simply
// starts a fresh key at 1.
type TicketNumberAllocator struct {
	Redis *redis.Client
}

func NewTicketNumberAllocator(redisClient *redis.Client) *TicketNumberAllocator {
	return &TicketNumberAllocator{Redis: redisClient}
}

func (a *TicketNumberAllocator) counterKey(year int) string {
	return fmt.Sprintf("latepass:ticket_counter:%d", year)
}

// Next allocates the next ticket number for the given year. Exhaustion past
// 999999 is a hard error, never a silent wrap.
func (a *TicketNumberAllocator) Next(ctx context.Context, year int) (string, error) {
	seq, err := a.Redis.Incr(ctx, a.counterKey(year)).Result()
	if err != nil {
		return "", fmt.Errorf("ticket number allocation: %w", err)
	}

	if seq > maxTicketsPerYear {
		return "", status.ErrTicketNumberExhausted
	}

	return fmt.Sprintf("LPT-%d-%06d", year, seq), nil
}
