package opendata

import (
	"context"
	"time"
)

// RateLimiter implements token bucket rate limiting
type RateLimiter struct {
	rate       int // requests per minute
	tokens     chan struct{}
	resetTimer *time.Timer
}

func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}

	rl := &RateLimiter{
		rate:   requestsPerMinute,
		tokens: make(chan struct{}, requestsPerMinute),
	}

	// Fill initial tokens
	for i := 0; i < requestsPerMinute; i++ {
		select {
		case rl.tokens <- struct{}{}:
		default:
		}
	}

	// Reset tokens every minute
	rl.resetTimer = time.AfterFunc(time.Minute, rl.resetTokens)
	return rl
}

func (rl *RateLimiter) Wait(ctx context.Context) error {
	select {
	case <-rl.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rl *RateLimiter) resetTokens() {
	// Drain existing tokens
	for len(rl.tokens) > 0 {
		<-rl.tokens
	}

	// Add new tokens
	for i := 0; i < rl.rate; i++ {
		select {
		case rl.tokens <- struct{}{}:
		default:
		}
	}

	// Schedule next reset
	rl.resetTimer.Reset(time.Minute)
}
