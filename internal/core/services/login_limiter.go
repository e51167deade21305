package services

import (
	"context"
	"log"
	"strings"
	"time"
)

// LoginLimiter locks an email out after too many failed logins.
// It fails open when the store is unreachable.
type LoginLimiter struct {
	store  AttemptStore
	max    int64
	window time.Duration
}

// NewLoginLimiter creates a limiter; a nil store or max <= 0 disables it
func NewLoginLimiter(store AttemptStore, max int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{store: store, max: int64(max), window: window}
}

func (l *LoginLimiter) enabled() bool {
	return l != nil && l.store != nil && l.max > 0
}

// Allowed reports whether another attempt for email may proceed
func (l *LoginLimiter) Allowed(ctx context.Context, email string) bool {
	if !l.enabled() {
		return true
	}
	count, err := l.store.Count(ctx, loginKey(email))
	if err != nil {
		log.Printf("⚠️ Login limiter unavailable, allowing attempt: %v", err)
		return true
	}
	return count < l.max
}

// Fail records a failed attempt
func (l *LoginLimiter) Fail(ctx context.Context, email string) {
	if !l.enabled() {
		return
	}
	if _, err := l.store.Increment(ctx, loginKey(email), l.window); err != nil {
		log.Printf("⚠️ Failed to record login failure: %v", err)
	}
}

// Reset clears the failure count after a successful login
func (l *LoginLimiter) Reset(ctx context.Context, email string) {
	if !l.enabled() {
		return
	}
	if err := l.store.Reset(ctx, loginKey(email)); err != nil {
		log.Printf("⚠️ Failed to reset login failures: %v", err)
	}
}

func loginKey(email string) string {
	return "login:" + strings.ToLower(strings.TrimSpace(email))
}
