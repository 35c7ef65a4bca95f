// Package caching holds short-lived in-memory state that does not belong in
// the database.
package caching

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// LoginLimiter counts failed logins per key (the client IP) inside a fixed
// window that starts at the first failure.
type LoginLimiter struct {
	failures *cache.Cache
	max      int
}

func NewLoginLimiter(max int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{
		failures: cache.New(window, 2*window),
		max:      max,
	}
}

// Allowed reports whether key may attempt another login.
func (l *LoginLimiter) Allowed(key string) bool {
	v, ok := l.failures.Get(key)
	if !ok {
		return true
	}
	n, _ := v.(int)
	return n < l.max
}

// Fail records a failed attempt and returns the failures so far in the window.
func (l *LoginLimiter) Fail(key string) int {
	if err := l.failures.Add(key, 1, cache.DefaultExpiration); err == nil {
		return 1
	}
	n, err := l.failures.IncrementInt(key, 1)
	if err != nil {
		// expired between Add and IncrementInt
		l.failures.Set(key, 1, cache.DefaultExpiration)
		return 1
	}
	return n
}

func (l *LoginLimiter) Reset(key string) {
	l.failures.Delete(key)
}
