// Package cache holds the in-process caches of the API server.
package cache

import (
	"context"
	"log/slog"
	"time"
)

type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is a cache that can drop its expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically cleans registered caches until its context ends.
type Janitor struct {
	caches map[string]Cleaner
	done   chan struct{}
}

func NewJanitor() *Janitor {
	return &Janitor{caches: make(map[string]Cleaner)}
}

func (j *Janitor) Register(name string, c Cleaner) {
	j.caches[name] = c
}

// Start runs the cleanup loop in a goroutine. Wait blocks until it has
// returned.
func (j *Janitor) Start(ctx context.Context, interval time.Duration) {
	j.done = make(chan struct{})
	go func() {
		defer close(j.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				j.sweep(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (j *Janitor) sweep(ctx context.Context) {
	for name, c := range j.caches {
		if n := c.CleanExpired(); n > 0 {
			slog.DebugContext(ctx, "Cache entries expired", "cache", name, "removed", n)
		}
	}
}

func (j *Janitor) Wait() {
	if j.done != nil {
		<-j.done
	}
}
