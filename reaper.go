/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

type idleDeleter interface {
	DeleteIdle(ctx context.Context, cutoff time.Time) (int, error)
}

// reapIdleSessions periodically deletes games idle longer than idleTimeout.
func reapIdleSessions(ctx context.Context, cfg *Config, store idleDeleter, idleTimeout time.Duration) {
	ticker := time.NewTicker(idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			reapOnce(ctx, cfg, store, now.Add(-idleTimeout))
		}
	}
}

func reapOnce(ctx context.Context, cfg *Config, store idleDeleter, cutoff time.Time) int {
	n, err := store.DeleteIdle(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("REAP: failed to delete idle games")
		return 0
	}
	if n > 0 {
		logf(cfg, "REAP: Deleted %d idle game(s) last active before %s", n, cutoff.Format(logDate))
	}
	return n
}
