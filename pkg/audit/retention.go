package audit

import (
	"context"
	"log/slog"
	"time"
)

// RetentionSweeper periodically deletes audit events older than the
// configured retention window.
type RetentionSweeper struct {
	store    *Store
	days     int
	interval time.Duration
	logger   *slog.Logger
}

// NewRetentionSweeper creates a sweeper. days <= 0 disables sweeping.
func NewRetentionSweeper(store *Store, days int, logger *slog.Logger) *RetentionSweeper {
	return &RetentionSweeper{
		store:    store,
		days:     days,
		interval: 24 * time.Hour,
		logger:   logger,
	}
}

// Run sweeps once immediately and then on every interval tick until the
// context is canceled.
func (s *RetentionSweeper) Run(ctx context.Context) {
	if s.days <= 0 {
		return
	}

	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *RetentionSweeper) sweep() {
	cutoff := time.Now().AddDate(0, 0, -s.days)
	deleted, err := s.store.DeleteOlderThan(cutoff)
	if err != nil {
		s.logger.Error("audit retention sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("audit retention sweep", "deleted", deleted, "cutoff", cutoff)
	}
}
