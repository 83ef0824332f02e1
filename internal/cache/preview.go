// Package cache holds unconfirmed plan previews in badger with a per-entry
// TTL. Entries are best effort: a miss, an expired entry and a lost database
// all mean the preview is regenerated.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/robfig/cron/v3"
)

const (
	keyPrefix         = "plan-preview:"
	DefaultPreviewTTL = time.Hour
	gcDiscardRatio    = 0.5
)

// PreviewCache stores generated plan JSON keyed by plan id.
type PreviewCache struct {
	db       *badger.DB
	ttl      time.Duration
	inMemory bool
	logger   *slog.Logger
}

// Open opens the cache in dir, or in memory when dir is empty.
func Open(dir string, ttl time.Duration, logger *slog.Logger) (*PreviewCache, error) {
	if ttl <= 0 {
		ttl = DefaultPreviewTTL
	}
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{logger})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &PreviewCache{db: db, ttl: ttl, inMemory: dir == "", logger: logger}, nil
}

func previewKey(planID string) []byte {
	return []byte(keyPrefix + planID)
}

// Get returns the cached preview. A missing or expired entry is reported as
// ok == false with a nil error.
func (c *PreviewCache) Get(ctx context.Context, planID string) (raw []byte, ok bool, err error) {
	err = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(previewKey(planID))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get preview %s: %w", planID, err)
	}
	c.logger.DebugContext(ctx, "preview cache hit", "plan_id", planID)
	return raw, true, nil
}

// Put stores raw for the configured TTL, replacing any earlier preview.
func (c *PreviewCache) Put(ctx context.Context, planID string, raw []byte) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(previewKey(planID), raw).WithTTL(c.ttl))
	})
	if err != nil {
		return fmt.Errorf("put preview %s: %w", planID, err)
	}
	c.logger.DebugContext(ctx, "preview cached", "plan_id", planID, "ttl", c.ttl)
	return nil
}

func (c *PreviewCache) Delete(_ context.Context, planID string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(previewKey(planID))
	})
	if err != nil {
		return fmt.Errorf("delete preview %s: %w", planID, err)
	}
	return nil
}

// RunGC rewrites value-log files until badger reports nothing left to
// reclaim. It is a no-op for in-memory caches.
func (c *PreviewCache) RunGC() error {
	if c.inMemory {
		return nil
	}
	for {
		err := c.db.RunValueLogGC(gcDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// ScheduleGC runs RunGC on the cron spec (for example "@every 30m"). The
// caller starts and stops the returned scheduler.
func (c *PreviewCache) ScheduleGC(spec string) (*cron.Cron, error) {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(spec, func() {
		if err := c.RunGC(); err != nil {
			c.logger.Error("preview cache gc failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule cache gc %q: %w", spec, err)
	}
	return scheduler, nil
}

func (c *PreviewCache) Close() error {
	return c.db.Close()
}

// badgerLogger routes badger's printf-style logging into slog. Badger is
// chatty at info level, so info is demoted to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "badger")
}
