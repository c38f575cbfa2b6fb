package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/evaluo/core"
	"github.com/trezcool/evaluo/core/evaluation"
)

// RecordCache keeps the evaluation records of teacher+course pairs in a Store.
type RecordCache struct {
	store  Store
	ttl    time.Duration
	logger core.Logger
}

var _ evaluation.RecordCache = (*RecordCache)(nil)

func NewRecordCache(store Store, ttl time.Duration, logger core.Logger) *RecordCache {
	return &RecordCache{store: store, ttl: ttl, logger: logger}
}

// GetRecords reports a miss on any store failure: the caller falls back to the database.
func (c *RecordCache) GetRecords(ctx context.Context, key string) ([]evaluation.Record, bool) {
	var records []evaluation.Record
	if err := c.store.Get(ctx, key, &records); err != nil {
		if err != ErrMiss {
			c.logger.Warn(fmt.Sprintf("reading %q from cache: %v", key, err), err)
		}
		return nil, false
	}
	if records == nil {
		records = []evaluation.Record{}
	}
	return records, true
}

func (c *RecordCache) SetRecords(ctx context.Context, key string, records []evaluation.Record) error {
	return c.store.Set(ctx, key, records, c.ttl)
}

func (c *RecordCache) Invalidate(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}
