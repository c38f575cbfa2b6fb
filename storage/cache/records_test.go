package cache_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/evaluo/core/evaluation"
	"github.com/trezcool/evaluo/storage/cache"
)

// jsonStore mimics Cache without redis: values go through JSON like they do on the wire.
type jsonStore struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
	err  error
}

func newJSONStore() *jsonStore {
	return &jsonStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *jsonStore) Get(_ context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	val, ok := s.data[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(val, dest)
}

func (s *jsonStore) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.data[key] = data
	s.ttls[key] = expiration
	return nil
}

func (s *jsonStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

type logger struct{ warnings []string }

func (l *logger) Debug(string, ...interface{})      {}
func (l *logger) Info(string, ...interface{})       {}
func (l *logger) Warn(msg string, _ ...interface{}) { l.warnings = append(l.warnings, msg) }
func (l *logger) Error(string, ...interface{})      {}
func (l *logger) Fatal(string, ...interface{})      {}

func TestRecordCache(t *testing.T) {
	ctx := context.Background()
	store := newJSONStore()
	rc := cache.NewRecordCache(store, 10*time.Minute, &logger{})

	records := []evaluation.Record{
		{
			ID:      1,
			Date:    evaluation.Date{Time: time.Date(2024, 4, 1, 12, 30, 0, 0, time.UTC)},
			Ratings: []evaluation.Rating{{Criterion: "metodologia", Value: 4}, {Criterion: "respeto", Value: 5}},
			Comments: []evaluation.Comment{
				{Target: evaluation.TargetTeacher, Text: "excelente", Sentiment: evaluation.Positive},
			},
		},
	}

	_, ok := rc.GetRecords(ctx, "records:7:3")
	assert.False(t, ok)

	require.NoError(t, rc.SetRecords(ctx, "records:7:3", records))
	assert.Equal(t, 10*time.Minute, store.ttls["records:7:3"])

	got, ok := rc.GetRecords(ctx, "records:7:3")
	require.True(t, ok)
	assert.Equal(t, records, got)

	require.NoError(t, rc.Invalidate(ctx, "records:7:3"))
	_, ok = rc.GetRecords(ctx, "records:7:3")
	assert.False(t, ok)
}

func TestRecordCache_emptyRecords(t *testing.T) {
	ctx := context.Background()
	rc := cache.NewRecordCache(newJSONStore(), time.Minute, &logger{})

	require.NoError(t, rc.SetRecords(ctx, "k", []evaluation.Record{}))
	got, ok := rc.GetRecords(ctx, "k")
	require.True(t, ok)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRecordCache_storeFailureIsAMiss(t *testing.T) {
	store := newJSONStore()
	store.err = errors.New("connection refused")
	log := &logger{}
	rc := cache.NewRecordCache(store, time.Minute, log)

	_, ok := rc.GetRecords(context.Background(), "k")
	assert.False(t, ok)
	assert.Len(t, log.warnings, 1)
}

func TestNew_unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := cache.New(ctx, cache.WithAddress("127.0.0.1:1"), cache.WithDB(2))
	assert.Error(t, err)
}
