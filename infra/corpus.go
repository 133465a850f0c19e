package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tnqbao/gau-review-orchestrator/entity"
)

const (
	approvedCodeField     = "Code URL"
	approvedPlayableField = "Playable URL"
)

type CorpusSource interface {
	ApprovedSubmissions(ctx context.Context) ([]entity.ReferenceSubmission, error)
}

// RecordCorpus reads approved projects from a record-store table.
type RecordCorpus struct {
	store  *RecordStoreService
	BaseID string
	Table  string
}

func NewRecordCorpus(store *RecordStoreService, baseID, table string) *RecordCorpus {
	return &RecordCorpus{store: store, BaseID: baseID, Table: table}
}

func (c *RecordCorpus) ApprovedSubmissions(ctx context.Context) ([]entity.ReferenceSubmission, error) {
	if c.BaseID == "" {
		return nil, errors.New("approved projects base is not configured")
	}

	records, err := c.store.ListRecords(ctx, c.BaseID, c.Table, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved projects: %w", err)
	}

	submissions := make([]entity.ReferenceSubmission, 0, len(records))
	for _, record := range records {
		submissions = append(submissions, entity.ReferenceSubmission{
			CodeURL:     stringField(record.Fields, approvedCodeField),
			PlayableURL: stringField(record.Fields, approvedPlayableField),
		})
	}
	return submissions, nil
}

// CachedCorpus keeps the approved list in Redis so bulk reviews do not re-read the table per job.
type CachedCorpus struct {
	source CorpusSource
	redis  *RedisClient
	ttl    time.Duration
	key    string
}

func NewCachedCorpus(source CorpusSource, redis *RedisClient, ttl time.Duration) *CachedCorpus {
	key := "review:corpus"
	if rc, ok := source.(*RecordCorpus); ok {
		key = fmt.Sprintf("review:corpus:%s:%s", rc.BaseID, rc.Table)
	}
	return &CachedCorpus{source: source, redis: redis, ttl: ttl, key: key}
}

func (c *CachedCorpus) ApprovedSubmissions(ctx context.Context) ([]entity.ReferenceSubmission, error) {
	if c.redis != nil {
		var cached []entity.ReferenceSubmission
		if err := c.redis.Get(ctx, c.key, &cached); err == nil {
			return cached, nil
		}
	}

	submissions, err := c.source.ApprovedSubmissions(ctx)
	if err != nil {
		return nil, err
	}

	if c.redis != nil && c.ttl > 0 {
		_ = c.redis.Set(ctx, c.key, submissions, c.ttl)
	}
	return submissions, nil
}

// Invalidate drops the cached list, e.g. after a project was approved.
func (c *CachedCorpus) Invalidate(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Delete(ctx, c.key)
}

func stringField(fields map[string]interface{}, name string) string {
	if name == "" {
		return ""
	}
	value, ok := fields[name]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// StringField reads a record field as text. Missing or null values become "".
func StringField(fields map[string]interface{}, name string) string {
	return stringField(fields, name)
}
