package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/therapy-series-scheduling/internal/series"
)

// PreviewStore keeps preview sessions as JSON documents that expire after
// ttl of inactivity.
type PreviewStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ series.PreviewStore = (*PreviewStore)(nil)

func NewPreviewStore(client *redis.Client, ttl time.Duration) *PreviewStore {
	return &PreviewStore{client: client, ttl: ttl}
}

func previewKey(id uuid.UUID) string {
	return "preview:" + id.String()
}

func (s *PreviewStore) SavePreview(ctx context.Context, p *series.Preview) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal preview: %w", err)
	}
	if err := s.client.Set(ctx, previewKey(p.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store preview: %w", err)
	}
	return nil
}

func (s *PreviewStore) LoadPreview(ctx context.Context, id uuid.UUID) (*series.Preview, error) {
	data, err := s.client.Get(ctx, previewKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, series.ErrPreviewNotFound
		}
		return nil, fmt.Errorf("load preview: %w", err)
	}

	var p series.Preview
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode preview: %w", err)
	}
	return &p, nil
}

func (s *PreviewStore) DeletePreview(ctx context.Context, id uuid.UUID) error {
	n, err := s.client.Del(ctx, previewKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete preview: %w", err)
	}
	if n == 0 {
		return series.ErrPreviewNotFound
	}
	return nil
}
