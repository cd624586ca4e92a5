// Package events publishes a summary of every finished import batch.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream used when none is configured.
const DefaultStream = "ticket-imports"

// Summary describes one finished import batch.
type Summary struct {
	BatchID      string    `json:"batchId"`
	FileName     string    `json:"fileName"`
	Format       string    `json:"format"`
	TotalRecords int       `json:"totalRecords"`
	Successful   int       `json:"successful"`
	Failed       int       `json:"failed"`
	Cancelled    bool      `json:"cancelled"`
	ContentHash  string    `json:"contentHash,omitempty"`
	ArchiveKey   string    `json:"archiveKey,omitempty"`
	DurationMs   int64     `json:"durationMs"`
	FinishedAt   time.Time `json:"finishedAt"`
}

// Publisher delivers import summaries to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, s Summary) error
}

// Noop drops every summary.
type Noop struct{}

func (Noop) Publish(context.Context, Summary) error { return nil }

// RedisPublisher appends summaries to a Redis stream, one entry per batch
// with the JSON document under the "payload" field.
type RedisPublisher struct {
	client *redis.Client
	stream string

	mu      sync.Mutex
	checked bool
}

// NewRedisPublisher connects to addr and verifies the server answers.
func NewRedisPublisher(addr, stream string) (*RedisPublisher, error) {
	if stream == "" {
		stream = DefaultStream
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisPublisher{client: client, stream: stream}, nil
}

func (p *RedisPublisher) Stream() string { return p.stream }

func (p *RedisPublisher) Publish(ctx context.Context, s Summary) error {
	if err := p.ensureStream(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode import summary: %w", err)
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"batchId": s.BatchID,
			"payload": string(payload),
		},
	}).Err(); err != nil {
		return fmt.Errorf("publish import summary: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// ensureStream rejects a stream key that already holds another type, which
// would make every XADD fail with WRONGTYPE.
func (p *RedisPublisher) ensureStream(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.checked {
		return nil
	}

	keyType, err := p.client.Type(ctx, p.stream).Result()
	if err != nil {
		return fmt.Errorf("check event stream: %w", err)
	}
	switch keyType {
	case "none", "stream":
		p.checked = true
		return nil
	default:
		return fmt.Errorf("event stream %q holds a %s, not a stream", p.stream, keyType)
	}
}
