// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/openholdem/poker-service/internal/session"
)

// maxHistoryLen bounds the per-table action list so long-running tables
// do not grow without limit.
const maxHistoryLen = 10000

// Connect opens and pings a Redis client.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// History records betting actions to a per-table Redis list, newest at
// the tail. It implements session.Recorder.
type History struct {
	client *redis.Client
}

func NewHistory(client *redis.Client) *History {
	return &History{client: client}
}

func historyKey(tableID string) string {
	return fmt.Sprintf("table:%s:history", tableID)
}

// RecordAction appends one action to the table's history list and trims
// the oldest entries past the cap.
func (h *History) RecordAction(ctx context.Context, rec session.ActionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal action record: %w", err)
	}
	key := historyKey(rec.TableID)
	pipe := h.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -maxHistoryLen, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push action record: %w", err)
	}
	return nil
}

// Recent returns up to limit most recent actions for a table, oldest
// first.
func (h *History) Recent(ctx context.Context, tableID string, limit int) ([]session.ActionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	raw, err := h.client.LRange(ctx, historyKey(tableID), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read action history: %w", err)
	}
	records := make([]session.ActionRecord, 0, len(raw))
	for _, item := range raw {
		var rec session.ActionRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
