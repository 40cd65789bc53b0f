package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tixgate/tixgate/internal/domain"
	pkgredis "github.com/tixgate/tixgate/pkg/redis"
	"github.com/tixgate/tixgate/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:embed scripts/join_queue.lua
var joinQueueScript string

//go:embed scripts/admit_batch.lua
var admitBatchScript string

// Script names for caching
const (
	scriptJoinQueue  = "join_queue"
	scriptAdmitBatch = "admit_batch"
)

// RedisQueueRepository implements QueueRepository using Redis sorted sets
type RedisQueueRepository struct {
	client *pkgredis.Client
}

// NewRedisQueueRepository creates a new RedisQueueRepository
func NewRedisQueueRepository(client *pkgredis.Client) *RedisQueueRepository {
	return &RedisQueueRepository{client: client}
}

// LoadScripts loads all queue Lua scripts into Redis
func (r *RedisQueueRepository) LoadScripts(ctx context.Context) error {
	scripts := map[string]string{
		scriptJoinQueue:  joinQueueScript,
		scriptAdmitBatch: admitBatchScript,
	}

	for name, script := range scripts {
		if _, err := r.client.LoadScript(ctx, name, script); err != nil {
			return fmt.Errorf("failed to load script %s: %w", name, err)
		}
	}

	return nil
}

func queueKey(eventID string) string {
	return fmt.Sprintf("queue:%s", eventID)
}

func queueUserKey(eventID, userID string) string {
	return fmt.Sprintf("queue:user:%s:%s", eventID, userID)
}

func queueSeqKey(eventID string) string {
	return fmt.Sprintf("queue:seq:%s", eventID)
}

func queuePassKey(eventID, userID string) string {
	return fmt.Sprintf("queue:pass:%s:%s", eventID, userID)
}

// joinTimeFromScore unpacks the join timestamp from a queue score. The low
// three digits are the tie-break counter.
func joinTimeFromScore(score float64) time.Time {
	return time.UnixMilli(int64(score) / 1000)
}

// Join atomically adds a user to the event queue
func (r *RedisQueueRepository) Join(ctx context.Context, params JoinQueueParams) (*JoinQueueResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.queue.join")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", params.EventID),
		attribute.String("user_id", params.UserID),
	)

	nowMs := time.Now().UnixMilli()
	keys := []string{
		queueKey(params.EventID),
		queueUserKey(params.EventID, params.UserID),
		queueSeqKey(params.EventID),
	}
	args := []interface{}{
		params.UserID,     // ARGV[1]: user_id
		nowMs,             // ARGV[2]: join time (ms)
		params.TTLSeconds, // ARGV[3]: metadata ttl
	}

	result := r.client.EvalWithFallback(ctx, scriptJoinQueue, joinQueueScript, keys, args...)
	if result.Err() != nil {
		span.RecordError(result.Err())
		span.SetStatus(codes.Error, result.Err().Error())
		return nil, fmt.Errorf("failed to execute join_queue script: %w", result.Err())
	}

	values, err := result.Slice()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to parse script result: %w", err)
	}
	if len(values) < 4 {
		span.SetStatus(codes.Error, "unexpected result length")
		return nil, fmt.Errorf("unexpected script result length: %d", len(values))
	}

	joined, _ := toInt64(values[0])
	position, _ := toInt64(values[1])
	total, _ := toInt64(values[2])
	score, _ := toFloat64(values[3])

	span.SetAttributes(
		attribute.Int64("position", position),
		attribute.Int64("total_in_queue", total),
		attribute.Bool("already_queued", joined == 0),
	)
	span.SetStatus(codes.Ok, "")

	return &JoinQueueResult{
		Joined:       joined == 1,
		Position:     position,
		TotalInQueue: total,
		JoinedAt:     joinTimeFromScore(score),
	}, nil
}

// Position returns the user's 1-based rank and the queue size
func (r *RedisQueueRepository) Position(ctx context.Context, eventID, userID string) (*QueuePositionResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.queue.position")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.String("user_id", userID),
	)

	rank, err := r.client.ZRank(ctx, queueKey(eventID), userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			span.SetStatus(codes.Ok, "not in queue")
			return &QueuePositionResult{IsInQueue: false}, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get queue position: %w", err)
	}

	total, err := r.client.ZCard(ctx, queueKey(eventID)).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get queue size: %w", err)
	}

	span.SetAttributes(
		attribute.Int64("position", rank+1),
		attribute.Int64("total_in_queue", total),
	)
	span.SetStatus(codes.Ok, "")
	return &QueuePositionResult{
		Position:     rank + 1,
		TotalInQueue: total,
		IsInQueue:    true,
	}, nil
}

// Leave removes a user from the queue
func (r *RedisQueueRepository) Leave(ctx context.Context, eventID, userID string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.queue.leave")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.String("user_id", userID),
	)

	removed, err := r.client.ZRem(ctx, queueKey(eventID), userID).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("failed to remove from queue: %w", err)
	}

	r.client.Del(ctx, queueUserKey(eventID, userID))

	span.SetAttributes(attribute.Bool("removed", removed > 0))
	span.SetStatus(codes.Ok, "")
	return removed > 0, nil
}

// Size returns the number of users queued for an event
func (r *RedisQueueRepository) Size(ctx context.Context, eventID string) (int64, error) {
	count, err := r.client.ZCard(ctx, queueKey(eventID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue size: %w", err)
	}
	return count, nil
}

// Stats returns queue size plus oldest and newest join times
func (r *RedisQueueRepository) Stats(ctx context.Context, eventID string) (*domain.QueueStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.queue.stats")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	key := queueKey(eventID)
	total, err := r.client.ZCard(ctx, key).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get queue size: %w", err)
	}

	stats := &domain.QueueStats{EventID: eventID, Size: total}
	if total == 0 {
		span.SetStatus(codes.Ok, "")
		return stats, nil
	}

	oldest, err := r.client.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get oldest queue entry: %w", err)
	}
	newest, err := r.client.ZRangeWithScores(ctx, key, -1, -1).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get newest queue entry: %w", err)
	}

	if len(oldest) > 0 {
		t := joinTimeFromScore(oldest[0].Score)
		stats.OldestJoinedAt = &t
	}
	if len(newest) > 0 {
		t := joinTimeFromScore(newest[0].Score)
		stats.NewestJoinedAt = &t
	}

	span.SetStatus(codes.Ok, "")
	return stats, nil
}

// Entries returns up to limit entries in rank order with 1-based positions
func (r *RedisQueueRepository) Entries(ctx context.Context, eventID string, limit int64) ([]domain.QueueEntry, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.queue.entries")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	stop := limit - 1
	if limit <= 0 {
		stop = -1
	}

	members, err := r.client.ZRangeWithScores(ctx, queueKey(eventID), 0, stop).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}

	entries := make([]domain.QueueEntry, 0, len(members))
	for i, member := range members {
		userID, ok := member.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, domain.QueueEntry{
			UserID:   userID,
			EventID:  eventID,
			Position: int64(i) + 1,
			JoinedAt: joinTimeFromScore(member.Score),
		})
	}

	span.SetAttributes(attribute.Int("count", len(entries)))
	span.SetStatus(codes.Ok, "")
	return entries, nil
}

// AdmitBatch atomically removes up to count users from the front of the queue
func (r *RedisQueueRepository) AdmitBatch(ctx context.Context, eventID string, count int64) ([]string, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.queue.admit_batch")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.Int64("batch_size", count),
	)

	if count <= 0 {
		span.SetStatus(codes.Ok, "")
		return []string{}, nil
	}

	keys := []string{queueKey(eventID)}
	args := []interface{}{count, eventID}

	result := r.client.EvalWithFallback(ctx, scriptAdmitBatch, admitBatchScript, keys, args...)
	if result.Err() != nil {
		span.RecordError(result.Err())
		span.SetStatus(codes.Error, result.Err().Error())
		return nil, fmt.Errorf("failed to execute admit_batch script: %w", result.Err())
	}

	values, err := result.StringSlice()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to parse script result: %w", err)
	}

	span.SetAttributes(attribute.Int("admitted", len(values)))
	span.SetStatus(codes.Ok, "")
	return values, nil
}

// ActiveQueueEventIDs lists event ids that currently have queue state
func (r *RedisQueueRepository) ActiveQueueEventIDs(ctx context.Context) ([]string, error) {
	var eventIDs []string
	var cursor uint64

	for {
		keys, nextCursor, err := r.client.Scan(ctx, cursor, "queue:*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue keys: %w", err)
		}

		for _, key := range keys {
			suffix := strings.TrimPrefix(key, "queue:")
			// Skip metadata keys (queue:user:*, queue:seq:*, queue:pass:*)
			if strings.HasPrefix(suffix, "user:") ||
				strings.HasPrefix(suffix, "seq:") ||
				strings.HasPrefix(suffix, "pass:") {
				continue
			}
			if suffix != "" {
				eventIDs = append(eventIDs, suffix)
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return eventIDs, nil
}

// StoreQueuePass stores an admission token for a user with TTL
func (r *RedisQueueRepository) StoreQueuePass(ctx context.Context, eventID, userID, token string, ttl time.Duration) error {
	if err := r.client.Set(ctx, queuePassKey(eventID, userID), token, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store queue pass: %w", err)
	}
	return nil
}

// GetQueuePass returns the stored admission token, empty if absent
func (r *RedisQueueRepository) GetQueuePass(ctx context.Context, eventID, userID string) (string, error) {
	token, err := r.client.Get(ctx, queuePassKey(eventID, userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get queue pass: %w", err)
	}
	return token, nil
}

// DeleteQueuePass removes the admission token after use
func (r *RedisQueueRepository) DeleteQueuePass(ctx context.Context, eventID, userID string) error {
	if err := r.client.Del(ctx, queuePassKey(eventID, userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete queue pass: %w", err)
	}
	return nil
}

// toInt64 converts a Lua script return value to int64
func toInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case float64:
		return int64(val), true
	case string:
		var n int64
		if _, err := fmt.Sscanf(val, "%d", &n); err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// toFloat64 converts a Lua script return value to float64
func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int64:
		return float64(val), true
	case int:
		return float64(val), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(val, "%f", &f); err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Ensure RedisQueueRepository implements QueueRepository
var _ QueueRepository = (*RedisQueueRepository)(nil)
