// Package queue is the Redis-backed search request queue. Producers LPUSH
// JSON requests onto a list and workers RPOP them, so requests are served
// in FIFO order.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"jobmate/aggregator-service/internal/model"
)

// DefaultKey is the list the request producers push to.
const DefaultKey = "link-request-queue"

// ErrMalformed is returned by Pop for a payload that is not a valid
// request. The payload has already been removed from the list.
var ErrMalformed = errors.New("malformed search request")

// Client is the subset of redis.Cmdable used by the queue.
type Client interface {
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	RPop(ctx context.Context, key string) *redis.StringCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// Queue pops and pushes search requests.
type Queue struct {
	rdb      Client
	key      string
	validate *validator.Validate
	now      func() time.Time
}

// New returns a queue over key, or DefaultKey when key is empty.
func New(rdb Client, key string) *Queue {
	if key == "" {
		key = DefaultKey
	}
	return &Queue{rdb: rdb, key: key, validate: validator.New(), now: time.Now}
}

// Key returns the Redis list name.
func (q *Queue) Key() string { return q.key }

// Pop removes the oldest request without blocking. ok is false when the
// list is empty.
func (q *Queue) Pop(ctx context.Context) (req model.SearchRequest, ok bool, err error) {
	payload, err := q.rdb.RPop(ctx, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return model.SearchRequest{}, false, nil
	}
	if err != nil {
		return model.SearchRequest{}, false, fmt.Errorf("rpop %s: %w", q.key, err)
	}

	req, err = q.decode(payload)
	if err != nil {
		return model.SearchRequest{}, true, err
	}
	return req, true, nil
}

func (q *Queue) decode(payload string) (model.SearchRequest, error) {
	var req model.SearchRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return req, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return req, q.prepare(&req)
}

// prepare validates req and fills in its ID and timestamp when missing.
func (q *Queue) prepare(req *model.SearchRequest) error {
	req.Role = strings.TrimSpace(req.Role)
	if err := q.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = q.now().UTC()
	}
	return nil
}

// Push validates req and appends it to the queue.
func (q *Queue) Push(ctx context.Context, req model.SearchRequest) error {
	if err := q.prepare(&req); err != nil {
		return err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", q.key, err)
	}
	return nil
}

// Len returns the number of pending requests.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("llen %s: %w", q.key, err)
	}
	return n, nil
}
