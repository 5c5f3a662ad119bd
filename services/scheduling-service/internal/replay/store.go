package replay

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 24 * time.Hour

type State int

const (
	// StateNew means the caller claimed the key and must run the request.
	StateNew State = iota
	// StateInFlight means another request with the same key has not finished yet.
	StateInFlight
	// StateDone means a stored response is available for replay.
	StateDone
)

// Entry is a stored response.
type Entry struct {
	Status  int             `json:"status"`
	Body    json.RawMessage `json:"body,omitempty"`
	Pending bool            `json:"pending,omitempty"`
}

// Store remembers responses by Idempotency-Key so a repeated batch submission is answered
// without booking the appointments again.
type Store struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func Key(scope, key string) string {
	return "replay:" + scope + ":" + strings.TrimSpace(key)
}

// Begin claims key for scope, or reports the state left by an earlier request.
func (s *Store) Begin(ctx context.Context, scope, key string) (State, Entry, error) {
	pending, _ := json.Marshal(Entry{Pending: true})
	ok, err := s.rdb.SetNX(ctx, Key(scope, key), pending, s.ttl).Result()
	if err != nil {
		return 0, Entry{}, err
	}
	if ok {
		return StateNew, Entry{}, nil
	}

	raw, err := s.rdb.Get(ctx, Key(scope, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired or released between the two calls; let the caller retry the claim.
		return s.Begin(ctx, scope, key)
	}
	if err != nil {
		return 0, Entry{}, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return 0, Entry{}, err
	}
	if e.Pending {
		return StateInFlight, Entry{}, nil
	}
	return StateDone, e, nil
}

// Complete stores the final response of a claimed key.
func (s *Store) Complete(ctx context.Context, scope, key string, e Entry) error {
	e.Pending = false
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, Key(scope, key), raw, s.ttl).Err()
}

// Release drops a claim so the request can be retried with the same key.
func (s *Store) Release(ctx context.Context, scope, key string) error {
	return s.rdb.Del(ctx, Key(scope, key)).Err()
}

func ReadyCheck(rdb redis.Cmdable) func(context.Context) error {
	return func(ctx context.Context) error {
		if rdb == nil {
			return errors.New("redis not configured")
		}
		return rdb.Ping(ctx).Err()
	}
}
