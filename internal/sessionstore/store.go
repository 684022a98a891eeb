// Package sessionstore keeps puzzle session snapshots in Redis so a session
// survives a server restart and can be served by any replica.
package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/cheese-puzzle/internal/puzzle"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrConflict = errors.New("session changed concurrently")
)

const updateAttempts = 3

// Record is one stored session.
type Record struct {
	ID        string          `json:"id"`
	Player    string          `json:"player,omitempty"`
	Puzzle    puzzle.Record   `json:"puzzle"`
	Snapshot  puzzle.Snapshot `json:"snapshot"`
	Rewarded  bool            `json:"rewarded,omitempty"`
	Revision  int64           `json:"revision,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// New connects to redisURL and checks the connection.
func New(ctx context.Context, redisURL string, ttl time.Duration) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for session store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(rdb, ttl), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// Save writes rec and refreshes its TTL.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	if rec == nil || strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("save session: missing id")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.UpdatedAt = time.Now()
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, sessionKey(rec.ID), raw, s.ttl)
	if p := strings.TrimSpace(rec.Player); p != "" {
		pipe.SAdd(ctx, playerKey(p), rec.ID)
		pipe.Expire(ctx, playerKey(p), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// SaveLatest writes rec unless the stored copy already carries the same or a
// newer Revision. It reports whether rec was written. A stored Rewarded flag is
// never cleared.
func (s *Store) SaveLatest(ctx context.Context, rec *Record) (bool, error) {
	if rec == nil || strings.TrimSpace(rec.ID) == "" {
		return false, fmt.Errorf("save session: missing id")
	}
	key := sessionKey(rec.ID)
	var written bool
	txf := func(tx *redis.Tx) error {
		written = false
		next := *rec
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var cur Record
			if err := json.Unmarshal(raw, &cur); err != nil {
				return fmt.Errorf("decode session %s: %w", rec.ID, err)
			}
			if cur.Revision >= next.Revision {
				return nil
			}
			next.Rewarded = next.Rewarded || cur.Rewarded
		}
		if next.CreatedAt.IsZero() {
			next.CreatedAt = time.Now()
		}
		next.UpdatedAt = time.Now()
		out, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.ttl)
			if p := strings.TrimSpace(next.Player); p != "" {
				pipe.SAdd(ctx, playerKey(p), next.ID)
				pipe.Expire(ctx, playerKey(p), s.ttl)
			}
			return nil
		})
		written = err == nil
		return err
	}

	for attempt := 0; attempt < updateAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return written, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return false, fmt.Errorf("save session: %w", err)
		}
	}
	return false, fmt.Errorf("%w: %s", ErrConflict, rec.ID)
}

// Load returns the stored session or ErrNotFound.
func (s *Store) Load(ctx context.Context, id string) (*Record, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &rec, nil
}

// Update applies fn under WATCH. fn may be called more than once when
// another writer races; after a few lost races Update gives up with
// ErrConflict.
func (s *Store) Update(ctx context.Context, id string, fn func(*Record) error) (*Record, error) {
	key := sessionKey(id)
	var out *Record
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode session %s: %w", id, err)
		}
		if err := fn(&rec); err != nil {
			return err
		}
		rec.UpdatedAt = time.Now()
		next, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, s.ttl)
			return nil
		})
		if err == nil {
			out = &rec
		}
		return err
	}

	for attempt := 0; attempt < updateAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrConflict, id)
}

// Delete removes the session. Missing sessions are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	rec, err := s.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	if p := strings.TrimSpace(rec.Player); p != "" {
		pipe.SRem(ctx, playerKey(p), id)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// ByPlayer lists a player's live sessions, most recently updated first.
// Expired entries are pruned from the index.
func (s *Store) ByPlayer(ctx context.Context, player string) ([]*Record, error) {
	player = strings.TrimSpace(player)
	if player == "" {
		return nil, nil
	}
	ids, err := s.rdb.SMembers(ctx, playerKey(player)).Result()
	if err != nil {
		return nil, err
	}
	var list []*Record
	for _, id := range ids {
		rec, err := s.Load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			_ = s.rdb.SRem(ctx, playerKey(player), id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UpdatedAt.After(list[j].UpdatedAt) })
	return list, nil
}

func sessionKey(id string) string { return "puzzle:session:" + strings.TrimSpace(id) }
func playerKey(player string) string { return "puzzle:index:player:" + strings.TrimSpace(player) }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
