// Package session persists per-session corrections between analysis
// passes. A client resubmits the same session id until the pass
// finalizes; corrections accumulate so earlier answers survive later
// uploads.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"apalloc_backend/internal/allocation"
	"apalloc_backend/internal/analysis/transport"
)

const keyPrefix = "analysis:session:"

// Corrections is everything a client has submitted for one session.
type Corrections struct {
	UserUpdates       []transport.UserUpdate        `json:"user_updates"`
	PromptSubmissions []allocation.PromptSubmission `json:"prompt_submissions"`
	SupportUpdates    []allocation.SupportUpdate    `json:"support_updates"`
}

// Store keeps session corrections in redis with a sliding TTL.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// Load returns the accumulated corrections for a session, or an empty
// set when the session is unknown or expired.
func (s *Store) Load(ctx context.Context, sessionID string) (Corrections, error) {
	var c Corrections
	if s.rdb == nil {
		return c, nil
	}
	raw, err := s.rdb.Get(ctx, keyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return c, nil
		}
		return c, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return Corrections{}, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return c, nil
}

// Merge folds newly submitted corrections into the stored set and
// persists the result. Later submissions win on key collisions: user
// updates merge by email, prompt submissions by line key and prompt
// index, support updates by row key.
func (s *Store) Merge(ctx context.Context, sessionID string, incoming Corrections) (Corrections, error) {
	current, err := s.Load(ctx, sessionID)
	if err != nil {
		return Corrections{}, err
	}

	current.UserUpdates = mergeBy(current.UserUpdates, incoming.UserUpdates,
		func(u transport.UserUpdate) string { return u.Email })
	current.PromptSubmissions = mergeBy(current.PromptSubmissions, incoming.PromptSubmissions,
		func(p allocation.PromptSubmission) string {
			return fmt.Sprintf("%s#%d", p.LineKey, p.PromptIndex)
		})
	current.SupportUpdates = mergeBy(current.SupportUpdates, incoming.SupportUpdates,
		func(u allocation.SupportUpdate) string { return u.RowKey })

	if err := s.save(ctx, sessionID, current); err != nil {
		return Corrections{}, err
	}
	return current, nil
}

// Clear drops a finalized session.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Del(ctx, keyPrefix+sessionID).Err()
}

func (s *Store) save(ctx context.Context, sessionID string, c Corrections) error {
	if s.rdb == nil {
		return nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sessionID, err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+sessionID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", sessionID, err)
	}
	return nil
}

func mergeBy[T any](existing, incoming []T, key func(T) string) []T {
	if len(incoming) == 0 {
		return existing
	}
	index := make(map[string]int, len(existing))
	for i, item := range existing {
		index[key(item)] = i
	}
	for _, item := range incoming {
		if i, ok := index[key(item)]; ok {
			existing[i] = item
			continue
		}
		index[key(item)] = len(existing)
		existing = append(existing, item)
	}
	return existing
}
