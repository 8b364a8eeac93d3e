package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists the parts of a live session that must survive a dropped
// connection: which problems are permanently locked by an accepted
// submission, and whether a proctoring violation was recorded.
type Store interface {
	AcceptedProblems(ctx context.Context, contestID, email string) (map[string]bool, error)
	MarkAccepted(ctx context.Context, contestID, email, problemID string) error
	HasViolation(ctx context.Context, contestID, email string) (bool, error)
	MarkViolation(ctx context.Context, contestID, email string) error
}

// State older than this is contest debris; contests run hours, not days.
const storeTTL = 48 * time.Hour

type redisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) Store {
	return &redisStore{rdb: rdb}
}

func acceptedKey(contestID, email string) string {
	return fmt.Sprintf("session:%s:%s:accepted", contestID, email)
}

func violationKey(contestID, email string) string {
	return fmt.Sprintf("session:%s:%s:violation", contestID, email)
}

func (s *redisStore) AcceptedProblems(ctx context.Context, contestID, email string) (map[string]bool, error) {
	members, err := s.rdb.SMembers(ctx, acceptedKey(contestID, email)).Result()
	if err != nil {
		return nil, fmt.Errorf("session store: read accepted set: %w", err)
	}
	accepted := make(map[string]bool, len(members))
	for _, id := range members {
		accepted[id] = true
	}
	return accepted, nil
}

func (s *redisStore) MarkAccepted(ctx context.Context, contestID, email, problemID string) error {
	key := acceptedKey(contestID, email)
	if err := s.rdb.SAdd(ctx, key, problemID).Err(); err != nil {
		return fmt.Errorf("session store: mark accepted: %w", err)
	}
	s.rdb.Expire(ctx, key, storeTTL)
	return nil
}

func (s *redisStore) HasViolation(ctx context.Context, contestID, email string) (bool, error) {
	n, err := s.rdb.Exists(ctx, violationKey(contestID, email)).Result()
	if err != nil {
		return false, fmt.Errorf("session store: read violation flag: %w", err)
	}
	return n > 0, nil
}

func (s *redisStore) MarkViolation(ctx context.Context, contestID, email string) error {
	if err := s.rdb.Set(ctx, violationKey(contestID, email), "1", storeTTL).Err(); err != nil {
		return fmt.Errorf("session store: mark violation: %w", err)
	}
	return nil
}
