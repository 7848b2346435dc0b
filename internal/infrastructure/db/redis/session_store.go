package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medcloud/tenantgate/internal/core/domain"
)

const defaultSessionTTL = 7 * 24 * time.Hour

// SessionStore keeps server sessions as JSON values with a fixed TTL.
// Key format: sess:<session_id>
// Bridged sessions are also indexed by bridge:<account_id>:<product_area>,
// holding the session id with the same TTL.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionStore{client: client, ttl: ttl}
}

// Save writes s under its ID and (re)starts its TTL.
func (s *SessionStore) Save(ctx context.Context, sess *domain.Session) error {
	if sess.ID == "" {
		return errors.New("session id is required")
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sess.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Get returns domain.ErrSessionNotFound for unknown or expired ids.
func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// Delete is idempotent.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Bridged follows the account's bridge pointer. A pointer to an expired or
// deleted session reads as domain.ErrSessionNotFound.
func (s *SessionStore) Bridged(ctx context.Context, accountID string, area domain.ProductArea) (*domain.Session, error) {
	id, err := s.client.Get(ctx, s.bridgeKey(accountID, area)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load bridge pointer: %w", err)
	}
	return s.Get(ctx, id)
}

// SaveBridged writes sess and claims the bridge pointer with SET NX. When
// another caller holds a live pointer, sess is discarded and the holder's
// session is returned. A pointer left behind by a deleted session is taken over.
func (s *SessionStore) SaveBridged(ctx context.Context, sess *domain.Session) (*domain.Session, bool, error) {
	if err := s.Save(ctx, sess); err != nil {
		return nil, false, err
	}
	pointer := s.bridgeKey(sess.AccountID, sess.ProductArea)

	claimed, err := s.client.SetNX(ctx, pointer, sess.ID, s.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("claim bridge pointer: %w", err)
	}
	if claimed {
		return sess, true, nil
	}

	holder, err := s.Bridged(ctx, sess.AccountID, sess.ProductArea)
	switch {
	case err == nil:
		if derr := s.Delete(ctx, sess.ID); derr != nil {
			return nil, false, derr
		}
		return holder, false, nil
	case errors.Is(err, domain.ErrSessionNotFound):
		if err := s.client.Set(ctx, pointer, sess.ID, s.ttl).Err(); err != nil {
			return nil, false, fmt.Errorf("replace bridge pointer: %w", err)
		}
		return sess, true, nil
	default:
		return nil, false, err
	}
}

func (s *SessionStore) key(id string) string {
	return "sess:" + id
}

func (s *SessionStore) bridgeKey(accountID string, area domain.ProductArea) string {
	return "bridge:" + accountID + ":" + string(area)
}
