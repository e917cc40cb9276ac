// Package session provides session storage backends for refresh tokens.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"nyaysakhi/api/internal/store"
)

// Store is implemented by RedisStore and by the Postgres store.
type Store interface {
	SaveRefreshSession(ctx context.Context, session store.RefreshSession) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.RefreshSession, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	RevokeUserSessions(ctx context.Context, userID string) error
	ListUserSessions(ctx context.Context, userID string) ([]store.RefreshSession, error)
}

// tokenData holds the data stored for each refresh token
type tokenData struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	UserAgent string    `json:"user_agent"`
	IP        string    `json:"ip"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RedisStore implements refresh token storage using Redis. Each user also has
// a set of their token hashes so sessions can be listed and revoked together.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis-backed session store
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "refresh:",
	}
}

// Client exposes the connection for other Redis-backed components.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) key(tokenHash string) string {
	return s.prefix + tokenHash
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + "user:" + userID
}

// SaveRefreshSession stores a refresh token until it expires.
func (s *RedisStore) SaveRefreshSession(ctx context.Context, session store.RefreshSession) error {
	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	data := tokenData{
		SessionID: session.ID,
		UserID:    session.UserID,
		UserAgent: session.UserAgent,
		IP:        session.IP,
		CreatedAt: createdAt,
		ExpiresAt: session.ExpiresAt,
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal token data: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	userKey := s.userKey(session.UserID)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(session.TokenHash), jsonData, ttl)
	pipe.SAdd(ctx, userKey, session.TokenHash)
	// Refresh TTLs are uniform, so the newest token outlives the others.
	pipe.Expire(ctx, userKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// LookupRefreshSession returns store.ErrNotFound for unknown, expired or
// revoked tokens.
func (s *RedisStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.RefreshSession, error) {
	jsonData, err := s.client.Get(ctx, s.key(tokenHash)).Result()
	if errors.Is(err, redis.Nil) {
		return store.RefreshSession{}, store.ErrNotFound
	}
	if err != nil {
		return store.RefreshSession{}, fmt.Errorf("lookup refresh token: %w", err)
	}
	return decodeSession(tokenHash, jsonData)
}

func decodeSession(tokenHash, raw string) (store.RefreshSession, error) {
	var data tokenData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return store.RefreshSession{}, fmt.Errorf("unmarshal token data: %w", err)
	}
	return store.RefreshSession{
		ID:        data.SessionID,
		TokenHash: tokenHash,
		UserID:    data.UserID,
		UserAgent: data.UserAgent,
		IP:        data.IP,
		CreatedAt: data.CreatedAt,
		ExpiresAt: data.ExpiresAt,
	}, nil
}

// RevokeRefreshSession deletes a refresh token
func (s *RedisStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	session, err := s.LookupRefreshSession(ctx, tokenHash)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(tokenHash))
	if session.UserID != "" {
		pipe.SRem(ctx, s.userKey(session.UserID), tokenHash)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeUserSessions deletes every refresh token the user holds.
func (s *RedisStore) RevokeUserSessions(ctx context.Context, userID string) error {
	userKey := s.userKey(userID)
	hashes, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("list user tokens: %w", err)
	}
	keys := make([]string, 0, len(hashes)+1)
	for _, hash := range hashes {
		keys = append(keys, s.key(hash))
	}
	keys = append(keys, userKey)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	return nil
}

// ListUserSessions returns live sessions newest first and drops index entries
// whose tokens have expired.
func (s *RedisStore) ListUserSessions(ctx context.Context, userID string) ([]store.RefreshSession, error) {
	userKey := s.userKey(userID)
	hashes, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list user tokens: %w", err)
	}
	sessions := make([]store.RefreshSession, 0, len(hashes))
	if len(hashes) == 0 {
		return sessions, nil
	}

	keys := make([]string, len(hashes))
	for i, hash := range hashes {
		keys[i] = s.key(hash)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load user tokens: %w", err)
	}

	var stale []any
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			stale = append(stale, hashes[i])
			continue
		}
		session, err := decodeSession(hashes[i], raw)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if len(stale) > 0 {
		if err := s.client.SRem(ctx, userKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("prune user tokens: %w", err)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
