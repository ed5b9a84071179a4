// Package cache mirrors presence state into Redis so operational tooling
// and sibling services can read who is online. The in-process registry
// stays authoritative; every write here is best-effort.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type PresenceStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewPresenceStore(client *redis.Client, prefix string) *PresenceStore {
	return &PresenceStore{client: client, prefix: prefix, ttl: 24 * time.Hour}
}

func (s *PresenceStore) key(userID string) string {
	return fmt.Sprintf("%s:presence:%s", s.prefix, userID)
}

func (s *PresenceStore) SetOnline(ctx context.Context, userID string) error {
	b, _ := json.Marshal(map[string]any{"status": "online", "last_seen": time.Now().Unix()})
	return s.client.Set(ctx, s.key(userID), b, s.ttl).Err()
}

func (s *PresenceStore) SetOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	b, _ := json.Marshal(map[string]any{"status": "offline", "last_seen": lastSeen.Unix()})
	return s.client.Set(ctx, s.key(userID), b, s.ttl).Err()
}

func (s *PresenceStore) Get(ctx context.Context, userID string) (map[string]any, error) {
	b, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
