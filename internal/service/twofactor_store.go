package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"docguard/internal/domain"
)

// TwoFactorChallengeStore guarda desafíos 2FA pendientes con expiración.
type TwoFactorChallengeStore interface {
	Save(challenge domain.TwoFactorChallenge, ttl time.Duration) error
	Get(sessionID string) (domain.TwoFactorChallenge, bool, error)
	Delete(sessionID string) error
}

type memoryChallengeStore struct {
	mu    sync.Mutex
	items map[string]domain.TwoFactorChallenge
}

func NewMemoryChallengeStore() TwoFactorChallengeStore {
	return &memoryChallengeStore{
		items: make(map[string]domain.TwoFactorChallenge),
	}
}

func (s *memoryChallengeStore) Save(challenge domain.TwoFactorChallenge, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(challenge.SessionID) == "" {
		return nil
	}
	s.items[challenge.SessionID] = challenge
	return nil
}

func (s *memoryChallengeStore) Get(sessionID string) (domain.TwoFactorChallenge, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	challenge, ok := s.items[sessionID]
	if !ok {
		return domain.TwoFactorChallenge{}, false, nil
	}
	if challenge.Expired(time.Now().UTC()) {
		delete(s.items, sessionID)
		return domain.TwoFactorChallenge{}, false, nil
	}
	return challenge, true, nil
}

func (s *memoryChallengeStore) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, sessionID)
	return nil
}

type redisChallengeStore struct {
	client *redis.Client
	prefix string
}

func NewRedisChallengeStore(client *redis.Client) TwoFactorChallengeStore {
	if client == nil {
		return nil
	}
	return &redisChallengeStore{
		client: client,
		prefix: "docguard:2fa:challenge:",
	}
}

func (s *redisChallengeStore) Save(challenge domain.TwoFactorChallenge, ttl time.Duration) error {
	if strings.TrimSpace(challenge.SessionID) == "" {
		return nil
	}
	payload, err := json.Marshal(challenge)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.prefix+challenge.SessionID, payload, ttl).Err()
}

func (s *redisChallengeStore) Get(sessionID string) (domain.TwoFactorChallenge, bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return domain.TwoFactorChallenge{}, false, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	raw, err := s.client.Get(ctx, s.prefix+sessionID).Bytes()
	if err == redis.Nil {
		return domain.TwoFactorChallenge{}, false, nil
	}
	if err != nil {
		return domain.TwoFactorChallenge{}, false, err
	}
	var challenge domain.TwoFactorChallenge
	if err := json.Unmarshal(raw, &challenge); err != nil {
		return domain.TwoFactorChallenge{}, false, err
	}
	if challenge.Expired(time.Now().UTC()) {
		_ = s.Delete(sessionID)
		return domain.TwoFactorChallenge{}, false, nil
	}
	return challenge, true, nil
}

func (s *redisChallengeStore) Delete(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return s.client.Del(ctx, s.prefix+sessionID).Err()
}
