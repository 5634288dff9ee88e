package chatbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type Step string

const (
	StepIdle    Step = ""
	StepMuseum  Step = "museum"
	StepDate    Step = "date"
	StepTickets Step = "tickets"
	StepConfirm Step = "confirm"
)

const maxHistory = 20

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the per-visitor chat state.
type Session struct {
	Step       Step   `json:"step"`
	MuseumID   int64  `json:"museum_id,omitempty"`
	MuseumName string `json:"museum_name,omitempty"`
	VisitDate  string `json:"visit_date,omitempty"`
	Quantity   int32  `json:"quantity,omitempty"`
	History    []Turn `json:"history,omitempty"`
}

func (s *Session) reset() {
	s.Step = StepIdle
	s.MuseumID = 0
	s.MuseumName = ""
	s.VisitDate = ""
	s.Quantity = 0
}

func (s *Session) remember(role, content string) {
	s.History = append(s.History, Turn{Role: role, Content: content})
	if len(s.History) > maxHistory {
		s.History = s.History[len(s.History)-maxHistory:]
	}
}

// SessionStore persists sessions between messages. Get returns an empty
// session for an unknown id.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, id string, s *Session) error
	Delete(ctx context.Context, id string) error
}

type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, keyPrefix: "chat:session:", ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, s.keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &Session{}, nil
		}
		return nil, fmt.Errorf("chatbot: load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("chatbot: decode session: %w", err)
	}

	return &sess, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.keyPrefix+id, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("chatbot: save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.keyPrefix+id).Err()
}

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

const sweepEvery = time.Minute

// MemoryStore keeps sessions in process. Used when no Redis is configured.
// Expired sessions are dropped by Get and by a sweep that Save runs at most
// once a minute.
type MemoryStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	sessions  map[string]memoryEntry
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		sessions: make(map[string]memoryEntry),
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok || s.now().After(entry.expiresAt) {
		delete(s.sessions, id)
		return &Session{}, nil
	}

	sess := entry.session
	sess.History = append([]Turn(nil), entry.session.History...)
	return &sess, nil
}

func (s *MemoryStore) Save(_ context.Context, id string, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= sweepEvery {
		for key, entry := range s.sessions {
			if now.After(entry.expiresAt) {
				delete(s.sessions, key)
			}
		}
		s.lastSweep = now
	}

	s.sessions[id] = memoryEntry{session: *sess, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}
