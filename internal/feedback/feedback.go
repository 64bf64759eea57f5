// Package feedback stores user suggestions, complaints, and bug reports.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// itemTTL keeps individual feedback records for 30 days.
	itemTTL = 30 * 24 * time.Hour

	listKey = "feedback:all"
)

type Feedback struct {
	ID        string         `json:"id"`
	UserID    string         `json:"userId"`
	UserEmail string         `json:"userEmail,omitempty"`
	UserName  string         `json:"userName"`
	Type      string         `json:"type"` // suggestion, complaint, bug, compliment
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	Timestamp int64          `json:"timestamp"`
	Resolved  bool           `json:"resolved"`
	CreatedAt string         `json:"createdAt"`
}

// Store writes feedback to redis when it is reachable and degrades to
// logging when it is not; unlike rooms, feedback is not capability-gated.
type Store struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewStore(rdb *redis.Client, log *zap.Logger) *Store {
	return &Store{rdb: rdb, log: log}
}

// New builds a feedback record with defaults matching the submission API.
func New(userID, userEmail, userName, kind, message string, extra map[string]any) Feedback {
	now := time.Now()
	if userID == "" {
		userID = "anonymous"
	}
	if userName == "" {
		userName = "Anonymous"
	}
	return Feedback{
		ID:        fmt.Sprintf("feedback_%d_%s", now.UnixMilli(), randSuffix()),
		UserID:    userID,
		UserEmail: userEmail,
		UserName:  userName,
		Type:      kind,
		Message:   message,
		Context:   extra,
		Timestamp: now.UnixMilli(),
		CreatedAt: now.UTC().Format(time.RFC3339),
	}
}

func (s *Store) Save(ctx context.Context, fb Feedback) error {
	b, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback %s - %w", fb.ID, err)
	}

	key := fmt.Sprintf("feedback:%d:%s", fb.Timestamp, fb.UserID)
	if err := s.rdb.Set(ctx, key, b, itemTTL).Err(); err != nil {
		// Feedback must never be lost silently; fall back to the log.
		s.log.Warn("redis unavailable, feedback logged only",
			zap.String("id", fb.ID),
			zap.String("type", fb.Type),
			zap.String("message", fb.Message),
			zap.Error(err))
		return nil
	}
	if err := s.rdb.LPush(ctx, listKey, b).Err(); err != nil {
		return fmt.Errorf("failed to append feedback %s to list - %w", fb.ID, err)
	}
	return nil
}

// All returns every stored feedback record, newest first.
func (s *Store) All(ctx context.Context) ([]Feedback, error) {
	items, err := s.rdb.LRange(ctx, listKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read feedback list - %w", err)
	}
	list := make([]Feedback, 0, len(items))
	for _, item := range items {
		var fb Feedback
		if err := json.Unmarshal([]byte(item), &fb); err != nil {
			s.log.Warn("skipping malformed feedback record", zap.Error(err))
			continue
		}
		list = append(list, fb)
	}
	// LPUSH already yields newest-first, but records predating the list
	// ordering may interleave.
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && list[j].Timestamp > list[j-1].Timestamp; j-- {
			list[j], list[j-1] = list[j-1], list[j]
		}
	}
	return list, nil
}

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randSuffix() string {
	b := make([]byte, 9)
	for i := range b {
		b[i] = suffixAlphabet[rand.IntN(len(suffixAlphabet))]
	}
	return string(b)
}
