// Package service holds the conversation orchestration: the transcript store,
// the assistant exchange, response merging and the session that ties them
// together.
package service

import (
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/model"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/pkg/metrics"
)

// ConversationStore is the append-only transcript of a session.
type ConversationStore struct {
	mu       sync.RWMutex
	messages []model.Message
	now      func() time.Time
}

// NewConversationStore creates an empty transcript.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{now: time.Now}
}

// AppendUser records a user message.
func (s *ConversationStore) AppendUser(text string) model.Message {
	return s.append(model.Message{Role: model.RoleUser, Content: text})
}

// AppendAssistant records an assistant message. The role is forced to
// assistant; id and timestamp are filled in when missing.
func (s *ConversationStore) AppendAssistant(msg model.Message) model.Message {
	msg.Role = model.RoleAssistant
	return s.append(msg)
}

func (s *ConversationStore) append(msg model.Message) model.Message {
	if msg.ID == "" {
		msg.ID = uuid.Must(uuid.NewV7()).String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}

	msg = cloneMessage(msg)

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	metrics.MessagesTotal.WithLabelValues(string(msg.Role)).Inc()
	return cloneMessage(msg)
}

// Messages returns the transcript in append order.
func (s *ConversationStore) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = cloneMessage(m)
	}
	return out
}

// Len returns the number of messages.
func (s *ConversationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.messages)
}

// At returns the message at index i.
func (s *ConversationStore) At(i int) (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i < 0 || i >= len(s.messages) {
		return model.Message{}, false
	}
	return cloneMessage(s.messages[i]), true
}

// cloneMessage copies the map fields so stored messages share nothing with
// callers.
func cloneMessage(m model.Message) model.Message {
	m.Statistics = maps.Clone(m.Statistics)
	m.ChartMetadata = maps.Clone(m.ChartMetadata)
	return m
}
