package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/ingest"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/model"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/pkg/logger"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/pkg/metrics"
)

// ErrSuperseded is returned by Send when a newer send was issued while the
// exchange was in flight; its response is dropped.
var ErrSuperseded = errors.New("response superseded by a newer message")

// EventPublisher receives transcript entries and session events.
type EventPublisher interface {
	PublishMessage(ctx context.Context, sessionID string, msg *model.Message) error
	PublishEvent(ctx context.Context, event *model.SessionEvent) error
}

type nopPublisher struct{}

func (nopPublisher) PublishMessage(context.Context, string, *model.Message) error { return nil }
func (nopPublisher) PublishEvent(context.Context, *model.SessionEvent) error      { return nil }

// SessionOptions configures a Session.
type SessionOptions struct {
	Persona   model.Persona
	Publisher EventPublisher
}

// Session orchestrates one user's conversation and uploads.
type Session struct {
	id        string
	store     *ConversationStore
	files     *ingest.FileList
	uploader  *ingest.Coordinator
	assistant *AssistantClient
	merger    *ResponseMerger
	publisher EventPublisher
	logger    *logger.Logger

	mu      sync.RWMutex
	persona model.Persona

	// sendMu serializes the start of a send (history snapshot, user append,
	// generation bump) against other starts and against reply merging.
	sendMu     sync.Mutex
	generation atomic.Uint64
}

// NewSession creates a session with an empty transcript and file list.
func NewSession(
	assistant *AssistantClient,
	uploader *ingest.Coordinator,
	opts SessionOptions,
	log *logger.Logger,
) *Session {
	id := uuid.Must(uuid.NewV7()).String()

	persona := opts.Persona
	if persona == "" {
		persona = model.DefaultPersona
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = nopPublisher{}
	}

	return &Session{
		id:        id,
		store:     NewConversationStore(),
		files:     ingest.NewFileList(),
		uploader:  uploader,
		assistant: assistant,
		merger:    NewResponseMerger(),
		publisher: publisher,
		logger:    log.Named("session").WithSession(id),
		persona:   persona,
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Persona returns the persona used for the next send.
func (s *Session) Persona() model.Persona {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persona
}

// SetPersona changes the persona for subsequent sends.
func (s *Session) SetPersona(p model.Persona) {
	if p == "" {
		p = model.DefaultPersona
	}
	s.mu.Lock()
	s.persona = p
	s.mu.Unlock()
}

// Messages returns the transcript.
func (s *Session) Messages() []model.Message {
	return s.store.Messages()
}

// Message returns the transcript entry at index i.
func (s *Session) Message(i int) (model.Message, bool) {
	return s.store.At(i)
}

// Files returns the uploaded files.
func (s *Session) Files() []model.UploadedFile {
	return s.files.Files()
}

// Send appends text as a user message, performs the exchange and appends the
// assistant reply. Blank text returns ErrBlankMessage and changes nothing. If
// another Send starts before the reply arrives, the reply is discarded and
// ErrSuperseded is returned.
func (s *Session) Send(ctx context.Context, text string) (model.Message, error) {
	if strings.TrimSpace(text) == "" {
		return model.Message{}, ErrBlankMessage
	}

	persona := s.Persona()
	in, userMsg, gen := s.begin(text, persona)
	s.publishMessage(ctx, &userMsg)

	outcome, err := s.assistant.Exchange(ctx, in)
	if err != nil {
		return model.Message{}, err
	}

	reply, current, ok := s.finish(outcome, persona, gen)
	if !ok {
		metrics.StaleResponsesTotal.Inc()
		s.logger.Warn("discarding superseded response",
			zap.Uint64("generation", gen),
			zap.Uint64("current", current),
			zap.Bool("ok", outcome.OK()),
		)
		s.publishEvent(ctx, model.EventTypeResponseDiscarded, "superseded", map[string]any{
			"generation": gen,
			"current":    current,
		})
		return model.Message{}, ErrSuperseded
	}

	if !outcome.OK() {
		s.publishEvent(ctx, model.EventTypeExchangeFailed, "exchange failed", nil)
	}
	s.publishMessage(ctx, &reply)

	return reply, nil
}

// begin snapshots the history, appends the user message and takes the next
// generation as one step, so generation order matches transcript order.
func (s *Session) begin(text string, persona model.Persona) (ExchangeInput, model.Message, uint64) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	in := ExchangeInput{
		Text:    text,
		History: s.store.Messages(),
		Persona: persona,
		Files:   s.files.Files(),
	}
	userMsg := s.store.AppendUser(text)
	return in, userMsg, s.generation.Add(1)
}

// finish appends the reply for outcome when gen is still the current
// generation. It returns the current generation and false otherwise.
func (s *Session) finish(outcome Outcome, persona model.Persona, gen uint64) (model.Message, uint64, bool) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if current := s.generation.Load(); current != gen {
		return model.Message{}, current, false
	}
	return s.merger.Merge(s.store, outcome, persona), gen, true
}

// Upload parses files concurrently and appends the successes, in input order,
// after the existing uploads.
func (s *Session) Upload(ctx context.Context, files []ingest.RawFile) []ingest.Result {
	results := s.uploader.Upload(ctx, s.files, files)

	for _, r := range results {
		if r.OK() {
			s.publishEvent(ctx, model.EventTypeFileAdded, "", map[string]any{
				"file_id": r.File.ID,
				"name":    r.File.Name,
				"kind":    string(r.File.Kind()),
			})
			continue
		}
		s.publishEvent(ctx, model.EventTypeFileRejected, string(r.Reason()), map[string]any{
			"name":  r.Name,
			"index": r.Index,
		})
	}

	return results
}

// RemoveFile deletes an uploaded file by id.
func (s *Session) RemoveFile(ctx context.Context, id string) bool {
	f, ok := s.files.Remove(id)
	if ok {
		s.logger.Info("file removed", zap.String("file_id", id), zap.String("name", f.Name))
		s.publishEvent(ctx, model.EventTypeFileRemoved, "", map[string]any{"file_id": id, "name": f.Name})
	}
	return ok
}

func (s *Session) publishMessage(ctx context.Context, msg *model.Message) {
	if err := s.publisher.PublishMessage(ctx, s.id, msg); err != nil {
		s.logger.Warn("failed to publish message", zap.String("message_id", msg.ID), zap.Error(err))
	}
}

func (s *Session) publishEvent(ctx context.Context, eventType model.EventType, reason string, metadata map[string]any) {
	event := &model.SessionEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		SessionID: s.id,
		Type:      eventType,
		Reason:    reason,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", string(eventType)), zap.Error(err))
	}
}
