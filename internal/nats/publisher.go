package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/model"
)

// DefaultSubjectPrefix roots every subject published by the client.
const DefaultSubjectPrefix = "qa"

// Publisher implements service.EventPublisher on core NATS. Nothing is
// retained by the server; observers must be subscribed to see traffic.
type Publisher struct {
	client *Client
	prefix string
}

// NewPublisher creates a publisher rooted at prefix.
func NewPublisher(client *Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Publisher{client: client, prefix: prefix}
}

// MessageSubject returns the subject for a transcript entry.
func MessageSubject(prefix, sessionID string, role model.Role) string {
	return fmt.Sprintf("%s.%s.msg.%s", prefix, sessionID, role)
}

// EventSubject returns the subject for a session event.
func EventSubject(prefix, sessionID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.event.%s", prefix, sessionID, eventType)
}

// SessionFilter returns the wildcard subject for everything in a session.
func SessionFilter(prefix, sessionID string) string {
	return fmt.Sprintf("%s.%s.>", prefix, sessionID)
}

// PublishMessage publishes a transcript entry.
func (p *Publisher) PublishMessage(ctx context.Context, sessionID string, msg *model.Message) error {
	return p.publish(ctx, MessageSubject(p.prefix, sessionID, msg.Role), msg)
}

// PublishEvent publishes a session event.
func (p *Publisher) PublishEvent(ctx context.Context, event *model.SessionEvent) error {
	return p.publish(ctx, EventSubject(p.prefix, event.SessionID, event.Type), event)
}

func (p *Publisher) publish(ctx context.Context, subject string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", subject, err)
	}

	if err := p.client.Conn().Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}
