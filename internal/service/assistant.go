package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/model"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/pkg/logger"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/pkg/metrics"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/pkg/tracing"
)

var (
	// ErrBlankMessage is returned, without contacting the backend, for empty
	// or whitespace-only input.
	ErrBlankMessage = errors.New("message is blank")

	// ErrServiceReported marks a reply the backend itself flagged as an error.
	ErrServiceReported = errors.New("assistant reported an error")
)

// ChatBackend performs one chat round trip.
type ChatBackend interface {
	Chat(ctx context.Context, req *model.ChatExchangeRequest) (*model.ChatExchangeResponse, error)
}

// ExchangeInput is everything needed to build one request.
type ExchangeInput struct {
	Text string
	// History is the transcript before Text was appended.
	History []model.Message
	Persona model.Persona
	Files   []model.UploadedFile
}

// Outcome is the classified result of an exchange. Exactly one of Response
// and Err is set.
type Outcome struct {
	Response *model.ChatExchangeResponse
	Err      error
	Duration time.Duration
}

// OK reports whether the exchange succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Response != nil
}

// AssistantClient builds and sends chat exchanges.
type AssistantClient struct {
	backend        ChatBackend
	recipientEmail string
	logger         *logger.Logger
}

// NewAssistantClient creates an assistant client. recipientEmail is sent only
// when non-empty.
func NewAssistantClient(backend ChatBackend, recipientEmail string, log *logger.Logger) *AssistantClient {
	return &AssistantClient{
		backend:        backend,
		recipientEmail: recipientEmail,
		logger:         log.Named("assistant"),
	}
}

// Exchange sends in.Text with its history, persona and file context. The only
// error it returns is ErrBlankMessage; every transport, status or decoding
// failure is reported through Outcome.Err instead.
func (c *AssistantClient) Exchange(ctx context.Context, in ExchangeInput) (Outcome, error) {
	if strings.TrimSpace(in.Text) == "" {
		return Outcome{}, ErrBlankMessage
	}

	ctx, span := tracing.Tracer().Start(ctx, "assistant.exchange")
	defer span.End()
	span.SetAttributes(
		attribute.String("persona", string(in.Persona)),
		attribute.Int("history.length", len(in.History)),
		attribute.Int("files.count", len(in.Files)),
	)

	start := time.Now()
	resp, err := c.send(ctx, in)
	outcome := Outcome{Response: resp, Err: err, Duration: time.Since(start)}

	if !outcome.OK() {
		if outcome.Err == nil {
			outcome.Err = errors.New("empty response")
		}
		outcome.Response = nil

		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, "exchange failed")
		metrics.RecordExchange("failure", outcome.Duration.Seconds())
		c.logger.Error("chat exchange failed",
			zap.Duration("duration", outcome.Duration),
			zap.Error(outcome.Err),
		)
		return outcome, nil
	}

	span.SetAttributes(attribute.String("response.type", string(resp.Type)))
	metrics.RecordExchange("success", outcome.Duration.Seconds())
	c.logger.Info("chat exchange completed",
		zap.String("type", string(resp.Type)),
		zap.String("tool_type", resp.ToolType),
		zap.Bool("tool_result", resp.ToolResult != nil),
		zap.Duration("duration", outcome.Duration),
	)
	return outcome, nil
}

func (c *AssistantClient) send(ctx context.Context, in ExchangeInput) (resp *model.ChatExchangeResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = fmt.Errorf("panic during exchange: %v", r)
		}
	}()

	fileContext, err := BuildFileContext(in.Files)
	if err != nil {
		return nil, err
	}

	history := in.History
	if history == nil {
		history = []model.Message{}
	}

	resp, err = c.backend.Chat(ctx, &model.ChatExchangeRequest{
		Message:        in.Text,
		History:        history,
		Persona:        in.Persona,
		RecipientEmail: c.recipientEmail,
		FileContext:    fileContext,
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("backend returned no response")
	}
	if resp.Type == model.ResponseError {
		return nil, fmt.Errorf("%w: %s", ErrServiceReported, resp.Message)
	}

	return resp, nil
}
