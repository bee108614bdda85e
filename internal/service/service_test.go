package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
	"testing"

	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/ingest"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/model"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/pkg/logger"
)

type fakeBackend struct {
	mu       sync.Mutex
	requests []*model.ChatExchangeRequest
	reply    func(req *model.ChatExchangeRequest) (*model.ChatExchangeResponse, error)
}

func (b *fakeBackend) Chat(ctx context.Context, req *model.ChatExchangeRequest) (*model.ChatExchangeResponse, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	b.mu.Unlock()

	if b.reply == nil {
		return &model.ChatExchangeResponse{Type: model.ResponseChat, Message: "ok: " + req.Message}, nil
	}
	return b.reply(req)
}

func (b *fakeBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

type nullParser struct{}

func (nullParser) ParsePDF(ctx context.Context, filename string, r io.Reader) (*model.DocumentParseResponse, error) {
	return &model.DocumentParseResponse{Text: "extracted"}, nil
}

func (nullParser) ParseTabular(ctx context.Context, filename string, r io.Reader) (*model.TabularParseResponse, error) {
	return &model.TabularParseResponse{Data: []model.Record{{"a": 1.0}}, Columns: []string{"a"}}, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []model.Message
	events   []model.SessionEvent
}

func (p *recordingPublisher) PublishMessage(ctx context.Context, sessionID string, msg *model.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, *msg)
	return nil
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, event *model.SessionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return nil
}

func newTestSession(b ChatBackend, pub EventPublisher) *Session {
	log := logger.Nop()
	uploader := ingest.NewCoordinator(ingest.NewNormalizer(nullParser{}), 2, log)
	return NewSession(NewAssistantClient(b, "", log), uploader, SessionOptions{Publisher: pub}, log)
}

func TestConversationStore_AppendOnly(t *testing.T) {
	s := NewConversationStore()

	u := s.AppendUser("hello")
	a := s.AppendAssistant(model.Message{Role: model.RoleUser, Content: "hi"})

	if u.Role != model.RoleUser || a.Role != model.RoleAssistant {
		t.Fatalf("roles = %s, %s", u.Role, a.Role)
	}
	if u.ID == "" || u.Timestamp.IsZero() {
		t.Errorf("user message missing id or timestamp: %+v", u)
	}

	snapshot := s.Messages()
	snapshot[0].Content = "mutated"
	if got, _ := s.At(0); got.Content != "hello" {
		t.Errorf("store mutated through snapshot: %q", got.Content)
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d", s.Len())
	}
	if _, ok := s.At(5); ok {
		t.Error("At(5) should be out of range")
	}
}

func TestConversationStore_MapsAreNotShared(t *testing.T) {
	s := NewConversationStore()

	stats := map[string]any{"mean": 12.5}
	meta := map[string]any{"title": "Diameter"}
	appended := s.AppendAssistant(model.Message{Content: "chart", Statistics: stats, ChartMetadata: meta})

	stats["injected"] = true
	meta["title"] = "changed"
	appended.Statistics["mean"] = 1.0

	got := s.Messages()
	got[0].Statistics["mean"] = 999.0
	got[0].ChartMetadata["extra"] = "x"

	at, _ := s.At(0)
	at.Statistics["mean"] = -1.0

	again, _ := s.At(0)
	if !reflect.DeepEqual(again.Statistics, map[string]any{"mean": 12.5}) {
		t.Errorf("stored statistics changed: %v", again.Statistics)
	}
	if !reflect.DeepEqual(again.ChartMetadata, map[string]any{"title": "Diameter"}) {
		t.Errorf("stored chart metadata changed: %v", again.ChartMetadata)
	}
}

func TestResponseMerger_DoesNotAliasToolResult(t *testing.T) {
	tr := &model.ToolResult{
		ChartImage:    "iVBORw0KGgo=",
		DataSummary:   map[string]any{"count": 3.0},
		ChartMetadata: map[string]any{"title": "Defects"},
	}
	store := NewConversationStore()
	NewResponseMerger().Merge(store, Outcome{Response: &model.ChatExchangeResponse{Message: "ok", ToolResult: tr}}, "")

	tr.DataSummary["count"] = 100.0
	tr.ChartMetadata["title"] = "changed"

	msg, _ := store.At(0)
	if msg.Statistics["count"] != 3.0 || msg.ChartMetadata["title"] != "Defects" {
		t.Errorf("stored message follows the tool result: %+v", msg)
	}
}

func TestBuildFileContext_RoundTrip(t *testing.T) {
	files := []model.UploadedFile{{
		ID:       "f1",
		Name:     "measurements.csv",
		MimeType: model.MimeCSV,
		ParsedContent: model.TabularContent{
			Rows:    []model.Record{{"a": 1.0, "b": 2.0}},
			Columns: []string{"a", "b"},
		},
	}}

	records, err := BuildFileContext(files)
	if err != nil {
		t.Fatalf("BuildFileContext returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d", len(records))
	}

	rows, columns, err := DecodeTabularContext(records[0])
	if err != nil {
		t.Fatalf("DecodeTabularContext returned error: %v", err)
	}
	if !reflect.DeepEqual(columns, []string{"a", "b"}) {
		t.Errorf("columns = %v", columns)
	}
	if !reflect.DeepEqual(rows, []model.Record{{"a": 1.0, "b": 2.0}}) {
		t.Errorf("rows = %v", rows)
	}
	if records[0].Metadata["rowCount"] != 1 {
		t.Errorf("rowCount = %v", records[0].Metadata["rowCount"])
	}
}

func TestBuildFileContext_DocumentAndEmpty(t *testing.T) {
	records, err := BuildFileContext(nil)
	if err != nil {
		t.Fatal(err)
	}
	if records == nil || len(records) != 0 {
		t.Fatalf("empty input should give empty non-nil slice, got %#v", records)
	}

	records, err = BuildFileContext([]model.UploadedFile{
		{Name: "sop.pdf", MimeType: model.MimePDF, ParsedContent: model.DocumentContent{Text: "Step 1"}},
		{Name: "skip.bin", MimeType: "application/octet-stream", ParsedContent: model.UnsupportedContent{}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Content != "Step 1" {
		t.Fatalf("unexpected records %+v", records)
	}
}

func TestAssistantClient_BlankIsNoop(t *testing.T) {
	b := &fakeBackend{}
	c := NewAssistantClient(b, "", logger.Nop())

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := c.Exchange(context.Background(), ExchangeInput{Text: text}); !errors.Is(err, ErrBlankMessage) {
			t.Errorf("Exchange(%q) err = %v", text, err)
		}
	}
	if b.calls() != 0 {
		t.Errorf("backend called %d times", b.calls())
	}
}

func TestAssistantClient_RequestShape(t *testing.T) {
	b := &fakeBackend{}
	c := NewAssistantClient(b, "qa-lead@example.com", logger.Nop())

	history := []model.Message{{Role: model.RoleUser, Content: "earlier"}}
	outcome, err := c.Exchange(context.Background(), ExchangeInput{
		Text:    "now",
		History: history,
		Persona: model.PersonaExpertConsultant,
	})
	if err != nil || !outcome.OK() {
		t.Fatalf("outcome = %+v, err = %v", outcome, err)
	}

	req := b.requests[0]
	if req.Message != "now" || req.Persona != model.PersonaExpertConsultant {
		t.Errorf("unexpected request %+v", req)
	}
	if len(req.History) != 1 || req.History[0].Content != "earlier" {
		t.Errorf("history = %+v", req.History)
	}
	if req.FileContext == nil {
		t.Error("file context should be an empty slice, not nil")
	}
	if req.RecipientEmail != "qa-lead@example.com" {
		t.Errorf("recipient = %q", req.RecipientEmail)
	}
}

func TestAssistantClient_FailuresBecomeOutcomes(t *testing.T) {
	cases := map[string]func(*model.ChatExchangeRequest) (*model.ChatExchangeResponse, error){
		"transport": func(*model.ChatExchangeRequest) (*model.ChatExchangeResponse, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
		"nil response": func(*model.ChatExchangeRequest) (*model.ChatExchangeResponse, error) {
			return nil, nil
		},
		"service error": func(*model.ChatExchangeRequest) (*model.ChatExchangeResponse, error) {
			return &model.ChatExchangeResponse{Type: model.ResponseError, Message: "Traceback ..."}, nil
		},
		"panic": func(*model.ChatExchangeRequest) (*model.ChatExchangeResponse, error) {
			panic("boom")
		},
	}

	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			c := NewAssistantClient(&fakeBackend{reply: reply}, "", logger.Nop())
			outcome, err := c.Exchange(context.Background(), ExchangeInput{Text: "hi"})
			if err != nil {
				t.Fatalf("Exchange returned error: %v", err)
			}
			if outcome.OK() || outcome.Err == nil || outcome.Response != nil {
				t.Fatalf("unexpected outcome %+v", outcome)
			}
		})
	}
}

func TestResponseMerger_ToolResult(t *testing.T) {
	store := NewConversationStore()
	m := NewResponseMerger()

	msg := m.Merge(store, Outcome{Response: &model.ChatExchangeResponse{
		Type:     model.ResponseToolGeneration,
		Message:  "Generated pareto chart",
		ToolType: "pareto_chart",
		ToolResult: &model.ToolResult{
			ChartImage:    "iVBORw0KGgo=",
			DataSummary:   map[string]any{"total_defects": 42.0, "top_category": "scratch"},
			ChartMetadata: map[string]any{"title": "Defects"},
		},
	}}, model.PersonaNoviceGuide)

	if store.Len() != 1 {
		t.Fatalf("store has %d messages", store.Len())
	}
	if msg.Content != "Generated pareto chart" || msg.ChartData != "iVBORw0KGgo=" || msg.ToolType != "pareto_chart" {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.Statistics["total_defects"] != 42.0 || msg.ChartMetadata["title"] != "Defects" {
		t.Errorf("tool fields not copied: %+v", msg)
	}
	if msg.Persona != model.PersonaNoviceGuide {
		t.Errorf("persona = %q", msg.Persona)
	}
}

func TestResponseMerger_PlainAndFailure(t *testing.T) {
	m := NewResponseMerger()

	plain := m.Build(Outcome{Response: &model.ChatExchangeResponse{Message: "Use an X-bar chart.", ToolType: "histogram"}}, "")
	if plain.Content != "Use an X-bar chart." || plain.HasChart() || plain.ToolType != "" || plain.Statistics != nil {
		t.Errorf("plain reply should carry no chart fields: %+v", plain)
	}

	failed := m.Build(Outcome{Err: errors.New("timeout")}, "")
	if failed.Content != ApologyText {
		t.Errorf("content = %q", failed.Content)
	}
	if failed.ChartData != "" || failed.ToolType != "" || failed.Statistics != nil || failed.ChartMetadata != nil {
		t.Errorf("failure carries chart fields: %+v", failed)
	}
}

func TestSession_SendAppendsExactlyOneReply(t *testing.T) {
	pub := &recordingPublisher{}
	b := &fakeBackend{}
	s := newTestSession(b, pub)

	reply, err := s.Send(context.Background(), "What is Cpk?")
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("transcript has %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != model.RoleUser || msgs[1].Role != model.RoleAssistant {
		t.Errorf("roles = %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if reply.Content != "ok: What is Cpk?" {
		t.Errorf("reply = %q", reply.Content)
	}
	if len(b.requests[0].History) != 0 {
		t.Errorf("history should exclude the pending message, got %d entries", len(b.requests[0].History))
	}
	if b.requests[0].Persona != model.DefaultPersona {
		t.Errorf("persona = %q", b.requests[0].Persona)
	}
	if len(pub.messages) != 2 {
		t.Errorf("published %d messages", len(pub.messages))
	}

	if _, err := s.Send(context.Background(), "And Ppk?"); err != nil {
		t.Fatal(err)
	}
	if got := len(b.requests[1].History); got != 2 {
		t.Errorf("second request history = %d, want 2", got)
	}
	if s.Messages()[3].Role != model.RoleAssistant {
		t.Error("fourth message should be the assistant reply")
	}
}

func TestSession_BlankSendChangesNothing(t *testing.T) {
	b := &fakeBackend{}
	s := newTestSession(b, nil)

	if _, err := s.Send(context.Background(), "  \t "); !errors.Is(err, ErrBlankMessage) {
		t.Fatalf("err = %v", err)
	}
	if len(s.Messages()) != 0 || b.calls() != 0 {
		t.Fatalf("messages=%d calls=%d", len(s.Messages()), b.calls())
	}
}

func TestSession_TransportFailureFallsBack(t *testing.T) {
	pub := &recordingPublisher{}
	b := &fakeBackend{reply: func(*model.ChatExchangeRequest) (*model.ChatExchangeResponse, error) {
		return nil, errors.New("EOF")
	}}
	s := newTestSession(b, pub)

	reply, err := s.Send(context.Background(), "Make a histogram")
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if reply.Content != ApologyText || reply.HasChart() || reply.Statistics != nil {
		t.Errorf("unexpected fallback %+v", reply)
	}
	if len(s.Messages()) != 2 {
		t.Errorf("transcript has %d messages", len(s.Messages()))
	}

	found := false
	for _, e := range pub.events {
		if e.Type == model.EventTypeExchangeFailed {
			found = true
		}
	}
	if !found {
		t.Error("exchange_failed event not published")
	}
}

func TestSession_DiscardsSupersededReply(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	b := &fakeBackend{reply: func(req *model.ChatExchangeRequest) (*model.ChatExchangeResponse, error) {
		if req.Message == "first" {
			close(started)
			<-release
		}
		return &model.ChatExchangeResponse{Message: "reply to " + req.Message}, nil
	}}
	s := newTestSession(b, nil)

	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Send(context.Background(), "first")
		firstErr <- err
	}()

	<-started
	if _, err := s.Send(context.Background(), "second"); err != nil {
		t.Fatalf("second Send returned error: %v", err)
	}
	close(release)

	if err := <-firstErr; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("first Send err = %v, want ErrSuperseded", err)
	}

	msgs := s.Messages()
	if len(msgs) != 3 {
		t.Fatalf("transcript has %d messages, want 3", len(msgs))
	}
	if msgs[2].Content != "reply to second" {
		t.Errorf("last message = %q", msgs[2].Content)
	}
	for _, m := range msgs {
		if m.Content == "reply to first" {
			t.Error("stale reply was appended")
		}
	}
}

func TestSession_UploadContextAndPersona(t *testing.T) {
	pub := &recordingPublisher{}
	b := &fakeBackend{}
	s := newTestSession(b, pub)

	results := s.Upload(context.Background(), []ingest.RawFile{
		ingest.FromBytes("a.csv", model.MimeCSV, []byte("a\n1\n")),
		ingest.FromBytes("x.docx", "application/msword", nil),
		ingest.FromBytes("b.pdf", model.MimePDF, []byte("%PDF")),
	})
	if len(results) != 3 || len(s.Files()) != 2 {
		t.Fatalf("results=%d files=%d", len(results), len(s.Files()))
	}

	s.SetPersona(model.PersonaSkepticalManager)
	if _, err := s.Send(context.Background(), "Summarize"); err != nil {
		t.Fatal(err)
	}
	req := b.requests[0]
	if len(req.FileContext) != 2 || req.FileContext[0].Name != "a.csv" || req.FileContext[1].Content != "extracted" {
		t.Errorf("file context = %+v", req.FileContext)
	}
	if req.Persona != model.PersonaSkepticalManager {
		t.Errorf("persona = %q", req.Persona)
	}

	if !s.RemoveFile(context.Background(), s.Files()[0].ID) {
		t.Fatal("RemoveFile returned false")
	}
	if len(s.Files()) != 1 || s.Files()[0].Name != "b.pdf" {
		t.Errorf("files after remove = %+v", s.Files())
	}

	kinds := map[model.EventType]int{}
	for _, e := range pub.events {
		kinds[e.Type]++
	}
	if kinds[model.EventTypeFileAdded] != 2 || kinds[model.EventTypeFileRejected] != 1 || kinds[model.EventTypeFileRemoved] != 1 {
		t.Errorf("events = %v", kinds)
	}
}

func TestSession_ConcurrentSendsKeepTranscriptOrder(t *testing.T) {
	b := &fakeBackend{}
	s := newTestSession(b, nil)

	const senders = 16
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Send(context.Background(), fmt.Sprintf("reading %d", i))
			if err != nil && !errors.Is(err, ErrSuperseded) {
				t.Errorf("Send returned error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	msgs := s.Messages()

	// Every request saw exactly the transcript that preceded its own message.
	for _, req := range b.requests {
		idx := len(req.History)
		if idx >= len(msgs) || msgs[idx].Role != model.RoleUser || msgs[idx].Content != req.Message {
			t.Fatalf("history of %q has %d entries but its message is not at that index", req.Message, idx)
		}
	}

	// The newest user message is always answered, and answered last.
	lastUser := -1
	for i, m := range msgs {
		if m.Role == model.RoleUser {
			lastUser = i
		}
	}
	last := msgs[len(msgs)-1]
	if lastUser != len(msgs)-2 || last.Role != model.RoleAssistant || last.Content != "ok: "+msgs[lastUser].Content {
		t.Fatalf("transcript does not end with the reply to the newest message: %+v", msgs[len(msgs)-2:])
	}

	// Each kept reply directly follows a user message.
	for i, m := range msgs {
		if m.Role == model.RoleAssistant && (i == 0 || msgs[i-1].Role != model.RoleUser) {
			t.Errorf("assistant message %d does not follow a user message", i)
		}
	}
}
