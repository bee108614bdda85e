package service

import (
	"maps"

	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/model"
)

// ApologyText replaces the assistant reply whenever an exchange fails.
const ApologyText = "Sorry, I encountered an error while processing your request. Please try again."

// ResponseMerger turns exchange outcomes into transcript entries.
type ResponseMerger struct{}

// NewResponseMerger creates a response merger.
func NewResponseMerger() *ResponseMerger {
	return &ResponseMerger{}
}

// Merge appends exactly one assistant message for outcome to store.
func (m *ResponseMerger) Merge(store *ConversationStore, outcome Outcome, persona model.Persona) model.Message {
	return store.AppendAssistant(m.Build(outcome, persona))
}

// Build constructs the assistant message for outcome without appending it.
func (m *ResponseMerger) Build(outcome Outcome, persona model.Persona) model.Message {
	msg := model.Message{
		Role:    model.RoleAssistant,
		Persona: persona,
	}

	if !outcome.OK() {
		msg.Content = ApologyText
		return msg
	}

	resp := outcome.Response
	msg.Content = resp.Message

	if tr := resp.ToolResult; tr != nil {
		msg.ChartData = tr.ChartImage
		msg.ToolType = resp.ToolType
		if msg.ToolType == "" {
			msg.ToolType = tr.ToolType
		}
		msg.Statistics = maps.Clone(tr.DataSummary)
		msg.ChartMetadata = maps.Clone(tr.ChartMetadata)
	}

	return msg
}
