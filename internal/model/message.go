// Package model defines the data structures shared by the assistant client,
// the upload pipeline and the backend wire contract.
package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Persona selects the backend response style. Unknown identifiers are passed
// through unchanged.
type Persona string

const (
	PersonaNoviceGuide      Persona = "Novice Guide"
	PersonaExpertConsultant Persona = "Expert Consultant"
	PersonaSkepticalManager Persona = "Skeptical Manager"

	DefaultPersona = PersonaNoviceGuide
)

// KnownPersonas lists the personas the backend has dedicated prompts for.
func KnownPersonas() []Persona {
	return []Persona{PersonaNoviceGuide, PersonaExpertConsultant, PersonaSkepticalManager}
}

// Message represents one entry of the conversation transcript.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Tool output, present only on assistant messages built from a tool result.
	ChartData     string         `json:"chartData,omitempty"`
	ToolType      string         `json:"toolType,omitempty"`
	Statistics    map[string]any `json:"statistics,omitempty"`
	ChartMetadata map[string]any `json:"chartMetadata,omitempty"`

	Persona Persona `json:"persona,omitempty"`
}

// HasChart reports whether the message carries a chart image.
func (m *Message) HasChart() bool {
	return m.ChartData != ""
}
