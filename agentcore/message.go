package agentcore

import (
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies the speaker of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Category classifies a message for context assembly.
type Category string

const (
	CategorySystemPrompt Category = "system_prompt"
	CategoryDialog       Category = "dialog"
	CategoryContext      Category = "context"
	CategoryActionResult Category = "action_result"
)

// MessageType discriminates conversational content from status traffic.
type MessageType string

const (
	TypeMessage MessageType = "message"
	TypeStatus  MessageType = "status"
	TypeAction  MessageType = "action"
)

// MetaSynthetic marks a placeholder message the engine inserted itself
// because the model produced no usable content.
const MetaSynthetic = "synthetic"

// Message is one immutable utterance in a conversation. Corrections are
// made by appending a new Message, never by mutating an existing one.
type Message struct {
	ID            string            `json:"id"`
	Role          Role              `json:"role"`
	Content       string            `json:"content"`
	Category      Category          `json:"category"`
	AgentID       string            `json:"agent_id"`
	RecipientID   string            `json:"recipient_id,omitempty"`
	Type          MessageType       `json:"message_type"`
	CreatedAt     time.Time         `json:"created_at"`
	TokenEstimate int               `json:"token_estimate"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewMessage builds a Message with a fresh ID, timestamp, and token
// estimate. The estimate uses the same chars/4 heuristic the context
// budget check uses; it is advisory, not exact.
func NewMessage(role Role, content string, category Category, agentID string) Message {
	return Message{
		ID:            uuid.New().String(),
		Role:          role,
		Content:       content,
		Category:      category,
		AgentID:       agentID,
		Type:          TypeMessage,
		CreatedAt:     time.Now().UTC(),
		TokenEstimate: EstimateTokens(content),
	}
}

// EstimateTokens approximates the token count of text as len/4.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// ContextFingerprint is a cheap identity for a rendered prompt, used to
// detect that the context sent to the model failed to advance between
// iterations.
type ContextFingerprint string

// FingerprintContext hashes a rendered prompt into a ContextFingerprint.
func FingerprintContext(prompt string) ContextFingerprint {
	h := fnv.New64a()
	_, _ = h.Write([]byte(prompt))
	return ContextFingerprint(fmt.Sprintf("%d:%016x", len(prompt), h.Sum64()))
}

// ConversationStore is the engine's view of conversation persistence.
// The engine appends once per produced message and renders the full
// context before every model call.
type ConversationStore interface {
	Append(msg Message) error
	RenderForPrompt(agentID string) (string, error)
}

// MemoryStore is an append-only in-memory ConversationStore. A single run
// owns its store exclusively; the mutex only guards observers reading
// Messages() while a run is active.
type MemoryStore struct {
	mu       sync.Mutex
	messages []Message
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append adds a message to the conversation.
func (s *MemoryStore) Append(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

// Messages returns a copy of the conversation so far.
func (s *MemoryStore) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of appended messages.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// RenderForPrompt serializes the conversation into a role-labelled
// transcript. Messages addressed to a different agent are skipped.
func (s *MemoryStore) RenderForPrompt(agentID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	for _, msg := range s.messages {
		if msg.RecipientID != "" && msg.RecipientID != agentID {
			continue
		}
		sb.WriteString(string(msg.Role))
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}
