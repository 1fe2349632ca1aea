package domain

// ChatRole is the author of a chat message
type ChatRole string

const (
	ChatRoleSystem    ChatRole = "system"
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of a conversation
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ChatDelta is one fragment of a streamed completion. A delta with a
// non-nil Err is the last one sent on its channel.
type ChatDelta struct {
	Text string
	Err  error
}

// ChatEventType tags a ChatStreamEvent
type ChatEventType string

const (
	ChatEventSources ChatEventType = "sources"
	ChatEventChunk   ChatEventType = "chunk"
	ChatEventDone    ChatEventType = "done"
	ChatEventError   ChatEventType = "error"
)

// NoRelevantDocumentsMarker is sent as the only chunk when retrieval finds
// nothing. Clients recognise it and render their own localized message.
const NoRelevantDocumentsMarker = "__NO_RELEVANT_DOCUMENTS__"

// ChatStreamEvent is one event of a streamed answer. A stream is always
// sources, then zero or more chunks, then exactly one done or error.
type ChatStreamEvent struct {
	Type    ChatEventType     `json:"type"`
	Sources []RetrievedSource `json:"sources,omitempty"`
	Content string            `json:"content,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// IsTerminal returns true for done and error events
func (e ChatStreamEvent) IsTerminal() bool {
	return e.Type == ChatEventDone || e.Type == ChatEventError
}

// ChatRequest asks for a grounded answer to a question
type ChatRequest struct {
	Question      string        `json:"question"`
	K             int           `json:"k,omitempty"`
	History       []ChatMessage `json:"history,omitempty"`
	CollectionIDs []string      `json:"collection_ids,omitempty"`
	TeamID        string        `json:"-"`
}
