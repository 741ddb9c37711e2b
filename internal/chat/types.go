package chat

// Entry is one user turn and its (possibly still streaming) assistant turn.
// The persisted history for a context is a plain []Entry; identities are
// assigned by the Manager and never serialized.
type Entry struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// Message is one element of the outbound conversation sent upstream.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Logger is the subset of the application logger the engine needs. Tests
// pass a no-op implementation.
type Logger interface {
	Info(message string, fields map[string]interface{})
	Warn(message string, fields map[string]interface{})
	Error(message string, fields map[string]interface{})
}
