package history

import "codechat/internal/chat"

// Store persists one conversation per context identifier (typically the
// absolute path of the open file). Implementations must treat an unknown
// context as an empty conversation, never an error.
type Store interface {
	Save(contextID string, entries []chat.Entry) error
	Load(contextID string) ([]chat.Entry, error)
	Clear(contextID string) error
	ClearAll() error
}
