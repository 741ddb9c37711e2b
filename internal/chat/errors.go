package chat

import "fmt"

// TransportError reports a non-success HTTP status from the completion
// endpoint. Message carries the structured error field from the response
// body when one could be parsed, otherwise the raw body or status text.
type TransportError struct {
	StatusCode int
	Message    string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("completion api error: status %d: %s", e.StatusCode, e.Message)
}

// StreamUnavailableError reports a successful response that carried no
// readable body stream.
type StreamUnavailableError struct{}

func (e *StreamUnavailableError) Error() string {
	return "completion api returned no readable response body"
}

// MalformedResponseError reports a complete (non-streaming) JSON response
// missing the expected content field.
type MalformedResponseError struct {
	Body string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("completion api response missing content: %s", e.Body)
}

// ChunkDecodeError reports a single stream line that failed to parse as
// JSON. It is logged and swallowed per line; streaming continues.
type ChunkDecodeError struct {
	Line string
	Err  error
}

func (e *ChunkDecodeError) Error() string {
	return fmt.Sprintf("stream chunk decode failed: %v: %q", e.Err, e.Line)
}

func (e *ChunkDecodeError) Unwrap() error { return e.Err }
