package chat

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client talks to the completion endpoint. One instance is shared across
// submissions; it holds no per-request state.
type Client struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	HTTP        *http.Client

	logger Logger
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

const (
	dataPrefix    = "data:"
	doneSentinel  = "[DONE]"
	defaultModel  = "gpt-4o-mini"
	defaultAPIURL = "https://api.openai.com/v1/chat/completions"
)

func NewClient(apiKey, model, baseURL string, temperature float64, maxTokens int, timeout time.Duration, logger Logger) *Client {
	if model == "" {
		model = defaultModel
	}
	if baseURL == "" {
		baseURL = defaultAPIURL
	}
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}

	// Skip TLS verification if CODECHAT_SKIP_TLS_VERIFY is set (for container environments)
	if os.Getenv("CODECHAT_SKIP_TLS_VERIFY") == "1" || os.Getenv("CODECHAT_SKIP_TLS_VERIFY") == "true" {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Client{
		APIKey:      apiKey,
		Model:       model,
		BaseURL:     baseURL,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		HTTP:        httpClient,
		logger:      logger,
	}
}

// DeltaFunc receives the full cumulative text so far on every streamed
// fragment, never the fragment alone.
type DeltaFunc func(cumulative string)

// CreateStream sends messages with streaming enabled and consumes the
// server-sent-event response. It returns the final cumulative text, which
// always equals the last value passed to onDelta. The stream stops on the
// [DONE] sentinel, end of body, or ctx cancellation.
func (c *Client) CreateStream(ctx context.Context, messages []Message, onDelta DeltaFunc) (string, error) {
	resp, requestID, err := c.post(ctx, messages, true)
	if err != nil {
		return "", err
	}
	if resp.Body == nil {
		return "", &StreamUnavailableError{}
	}
	defer resp.Body.Close()

	// The scanner buffers raw bytes and splits only on newlines, so a
	// multi-byte rune straddling two body chunks is reassembled before
	// any of it is decoded.
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var full strings.Builder
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return full.String(), ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
		if payload == doneSentinel {
			break
		}

		var chunk completionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			decodeErr := &ChunkDecodeError{Line: payload, Err: err}
			if c.logger != nil {
				c.logger.Warn("stream chunk skipped", map[string]interface{}{
					"request_id": requestID,
					"error":      decodeErr.Error(),
				})
			}
			continue
		}
		// A chunk without a content fragment (role headers, usage
		// frames) is tolerated protocol variance, not an error.
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}

		full.WriteString(chunk.Choices[0].Delta.Content)
		if onDelta != nil {
			onDelta(full.String())
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return full.String(), ctx.Err()
		}
		return full.String(), err
	}
	return full.String(), nil
}

// Complete is the non-streaming variant: one request, one JSON document,
// one content field.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	resp, _, err := c.post(ctx, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var parsed completionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &MalformedResponseError{Body: string(body)}
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", &MalformedResponseError{Body: string(body)}
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, messages []Message, stream bool) (*http.Response, string, error) {
	if c.APIKey == "" {
		return nil, "", errors.New("completion api key is required")
	}

	requestID := uuid.NewString()
	payload, err := json.Marshal(completionRequest{
		Model:       c.Model,
		Messages:    messages,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		Stream:      stream,
	})
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	c.logf("completion request", map[string]interface{}{
		"request_id": requestID,
		"model":      c.Model,
		"messages":   len(messages),
		"stream":     stream,
	})

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		message := strings.TrimSpace(string(body))
		var parsed apiErrorBody
		if err := json.Unmarshal(body, &parsed); err == nil {
			if parsed.Error.Message != "" {
				message = parsed.Error.Message
			} else if parsed.Message != "" {
				message = parsed.Message
			}
		}
		if message == "" {
			message = resp.Status
		}
		return nil, "", &TransportError{StatusCode: resp.StatusCode, Message: message}
	}
	return resp, requestID, nil
}

func (c *Client) logf(message string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.Info(message, fields)
	}
}
