package chat

import (
	"fmt"
	"strings"
)

// PromptBuilder turns a user request plus prior conversation into the
// ordered message list sent upstream. It is pure: no network, no storage,
// deterministic for a given input.
type PromptBuilder struct {
	// Window is the number of most-recent prompt/response pairs included
	// as context. Older pairs are dropped silently to bound request size.
	Window int
}

func NewPromptBuilder(window int) *PromptBuilder {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	return &PromptBuilder{Window: window}
}

const DefaultHistoryWindow = 4

var compiledLanguages = map[string]bool{
	"go":     true,
	"rust":   true,
	"c":      true,
	"cpp":    true,
	"c++":    true,
	"java":   true,
	"kotlin": true,
	"swift":  true,
	"zig":    true,
	"csharp": true,
	"c#":     true,
}

var scriptingLanguages = map[string]bool{
	"python":     true,
	"javascript": true,
	"typescript": true,
	"ruby":       true,
	"lua":        true,
	"perl":       true,
	"php":        true,
	"shell":      true,
	"bash":       true,
}

func (p *PromptBuilder) SystemPrompt(language string) string {
	base := `You are a coding assistant embedded in an editor panel. You answer questions about the code the user currently has open and suggest concrete improvements.

## Rules

1. Be concise. Answer the question that was asked.
2. When you propose code, put it in a fenced code block tagged with the language so the editor can apply it.
3. Preserve the surrounding style of the user's code when suggesting edits.
4. If the request is ambiguous, state your assumption and answer anyway.`

	switch {
	case compiledLanguages[strings.ToLower(language)]:
		return base + `

## Context

The user is working in ` + language + `, a compiled language. Pay attention to types, ownership and error handling. Prefer solutions that compile on the first try over clever ones. Point out undefined behavior, unchecked errors and resource leaks when you see them.`

	case scriptingLanguages[strings.ToLower(language)]:
		return base + `

## Context

The user is working in ` + language + `, a scripting language. Favor readable, idiomatic snippets over micro-optimizations. Call out runtime pitfalls such as mutable default state, implicit type coercion and unhandled exceptions.`

	default:
		return base + `

## Context

The language of the current file is unknown. Infer it from the code when context is provided, and say which language your suggestions target.`
	}
}

// BuildMessages produces the full ordered outbound message list: one system
// message, the last Window history pairs expanded oldest-first into
// user/assistant pairs, then the current request. When currentCode is
// non-empty the request is prefixed with the file's code in a fenced block
// tagged with its language.
func (p *PromptBuilder) BuildMessages(request, currentCode, language string, history []Entry) []Message {
	messages := make([]Message, 0, 2*p.Window+2)
	messages = append(messages, Message{Role: RoleSystem, Content: p.SystemPrompt(language)})

	start := 0
	if len(history) > p.Window {
		start = len(history) - p.Window
	}
	for _, entry := range history[start:] {
		messages = append(messages, Message{Role: RoleUser, Content: entry.Prompt})
		messages = append(messages, Message{Role: RoleAssistant, Content: entry.Response})
	}

	content := request
	if currentCode != "" {
		content = fmt.Sprintf("Here is the code I'm working on:\n```%s\n%s\n```\n\n%s", language, currentCode, request)
	}
	messages = append(messages, Message{Role: RoleUser, Content: content})
	return messages
}
