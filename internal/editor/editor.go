package editor

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Language identifies the language of the current file.
type Language struct {
	Name string
}

// Editor is the host-side collaborator the chat panel talks to: it supplies
// the code under discussion and accepts suggested replacements.
type Editor interface {
	CurrentCode() string
	CurrentLanguage() *Language
	ReplaceCode(code string) error
}

var extensionLanguages = map[string]string{
	".go":    "go",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".java":  "java",
	".kt":    "kotlin",
	".swift": "swift",
	".zig":   "zig",
	".cs":    "csharp",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".rb":    "ruby",
	".lua":   "lua",
	".pl":    "perl",
	".php":   "php",
	".sh":    "shell",
	".bash":  "shell",
}

// DetectLanguage maps a file path to a language by extension. Returns nil
// for unrecognized extensions.
func DetectLanguage(path string) *Language {
	ext := strings.ToLower(filepath.Ext(path))
	if name, ok := extensionLanguages[ext]; ok {
		return &Language{Name: name}
	}
	return nil
}

// FileEditor is an Editor over one file on disk. The chat panel uses it as
// the stand-in for a real editor buffer: reads pick up outside edits, and
// ReplaceCode writes suggestions back preserving the file's permissions.
type FileEditor struct {
	Path string

	mu sync.Mutex
}

func NewFileEditor(path string) (*FileEditor, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, err
	}
	return &FileEditor{Path: abs}, nil
}

func (e *FileEditor) CurrentCode() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	data, err := os.ReadFile(e.Path)
	if err != nil {
		return ""
	}
	return string(data)
}

func (e *FileEditor) CurrentLanguage() *Language {
	return DetectLanguage(e.Path)
}

func (e *FileEditor) ReplaceCode(code string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	mode := os.FileMode(0o644)
	if info, err := os.Stat(e.Path); err == nil {
		mode = info.Mode().Perm()
	}
	if !strings.HasSuffix(code, "\n") {
		code += "\n"
	}
	return os.WriteFile(e.Path, []byte(code), mode)
}
