package app

import (
	"io"
	"os"
	"path/filepath"

	"codechat/internal/chat"
	"codechat/internal/editor"
	"codechat/internal/history"
)

// Application wires the engine together for one run of the panel: config,
// logger, transport client, history store, and one session manager per open
// context.
type Application struct {
	Config  Config
	Logger  *Logger
	Client  *chat.Client
	Store   history.Store
	Session *chat.Manager
}

// DefaultLogWriter appends to a log file under the user cache dir, falling
// back to discard so logging can never break the panel.
func DefaultLogWriter() io.Writer {
	base, err := os.UserCacheDir()
	if err != nil {
		return io.Discard
	}
	dir := filepath.Join(base, "codechat")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return io.Discard
	}
	f, err := os.OpenFile(filepath.Join(dir, "codechat.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return io.Discard
	}
	return f
}

func NewApplication(cfg Config) (*Application, error) {
	logger := NewLogger(DefaultLogWriter())

	client := chat.NewClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Temperature, cfg.MaxTokens, cfg.RequestTimeout(), logger)
	store := history.NewFileStore(cfg.HistoryRoot)

	session := chat.NewManager(client, store, chat.NewPromptBuilder(cfg.HistoryWindow), logger)
	session.Timeout = cfg.RequestTimeout()

	return &Application{
		Config:  cfg,
		Logger:  logger,
		Client:  client,
		Store:   store,
		Session: session,
	}, nil
}

// OpenFile binds the session to a file on disk: the absolute path becomes
// the context identifier and any persisted conversation is hydrated.
func (a *Application) OpenFile(path string) (*editor.FileEditor, error) {
	ed, err := editor.NewFileEditor(path)
	if err != nil {
		return nil, err
	}
	a.Session.Load(ed.Path)
	a.Logger.Info("context opened", map[string]interface{}{
		"context": ed.Path,
		"entries": len(a.Session.Entries()),
	})
	return ed, nil
}

// Submit forwards one user request to the session manager, pulling the
// current code and language from the editor collaborator.
func (a *Application) Submit(ed editor.Editor, request string) int {
	language := ""
	if lang := ed.CurrentLanguage(); lang != nil {
		language = lang.Name
	}
	return a.Session.Submit(request, ed.CurrentCode(), language, a.Config.IncludeCodeContext)
}
