package main

import (
	"fmt"
	"os"
	"path/filepath"

	"codechat/internal/app"
	"codechat/internal/history"
	"codechat/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

func main() {
	var (
		configPath string
		noContext  bool
	)

	root := &cobra.Command{
		Use:     "codechat [file]",
		Short:   "Chat with a completion model about the code in a file",
		Long:    "codechat opens a terminal chat panel bound to one source file.\n\nThe file's text is sent along with your question (unless --no-context is set), responses stream in live, and suggested code blocks can be copied or applied back to the file. Conversation history is persisted per file.",
		Version: version,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if noContext {
				cfg.IncludeCodeContext = false
			}
			if cfg.APIKey == "" {
				return fmt.Errorf("no API key: set api_key in %s or CODECHAT_API_KEY", app.DefaultConfigPath())
			}

			application, err := app.NewApplication(cfg)
			if err != nil {
				return err
			}
			ed, err := application.OpenFile(args[0])
			if err != nil {
				return err
			}

			p := tea.NewProgram(tui.New(application, ed), tea.WithAltScreen())
			application.Session.OnUpdate = func() {
				p.Send(tui.SessionUpdatedMsg{})
			}
			_, err = p.Run()
			return err
		},
	}

	root.Flags().StringVar(&configPath, "config", "", "path to config file (default: "+app.DefaultConfigPath()+")")
	root.Flags().BoolVar(&noContext, "no-context", false, "do not send the file's code with requests")

	clearCmd := &cobra.Command{
		Use:   "clear-history [file]",
		Short: "Delete persisted conversations",
		Long:  "Delete the persisted conversation for one file, or every conversation when no file is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(configPath)
			if err != nil {
				return err
			}
			store := history.NewFileStore(cfg.HistoryRoot)
			if len(args) == 0 {
				return store.ClearAll()
			}
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			return store.Clear(abs)
		},
	}
	root.AddCommand(clearCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
