// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/aryan-mann/obsidian-chat/internal/chat"
	"github.com/aryan-mann/obsidian-chat/internal/config"
	"github.com/aryan-mann/obsidian-chat/internal/model"
	"github.com/aryan-mann/obsidian-chat/internal/util"
)

// historyFileName is kept in the config directory.
const historyFileName = "chat_history"

// writeClipboard is swapped out in tests.
var writeClipboard = clipboard.WriteAll

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader reads one line of user input at a time.
type lineReader interface {
	Prompt(prompt string) (string, error)
	PasswordPrompt(prompt string) (string, error)
	AppendHistory(item string)
}

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a line editor with history and tab completion.
func NewChatCLI(complete func(string) []string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetTabCompletionStyle(liner.TabPrints)
	if complete != nil {
		line.SetCompleter(complete)
	}

	historyFile := filepath.Join(os.TempDir(), "coral_"+historyFileName)
	if dir, err := config.Dir(); err == nil {
		historyFile = filepath.Join(dir, historyFileName)
	}

	c := &ChatCLI{line: line, historyFile: historyFile}
	c.LoadHistory()
	return c
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// Prompt reads a line.
func (c *ChatCLI) Prompt(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	return input, nil
}

// PasswordPrompt reads a line without echo.
func (c *ChatCLI) PasswordPrompt(prompt string) (string, error) {
	return c.line.PasswordPrompt(prompt)
}

// AppendHistory records an entry in the input history.
func (c *ChatCLI) AppendHistory(item string) {
	c.line.AppendHistory(item)
}

// SaveHistory writes the input history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), util.DirPerm); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// CHAT COMMAND
// =============================================================================

func newChatCmd(flags *globalFlags, deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, *flags, deps)
		},
	}
}

func runChat(cmd *cobra.Command, flags globalFlags, deps Deps) error {
	a, err := newApp(flags, deps, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.ws.Watch(); err != nil {
		a.logger.Warn().Err(err).Msg("note watching disabled")
	}

	input := NewChatCLI(a.complete)
	defer input.Close()

	printWelcome(a)
	return a.repl(cmd.Context(), input)
}

// repl reads input until /quit, Ctrl+C at the prompt or end of input.
func (a *app) repl(ctx context.Context, input lineReader) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.host.TranscriptChanged(a.ctrl.Transcript())

	for {
		line, err := input.Prompt(PromptStyle.Render("you> "))
		if err != nil {
			if err != io.EOF && err != liner.ErrPromptAborted {
				a.logger.Debug().Err(err).Msg("prompt closed")
			}
			fmt.Fprintln(a.out)
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/key") {
			input.AppendHistory(line)
		}

		if strings.HasPrefix(line, "/") {
			more, err := a.handleSlashCommand(line, input)
			if err != nil {
				fmt.Fprintf(a.errOut, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !more {
				return nil
			}
			continue
		}

		a.submit(ctx, line)
	}
}

// submit runs one turn to completion.
func (a *app) submit(ctx context.Context, text string) {
	a.logger.Debug().Str("message", util.Preview(text, 60)).Msg("submitting")

	err := a.ctrl.Submit(ctx, text)
	switch {
	case err == nil:
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrTurnInProgress):
	default:
		a.logger.Debug().Err(err).Msg("turn failed")
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

var slashCommands = []string{"/help", "/open", "/close", "/docs", "/web", "/reset", "/key", "/copy", "/quit"}

// handleSlashCommand runs a slash command. It returns false when the session
// should end.
func (a *app) handleSlashCommand(line string, input lineReader) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "/help", "/h":
		a.printHelp()

	case "/quit", "/q", "/exit":
		return false, nil

	case "/open":
		if arg == "" {
			return true, newUsageError("usage: /open <note>")
		}
		view, err := a.ws.Open(arg)
		if err != nil {
			return true, err
		}
		a.host.Notify(fmt.Sprintf("Opened %s", view.Name))

	case "/close":
		if arg == "" {
			return true, newUsageError("usage: /close <note>")
		}
		view, err := a.ws.Close(arg)
		if err != nil {
			return true, err
		}
		a.host.Notify(fmt.Sprintf("Closed %s", view.Name))

	case "/docs":
		a.printDocs()

	case "/web":
		switch strings.ToLower(arg) {
		case "":
		case "on":
			a.ctrl.SetWebSearch(true)
		case "off":
			a.ctrl.SetWebSearch(false)
		default:
			return true, newUsageError("usage: /web on|off")
		}
		state := "off"
		if a.ctrl.WebSearch() {
			state = "on"
		}
		a.host.Notify("Web search " + state)

	case "/reset", "/clear":
		if err := a.ctrl.Reset(); err != nil {
			return true, err
		}
		a.host.TranscriptChanged(a.ctrl.Transcript())

	case "/key":
		key := arg
		if key == "" {
			var err error
			if key, err = input.PasswordPrompt("API key: "); err != nil {
				return true, err
			}
		}
		if err := a.store.SetAPIKey(key); err != nil {
			return true, err
		}
		a.host.Notify("API key saved")

	case "/copy":
		turns := a.ctrl.Transcript()
		for i := len(turns) - 1; i >= 0; i-- {
			if turns[i].Role == model.RoleAssistant && turns[i].Succeeded() && turns[i].Content != "" {
				if err := writeClipboard(turns[i].Content); err != nil {
					return true, errors.Wrap(err, "copy to clipboard")
				}
				a.host.Notify("Copied last answer")
				return true, nil
			}
		}
		a.host.Notify("Nothing to copy")

	default:
		return true, newUsageError(fmt.Sprintf("unknown command %s (try /help)", name))
	}
	return true, nil
}

// complete suggests slash commands and, after /open or /close, note names.
func (a *app) complete(line string) []string {
	if !strings.HasPrefix(line, "/") {
		return nil
	}
	name, arg, found := strings.Cut(line, " ")
	if !found {
		var out []string
		for _, cmd := range slashCommands {
			if strings.HasPrefix(cmd, line) {
				out = append(out, cmd)
			}
		}
		return out
	}

	var candidates []string
	switch name {
	case "/open":
		notes, err := a.ws.Available()
		if err != nil {
			return nil
		}
		candidates = notes
	case "/close":
		candidates = a.ws.Names()
	case "/web":
		candidates = []string{"on", "off"}
	default:
		return nil
	}

	var out []string
	for _, c := range candidates {
		if strings.HasPrefix(c, arg) {
			out = append(out, name+" "+c)
		}
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// OUTPUT
// =============================================================================

func printWelcome(a *app) {
	fmt.Fprintln(a.out, TitleStyle.Render("Coral")+" "+DimStyle.Render("v"+Version))
	fmt.Fprintln(a.out, DimStyle.Render("Vault: "+a.ws.Vault()))
	if names := a.ws.Names(); len(names) > 0 {
		fmt.Fprintln(a.out, DimStyle.Render("Open: "+strings.Join(names, ", ")))
	}
	fmt.Fprintln(a.out, DimStyle.Render("Type /help for commands"))
	fmt.Fprintln(a.out, RenderSeparator(30))
}

func (a *app) printHelp() {
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, TitleStyle.Render("Available Commands"))
	fmt.Fprintln(a.out, RenderSeparator(20))

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/open <note>", "Add a note to the chat context"},
		{"/close <note>", "Remove a note from the chat context"},
		{"/docs", "List open notes"},
		{"/web on|off", "Toggle web search"},
		{"/reset", "Clear chat history"},
		{"/key [value]", "Set the Cohere API key"},
		{"/copy", "Copy the last answer"},
		{"/help", "Show this help"},
		{"/quit", "Exit chat"},
	}
	for _, c := range commands {
		fmt.Fprintf(a.out, "  %s  %s\n",
			CommandStyle.Render(fmt.Sprintf("%-15s", c.cmd)),
			DimStyle.Render(c.desc))
	}
	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, DimStyle.Render("Tip: Tab completes commands and note names, Ctrl+D exits"))
}

func (a *app) printDocs() {
	views := a.ws.Views()
	if len(views) == 0 {
		fmt.Fprintln(a.out, DimStyle.Render("No open notes"))
		return
	}
	width := TerminalWidth() - 4
	for _, v := range views {
		rel, err := filepath.Rel(a.ws.Vault(), v.Path)
		if err != nil {
			rel = v.Path
		}
		rel = util.TruncateWidth(filepath.ToSlash(rel), width-util.StringWidth(v.Name)-2)
		fmt.Fprintf(a.out, "  %s  %s\n", v.Name, DimStyle.Render(rel))
	}
}
