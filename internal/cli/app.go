// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/aryan-mann/obsidian-chat/internal/chat"
	"github.com/aryan-mann/obsidian-chat/internal/cohere"
	"github.com/aryan-mann/obsidian-chat/internal/config"
	"github.com/aryan-mann/obsidian-chat/internal/workspace"
)

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// Deps are the collaborators a command runs with. Zero values select the
// real implementations.
type Deps struct {
	// Streamer replaces the Cohere client.
	Streamer chat.Streamer

	// Markdown forces markdown rendering on or off. Nil means only on a TTY.
	Markdown *bool
}

// globalFlags hold the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	vault      string
	open       []string
	web        bool
	webSet     bool
	logLevel   string
}

// app is one configured chat session.
type app struct {
	store  *config.Store
	ws     *workspace.Workspace
	host   *terminalHost
	ctrl   *chat.Controller
	logger zerolog.Logger
	out    io.Writer
	errOut io.Writer
}

// openStore loads the configuration named by the flags.
func openStore(flags globalFlags) (*config.Store, error) {
	store, err := config.Open(flags.configPath)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	return store, nil
}

// newApp wires config, logging, the workspace and the controller.
func newApp(flags globalFlags, deps Deps, out, errOut io.Writer) (*app, error) {
	store, err := openStore(flags)
	if err != nil {
		return nil, err
	}
	cfg := store.Config()

	level := cfg.LogLevel
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	logger, err := newLogger(level, errOut)
	if err != nil {
		return nil, newUsageError(err.Error())
	}

	vault := flags.vault
	if vault == "" {
		vault = cfg.VaultDir
	}
	if vault == "" {
		if vault, err = os.Getwd(); err != nil {
			return nil, errors.Wrap(err, "resolve vault")
		}
	}
	if info, err := os.Stat(vault); err != nil || !info.IsDir() {
		return nil, newUsageError(fmt.Sprintf("vault %q is not a directory", vault))
	}

	a := &app{store: store, logger: logger, out: out, errOut: errOut}

	a.ws = workspace.New(vault,
		workspace.WithLogger(logger),
		workspace.WithOnClose(func(v workspace.View) {
			if a.host != nil {
				a.host.Notify(fmt.Sprintf("Closed %s", v.Name))
			}
		}),
	)
	for _, name := range flags.open {
		if _, err := a.ws.Open(name); err != nil {
			return nil, err
		}
	}

	markdown := IsStdoutTTY()
	if deps.Markdown != nil {
		markdown = *deps.Markdown
	}
	var renderer *glamour.TermRenderer
	if markdown {
		if renderer, err = newMarkdownRenderer(TerminalWidth()); err != nil {
			logger.Warn().Err(err).Msg("markdown rendering disabled")
			renderer = nil
		}
	}
	a.host = newTerminalHost(a.ws, out, errOut, renderer)

	streamer := deps.Streamer
	if streamer == nil {
		cohere.UserAgent = "coral/" + Version
		streamer = chat.NewCohereStreamer(
			cohere.WithBaseURL(cfg.BaseURL),
			cohere.WithMaxRetries(cfg.MaxRetries),
			cohere.WithRateLimit(cfg.RequestsPerMinute),
			cohere.WithLogger(logger),
		)
	}

	webSearch := cfg.WebSearch
	if flags.webSet {
		webSearch = flags.web
	}

	a.ctrl = chat.New(chat.Options{
		Host:        a.host,
		Credentials: store,
		Streamer:    streamer,
		Logger:      &logger,
		WebSearch:   webSearch,
		Timeout:     time.Duration(cfg.RequestTimeoutSecs) * time.Second,
	})

	logger.Debug().
		Str("vault", a.ws.Vault()).
		Str("config", store.Path()).
		Str("key", cohere.Fingerprint(store.APIKey())).
		Bool("web_search", webSearch).
		Msg("session ready")
	return a, nil
}

// close stops the workspace watcher.
func (a *app) close() {
	if err := a.ws.StopWatching(); err != nil {
		a.logger.Debug().Err(err).Msg("stop watching")
	}
}
