// workspace-tui is a terminal front end for a single agent session. It
// opens the realtime session channel to the backend, performs the
// handshake with the stored settings, and shows the conversation, the
// connection status and the full message log.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/agent-racer/workspace/internal/app"
	"github.com/agent-racer/workspace/internal/channel"
	"github.com/agent-racer/workspace/internal/config"
	"github.com/agent-racer/workspace/internal/logging"
	"github.com/agent-racer/workspace/internal/settings"
	"github.com/agent-racer/workspace/internal/transport"
	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, baseURL, logOutput, logLevel, markdownStyle string
	var noStart bool

	flagSet := pflag.NewFlagSet("workspace-tui", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	flagSet.StringVar(&baseURL, "url", "", "backend base URL (overrides server.base_url)")
	flagSet.StringVar(&logOutput, "log-output", "", "write log records to this file (the TUI owns the terminal)")
	flagSet.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flagSet.StringVar(&markdownStyle, "style", "dark", "markdown style for agent replies (dark, light, notty)")
	flagSet.BoolVar(&noStart, "no-start", false, "do not open the session on launch")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if baseURL != "" {
		cfg.Server.BaseURL = baseURL
	}
	if logOutput != "" {
		cfg.Log.File = logOutput
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger, closer, err := logging.Open(cfg.Log.File, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer closer.Close()

	store, err := settings.Open(cfg.SettingsPath)
	if err != nil {
		return fmt.Errorf("open settings: %w", err)
	}

	dialer := transport.NewWebsocketDialer(nil, transport.WebsocketOptions{
		WriteTimeout: cfg.Session.WriteTimeout,
		PongTimeout:  cfg.Session.PongTimeout,
		PingInterval: cfg.Session.PingInterval,
		CloseTimeout: cfg.Session.CloseTimeout,
		Logger:       logger.With("component", "transport"),
	})
	ch := channel.New(channel.Config{
		BaseURL:     cfg.Server.BaseURL,
		Path:        cfg.Server.Path,
		Subprotocol: cfg.Session.Protocol,
		InitAction:  cfg.Session.HandshakeAction,
		Dialer:      dialer,
		Settings:    store,
		Reporter:    logging.NewReporter(logger),
		Logger:      logger.With("component", "channel"),
	})

	// Persist issued tokens so the next start resumes the session, and
	// forget them once the backend rejects them.
	ch.AddMessageListener(channel.NewListener(func(msg channel.Message) {
		var token string
		if t, ok := msg.Token(); ok {
			token = t
		} else if !msg.IsSessionExpired() {
			return
		}
		if err := store.SetSessionToken(token); err != nil {
			logger.Error("cannot persist session token", "error", err)
		}
	}))

	model := app.New(ch, app.Options{
		Credentials:   store.Credentials,
		AutoStart:     !noStart,
		MarkdownStyle: markdownStyle,
	})
	program := tea.NewProgram(model, tea.WithAltScreen())
	unbind := app.Bind(ch, program.Send)

	logger.Info("workspace tui starting", "base_url", cfg.Server.BaseURL, "settings", cfg.SettingsPath)
	_, err = program.Run()

	unbind()
	if ch.Status() != channel.StatusStopped {
		ch.Stop()
	}
	return err
}
