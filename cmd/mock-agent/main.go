// mock-agent serves a minimal agent session backend for local development:
// it negotiates the session subprotocol, issues session tokens, answers
// the handshake and echoes user messages.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/agent-racer/workspace/internal/config"
	"github.com/agent-racer/workspace/internal/logging"
	"github.com/agent-racer/workspace/internal/mockagent"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, host, logLevel string
	var port int

	flagSet := pflag.NewFlagSet("mock-agent", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	flagSet.StringVar(&host, "host", "", "override listen host")
	flagSet.IntVarP(&port, "port", "p", 0, "override listen port")
	flagSet.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if host != "" {
		cfg.Mock.Host = host
	}
	if port > 0 {
		cfg.Mock.Port = port
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	server := mockagent.NewServer(mockagent.Config{
		Subprotocol:  cfg.Session.Protocol,
		InitAction:   cfg.Session.HandshakeAction,
		SessionToken: cfg.Mock.SessionToken,
		Logger:       logger,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down", "clients", server.ClientCount())
		server.DisconnectAll()
		os.Exit(0)
	}()

	return mockagent.ListenAndServe(cfg.Mock.Host, cfg.Mock.Port, server.Handler(), logger)
}
