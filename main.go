package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/circuitsaga/payvoice/config"
	"github.com/circuitsaga/payvoice/dispatch"
	"github.com/circuitsaga/payvoice/imap"
	"github.com/circuitsaga/payvoice/journal"
	"github.com/circuitsaga/payvoice/push"
	"github.com/circuitsaga/payvoice/runner"
	"github.com/circuitsaga/payvoice/stats"
	"github.com/circuitsaga/payvoice/tts"
	"github.com/circuitsaga/payvoice/voiceserver"
	"github.com/circuitsaga/payvoice/watcher"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "payvoice",
		Short: "Watch a mailbox for payment notifications and announce them with a voice push",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cmd)
			if err != nil {
				return err
			}

			logger, cleanup, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			slog.SetDefault(logger)
			logger.Info("starting payvoice", "account", cfg.IMAPUser, "sender", cfg.SenderToken, "interval", cfg.PollInterval)

			return run(cfg, logger)
		},
	}

	if err := config.RegisterFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register CLI flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(replayCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	r := runner.New(logger)
	stats.NewReporter(r, logger)

	mailClient, err := imap.NewClient(imap.Options{
		Host:               cfg.IMAPHost,
		Port:               cfg.IMAPPort,
		Username:           cfg.IMAPUser,
		Password:           cfg.IMAPPass,
		Mailbox:            cfg.Mailbox,
		UseTLS:             cfg.UseTLS,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}, logger)
	if err != nil {
		return fmt.Errorf("imap.NewClient: %w", err)
	}

	ttsClient, err := tts.NewClient(tts.Options{
		APIKey:  cfg.TTSAPIKey,
		VoiceID: cfg.VoiceID,
		ModelID: cfg.ModelID,
	})
	if err != nil {
		return fmt.Errorf("tts.NewClient: %w", err)
	}

	pushClient, err := push.NewClient(cfg.PushcutURL)
	if err != nil {
		return fmt.Errorf("push.NewClient: %w", err)
	}

	var journalWriter *journal.Writer
	if cfg.JournalDir != "" {
		journalWriter, err = journal.New(cfg.JournalDir)
		if err != nil {
			return fmt.Errorf("journal.New: %w", err)
		}
		defer func() {
			_ = journalWriter.Close()
		}()
	}

	dispatcher, err := dispatch.New(dispatch.Options{
		VoiceDir:      cfg.VoiceDir,
		PublicBaseURL: cfg.PublicBaseURL,
	}, ttsClient, pushClient, journalWriter, logger)
	if err != nil {
		return fmt.Errorf("dispatch.New: %w", err)
	}

	mailbox := watcher.MailboxFunc(func(ctx context.Context) (watcher.Session, error) {
		return mailClient.Dial(ctx)
	})

	w, err := watcher.New(watcher.Options{
		Interval:    cfg.PollInterval,
		SenderToken: cfg.SenderToken,
	}, mailbox, dispatcher, r, logger)
	if err != nil {
		return fmt.Errorf("watcher.New: %w", err)
	}

	server := voiceserver.New(cfg.ListenAddr, cfg.VoiceDir, logger)

	r.AddStage("watcher", w.Run)
	r.AddStage("voiceserver", server.Run)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-shutdown
		logger.Info("shutting down", "signal", sig.String())
		r.Shutdown()
	}()

	return r.Start()
}

func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("payvoice-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler), cleanup, nil
}
