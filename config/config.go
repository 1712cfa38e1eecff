package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// Config captures everything the watcher needs to run. Secrets and public
// addresses fall back to environment variables so a .env file is enough to
// deploy; a missing required value fails here, before the first poll cycle.
type Config struct {
	IMAPHost           string
	IMAPPort           int
	IMAPUser           string
	IMAPPass           string
	Mailbox            string
	UseTLS             bool
	InsecureSkipVerify bool

	SenderToken  string
	PollInterval time.Duration

	PushcutURL    string
	PublicBaseURL string

	TTSAPIKey string
	VoiceID   string
	ModelID   string

	VoiceDir   string
	JournalDir string
	ListenAddr string

	LogLevel string
	LogDir   string
}

// RegisterFlags attaches all CLI flags to the provided command.
func RegisterFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.String("imap-host", "imap.gmail.com", "IMAP server hostname")
	flags.Int("imap-port", 993, "IMAP server port")
	flags.String("imap-user", "", "IMAP account address")
	flags.String("imap-pass", "", "IMAP app password (falls back to PAYVOICE_IMAP_PASS env var)")
	flags.String("imap-mailbox", "INBOX", "Mailbox to watch")
	flags.Bool("use-tls", true, "Use TLS for the IMAP connection")
	flags.Bool("insecure-skip-verify", false, "Skip TLS certificate verification (not recommended)")
	flags.String("sender", "no-reply@famapp.in", "Substring the notification From address must contain")
	flags.Duration("interval", 5*time.Second, "Delay between the end of one poll cycle and the next")
	flags.String("pushcut-url", "", "Push webhook URL (falls back to PAYVOICE_PUSHCUT_URL env var)")
	flags.String("public-url", "", "Public base URL voice clips are served under (falls back to PAYVOICE_PUBLIC_URL env var)")
	flags.String("tts-key", "", "Speech synthesis API key (falls back to PAYVOICE_TTS_KEY env var)")
	flags.String("voice-id", "", "Speech synthesis voice identifier (falls back to PAYVOICE_VOICE_ID env var)")
	flags.String("model-id", "eleven_multilingual_v2", "Speech synthesis model identifier")
	flags.String("voice-dir", "voice", "Directory generated voice clips are written to")
	flags.String("journal-dir", "", "Directory for the dispatch journal (empty disables journaling)")
	flags.String("listen", ":10000", "Voice file server listen address")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Directory for log files (empty logs to stdout only)")

	if err := cmd.MarkFlagRequired("imap-user"); err != nil {
		return err
	}

	return nil
}

// LoadConfig converts the parsed Cobra flags into a Config struct with
// validation.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()

	imapHost, err := flags.GetString("imap-host")
	if err != nil {
		return Config{}, err
	}
	imapPort, err := flags.GetInt("imap-port")
	if err != nil {
		return Config{}, err
	}
	imapUser, err := flags.GetString("imap-user")
	if err != nil {
		return Config{}, err
	}
	imapPass, err := flags.GetString("imap-pass")
	if err != nil {
		return Config{}, err
	}
	mailbox, err := flags.GetString("imap-mailbox")
	if err != nil {
		return Config{}, err
	}
	useTLS, err := flags.GetBool("use-tls")
	if err != nil {
		return Config{}, err
	}
	insecureSkipVerify, err := flags.GetBool("insecure-skip-verify")
	if err != nil {
		return Config{}, err
	}
	senderToken, err := flags.GetString("sender")
	if err != nil {
		return Config{}, err
	}
	pollInterval, err := flags.GetDuration("interval")
	if err != nil {
		return Config{}, err
	}
	pushcutURL, err := flags.GetString("pushcut-url")
	if err != nil {
		return Config{}, err
	}
	publicBaseURL, err := flags.GetString("public-url")
	if err != nil {
		return Config{}, err
	}
	ttsAPIKey, err := flags.GetString("tts-key")
	if err != nil {
		return Config{}, err
	}
	voiceID, err := flags.GetString("voice-id")
	if err != nil {
		return Config{}, err
	}
	modelID, err := flags.GetString("model-id")
	if err != nil {
		return Config{}, err
	}
	voiceDir, err := flags.GetString("voice-dir")
	if err != nil {
		return Config{}, err
	}
	journalDir, err := flags.GetString("journal-dir")
	if err != nil {
		return Config{}, err
	}
	listenAddr, err := flags.GetString("listen")
	if err != nil {
		return Config{}, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return Config{}, err
	}
	logDir, err := flags.GetString("log-dir")
	if err != nil {
		return Config{}, err
	}

	if imapPass == "" {
		imapPass = os.Getenv("PAYVOICE_IMAP_PASS")
	}
	if pushcutURL == "" {
		pushcutURL = os.Getenv("PAYVOICE_PUSHCUT_URL")
	}
	if publicBaseURL == "" {
		publicBaseURL = os.Getenv("PAYVOICE_PUBLIC_URL")
	}
	if ttsAPIKey == "" {
		ttsAPIKey = os.Getenv("PAYVOICE_TTS_KEY")
	}
	if voiceID == "" {
		voiceID = os.Getenv("PAYVOICE_VOICE_ID")
	}

	logLevel = strings.ToLower(logLevel)
	if logLevel == "warning" {
		logLevel = "warn"
	}

	cfg := Config{
		IMAPHost:           imapHost,
		IMAPPort:           imapPort,
		IMAPUser:           imapUser,
		IMAPPass:           imapPass,
		Mailbox:            mailbox,
		UseTLS:             useTLS,
		InsecureSkipVerify: insecureSkipVerify,
		SenderToken:        senderToken,
		PollInterval:       pollInterval,
		PushcutURL:         pushcutURL,
		PublicBaseURL:      strings.TrimRight(publicBaseURL, "/"),
		TTSAPIKey:          ttsAPIKey,
		VoiceID:            voiceID,
		ModelID:            modelID,
		VoiceDir:           voiceDir,
		JournalDir:         journalDir,
		ListenAddr:         listenAddr,
		LogLevel:           logLevel,
		LogDir:             logDir,
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	if cfg.IMAPHost == "" {
		return fmt.Errorf("--imap-host is required")
	}
	if cfg.IMAPUser == "" {
		return fmt.Errorf("--imap-user is required")
	}
	if cfg.IMAPPass == "" {
		return fmt.Errorf("IMAP password must be provided via --imap-pass or PAYVOICE_IMAP_PASS env var")
	}
	if cfg.IMAPPort <= 0 || cfg.IMAPPort > 65535 {
		return fmt.Errorf("--imap-port must be between 1 and 65535")
	}
	if cfg.SenderToken == "" {
		return fmt.Errorf("--sender must not be empty")
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}
	if cfg.PushcutURL == "" {
		return fmt.Errorf("push webhook URL must be provided via --pushcut-url or PAYVOICE_PUSHCUT_URL env var")
	}
	if cfg.PublicBaseURL == "" {
		return fmt.Errorf("public base URL must be provided via --public-url or PAYVOICE_PUBLIC_URL env var")
	}
	if cfg.TTSAPIKey == "" {
		return fmt.Errorf("synthesis API key must be provided via --tts-key or PAYVOICE_TTS_KEY env var")
	}
	if cfg.VoiceID == "" {
		return fmt.Errorf("voice identifier must be provided via --voice-id or PAYVOICE_VOICE_ID env var")
	}
	if cfg.VoiceDir == "" {
		return fmt.Errorf("--voice-dir must not be empty")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}
