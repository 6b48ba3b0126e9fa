package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pfrederiksen/telefication/internal/config"
	"github.com/pfrederiksen/telefication/internal/crypto"
	"github.com/pfrederiksen/telefication/internal/logger"
	"github.com/pfrederiksen/telefication/internal/storage"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

// PassphraseEnv names the variable holding the passphrase that seals stored secrets
const PassphraseEnv = config.EnvPrefix + "PASSPHRASE"

type options struct {
	configPath string
	dataDir    string
	envFile    string
	format     string
	verbose    bool
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "telefication",
		Short: "Send site notifications to Telegram",
		Long: `Telefication forwards site events (mail, comments, posts, registrations and
orders) to Telegram, through the hosted relay or your own bot.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Settings file (YAML or JSON); the settings store is used when empty")
	pf.StringVar(&opts.dataDir, "data-dir", config.DefaultDataDir, "Data directory for the settings store (or env: "+config.DataDirEnv+")")
	pf.StringVar(&opts.envFile, "env-file", ".env", "Environment file loaded at startup when present")
	pf.StringVar(&opts.format, "format", "text", "Output format: text or json")
	pf.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")

	cmd.AddCommand(
		newServeCmd(opts),
		newSendCmd(opts),
		newChatIDCmd(opts),
		newRenderCmd(opts),
		newSettingsCmd(opts),
	)
	return cmd
}

func (o *options) setup(cmd *cobra.Command) error {
	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", o.envFile, err)
		}
	}

	format := OutputFormat(strings.ToLower(o.format))
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", o.format)
	}
	o.format = string(format)

	if f := cmd.Flag("data-dir"); f == nil || !f.Changed {
		if dir := os.Getenv(config.DataDirEnv); dir != "" {
			o.dataDir = dir
		}
	}

	level := logger.LevelWarn
	if o.verbose {
		level = logger.LevelDebug
	}
	logger.SetDefault(logger.NewConsole(level, cmd.ErrOrStderr()))
	return nil
}

func (o *options) outputFormat() OutputFormat {
	return OutputFormat(o.format)
}

// openStore opens the settings store in --data-dir, falling back to
// TELEFICATION_DATA_DIR and then the default directory
func (o *options) openStore() (*storage.Storage, error) {
	store, err := storage.New(o.dataDir, crypto.NewEncryptor(os.Getenv(PassphraseEnv)))
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

// source returns the settings source selected by the flags and a function releasing it
func (o *options) source() (config.Source, func(), error) {
	if o.configPath != "" {
		return config.EnvSource{Source: config.FileSource{Path: o.configPath}}, func() {}, nil
	}

	store, err := o.openStore()
	if err != nil {
		return nil, nil, err
	}
	return config.EnvSource{Source: store}, func() { _ = store.Close() }, nil
}

// loadConfig loads a snapshot and applies its log level unless --verbose is set
func (o *options) loadConfig(cmd *cobra.Command, src config.Source) (*config.Config, error) {
	cfg, err := src.Load()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	o.applyLogLevel(cmd.ErrOrStderr(), cfg)
	return cfg, nil
}

func (o *options) applyLogLevel(w io.Writer, cfg *config.Config) {
	if o.verbose {
		return
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return
	}
	logger.SetDefault(logger.NewConsole(level, w))
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
	os.Exit(ExitSuccess)
}
