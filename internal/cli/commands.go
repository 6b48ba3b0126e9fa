package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"github.com/pfrederiksen/telefication/internal/config"
	"github.com/pfrederiksen/telefication/internal/event"
	"github.com/pfrederiksen/telefication/internal/logger"
	"github.com/pfrederiksen/telefication/internal/notifier"
	"github.com/pfrederiksen/telefication/internal/server"
	"github.com/pfrederiksen/telefication/internal/telegram"
)

type serveFlags struct {
	listen      string
	bypass      bool
	bypassHosts []string
}

func newServeCmd(opts *options) *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the HTTP server that receives site events and backs the settings page.
With --config the file is watched and changes apply to the next event.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, opts, flags)
		},
	}

	cmd.Flags().StringVar(&flags.listen, "listen", "", "Listen address (default: listen_addr setting or "+config.DefaultListenAddr+")")
	cmd.Flags().BoolVar(&flags.bypass, "bypass-relay", false, "Serve GET /bypass so other instances can use this one as their bypass")
	cmd.Flags().StringSliceVar(&flags.bypassHosts, "bypass-hosts", nil, "Hosts the bypass relay may forward to (default: Bot API and hosted relay)")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts *options, flags serveFlags) error {
	var (
		src     config.Source
		store   server.SettingsStore
		watcher *config.Watcher
		cfg     *config.Config
	)

	if opts.configPath != "" {
		w, err := config.NewWatcher(opts.configPath)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		w.OnReload = func(reloaded *config.Config) {
			opts.applyLogLevel(cmd.ErrOrStderr(), reloaded)
			logger.Info("Settings reloaded", logger.Fields{"path": opts.configPath})
			if reloaded.RateLimit != cfg.RateLimit || reloaded.RateBurst != cfg.RateBurst {
				logger.Warn("rate_limit and rate_burst take effect after a restart", nil)
			}
		}
		watcher = w
		src = config.EnvSource{Source: w}
	} else {
		st, err := opts.openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		store = st
		src = config.EnvSource{Source: st}
	}

	cfg, err := opts.loadConfig(cmd, src)
	if err != nil {
		return err
	}
	if cfg.APIKey == "" {
		logger.Warn("No api_key set; admin and event endpoints accept any caller", nil)
	}

	addr := flags.listen
	if addr == "" {
		addr = cfg.ListenAddr
	}
	if addr == "" {
		addr = config.DefaultListenAddr
	}

	var relay *telegram.BypassRelay
	if flags.bypass {
		relay = telegram.NewBypassRelay(nil, flags.bypassHosts...)
	}

	srv := server.New(server.Options{
		Source:    src,
		Store:     store,
		Bypass:    relay,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	})

	if watcher != nil {
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Error("Settings watcher stopped", logger.Fields{"path": opts.configPath}, err)
			}
		}()
	}

	return srv.Run(ctx, addr, func() {
		sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
		if err != nil {
			logger.Warn("Notifying systemd failed", logger.Fields{"error": err.Error()})
			return
		}
		if sent {
			logger.Debug("Notified systemd", nil)
		}
	})
}

func newSendCmd(opts *options) *cobra.Command {
	var chatID string

	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Send a test message",
		Long:  `Send a message with the configured transport. The message defaults to "` + server.DefaultTestMessage + `".`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, release, err := opts.source()
			if err != nil {
				return err
			}
			defer release()

			cfg, err := opts.loadConfig(cmd, src)
			if err != nil {
				return err
			}

			message := server.DefaultTestMessage
			if len(args) == 1 {
				message = args[0]
			}

			outcome, err := notifier.NewSender(cfg).SendMessage(cmd.Context(), message, chatID)
			if err != nil {
				if errors.Is(err, telegram.ErrNotApplicable) {
					return errors.New("no chat id: set chat_id or pass --chat-id")
				}
				return fmt.Errorf("sending message: %w", err)
			}
			return WriteOutput(cmd.OutOrStdout(), &OutputResult{Outcome: outcome}, opts.outputFormat())
		},
	}

	cmd.Flags().StringVar(&chatID, "chat-id", "", "Recipient chat id (default: chat_id setting)")
	return cmd
}

func newChatIDCmd(opts *options) *cobra.Command {
	var botToken string

	cmd := &cobra.Command{
		Use:   "chat-id",
		Short: "Print the chat id of the last user who wrote to the bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, release, err := opts.source()
			if err != nil {
				return err
			}
			defer release()

			cfg, err := opts.loadConfig(cmd, src)
			if err != nil {
				return err
			}
			if botToken != "" {
				cfg.BotToken = botToken
			}
			if cfg.BotToken == "" {
				return errors.New("no bot token: set bot_token or pass --bot-token")
			}

			id, err := notifier.NewSender(cfg).DiscoverChatID(cmd.Context())
			if err != nil {
				if errors.Is(err, telegram.ErrNotApplicable) {
					return errors.New(server.MsgSendSomething)
				}
				return fmt.Errorf("getting chat id: %w", err)
			}
			return WriteOutput(cmd.OutOrStdout(), &OutputResult{ChatID: id}, opts.outputFormat())
		},
	}

	cmd.Flags().StringVar(&botToken, "bot-token", "", "Bot token (default: bot_token setting)")
	return cmd
}

func newRenderCmd(opts *options) *cobra.Command {
	var send bool

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Show the notifications an event would produce",
		Long: `Read an event envelope ({"kind": ..., "payload": {...}}) from a file or stdin
and print the messages the enabled handlers would send. With --send they are sent.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			evt, err := event.DecodeEnvelope(data)
			if err != nil {
				return err
			}

			src, release, err := opts.source()
			if err != nil {
				return err
			}
			defer release()

			cfg, err := opts.loadConfig(cmd, src)
			if err != nil {
				return err
			}

			var sender notifier.Sender
			if send {
				sender = notifier.NewSender(cfg)
			} else {
				preview := cmd.OutOrStdout()
				if opts.outputFormat() == FormatJSON {
					preview = cmd.ErrOrStderr()
				}
				sender = notifier.NewDryRun(preview)
			}

			results, err := notifier.Build(cfg, sender).Dispatch(cmd.Context(), evt)
			if err != nil && !errors.Is(err, notifier.ErrNoHandler) {
				return err
			}
			return WriteOutput(cmd.OutOrStdout(), &OutputResult{Kind: evt.Kind(), Results: results}, opts.outputFormat())
		},
	}

	cmd.Flags().BoolVar(&send, "send", false, "Send the messages instead of printing them")
	return cmd
}

func readInput(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("reading event file: %w", err)
	}
	return data, nil
}

func newSettingsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show, import or reset settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, release, err := opts.source()
			if err != nil {
				return err
			}
			defer release()

			cfg, err := opts.loadConfig(cmd, src)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), cfg.Redacted())
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Validate a settings file and save it to the settings store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.configPath != "" {
				return errors.New("settings import writes to the settings store; drop --config")
			}

			cfg, err := config.Parse(args[0])
			if err != nil {
				return err
			}

			store, err := opts.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Save(cmd.Context(), cfg); err != nil {
				return fmt.Errorf("saving settings: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Settings imported from %s\n", args[0])
			return nil
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Delete the stored settings so the defaults apply again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.configPath != "" {
				return errors.New("settings reset clears the settings store; drop --config")
			}

			store, err := opts.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Reset(cmd.Context()); err != nil {
				return fmt.Errorf("resetting settings: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings reset to defaults")
			return nil
		},
	}

	cmd.AddCommand(show, importCmd, reset)
	return cmd
}
