package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/pagegen/internal/config"
	"github.com/lehigh-university-libraries/pagegen/internal/session"
)

type rootOptions struct {
	configPath string
	logLevel   string
	cfg        config.Config
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "pagegen",
		Short: "Drive a topic through outline editing and page image generation",
		Long: `Pagegen keeps the state of a page generation session: the topic, an
editable outline of pages, and the per-page results reported by the image
generation service.

State is saved after every change and restored on the next run, so each
command picks up where the previous one left off. Every outline is also
filed in a searchable history.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Log.Level = opts.logLevel
			}
			opts.cfg = cfg

			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: cfg.Log.SlogLevel(),
			})))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file (default ~/.config/pagegen/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newTopicCmd(opts))
	cmd.AddCommand(newOutlineCmd(opts))
	cmd.AddCommand(newPageCmd(opts))
	cmd.AddCommand(newGenerateCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newResetCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))

	return cmd
}

// withSession opens the configured session for the duration of fn.
func withSession(cmd *cobra.Command, opts *rootOptions, fn func(s *session.Service) error) error {
	s, err := session.Open(cmd.Context(), opts.cfg, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			slog.Error("Unable to close session", "err", err)
		}
	}()
	return fn(s)
}
