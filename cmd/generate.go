package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/pagegen/internal/progress"
	"github.com/lehigh-university-libraries/pagegen/internal/session"
	"github.com/lehigh-university-libraries/pagegen/internal/workflow"
)

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Track page generation",
		Long: `Track a generation round. The image generation service is external: start
a round, then report each page's result as it arrives.`,
		Example: `  pagegen generate start
  pagegen generate report 0 done --url https://cdn.example.com/0.png
  pagegen generate report 1 error --error "timeout" --retryable
  pagegen generate retry 1
  pagegen generate finish --task-id task_123`,
	}

	cmd.AddCommand(
		newGenerateStartCmd(opts),
		newGenerateReportCmd(opts),
		newGenerateRetryCmd(opts),
		newGenerateReplaceCmd(opts),
		newGenerateFinishCmd(opts),
		newGenerateFailedCmd(opts),
	)
	return cmd
}

func newGenerateStartCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start a generation round for the current outline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session.Service) error {
				round, pages := s.BeginGeneration(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "Round %d started for %d pages\n", round, len(pages))
				printPages(cmd.OutOrStdout(), pages)
				return nil
			})
		},
	}
}

func newGenerateReportCmd(opts *rootOptions) *cobra.Command {
	var (
		url       string
		errMsg    string
		retryable bool
	)

	cmd := &cobra.Command{
		Use:   "report <index> <status>",
		Short: "Report a page result (generating, done, error or retrying)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			status := progress.RecordStatus(args[1])
			if !status.Valid() {
				return fmt.Errorf("invalid status %q", args[1])
			}

			return withSession(cmd, opts, func(s *session.Service) error {
				return s.Do(func(c *workflow.Controller) error {
					r := progress.Report{Round: c.Round(), Index: index, Status: status, URL: url, Error: errMsg}
					if cmd.Flags().Changed("retryable") {
						r.Retryable = &retryable
					}
					if !c.ReportStatus(r) {
						return fmt.Errorf("no generation record for page %d", index)
					}
					fmt.Fprintln(cmd.OutOrStdout(), session.Describe(c))
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "URL of the generated image")
	cmd.Flags().StringVar(&errMsg, "error", "", "Error message for a failed page")
	cmd.Flags().BoolVar(&retryable, "retryable", false, "Whether a failed page can be retried")

	return cmd
}

func newGenerateRetryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <index>",
		Short: "Mark a failed page as being retried",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, opts, func(s *session.Service) error {
				return s.Do(func(c *workflow.Controller) error {
					if !c.MarkRetrying(index) {
						return fmt.Errorf("no generation record for page %d", index)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Page %d marked for retry\n", index)
					return nil
				})
			})
		},
	}
}

func newGenerateReplaceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replace <index> <url>",
		Short: "Replace a page's image with a new URL",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, opts, func(s *session.Service) error {
				return s.Do(func(c *workflow.Controller) error {
					if !c.ReplaceImage(index, args[1]) {
						return fmt.Errorf("no generation record for page %d", index)
					}
					for _, r := range c.Snapshot().Images {
						if r.Index == index {
							fmt.Fprintln(cmd.OutOrStdout(), r.URL)
						}
					}
					return nil
				})
			})
		},
	}
}

func newGenerateFinishCmd(opts *rootOptions) *cobra.Command {
	var taskID string

	cmd := &cobra.Command{
		Use:   "finish",
		Short: "Finish the round and show the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session.Service) error {
				s.Finish(cmd.Context(), taskID)
				return s.Do(func(c *workflow.Controller) error {
					fmt.Fprintln(cmd.OutOrStdout(), session.Describe(c))
					if c.HasFailures() {
						fmt.Fprintf(cmd.OutOrStdout(), "%d pages failed, see: pagegen generate failed\n", len(c.FailedRecords()))
					}
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVar(&taskID, "task-id", "", "Task id assigned by the generation service")

	return cmd
}

func newGenerateFailedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "failed",
		Short: "List failed pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session.Service) error {
				return s.Do(func(c *workflow.Controller) error {
					errs := make(map[int]progress.Record)
					for _, r := range c.FailedRecords() {
						errs[r.Index] = r
					}
					for _, p := range c.FailedPages() {
						r := errs[p.Index]
						retry := ""
						if r.Retryable {
							retry = " [retryable]"
						}
						fmt.Fprintf(cmd.OutOrStdout(), "%3d  %-8s %s%s\n", p.Index, p.Type, r.Error, retry)
					}
					return nil
				})
			})
		},
	}
}
