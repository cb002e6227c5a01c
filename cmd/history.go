package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/pagegen/internal/history"
	"github.com/lehigh-university-libraries/pagegen/internal/session"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse past outlines and their results",
	}

	var (
		page     int
		pageSize int
		status   string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List history records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := history.Status(status)
			if st != "" && !st.Valid() {
				return fmt.Errorf("invalid status %q", status)
			}
			return withSession(cmd, opts, func(s *session.Service) error {
				result, err := s.History().List(cmd.Context(), page, pageSize, st)
				if err != nil {
					return err
				}
				printRecords(cmd.OutOrStdout(), result.Records)
				fmt.Fprintf(cmd.OutOrStdout(), "page %d of %d (%d records)\n", result.Page, result.TotalPages, result.Total)
				return nil
			})
		},
	}
	list.Flags().IntVar(&page, "page", 1, "Page number")
	list.Flags().IntVar(&pageSize, "page-size", history.DefaultPageSize, "Records per page")
	list.Flags().StringVar(&status, "status", "", "Only records with this status (draft, generating, completed, partial)")

	var output string
	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session.Service) error {
				rec, err := s.History().Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if rec == nil {
					return fmt.Errorf("no history record %s", args[0])
				}
				return printValue(cmd.OutOrStdout(), output, rec)
			})
		},
	}
	show.Flags().StringVarP(&output, "output", "o", "yaml", "Output format: json or yaml")

	search := &cobra.Command{
		Use:   "search <keyword>",
		Short: "Find records by title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session.Service) error {
				records, err := s.History().Search(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printRecords(cmd.OutOrStdout(), records)
				return nil
			})
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Count records by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session.Service) error {
				st, err := s.History().Statistics(cmd.Context())
				if err != nil {
					return err
				}
				return printValue(cmd.OutOrStdout(), "yaml", st)
			})
		},
	}

	var (
		format string
		out    string
	)
	export := &cobra.Command{
		Use:   "export",
		Short: "Export every record as JSON, YAML or Parquet",
		Example: `  pagegen history export --format parquet --out history.parquet
  pagegen history export --format json > history.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := history.ParseFormat(format)
			if err != nil {
				return err
			}
			return withSession(cmd, opts, func(s *session.Service) error {
				records, err := s.History().All(cmd.Context())
				if err != nil {
					return err
				}

				var w io.Writer = cmd.OutOrStdout()
				if out != "" && out != "-" {
					file, err := os.Create(out)
					if err != nil {
						return fmt.Errorf("create export file: %w", err)
					}
					defer file.Close()
					w = file
				}
				if err := history.Export(w, f, records); err != nil {
					return err
				}
				if out != "" && out != "-" {
					fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d records to %s\n", len(records), out)
				}
				return nil
			})
		},
	}
	export.Flags().StringVar(&format, "format", "json", "Export format: json, yaml or parquet")
	export.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session.Service) error {
				ok, err := s.History().Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no history record %s", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(list, show, search, stats, export, rm)
	return cmd
}

func printRecords(w io.Writer, records []history.Record) {
	for _, r := range records {
		fmt.Fprintf(w, "%s  %-10s %3d pages  %s  %s\n", r.ID, r.Status, r.PageCount(), r.UpdatedAt.Format("2006-01-02 15:04"), r.Title)
	}
}
