package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/pagegen/internal/outline"
	"github.com/lehigh-university-libraries/pagegen/internal/session"
	"github.com/lehigh-university-libraries/pagegen/internal/workflow"
)

func newTopicCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "topic <text>",
		Short: "Set the session topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := strings.Join(args, " ")
			return withSession(cmd, opts, func(s *session.Service) error {
				return s.Do(func(c *workflow.Controller) error {
					c.SetTopic(topic)
					fmt.Fprintf(cmd.OutOrStdout(), "Topic set: %s\n", topic)
					return nil
				})
			})
		},
	}
}

func newOutlineCmd(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "outline [raw text]",
		Short: "Replace the outline",
		Long: `Replace the outline with new raw text. Pages are separated by <page>
markers and may start with a [cover], [content] or [summary] tag.`,
		Example: `  # Outline from an argument
  pagegen outline "Cover<page>Packing list<page>Wrap up"

  # Outline from a file, or - for stdin
  pagegen outline --file outline.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readOutline(cmd, file, args)
			if err != nil {
				return err
			}
			return withSession(cmd, opts, func(s *session.Service) error {
				s.SetOutline(cmd.Context(), raw, nil)
				return s.Do(func(c *workflow.Controller) error {
					printPages(cmd.OutOrStdout(), c.Pages())
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the outline from a file (- for stdin)")

	return cmd
}

func readOutline(cmd *cobra.Command, file string, args []string) (string, error) {
	switch {
	case file == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read outline: %w", err)
		}
		return string(data), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	}
	return "", fmt.Errorf("outline text or --file is required")
}

func newPageCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "page",
		Short: "Edit outline pages",
	}

	var pageType string
	var after int
	add := &cobra.Command{
		Use:   "add <content>",
		Short: "Add a page at the end, or after --after",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := outline.PageType(pageType)
			if !t.Valid() {
				return fmt.Errorf("invalid page type %q", pageType)
			}
			content := strings.Join(args, " ")
			return editPages(cmd, opts, func(c *workflow.Controller) error {
				if cmd.Flags().Changed("after") {
					c.InsertPage(after, t, content)
				} else {
					c.AddPage(t, content)
				}
				return nil
			})
		},
	}
	add.Flags().StringVarP(&pageType, "type", "t", string(outline.PageContent), "Page type: cover, content or summary")
	add.Flags().IntVar(&after, "after", -1, "Insert after this page index (-1 for the front)")

	rm := &cobra.Command{
		Use:   "rm <index>",
		Short: "Delete a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return editPages(cmd, opts, func(c *workflow.Controller) error {
				if !c.DeletePage(index) {
					return fmt.Errorf("no page %d", index)
				}
				return nil
			})
		},
	}

	mv := &cobra.Command{
		Use:   "mv <from> <to>",
		Short: "Move a page to a new position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			to, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			return editPages(cmd, opts, func(c *workflow.Controller) error {
				if !c.MovePage(from, to) {
					return fmt.Errorf("no page %d", from)
				}
				return nil
			})
		},
	}

	edit := &cobra.Command{
		Use:   "edit <index> <content>",
		Short: "Replace a page's content",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			content := strings.Join(args[1:], " ")
			return editPages(cmd, opts, func(c *workflow.Controller) error {
				if !c.UpdatePage(index, content) {
					return fmt.Errorf("no page %d", index)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(add, rm, mv, edit)
	return cmd
}

func editPages(cmd *cobra.Command, opts *rootOptions, fn func(c *workflow.Controller) error) error {
	return withSession(cmd, opts, func(s *session.Service) error {
		return s.Do(func(c *workflow.Controller) error {
			if err := fn(c); err != nil {
				return err
			}
			printPages(cmd.OutOrStdout(), c.Pages())
			return nil
		})
	})
}

func printPages(w io.Writer, pages []outline.Page) {
	for _, p := range pages {
		first, _, _ := strings.Cut(p.Content, "\n")
		fmt.Fprintf(w, "%3d  %-8s %s\n", p.Index, p.Type, first)
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session.Service) error {
				return s.Do(func(c *workflow.Controller) error {
					if output != "text" {
						return printValue(cmd.OutOrStdout(), output, c.Snapshot())
					}
					w := cmd.OutOrStdout()
					fmt.Fprintln(w, session.Describe(c))
					if t := c.Topic(); t != "" {
						fmt.Fprintf(w, "topic: %s\n", t)
					}
					if id := c.RecordID(); id != "" {
						fmt.Fprintf(w, "record: %s\n", id)
					}
					printPages(w, c.Pages())
					for _, r := range c.Snapshot().Images {
						line := fmt.Sprintf("  page %d: %s %s", r.Index, r.Status, r.URL)
						if r.Error != "" {
							line += " (" + r.Error + ")"
						}
						fmt.Fprintln(w, strings.TrimRight(line, " "))
					}
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json or yaml")

	return cmd
}

func newResetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the session and its saved state",
		Long:  "Clear the session and delete its saved state. History records are kept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(s *session.Service) error {
				return s.Do(func(c *workflow.Controller) error {
					c.Reset()
					fmt.Fprintln(cmd.OutOrStdout(), "Session reset")
					return nil
				})
			})
		},
	}
}
