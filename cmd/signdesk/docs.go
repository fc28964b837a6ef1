package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/SignDesk/internal/agent"
	"github.com/dharsanguruparan/SignDesk/internal/app"
	"github.com/dharsanguruparan/SignDesk/internal/documents"
	"github.com/dharsanguruparan/SignDesk/internal/model"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable(w io.Writer, docs []*model.Document) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tBADGE\tTYPE\tFIELDS\tTITLE")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", d.ID, d.Status, d.Status.Badge(), d.Type, len(d.SignatureFields), d.Title)
	}
	return tw.Flush()
}

func newDocsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Inspect and update documents in the configured store",
	}
	cmd.AddCommand(
		newDocsListCmd(),
		newDocsGetCmd(),
		newDocsCreateCmd(),
		newDocsStatusCmd(),
		newDocsSearchCmd(),
	)
	return cmd
}

func newDocsListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				docs, err := a.Documents.List(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), docs)
				}
				return printTable(cmd.OutOrStdout(), docs)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newDocsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one document as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				doc, err := a.Documents.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), doc)
			})
		},
	}
}

func newDocsCreateCmd() *cobra.Command {
	var (
		in          documents.CreateInput
		contentFile string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft from text (or a file with --content-file)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if contentFile != "" {
				data, err := os.ReadFile(contentFile)
				if err != nil {
					return err
				}
				in.Content = string(data)
			}
			return withApp(cmd, func(a *app.App) error {
				doc, err := a.Documents.Create(cmd.Context(), in)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), doc)
			})
		},
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "Document title")
	cmd.Flags().StringVar(&in.Type, "type", "", "Document type (defaults to service)")
	cmd.Flags().StringVar(&in.Content, "content", "", "Document body")
	cmd.Flags().StringVar(&contentFile, "content-file", "", "Read the body from a file")
	cmd.Flags().StringVar(&in.Template, "template", "", "Apply an authoring template")
	cmd.Flags().BoolVar(&in.Generate, "generate", false, "Generate the body with the content agent")
	return cmd
}

func newDocsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move a document along the status graph",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := model.ParseStatus(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app.App) error {
				doc, err := a.Documents.SetStatus(cmd.Context(), args[0], status)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", doc.ID, doc.Status, doc.Status.Badge())
				return nil
			})
		},
	}
}

func newDocsSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search titles, types and content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				docs, err := a.Documents.Search(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printTable(cmd.OutOrStdout(), docs)
			})
		},
	}
}

func newFieldsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fields",
		Short: "Add, move and delete signature fields",
	}
	cmd.AddCommand(newFieldsAddCmd(), newFieldsMoveCmd(), newFieldsDeleteCmd())
	return cmd
}

func newFieldsAddCmd() *cobra.Command {
	var x, y float64
	cmd := &cobra.Command{
		Use:   "add <document-id> <signature|date|text|initial>",
		Short: "Add a field, centered on --x/--y when given",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := model.ParseFieldType(args[1])
			if err != nil {
				return err
			}
			var drop *model.Point
			if cmd.Flags().Changed("x") || cmd.Flags().Changed("y") {
				drop = &model.Point{X: x, Y: y}
			}
			return withApp(cmd, func(a *app.App) error {
				field, err := a.Documents.Editor(args[0]).AddField(cmd.Context(), t, drop)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), field)
			})
		},
	}
	cmd.Flags().Float64Var(&x, "x", 0, "Drop point x")
	cmd.Flags().Float64Var(&y, "y", 0, "Drop point y")
	return cmd
}

func parseFieldID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid field id %q", s)
	}
	return id, nil
}

func newFieldsMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <document-id> <field-id> <x> <y>",
		Short: "Place a field's top-left corner",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFieldID(args[1])
			if err != nil {
				return err
			}
			x, errX := strconv.ParseFloat(args[2], 64)
			y, errY := strconv.ParseFloat(args[3], 64)
			if errX != nil || errY != nil {
				return fmt.Errorf("invalid position %s,%s", args[2], args[3])
			}
			return withApp(cmd, func(a *app.App) error {
				field, err := a.Documents.Editor(args[0]).MoveField(cmd.Context(), id, model.Point{X: x, Y: y})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), field)
			})
		},
	}
}

func newFieldsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id> <field-id>",
		Short: "Remove a field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFieldID(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app.App) error {
				return a.Documents.Editor(args[0]).DeleteField(cmd.Context(), id)
			})
		},
	}
}

func newExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <document-id>",
		Short: "Render a document to PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				exp, err := a.Documents.Export(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				path := output
				if path == "" {
					path = exp.Artifact.FileName
				}
				if err := os.WriteFile(path, exp.Artifact.Data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d pages)\n", path, exp.Artifact.Pages)
				if exp.URL != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "archived: %s\n", exp.URL)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (defaults to the title-based file name)")
	return cmd
}

func newTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List authoring templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME")
			for _, t := range agent.Templates() {
				fmt.Fprintf(tw, "%s\t%s\n", t.ID, t.Name)
			}
			return tw.Flush()
		},
	}
}
