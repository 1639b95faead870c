package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"space-planner/internal/common/logging"
	"space-planner/internal/planner/importer"
	"space-planner/internal/planner/render"
	"space-planner/internal/planner/workspace"
)

var (
	importDocument string
	exportOut      string
)

func init() {
	importCmd.Flags().StringVarP(&importDocument, "document", "d", "", "target document id (default: file name)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default: stdout)")
}

var importCmd = &cobra.Command{
	Use:   "import <plan.svg>",
	Short: "Import an SVG floor plan into a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := setup(ctx)
		if err != nil {
			return err
		}
		defer e.bridge.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		res, err := importer.Parse(f, importer.WithLogger(logging.Component(e.log, "import")))
		if err != nil {
			return err
		}

		id := importDocument
		if id == "" {
			id = documentName(args[0])
		}
		ws := e.workspace()
		defer ws.Close()

		d, err := ws.Open(ctx, id)
		if err != nil {
			return err
		}
		var ids []string
		err = d.Do(func(d *workspace.Document) error {
			if len(res.Elements) == 0 {
				return nil
			}
			ids, err = d.Store.AddShapes(res.Shapes())
			return err
		})
		if err != nil {
			return err
		}
		if err := d.Autosaver.Flush(ctx); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "imported %d shapes into %s, skipped %d\n", len(ids), id, len(res.Skipped))
		for _, s := range res.Skipped {
			fmt.Fprintf(cmd.OutOrStdout(), "  skipped %s: %s\n", s.SourceID, s.Reason)
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <document>",
	Short: "Render a stored document as SVG",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := setup(ctx)
		if err != nil {
			return err
		}
		defer e.bridge.Close()

		// Existence check first; Open would create an empty document.
		if _, err := e.bridge.Load(ctx, args[0]); err != nil {
			return err
		}
		ws := e.workspace()
		defer ws.Close()
		d, err := ws.Open(ctx, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		return d.Do(func(d *workspace.Document) error {
			bounds, _ := d.Canvas.Bounds()
			return render.ExportSVG(out, d.Canvas.Primitives(), bounds)
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		e, err := setup(ctx)
		if err != nil {
			return err
		}
		defer e.bridge.Close()

		infos, err := e.bridge.List(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSHAPES\tUPDATED")
		for _, info := range infos {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", info.ID, info.Shapes, info.UpdatedAt.Local().Format(time.DateTime))
		}
		return tw.Flush()
	},
}

// documentName derives a document id from an import file name.
func documentName(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "imported"
	}
	return name
}
