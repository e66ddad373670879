package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/AnTengye/keydates/model"
	"github.com/AnTengye/keydates/pkg/checksum"
	"github.com/AnTengye/keydates/pkg/logger"
	"github.com/AnTengye/keydates/service"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newExtractCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract key dates from a local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if int64(len(data)) > cfg.Server.MaxUploadBytes() {
				return service.ErrFileTooLarge
			}

			name := filepath.Base(path)
			ctx := logger.WithDocument(context.Background(), name, checksum.Sum(data))

			doc, err := service.NewDocumentService().Extract(ctx, data, name, "")
			if err != nil {
				return err
			}
			outcome, err := newPipeline(cfg).Run(ctx, *doc)
			if err != nil {
				return err
			}

			result := model.NewExtractionResult(name, outcome.Items)
			if asJSON {
				return printJSON(cmd.OutOrStdout(), result)
			}
			renderItems(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderItems(w io.Writer, result *model.ExtractionResult) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle(result.SourceFile)
	tw.AppendHeader(table.Row{"Type", "Date", "ISO", "Summary", "Page", "Section", "Confidence"})
	for _, item := range result.Items {
		tw.AppendRow(table.Row{
			item.Type,
			item.DateText,
			deref(item.DateISO),
			item.Summary,
			deref(item.Page),
			deref(item.Section),
			deref(item.Confidence),
		})
	}
	tw.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d dates", len(result.Items))})
	tw.Render()
}

// deref renders a nullable field, "" for nil.
func deref[T any](v *T) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(*v)
}
