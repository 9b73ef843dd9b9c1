package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bull/lexrag/internal/ingest"
	"github.com/bull/lexrag/internal/markdown"
)

var (
	ingestJSON string
	ingestMode string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Add local files or a JSON document batch to the index",
	Long: `Reads .txt, .md and audio files (and/or a JSON batch) and merges them into the index.

Markdown is converted to plain text with its first heading as title. Audio
files are transcribed when transcription is enabled. With --mode replace the
given documents become the whole corpus.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestJSON, "json", "", "JSON file with {\"docs\": [...]} or a document array")
	ingestCmd.Flags().StringVar(&ingestMode, "mode", "", "append (default) or replace")
}

func runIngest(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && ingestJSON == "" {
		return errors.New("nothing to ingest: pass files or --json")
	}
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	req := ingest.Request{Docs: []ingest.RawDocument{}}
	if ingestJSON != "" {
		req, err = loadJSON(ingestJSON)
		if err != nil {
			return err
		}
	}

	var t transcriber
	if a.Transcriber != nil {
		t = a.Transcriber
	}
	conv := markdown.NewConverter()
	for _, path := range args {
		doc, err := loadFile(ctx, path, conv, t, a.Logger)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		req.Docs = append(req.Docs, doc)
	}
	if ingestMode != "" {
		req.Mode = ingestMode
	}

	res, err := a.Service.Ingest(ctx, req)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Indexed %d documents (%s)\n", res.Indexed, res.Mode)
	fmt.Fprintf(out, "  Total: %d\n", res.Total)
	fmt.Fprintf(out, "  Version: %d\n", res.Version)
	return nil
}
