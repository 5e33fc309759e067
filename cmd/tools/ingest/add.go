package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/schema"

	"github.com/zhouzirui/medrag/backend/internal/ingest"
	"github.com/zhouzirui/medrag/backend/internal/service/qa"
)

const batchSize = 32

type addOptions struct {
	chunkSize    int
	chunkOverlap int
	reset        bool
}

func newAddCmd() *cobra.Command {
	opts := addOptions{}

	cmd := &cobra.Command{
		Use:   "add [paths...]",
		Short: "Split documents and add their embeddings to the collection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd, args, opts)
		},
	}

	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", 500, "Maximum characters per chunk")
	cmd.Flags().IntVar(&opts.chunkOverlap, "chunk-overlap", 50, "Characters shared between neighbouring chunks")
	cmd.Flags().BoolVar(&opts.reset, "reset", false, "Delete every chunk of the collection before adding")
	return cmd
}

func runAdd(cmd *cobra.Command, paths []string, opts addOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	splitOpts := ingest.Options{ChunkSize: opts.chunkSize, ChunkOverlap: opts.chunkOverlap}
	if err := splitOpts.Validate(); err != nil {
		return err
	}

	files, err := ingest.CollectFiles(paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(out, warningStyle.Render("No supported documents found"))
		return nil
	}

	index, err := qa.OpenVectorIndex(ctx, cfg.Retrieval)
	if err != nil {
		return err
	}
	defer index.Close()

	fmt.Fprintln(out, sectionStyle.Render("Indexing into "+cfg.Retrieval.Collection))

	if opts.reset {
		removed, err := index.Reset(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, warningStyle.Render(fmt.Sprintf("Removed %d existing chunks", removed)))
	}

	total := 0
	for _, file := range files {
		docs, err := ingest.LoadFile(ctx, file, splitOpts)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("✗"), pathStyle.Render(file), err)
			continue
		}

		added, err := addBatches(cmd, index, docs)
		total += added
		if err != nil {
			return fmt.Errorf("index %s: %w", file, err)
		}
		fmt.Fprintln(out, successStyle.Render("✓"), pathStyle.Render(file), infoStyle.Render(fmt.Sprintf("%d chunks", added)))
	}

	fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("Indexed %d chunks from %d files", total, len(files))))
	return nil
}

func addBatches(cmd *cobra.Command, index *qa.VectorIndex, docs []schema.Document) (int, error) {
	added := 0
	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))
		n, err := index.AddDocuments(cmd.Context(), docs[start:end])
		added += n
		if err != nil {
			return added, err
		}
	}
	return added, nil
}
