// Package ingest turns a library of reference documents into chunks ready
// to be embedded into the vector index.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

// MetadataSource is the metadata key holding the path a chunk came from.
const MetadataSource = "source"

// ErrUnsupported is returned for files whose extension has no loader.
var ErrUnsupported = errors.New("unsupported file type")

var supported = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".md":   true,
	".html": true,
	".htm":  true,
}

// Options controls how documents are split.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
}

// Validate checks the chunking parameters.
func (o Options) Validate() error {
	if o.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", o.ChunkSize)
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", o.ChunkSize, o.ChunkOverlap)
	}
	return nil
}

// Supported reports whether path has a known loader.
func Supported(path string) bool {
	return supported[strings.ToLower(filepath.Ext(path))]
}

// CollectFiles expands the given paths into a sorted, de-duplicated list of
// supported files. Directories are walked recursively; explicitly named
// files with an unknown extension are an error.
func CollectFiles(paths []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}

		if !info.IsDir() {
			if !Supported(root) {
				return nil, fmt.Errorf("%s: %w", root, ErrUnsupported)
			}
			add(filepath.Clean(root))
			continue
		}

		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !Supported(p) {
				return nil
			}
			add(filepath.Clean(p))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

// LoadFile loads a single file and splits it into chunks tagged with their
// source path.
func LoadFile(ctx context.Context, path string, opts Options) ([]schema.Document, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(opts.ChunkSize),
		textsplitter.WithChunkOverlap(opts.ChunkOverlap),
	)

	var docs []schema.Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		docs, err = documentloaders.NewPDF(f, info.Size()).LoadAndSplit(ctx, splitter)
		if err != nil {
			return nil, fmt.Errorf("load pdf %s: %w", path, err)
		}
	case ".html", ".htm":
		docs, err = documentloaders.NewHTML(f).LoadAndSplit(ctx, splitter)
		if err != nil {
			return nil, fmt.Errorf("load html %s: %w", path, err)
		}
	case ".txt", ".md":
		docs, err = documentloaders.NewText(f).LoadAndSplit(ctx, splitter)
		if err != nil {
			return nil, fmt.Errorf("load text %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupported)
	}

	chunks := docs[:0]
	for _, doc := range docs {
		if strings.TrimSpace(doc.PageContent) == "" {
			continue
		}
		if doc.Metadata == nil {
			doc.Metadata = make(map[string]any, 1)
		}
		doc.Metadata[MetadataSource] = path
		chunks = append(chunks, doc)
	}
	return chunks, nil
}
