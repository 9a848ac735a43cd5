// Package vectorstore holds the search-index backends the retrieval-QA
// pipeline reads from and the document indexer writes to.
package vectorstore

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/vectorstores"
)

// Metadata keys written by the indexer and read back when building citations.
const (
	MetadataSource   = "source"
	MetadataTitle    = "title"
	MetadataFileHash = "file_hash"
	MetadataChunkNum = "chunk_num"
	MetadataPage     = "page"
	MetadataID       = "id"
)

// Store is a langchaingo vector store that can also track which source files
// it currently holds.
type Store interface {
	vectorstores.VectorStore
	// DeleteBySource removes every chunk whose metadata source equals source.
	DeleteBySource(ctx context.Context, source string) error
	// SourceHashes maps each indexed source to the file hash it was indexed with.
	SourceHashes(ctx context.Context) (map[string]string, error)
}

func applyOptions(options []vectorstores.Option) vectorstores.Options {
	opts := vectorstores.Options{}
	for _, opt := range options {
		opt(&opts)
	}
	return opts
}

var errNoEmbedder = errors.New("vectorstore: no embedder configured")
