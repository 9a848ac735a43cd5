package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	chromaembeddings "github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

// Chroma is a Store backed by a Chroma collection. Embeddings are computed
// here, not by the collection.
type Chroma struct {
	collection chromago.Collection
	embedder   embeddings.Embedder
}

var _ Store = (*Chroma)(nil)

func NewChroma(collection chromago.Collection, embedder embeddings.Embedder) *Chroma {
	return &Chroma{collection: collection, embedder: embedder}
}

// OpenChromaCollection connects to Chroma and gets or creates the named
// collection. The caller owns the returned client and must Close it.
func OpenChromaCollection(ctx context.Context, baseURL, collectionName string) (chromago.Client, chromago.Collection, error) {
	client, err := chromago.NewHTTPClient(chromago.WithBaseURL(baseURL))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create chroma client: %w", err)
	}

	log.Printf("Getting or creating collection '%s'...", collectionName)
	collection, err := client.GetOrCreateCollection(
		ctx,
		collectionName,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "Chat assistant knowledge base"),
				chromago.NewStringAttribute("created_by", "chat-backend"),
			),
		),
	)
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to get or create collection %s: %w", collectionName, err)
	}
	return client, collection, nil
}

// AddDocuments embeds and stores each document under a fresh id.
func (s *Chroma) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	embedder := s.embedderFor(applyOptions(options))
	if embedder == nil {
		return nil, errNoEmbedder
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.PageContent
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	ids := make([]string, 0, len(docs))
	for i, doc := range docs {
		id := uuid.New().String()
		err := s.collection.Add(ctx,
			chromago.WithIDs(chromago.DocumentID(id)),
			chromago.WithTexts(doc.PageContent),
			chromago.WithEmbeddings(chromaembeddings.NewEmbeddingFromFloat32(vectors[i])),
			chromago.WithMetadatas(toChromaMetadata(doc.Metadata)),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to add document to chroma: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SimilaritySearch queries the collection with the embedded query.
func (s *Chroma) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	embedder := s.embedderFor(applyOptions(options))
	if embedder == nil {
		return nil, errNoEmbedder
	}

	vector, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.collection.Query(
		ctx,
		chromago.WithQueryEmbeddings(chromaembeddings.NewEmbeddingFromFloat32(vector)),
		chromago.WithNResults(numDocuments),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chroma: %w", err)
	}

	var docs []schema.Document
	documentGroups := results.GetDocumentsGroups()
	metadataGroups := results.GetMetadatasGroups()
	if len(documentGroups) == 0 {
		return docs, nil
	}
	for i, doc := range documentGroups[0] {
		if doc.ContentString() == "" {
			continue
		}
		var metadata map[string]any
		if len(metadataGroups) > 0 && len(metadataGroups[0]) > i {
			metadata = metadataToMap(metadataGroups[0][i])
		}
		docs = append(docs, schema.Document{PageContent: doc.ContentString(), Metadata: metadata})
	}
	return docs, nil
}

// DeleteBySource removes every chunk indexed from source.
func (s *Chroma) DeleteBySource(ctx context.Context, source string) error {
	where := chromago.EqString(MetadataSource, source)
	if err := s.collection.Delete(ctx, chromago.WithWhereDelete(where)); err != nil {
		return fmt.Errorf("failed to delete documents for %s: %w", source, err)
	}
	return nil
}

// SourceHashes lists the file hash of every source the indexer has written.
func (s *Chroma) SourceHashes(ctx context.Context) (map[string]string, error) {
	hashes := make(map[string]string)
	results, err := s.collection.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents from chroma: %w", err)
	}
	for _, meta := range results.GetMetadatas() {
		m := metadataToMap(meta)
		source, _ := m[MetadataSource].(string)
		hash, _ := m[MetadataFileHash].(string)
		if source == "" || hash == "" {
			continue
		}
		if _, seen := hashes[source]; !seen {
			hashes[source] = hash
		}
	}
	return hashes, nil
}

func (s *Chroma) embedderFor(opts vectorstores.Options) embeddings.Embedder {
	if opts.Embedder != nil {
		return opts.Embedder
	}
	return s.embedder
}

func toChromaMetadata(metadata map[string]any) chromago.DocumentMetadata {
	attrs := make([]*chromago.MetaAttribute, 0, len(metadata))
	for key, value := range metadata {
		switch v := value.(type) {
		case int:
			attrs = append(attrs, chromago.NewIntAttribute(key, int64(v)))
		case int64:
			attrs = append(attrs, chromago.NewIntAttribute(key, v))
		case string:
			attrs = append(attrs, chromago.NewStringAttribute(key, v))
		default:
			attrs = append(attrs, chromago.NewStringAttribute(key, fmt.Sprint(v)))
		}
	}
	return chromago.NewDocumentMetadata(attrs...)
}

// metadataToMap goes through JSON because DocumentMetadata exposes no
// accessor for its values.
func metadataToMap(meta chromago.DocumentMetadata) map[string]any {
	out := make(map[string]any)
	if meta == nil {
		return out
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		log.Warnf("could not marshal chroma metadata: %v", err)
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		log.Warnf("could not unmarshal chroma metadata: %v", err)
	}
	return out
}
