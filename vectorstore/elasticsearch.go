package vectorstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

// Field names of the LangChain Elasticsearch store layout, so indexes built
// by either side stay readable by the other.
const (
	esTextField     = "text"
	esVectorField   = "vector"
	esMetadataField = "metadata"
	esSourceKeyword = "metadata.source.keyword"
	esHashKeyword   = "metadata.file_hash.keyword"
)

// SourceHashes pages through one bucket per (source, hash) pair.
const (
	esHashAgg      = "sources"
	esHashPageSize = 500
)

type ElasticsearchConfig struct {
	Host        string
	User        string
	Password    string
	VerifyCerts bool
}

// NewElasticsearchClient builds the shared client. Certificate verification
// is off unless explicitly enabled, as the deployed cluster uses a
// self-signed certificate.
func NewElasticsearchClient(cfg ElasticsearchConfig) (*elasticsearch.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: !cfg.VerifyCerts} //nolint:gosec

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Host},
		Username:  cfg.User,
		Password:  cfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return client, nil
}

// Elasticsearch is a Store backed by kNN search over a dense_vector field.
type Elasticsearch struct {
	client        *elasticsearch.Client
	embedder      embeddings.Embedder
	index         string
	numCandidates int
}

var _ Store = (*Elasticsearch)(nil)

func NewElasticsearch(client *elasticsearch.Client, embedder embeddings.Embedder, index string, numCandidates int) *Elasticsearch {
	return &Elasticsearch{
		client:        client,
		embedder:      embedder,
		index:         index,
		numCandidates: numCandidates,
	}
}

type esDocument struct {
	Text     string         `json:"text"`
	Vector   []float32      `json:"vector,omitempty"`
	Metadata map[string]any `json:"metadata"`
}

type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string     `json:"_id"`
			Score  float32    `json:"_score"`
			Source esDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type esHashKey struct {
	Source string `json:"source"`
	Hash   string `json:"hash"`
}

type esHashAggResponse struct {
	Aggregations map[string]struct {
		AfterKey *esHashKey `json:"after_key"`
		Buckets  []struct {
			Key esHashKey `json:"key"`
		} `json:"buckets"`
	} `json:"aggregations"`
}

// AddDocuments embeds and indexes docs, creating the index on first use.
func (s *Elasticsearch) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
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

	if err := s.ensureIndex(ctx, len(vectors[0])); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(docs))
	for i, doc := range docs {
		metadata := doc.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		body, err := json.Marshal(esDocument{Text: doc.PageContent, Vector: vectors[i], Metadata: metadata})
		if err != nil {
			return nil, fmt.Errorf("failed to encode document: %w", err)
		}

		id := uuid.New().String()
		res, err := s.client.Index(s.index, bytes.NewReader(body),
			s.client.Index.WithDocumentID(id),
			s.client.Index.WithContext(ctx),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to index document: %w", err)
		}
		err = checkResponse(res, "index document")
		res.Body.Close()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	res, err := s.client.Indices.Refresh(
		s.client.Indices.Refresh.WithIndex(s.index),
		s.client.Indices.Refresh.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh index: %w", err)
	}
	defer res.Body.Close()
	if err := checkResponse(res, "refresh index"); err != nil {
		return nil, err
	}

	log.Debugf("VECTORSTORE: Indexed %d documents into %s", len(ids), s.index)
	return ids, nil
}

// SimilaritySearch returns the numDocuments nearest chunks to query.
// A Filters option, when set, is passed verbatim as the kNN filter clause.
func (s *Elasticsearch) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	opts := applyOptions(options)
	embedder := s.embedderFor(opts)
	if embedder == nil {
		return nil, errNoEmbedder
	}

	vector, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	knn := map[string]any{
		"field":          esVectorField,
		"query_vector":   vector,
		"k":              numDocuments,
		"num_candidates": max(s.numCandidates, numDocuments),
	}
	if opts.Filters != nil {
		knn["filter"] = opts.Filters
	}
	body, err := json.Marshal(map[string]any{
		"knn":     knn,
		"size":    numDocuments,
		"_source": []string{esTextField, esMetadataField},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	parsed, err := s.search(ctx, body)
	if err != nil {
		return nil, err
	}

	docs := make([]schema.Document, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		if opts.ScoreThreshold > 0 && hit.Score < opts.ScoreThreshold {
			continue
		}
		metadata := hit.Source.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, ok := metadata[MetadataID]; !ok {
			metadata[MetadataID] = hit.ID
		}
		docs = append(docs, schema.Document{
			PageContent: hit.Source.Text,
			Metadata:    metadata,
			Score:       hit.Score,
		})
	}
	return docs, nil
}

// DeleteBySource removes every chunk indexed from source.
func (s *Elasticsearch) DeleteBySource(ctx context.Context, source string) error {
	exists, err := s.indexExists(ctx)
	if err != nil || !exists {
		return err
	}

	body, err := json.Marshal(map[string]any{
		"query": map[string]any{
			"term": map[string]any{esSourceKeyword: source},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to encode delete request: %w", err)
	}

	res, err := s.client.DeleteByQuery([]string{s.index}, bytes.NewReader(body),
		s.client.DeleteByQuery.WithContext(ctx),
		s.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("failed to delete documents for %s: %w", source, err)
	}
	defer res.Body.Close()
	return checkResponse(res, "delete by query")
}

// SourceHashes lists the file hash of every source the indexer has written.
// A source whose chunks disagree on the hash maps to "" so the next scan
// replaces it.
func (s *Elasticsearch) SourceHashes(ctx context.Context) (map[string]string, error) {
	hashes := make(map[string]string)
	exists, err := s.indexExists(ctx)
	if err != nil || !exists {
		return hashes, err
	}

	var after *esHashKey
	for {
		composite := map[string]any{
			"size": esHashPageSize,
			"sources": []map[string]any{
				{"source": map[string]any{"terms": map[string]any{"field": esSourceKeyword}}},
				{"hash": map[string]any{"terms": map[string]any{"field": esHashKeyword}}},
			},
		}
		if after != nil {
			composite["after"] = after
		}
		body, err := json.Marshal(map[string]any{
			"size": 0,
			"aggs": map[string]any{esHashAgg: map[string]any{"composite": composite}},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode hash scan: %w", err)
		}

		var parsed esHashAggResponse
		if err := s.searchInto(ctx, body, &parsed); err != nil {
			return nil, err
		}
		page := parsed.Aggregations[esHashAgg]
		for _, bucket := range page.Buckets {
			source, hash := bucket.Key.Source, bucket.Key.Hash
			if source == "" || hash == "" {
				continue
			}
			if seen, ok := hashes[source]; ok && seen != hash {
				hashes[source] = ""
				continue
			}
			hashes[source] = hash
		}

		if len(page.Buckets) == 0 || page.AfterKey == nil {
			return hashes, nil
		}
		after = page.AfterKey
	}
}

func (s *Elasticsearch) search(ctx context.Context, body []byte) (*esSearchResponse, error) {
	var parsed esSearchResponse
	if err := s.searchInto(ctx, body, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

func (s *Elasticsearch) searchInto(ctx context.Context, body []byte, out any) error {
	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()
	if err := checkResponse(res, "search"); err != nil {
		return err
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode search response: %w", err)
	}
	return nil
}

func (s *Elasticsearch) indexExists(ctx context.Context) (bool, error) {
	res, err := s.client.Indices.Exists([]string{s.index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to check index %s: %w", s.index, err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, checkResponse(res, "check index")
	}
}

func (s *Elasticsearch) ensureIndex(ctx context.Context, dims int) error {
	exists, err := s.indexExists(ctx)
	if err != nil || exists {
		return err
	}

	body, err := json.Marshal(map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				esVectorField: map[string]any{
					"type":       "dense_vector",
					"dims":       dims,
					"index":      true,
					"similarity": "cosine",
				},
				esTextField: map[string]any{"type": "text"},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to encode index mapping: %w", err)
	}

	res, err := s.client.Indices.Create(s.index,
		s.client.Indices.Create.WithBody(bytes.NewReader(body)),
		s.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", s.index, err)
	}
	defer res.Body.Close()
	if err := checkResponse(res, "create index"); err != nil {
		return err
	}
	log.Printf("VECTORSTORE: Created index '%s' with %d dimensions", s.index, dims)
	return nil
}

func (s *Elasticsearch) embedderFor(opts vectorstores.Options) embeddings.Embedder {
	if opts.Embedder != nil {
		return opts.Embedder
	}
	return s.embedder
}

func checkResponse(res *esapi.Response, action string) error {
	if !res.IsError() {
		return nil
	}
	body, _ := io.ReadAll(res.Body)
	return fmt.Errorf("elasticsearch %s returned status %d: %s", action, res.StatusCode, string(body))
}
