package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// Payload field names used in the Qdrant collection. The scalar fields get
// payload indexes so filtered searches avoid full scans.
const (
	fieldText       = "text"
	fieldDocumentID = "document_id"
	fieldOrdinal    = "ordinal"
	fieldTokens     = "tokens"
	fieldOverlapLen = "overlap_len"
	fieldHardSplit  = "hard_split"
	fieldLanguage   = "language"
	fieldTitle      = "title"
	fieldLocator    = "locator"
	fieldDocDate    = "doc_date" // unix seconds, float for range filters
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// Metric selects the similarity metric at collection-creation time:
	// "cosine" (default) or "dot". It must match the metric the embedding
	// model was trained for and cannot change after creation.
	Metric string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance. Filtered
// queries run server-side against payload indexes created at startup.
type QdrantStore struct {
	client *qdrant.Client
	cfg    *QdrantConfig
}

// Client exposes the underlying Qdrant client for health probes.
func (s *QdrantStore) Client() *qdrant.Client { return s.client }

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// and its payload indexes exist, and returns a ready-to-use VectorStore.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the Qdrant collection and its payload indexes if
// they do not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if !exists {
		distance := qdrant.Distance_Cosine
		if s.cfg.Metric == "dot" {
			distance = qdrant.Distance_Dot
		}
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.cfg.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.cfg.VectorSize,
				Distance: distance,
			}),
		})
		if err != nil {
			return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
		}
	}

	indexes := []struct {
		field string
		kind  qdrant.FieldType
	}{
		{fieldDocumentID, qdrant.FieldType_FieldTypeKeyword},
		{fieldLanguage, qdrant.FieldType_FieldTypeKeyword},
		{fieldDocDate, qdrant.FieldType_FieldTypeFloat},
	}
	for _, idx := range indexes {
		kind := idx.kind
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.cfg.Collection,
			FieldName:      idx.field,
			FieldType:      &kind,
		})
		if err != nil {
			return fmt.Errorf("qdrant: failed to index payload field %q: %w", idx.field, err)
		}
	}

	return nil
}

// Upsert stores or replaces index entries. Qdrant point upserts are atomic
// per point, so a concurrent query sees each chunk either complete (payload
// and vector) or not at all.
func (s *QdrantStore) Upsert(ctx context.Context, entries []IndexEntry) error {
	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, e := range entries {
		payload := map[string]interface{}{
			fieldText:       e.Text,
			fieldDocumentID: e.DocumentID,
			fieldOrdinal:    int64(e.Ordinal),
			fieldTokens:     int64(e.Tokens),
			fieldOverlapLen: int64(e.OverlapLen),
			fieldHardSplit:  e.HardSplit,
			fieldLanguage:   e.Language,
			fieldTitle:      e.Title,
			fieldLocator:    e.Locator,
		}
		if !e.DocDate.IsZero() {
			payload[fieldDocDate] = float64(e.DocDate.Unix())
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(e.ChunkID),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return &StoreError{Op: StoreOpWrite, Err: fmt.Errorf("qdrant: upsert failed: %w", err)}
	}

	return nil
}

// Query performs a filtered similarity search and returns the top-k results
// ordered by descending score.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, topK int, f Filter) ([]Scored, error) {
	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		Filter:         buildFilter(f),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, &StoreError{Op: StoreOpQuery, Err: fmt.Errorf("qdrant: search failed: %w", err)}
	}

	scored := make([]Scored, 0, len(results))
	for _, r := range results {
		scored = append(scored, Scored{Entry: entryFromPayload(r), Score: r.Score})
	}

	return scored, nil
}

// buildFilter translates a Filter into conjunctive Qdrant conditions.
// A zero filter returns nil (unfiltered search).
func buildFilter(f Filter) *qdrant.Filter {
	if f.IsZero() {
		return nil
	}

	var must []*qdrant.Condition
	if len(f.DocumentIDs) > 0 {
		must = append(must, qdrant.NewMatchKeywords(fieldDocumentID, f.DocumentIDs...))
	}
	if f.Language != "" {
		must = append(must, qdrant.NewMatchKeyword(fieldLanguage, f.Language))
	}
	if !f.DateFrom.IsZero() || !f.DateTo.IsZero() {
		r := &qdrant.Range{}
		if !f.DateFrom.IsZero() {
			gte := float64(f.DateFrom.Unix())
			r.Gte = &gte
		}
		if !f.DateTo.IsZero() {
			lte := float64(f.DateTo.Unix())
			r.Lte = &lte
		}
		must = append(must, qdrant.NewRange(fieldDocDate, r))
	}

	return &qdrant.Filter{Must: must}
}

func entryFromPayload(r *qdrant.ScoredPoint) IndexEntry {
	e := IndexEntry{ChunkID: r.Id.GetUuid()}
	p := r.Payload
	if p == nil {
		return e
	}
	if v, ok := p[fieldText]; ok {
		e.Text = v.GetStringValue()
	}
	if v, ok := p[fieldDocumentID]; ok {
		e.DocumentID = v.GetStringValue()
	}
	if v, ok := p[fieldOrdinal]; ok {
		e.Ordinal = int(v.GetIntegerValue())
	}
	if v, ok := p[fieldTokens]; ok {
		e.Tokens = int(v.GetIntegerValue())
	}
	if v, ok := p[fieldOverlapLen]; ok {
		e.OverlapLen = int(v.GetIntegerValue())
	}
	if v, ok := p[fieldHardSplit]; ok {
		e.HardSplit = v.GetBoolValue()
	}
	if v, ok := p[fieldLanguage]; ok {
		e.Language = v.GetStringValue()
	}
	if v, ok := p[fieldTitle]; ok {
		e.Title = v.GetStringValue()
	}
	if v, ok := p[fieldLocator]; ok {
		e.Locator = v.GetStringValue()
	}
	if v, ok := p[fieldDocDate]; ok {
		e.DocDate = time.Unix(int64(v.GetDoubleValue()), 0).UTC()
	}
	return e
}

// Delete removes entries from the collection by chunk ID.
func (s *QdrantStore) Delete(ctx context.Context, chunkIDs []string) error {
	pointIDs := make([]*qdrant.PointId, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(id))
	}

	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
		Wait:           &wait,
	})
	if err != nil {
		return &StoreError{Op: StoreOpWrite, Err: fmt.Errorf("qdrant: delete failed: %w", err)}
	}

	return nil
}

// DeleteByDocument removes every chunk of a document with a single filtered
// delete, so later queries see the document either fully present or fully
// gone.
func (s *QdrantStore) DeleteByDocument(ctx context.Context, documentID string) error {
	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatchKeyword(fieldDocumentID, documentID)},
		}),
		Wait: &wait,
	})
	if err != nil {
		return &StoreError{Op: StoreOpWrite, Err: fmt.Errorf("qdrant: delete by document failed: %w", err)}
	}

	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
