package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"
)

// Result is one retrieval hit with its provenance and scores. Similarity is
// the raw store score; Score is the composite ranking score (similarity plus
// the optional recency boost).
type Result struct {
	Entry      IndexEntry
	Similarity float32
	Score      float32
}

// RetrieverConfig tunes the retrieval pipeline.
type RetrieverConfig struct {
	// TopK is the result count used when the caller passes 0 (default 5).
	TopK int

	// Overfetch multiplies TopK when querying the store, leaving headroom
	// for threshold filtering and overlap deduplication (default 4).
	Overfetch int

	// MinScore drops candidates below this similarity. Zero keeps all.
	MinScore float32

	// RecencyWeight scales an exponential-decay boost on document age.
	// Zero (the default) disables recency ranking.
	RecencyWeight float64

	// KeywordWeight scales a lexical boost by the fraction of query terms
	// present in the chunk text. Zero (the default) keeps ranking purely
	// vector-based.
	KeywordWeight float64

	// RecencyHalfLife is the document age at which the boost halves
	// (default 90 days).
	RecencyHalfLife time.Duration

	// Now overrides the clock for recency computation. Tests use this.
	Now func() time.Time
}

// Retriever embeds queries and ranks filtered vector-store candidates.
// Safe for concurrent use.
type Retriever struct {
	embedder Embedder
	store    VectorStore
	cfg      RetrieverConfig
}

// NewRetriever constructs a Retriever from an Embedder and a VectorStore.
func NewRetriever(embedder Embedder, store VectorStore, cfg RetrieverConfig) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.Overfetch <= 0 {
		cfg.Overfetch = 4
	}
	if cfg.RecencyHalfLife <= 0 {
		cfg.RecencyHalfLife = 90 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Retriever{embedder: embedder, store: store, cfg: cfg}, nil
}

// Retrieve embeds the query, over-fetches filtered candidates from the
// store, deduplicates overlapping chunks of the same document region, and
// returns the topK results by composite score. An empty result is valid:
// no candidate clearing the threshold is not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, f Filter, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = r.cfg.TopK
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	hits, err := r.store.Query(ctx, embeddings[0], topK*r.cfg.Overfetch, f)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}

	results := r.rank(hits, queryTerms(query))
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// rank applies the threshold, deduplicates overlapping chunks, scores, and
// orders candidates deterministically.
func (r *Retriever) rank(hits []Scored, terms []string) []Result {
	candidates := make([]Result, 0, len(hits))
	for _, h := range hits {
		if r.cfg.MinScore > 0 && h.Score < r.cfg.MinScore {
			continue
		}
		candidates = append(candidates, Result{
			Entry:      h.Entry,
			Similarity: h.Score,
			Score:      h.Score + r.recencyBoost(h.Entry.DocDate) + r.keywordBoost(h.Entry.Text, terms),
		})
	}

	// Dedupe before final ordering: iterate by descending similarity so the
	// best chunk of each overlapping region survives.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].Entry.ChunkID < candidates[j].Entry.ChunkID
	})

	var results []Result
	for _, c := range candidates {
		if overlapsAccepted(results, c) {
			continue
		}
		results = append(results, c)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		di, dj := results[i].Entry.DocDate, results[j].Entry.DocDate
		if !di.Equal(dj) {
			return di.After(dj)
		}
		if results[i].Entry.Ordinal != results[j].Entry.Ordinal {
			return results[i].Entry.Ordinal < results[j].Entry.Ordinal
		}
		return results[i].Entry.ChunkID < results[j].Entry.ChunkID
	})
	return results
}

// overlapsAccepted reports whether c covers the same document region as an
// already-accepted result. Adjacent ordinals of the same document count as
// the same region only when the later chunk actually repeats text from the
// earlier one; chunks produced without overlap are disjoint and both may
// rank.
func overlapsAccepted(accepted []Result, c Result) bool {
	for _, a := range accepted {
		if a.Entry.DocumentID != c.Entry.DocumentID {
			continue
		}
		switch a.Entry.Ordinal - c.Entry.Ordinal {
		case 0:
			return true
		case 1:
			if a.Entry.OverlapLen > 0 {
				return true
			}
		case -1:
			if c.Entry.OverlapLen > 0 {
				return true
			}
		}
	}
	return false
}

// recencyBoost returns RecencyWeight · 2^(-age/halfLife) for dated
// documents, zero when recency ranking is disabled or the date is unknown.
func (r *Retriever) recencyBoost(docDate time.Time) float32 {
	if r.cfg.RecencyWeight == 0 || docDate.IsZero() {
		return 0
	}
	age := r.cfg.Now().Sub(docDate)
	if age < 0 {
		age = 0
	}
	halves := float64(age) / float64(r.cfg.RecencyHalfLife)
	return float32(r.cfg.RecencyWeight * math.Exp2(-halves))
}

// keywordBoost returns KeywordWeight scaled by the fraction of query terms
// appearing in text, zero when lexical ranking is disabled.
func (r *Retriever) keywordBoost(text string, terms []string) float32 {
	if r.cfg.KeywordWeight == 0 || len(terms) == 0 {
		return 0
	}
	lowered := strings.ToLower(text)
	matched := 0
	for _, t := range terms {
		if strings.Contains(lowered, t) {
			matched++
		}
	}
	return float32(r.cfg.KeywordWeight * float64(matched) / float64(len(terms)))
}

// queryTerms lowercases the query and splits it into distinct word tokens.
func queryTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	seen := make(map[string]struct{}, len(fields))
	terms := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}
