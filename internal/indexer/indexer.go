package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/arborsearch/arbor/config"
	"github.com/arborsearch/arbor/internal/analyzer"
	"github.com/arborsearch/arbor/internal/arborerr"
	"github.com/arborsearch/arbor/internal/storage"
)

// Indexer applies analysis and optional chunking to ingest documents and
// buffers the derived storage rows for batched transactional writes.
type Indexer struct {
	store    *storage.Store
	analyzer *analyzer.Analyzer
	cfg      config.IndexerConfig
	language string // default language tag applied when a document omits one
	log      *slog.Logger

	mu          sync.Mutex
	buffer      []storage.Document
	bufferTerms map[string]int
}

// New creates an Indexer writing through store, analyzing with an, and
// chunking/batching per cfg.
func New(store *storage.Store, an *analyzer.Analyzer, cfg config.IndexerConfig, log *slog.Logger) *Indexer {
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{
		store:       store,
		analyzer:    an,
		cfg:         cfg,
		language:    "en",
		log:         log,
		bufferTerms: map[string]int{},
	}
}

// Insert buffers a single document, auto-flushing per cfg.AutoFlush/BatchSize.
func (ix *Indexer) Insert(ctx context.Context, doc Document) error {
	return ix.InsertBatch(ctx, []Document{doc})
}

// Update has identical semantics to Insert: replacing a document with the
// same id atomically deletes and re-inserts all of its derived rows
//, which storage.UpsertBatch already implements as an
// upsert.
func (ix *Indexer) Update(ctx context.Context, doc Document) error {
	return ix.Insert(ctx, doc)
}

// InsertBatch buffers multiple documents, auto-flushing whenever the
// buffer reaches cfg.BatchSize.
func (ix *Indexer) InsertBatch(ctx context.Context, docs []Document) error {
	// Build every document first so a failure leaves nothing of the batch
	// in the buffer.
	var batchRows []storage.Document
	batchTerms := map[string]int{}
	for _, doc := range docs {
		rows, terms, err := ix.buildRows(doc)
		if err != nil {
			return arborerr.InvalidArgumentf("indexer: building document %s: %v", doc.ID, err)
		}
		batchRows = append(batchRows, rows...)
		for term, n := range terms {
			batchTerms[term] += n
		}
	}

	ix.mu.Lock()
	ix.buffer = append(ix.buffer, batchRows...)
	for term, n := range batchTerms {
		ix.bufferTerms[term] += n
	}
	shouldFlush := ix.cfg.AutoFlush && len(ix.buffer) >= ix.cfg.BatchSize
	ix.mu.Unlock()

	if shouldFlush {
		return ix.Flush(ctx)
	}
	return nil
}

// Flush persists every buffered row in one transaction.
func (ix *Indexer) Flush(ctx context.Context) error {
	ix.mu.Lock()
	rows := ix.buffer
	terms := ix.bufferTerms
	ix.buffer = nil
	ix.bufferTerms = map[string]int{}
	ix.mu.Unlock()

	if len(rows) == 0 {
		return nil
	}
	return ix.store.UpsertBatch(ctx, rows, terms)
}

// Delete removes a document and every chunk owned by it, decrementing the
// term vocabulary by the terms Insert added for the rows being removed:
// each chunk's text, or for an unchunked document its stored fields that
// are configured as indexed. Fields that are indexed but not stored cannot
// be re-read, so their terms are not decremented.
func (ix *Indexer) Delete(ctx context.Context, id string) error {
	ids, err := ix.store.IDsByRoute(ctx, id)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		ids = []string{id}
	}

	chunked := len(ids) > 1
	terms := map[string]int{}
	for _, rowID := range ids {
		doc, ok, err := ix.store.GetDocument(ctx, rowID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		fields := doc.Fields
		if doc.ID == doc.RouteID {
			if chunked {
				continue // a chunked parent added no terms of its own
			}
			fields = map[string]string{}
			for field, text := range doc.Fields {
				if ix.fieldConfig(field).Index {
					fields[field] = text
				}
			}
		}
		ix.accumulateTerms(terms, fields, doc.Language)
	}

	return ix.store.DeleteBatch(ctx, ids, terms)
}

// Rebuild atomically clears the index and re-indexes docs, preserving the
// schema.
func (ix *Indexer) Rebuild(ctx context.Context, docs []Document) error {
	ix.mu.Lock()
	ix.buffer = nil
	ix.bufferTerms = map[string]int{}
	ix.mu.Unlock()

	if err := ix.store.Clear(ctx); err != nil {
		return err
	}
	if err := ix.InsertBatch(ctx, docs); err != nil {
		return err
	}
	return ix.Flush(ctx)
}

// Stats reports document count and language/type histograms of the
// durable, flushed state; buffered-but-unflushed documents are not
// included.
func (ix *Indexer) Stats(ctx context.Context) (Stats, error) {
	st, err := ix.store.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{DocumentCount: st.DocumentCount, Languages: st.Languages, Types: st.Types}, nil
}

// fieldConfig resolves the effective FieldConfig for field, defaulting to
// store=true, index=true, boost=1 when unconfigured.
func (ix *Indexer) fieldConfig(field string) config.FieldConfig {
	if fc, ok := ix.cfg.Fields[field]; ok {
		return fc
	}
	return config.FieldConfig{Store: true, Index: true, Boost: 1.0}
}

// buildRows turns one ingest document into its storage rows: the parent
// row (always, carrying every store=true field for round-trip retrieval)
// plus, when chunking applies, one row per chunk carrying only that
// chunk's text. It also returns the term-frequency deltas
// contributed by the indexable text, for the fuzzy vocabulary.
func (ix *Indexer) buildRows(doc Document) ([]storage.Document, map[string]int, error) {
	if doc.ID == "" {
		return nil, nil, fmt.Errorf("document id must not be empty")
	}

	flat := flatten(doc.Content)
	stored := map[string]string{}
	indexed := map[string]string{}
	for field, text := range flat {
		fc := ix.fieldConfig(field)
		if fc.Store {
			stored[field] = text
		}
		if fc.Index {
			indexed[field] = text
		}
	}

	language := doc.Language
	if language == "" {
		language = ix.language
	}
	docType := doc.Type
	if docType == "" {
		docType = "default"
	}
	timestamp := doc.Timestamp
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}

	now := time.Now()
	parent := storage.Document{
		ID:        doc.ID,
		RouteID:   doc.ID,
		Fields:    stored,
		Metadata:  doc.Metadata,
		Language:  language,
		Type:      docType,
		Timestamp: timestamp,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if doc.Geo != nil {
		parent.HasGeo = true
		parent.Lat, parent.Lng = doc.Geo.Lat, doc.Geo.Lng
	}

	chunkInputs := doc.Chunks
	if len(chunkInputs) == 0 && ix.cfg.ChunkSize > 0 {
		combined := combinedText(indexed)
		if len([]rune(combined)) > ix.cfg.ChunkSize {
			for _, text := range splitText(combined, ix.cfg.ChunkSize, ix.cfg.ChunkOverlap) {
				chunkInputs = append(chunkInputs, ChunkInput{Content: text})
			}
		}
	}

	rows := []storage.Document{}
	terms := map[string]int{}

	if len(chunkInputs) == 0 {
		parent.IndexText = indexed
		rows = append(rows, parent)
		ix.accumulateTerms(terms, indexed, language)
		return rows, terms, nil
	}

	// Chunked: the parent row carries no FTS text of its own (its chunks
	// are what's searchable) but is still written for GetDocument/stats
	// round-trip and metadata.
	parent.IndexText = map[string]string{}
	rows = append(rows, parent)

	for i, ch := range chunkInputs {
		meta := mergeMetadata(doc.Metadata, ch.Metadata)
		chunkFields := map[string]string{"content": ch.Content}
		chunk := storage.Document{
			ID:        fmt.Sprintf("%s#chunk%d", doc.ID, i),
			RouteID:   doc.ID,
			Fields:    chunkFields,
			IndexText: chunkFields,
			Metadata:  meta,
			Language:  language,
			Type:      docType,
			Timestamp: timestamp,
			HasGeo:    parent.HasGeo,
			Lat:       parent.Lat,
			Lng:       parent.Lng,
			CreatedAt: now,
			UpdatedAt: now,
		}
		rows = append(rows, chunk)
		ix.accumulateTerms(terms, chunkFields, language)
	}

	return rows, terms, nil
}

func (ix *Indexer) accumulateTerms(into map[string]int, fields map[string]string, language string) {
	if ix.analyzer == nil {
		return
	}
	for _, text := range fields {
		result := ix.analyzer.Analyze(text, language)
		for _, tok := range result.Tokens {
			into[tok]++
		}
	}
}

func combinedText(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += "\n\n"
		}
		out += fields[k]
	}
	return out
}

func mergeMetadata(parent, child map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range parent {
		out[k] = v
	}
	for k, v := range child {
		out[k] = v
	}
	return out
}

// flatten turns a (possibly nested) content map of scalars, lists, and
// nested maps into dot-path string leaves, JSON-decoded at the storage
// boundary and flattened here for field-level store/index projection.
func flatten(content map[string]any) map[string]string {
	out := map[string]string{}
	flattenInto(content, "", out)
	return out
}

func flattenInto(v any, prefix string, out map[string]string) {
	switch val := v.(type) {
	case map[string]any:
		for k, sub := range val {
			path := k
			if prefix != "" {
				path = prefix + "." + k
			}
			flattenInto(sub, path, out)
		}
	case string:
		if prefix != "" {
			out[prefix] = appendText(out[prefix], val)
		}
	case []any:
		for _, item := range val {
			flattenInto(item, prefix, out)
		}
	default:
		if prefix != "" && val != nil {
			out[prefix] = appendText(out[prefix], fmt.Sprintf("%v", val))
		}
	}
}

func appendText(existing, add string) string {
	if existing == "" {
		return add
	}
	return existing + " " + add
}
