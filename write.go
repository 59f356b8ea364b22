package arbor

import "context"

// Index creates or replaces a document in the named index, invalidating the index's result cache so
// subsequent searches never see the pre-write state.
func (a *Arbor) Index(ctx context.Context, indexName string, doc Document) error {
	idx, err := a.lookup(indexName)
	if err != nil {
		return err
	}
	if err := idx.indexer.Insert(ctx, doc); err != nil {
		return err
	}
	if err := idx.indexer.Flush(ctx); err != nil {
		return err
	}
	idx.engine.InvalidateCache()
	idx.refreshVocabulary(ctx, a.log)
	return nil
}

// Update has identical semantics to Index: replacing a document with the
// same id.
func (a *Arbor) Update(ctx context.Context, indexName string, doc Document) error {
	return a.Index(ctx, indexName, doc)
}

// IndexBatch indexes many documents as one unit. A failure rolls back the
// whole batch.
func (a *Arbor) IndexBatch(ctx context.Context, indexName string, docs []Document) error {
	idx, err := a.lookup(indexName)
	if err != nil {
		return err
	}
	if err := idx.indexer.InsertBatch(ctx, docs); err != nil {
		return err
	}
	if err := idx.indexer.Flush(ctx); err != nil {
		return err
	}
	idx.engine.InvalidateCache()
	idx.refreshVocabulary(ctx, a.log)
	return nil
}

// Delete removes a document (and any chunks it owns) from the named index.
func (a *Arbor) Delete(ctx context.Context, indexName, id string) error {
	idx, err := a.lookup(indexName)
	if err != nil {
		return err
	}
	if err := idx.indexer.Delete(ctx, id); err != nil {
		return err
	}
	idx.engine.InvalidateCache()
	idx.refreshVocabulary(ctx, a.log)
	return nil
}
