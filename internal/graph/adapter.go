// Package graph translates ingestion output into graph nodes and edges and
// exposes the read queries the query engine is built on. Writes follow
// strict node-before-edge ordering so a crash mid-write never leaves a
// dangling edge, and every statement is an idempotent upsert.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/notegraph/notegraph/internal/driver"
	"github.com/notegraph/notegraph/internal/model"
	"github.com/notegraph/notegraph/internal/taskerr"
)

type Adapter struct {
	Driver driver.GraphDriver
	logger *slog.Logger
}

func NewAdapter(d driver.GraphDriver, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{Driver: d, logger: logger}
}

// UpsertDocument creates or refreshes the document node.
func (a *Adapter) UpsertDocument(ctx context.Context, doc model.Document) error {
	_, err := a.Driver.ExecuteQuery(ctx, driver.UpsertDocumentQuery, map[string]interface{}{
		"id":        doc.ID,
		"module_id": doc.ModuleID,
		"title":     doc.Title,
		"status":    string(doc.Status),
		"error":     doc.Error,
		"now":       time.Now().UTC(),
	})
	if err != nil {
		return taskerr.Transient(fmt.Errorf("upsert document %s: %w", doc.ID, err))
	}
	return nil
}

// SetDocumentStatus updates the document's ingestion status and error reason.
func (a *Adapter) SetDocumentStatus(ctx context.Context, id string, status model.DocumentStatus, errMsg string) error {
	_, err := a.Driver.ExecuteQuery(ctx, driver.SetDocumentStatusQuery, map[string]interface{}{
		"id":     id,
		"status": string(status),
		"error":  errMsg,
		"now":    time.Now().UTC(),
	})
	if err != nil {
		return taskerr.Transient(fmt.Errorf("set document status %s: %w", id, err))
	}
	return nil
}

// PersistGraph writes one document's extracted content. Order is fixed:
// parent chunks, chunks, entities, then the edges referencing them. Chunk
// ids and entity dedup keys are content-derived, so re-running for the same
// document cannot create duplicates.
func (a *Adapter) PersistGraph(ctx context.Context, g model.ExtractedGraph) (model.StoreResult, error) {
	res := model.StoreResult{DocumentID: g.DocumentID}
	now := time.Now().UTC()

	for _, p := range g.Parents {
		_, err := a.Driver.ExecuteQuery(ctx, driver.UpsertParentChunkQuery, map[string]interface{}{
			"id":          p.ID,
			"document_id": p.DocumentID,
			"index":       p.Index,
			"text":        p.Text,
			"token_count": p.TokenCount,
		})
		if err != nil {
			return res, taskerr.Transient(fmt.Errorf("upsert parent chunk %s: %w", p.ID, err))
		}
		res.ParentChunks++
	}

	for _, c := range g.Chunks {
		embedding := make([]interface{}, len(c.Embedding))
		for i, v := range c.Embedding {
			embedding[i] = float64(v)
		}
		_, err := a.Driver.ExecuteQuery(ctx, driver.UpsertChunkQuery, map[string]interface{}{
			"id":             c.ID,
			"document_id":    c.DocumentID,
			"module_id":      g.ModuleID,
			"document_title": g.Title,
			"parent_id":      c.ParentID,
			"index":          c.Index,
			"text":           c.Text,
			"token_count":    c.TokenCount,
			"embedding":      embedding,
			"created_at":     now,
		})
		if err != nil {
			return res, taskerr.Transient(fmt.Errorf("upsert chunk %s: %w", c.ID, err))
		}
		res.Chunks++
	}

	// Entity nodes before any edge that references them.
	for _, e := range g.Entities {
		_, err := a.Driver.ExecuteQuery(ctx, driver.UpsertEntityQuery, map[string]interface{}{
			"dedup_key":  e.DedupKey(),
			"id":         e.ID,
			"name":       e.Name,
			"type":       string(e.Type),
			"confidence": e.Confidence,
			"definition": e.Definition,
			"created_at": now,
		})
		if err != nil {
			return res, taskerr.Transient(fmt.Errorf("upsert entity %q: %w", e.Name, err))
		}
		res.Entities++
	}

	entityKeys := make(map[string]string, len(g.Entities))
	for _, e := range g.Entities {
		entityKeys[e.ID] = e.DedupKey()
	}

	for _, r := range g.Relationships {
		sourceKey, ok := entityKeys[r.SourceID]
		if !ok {
			continue // extractor referenced an entity that was filtered out
		}
		targetKey, ok := entityKeys[r.TargetID]
		if !ok {
			continue
		}
		_, err := a.Driver.ExecuteQuery(ctx, driver.UpsertRelationshipQuery, map[string]interface{}{
			"source_key": sourceKey,
			"target_key": targetKey,
			"type":       r.Type,
			"id":         r.ID,
			"confidence": r.Confidence,
			"fact":       r.Fact,
			"created_at": now,
		})
		if err != nil {
			return res, taskerr.Transient(fmt.Errorf("upsert relationship %s: %w", r.ID, err))
		}
		res.Relationships++
	}

	for _, m := range g.Mentions {
		entityKey, ok := entityKeys[m.EntityID]
		if !ok {
			continue
		}
		_, err := a.Driver.ExecuteQuery(ctx, driver.UpsertMentionQuery, map[string]interface{}{
			"chunk_id":   m.ChunkID,
			"entity_key": entityKey,
			"id":         uuid.NewSHA1(uuid.NameSpaceOID, []byte(m.ChunkID+"|"+entityKey)).String(),
			"created_at": now,
		})
		if err != nil {
			return res, taskerr.Transient(fmt.Errorf("upsert mention %s->%s: %w", m.ChunkID, entityKey, err))
		}
	}

	a.logger.Info("persisted document graph",
		"document", g.DocumentID,
		"chunks", res.Chunks,
		"entities", res.Entities,
		"relationships", res.Relationships)
	return res, nil
}

// Schema returns the node/edge type inventory with counts.
func (a *Adapter) Schema(ctx context.Context) (model.SchemaInfo, error) {
	info := model.SchemaInfo{
		NodeTypes: map[string]int64{},
		EdgeTypes: map[string]int64{},
	}

	nodes, err := a.Driver.ExecuteQuery(ctx, driver.SchemaNodeCountsQuery, nil)
	if err != nil {
		return info, fmt.Errorf("schema node counts: %w", err)
	}
	for _, rec := range nodes.Records {
		info.NodeTypes[recString(rec, "label")] = recInt(rec, "count")
	}

	edges, err := a.Driver.ExecuteQuery(ctx, driver.SchemaEdgeCountsQuery, nil)
	if err != nil {
		return info, fmt.Errorf("schema edge counts: %w", err)
	}
	for _, rec := range edges.Records {
		info.EdgeTypes[recString(rec, "type")] = recInt(rec, "count")
	}
	return info, nil
}

// Subgraph fetches a bounded projection of entities (and the edges among
// them) filtered by module and entity type.
func (a *Adapter) Subgraph(ctx context.Context, moduleIDs []string, entityType string, limit int) (model.Subgraph, error) {
	var sg model.Subgraph
	if limit <= 0 {
		limit = 100
	}

	nodes, err := a.Driver.ExecuteQuery(ctx, driver.SubgraphNodesQuery, map[string]interface{}{
		"module_ids":  stringList(moduleIDs),
		"entity_type": entityType,
		"limit":       limit,
	})
	if err != nil {
		return sg, fmt.Errorf("subgraph nodes: %w", err)
	}

	nodeIDs := make([]interface{}, 0, len(nodes.Records))
	for _, rec := range nodes.Records {
		id := recString(rec, "id")
		nodeIDs = append(nodeIDs, id)
		sg.Nodes = append(sg.Nodes, model.Entity{
			ID:         id,
			Name:       recString(rec, "name"),
			Type:       model.EntityType(recString(rec, "type")),
			Confidence: recFloat(rec, "confidence"),
			Definition: recString(rec, "definition"),
		})
	}
	if len(nodeIDs) == 0 {
		return sg, nil
	}

	edges, err := a.Driver.ExecuteQuery(ctx, driver.SubgraphEdgesQuery, map[string]interface{}{
		"node_ids": nodeIDs,
	})
	if err != nil {
		return sg, fmt.Errorf("subgraph edges: %w", err)
	}
	for _, rec := range edges.Records {
		sg.Edges = append(sg.Edges, model.Relationship{
			ID:         recString(rec, "id"),
			SourceID:   recString(rec, "source_id"),
			TargetID:   recString(rec, "target_id"),
			Type:       recString(rec, "type"),
			Confidence: recFloat(rec, "confidence"),
			Fact:       recString(rec, "fact"),
		})
	}
	return sg, nil
}

// ExpandNeighbors walks up to maxHops from the seed entities, collecting at
// most maxEntities related entities. Each hop's query returns candidates in
// confidence order, so when the budget truncates a hop the lowest-confidence
// entities are the ones dropped. Traversal halts as soon as either bound is
// reached.
func (a *Adapter) ExpandNeighbors(ctx context.Context, seedIDs []string, maxHops, maxEntities int) ([]model.EntityRef, error) {
	if maxHops <= 0 || maxEntities <= 0 || len(seedIDs) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool, len(seedIDs))
	seenList := make([]interface{}, 0, len(seedIDs)+maxEntities)
	for _, id := range seedIDs {
		seen[id] = true
		seenList = append(seenList, id)
	}

	frontier := stringList(seedIDs)
	var collected []model.EntityRef

	for hop := 1; hop <= maxHops && len(collected) < maxEntities; hop++ {
		result, err := a.Driver.ExecuteQuery(ctx, driver.EntityNeighborsQuery, map[string]interface{}{
			"ids":   frontier,
			"seen":  seenList,
			"limit": maxEntities - len(collected),
		})
		if err != nil {
			return nil, fmt.Errorf("expand neighbors hop %d: %w", hop, err)
		}
		if len(result.Records) == 0 {
			break
		}

		next := make([]interface{}, 0, len(result.Records))
		for _, rec := range result.Records {
			id := recString(rec, "id")
			if seen[id] {
				continue
			}
			seen[id] = true
			seenList = append(seenList, id)
			next = append(next, id)
			collected = append(collected, model.EntityRef{
				ID:         id,
				Name:       recString(rec, "name"),
				Type:       model.EntityType(recString(rec, "type")),
				Confidence: recFloat(rec, "confidence"),
				Hops:       hop,
			})
			if len(collected) >= maxEntities {
				break
			}
		}
		frontier = next
	}
	return collected, nil
}

// EntitiesForChunks returns the entities each chunk CONTAINS.
func (a *Adapter) EntitiesForChunks(ctx context.Context, chunkIDs []string) (map[string][]model.EntityRef, error) {
	out := make(map[string][]model.EntityRef, len(chunkIDs))
	if len(chunkIDs) == 0 {
		return out, nil
	}
	result, err := a.Driver.ExecuteQuery(ctx, driver.ChunkEntitiesQuery, map[string]interface{}{
		"chunk_ids": stringList(chunkIDs),
	})
	if err != nil {
		return nil, fmt.Errorf("entities for chunks: %w", err)
	}
	for _, rec := range result.Records {
		chunkID := recString(rec, "chunk_id")
		out[chunkID] = append(out[chunkID], model.EntityRef{
			ID:         recString(rec, "id"),
			Name:       recString(rec, "name"),
			Type:       model.EntityType(recString(rec, "type")),
			Confidence: recFloat(rec, "confidence"),
		})
	}
	return out, nil
}

// VectorSearch retrieves the top-k chunks by cosine similarity.
func (a *Adapter) VectorSearch(ctx context.Context, embedding []float32, k int, moduleIDs []string) ([]model.SearchResult, error) {
	emb := make([]interface{}, len(embedding))
	for i, v := range embedding {
		emb[i] = float64(v)
	}
	result, err := a.Driver.ExecuteQuery(ctx, driver.VectorSearchQuery, map[string]interface{}{
		"embedding":  emb,
		"k":          k,
		"module_ids": stringList(moduleIDs),
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return a.collectResults(result.Records, true), nil
}

// FulltextSearch retrieves the top-k chunks by Lucene fulltext score.
func (a *Adapter) FulltextSearch(ctx context.Context, query string, k int, moduleIDs []string) ([]model.SearchResult, error) {
	result, err := a.Driver.ExecuteQuery(ctx, driver.FulltextSearchQuery, map[string]interface{}{
		"query":      query,
		"k":          k,
		"module_ids": stringList(moduleIDs),
	})
	if err != nil {
		return nil, fmt.Errorf("fulltext search: %w", err)
	}
	return a.collectResults(result.Records, false), nil
}

func (a *Adapter) collectResults(records []*neo4j.Record, vector bool) []model.SearchResult {
	results := make([]model.SearchResult, 0, len(records))
	for _, rec := range records {
		r := model.SearchResult{
			ID:            recString(rec, "id"),
			NodeType:      "Chunk",
			Text:          recString(rec, "text"),
			DocumentID:    recString(rec, "document_id"),
			DocumentTitle: recString(rec, "document_title"),
			ModuleID:      recString(rec, "module_id"),
			CreatedAt:     recTime(rec, "created_at"),
		}
		score := recFloat(rec, "score")
		if vector {
			r.VectorScore = score
		} else {
			r.FulltextScore = score
		}
		results = append(results, r)
	}
	return results
}

// GetDocument returns the document node, or taskerr.ErrDocumentNotFound.
func (a *Adapter) GetDocument(ctx context.Context, id string) (model.Document, error) {
	result, err := a.Driver.ExecuteQuery(ctx, driver.GetDocumentQuery, map[string]interface{}{
		"id": id,
	})
	if err != nil {
		return model.Document{}, fmt.Errorf("get document: %w", err)
	}
	if len(result.Records) == 0 {
		return model.Document{}, taskerr.ErrDocumentNotFound
	}
	rec := result.Records[0]
	return model.Document{
		ID:        recString(rec, "id"),
		ModuleID:  recString(rec, "module_id"),
		Title:     recString(rec, "title"),
		Status:    model.DocumentStatus(recString(rec, "status")),
		Error:     recString(rec, "error"),
		CreatedAt: recTime(rec, "created_at"),
		UpdatedAt: recTime(rec, "updated_at"),
	}, nil
}

// DocumentGraphCounts reports how many chunks and parent chunks the document
// currently owns in the graph.
func (a *Adapter) DocumentGraphCounts(ctx context.Context, id string) (chunks, parents int64, err error) {
	result, err := a.Driver.ExecuteQuery(ctx, driver.CountDocumentGraphQuery, map[string]interface{}{
		"id": id,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("document graph counts: %w", err)
	}
	if len(result.Records) == 0 {
		return 0, 0, nil
	}
	rec := result.Records[0]
	return recInt(rec, "chunks"), recInt(rec, "parents"), nil
}

// DocumentsByModules lists completed documents belonging to any of the
// modules, newest first.
func (a *Adapter) DocumentsByModules(ctx context.Context, moduleIDs []string, limit int) ([]model.Document, error) {
	if limit <= 0 {
		limit = 20
	}
	result, err := a.Driver.ExecuteQuery(ctx, driver.ListDocumentsByModulesQuery, map[string]interface{}{
		"module_ids": stringList(moduleIDs),
		"limit":      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("documents by modules: %w", err)
	}
	docs := make([]model.Document, 0, len(result.Records))
	for _, rec := range result.Records {
		docs = append(docs, model.Document{
			ID:        recString(rec, "id"),
			ModuleID:  recString(rec, "module_id"),
			Title:     recString(rec, "title"),
			CreatedAt: recTime(rec, "created_at"),
		})
	}
	return docs, nil
}

// DocumentChunks returns a document's chunks with embeddings, in order.
func (a *Adapter) DocumentChunks(ctx context.Context, documentID string) ([]model.Chunk, error) {
	result, err := a.Driver.ExecuteQuery(ctx, driver.DocumentChunksQuery, map[string]interface{}{
		"document_id": documentID,
	})
	if err != nil {
		return nil, fmt.Errorf("document chunks: %w", err)
	}
	chunks := make([]model.Chunk, 0, len(result.Records))
	for _, rec := range result.Records {
		chunks = append(chunks, model.Chunk{
			ID:         recString(rec, "id"),
			DocumentID: recString(rec, "document_id"),
			Index:      int(recInt(rec, "index")),
			Text:       recString(rec, "text"),
			Embedding:  recVector(rec, "embedding"),
		})
	}
	return chunks, nil
}

func stringList(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
