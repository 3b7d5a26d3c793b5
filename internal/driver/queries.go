package driver

// Cypher statements used by the graph adapter and query engine. All write
// statements are MERGE-based so re-running a Store stage never duplicates
// nodes or edges, and every edge statement MATCHes both endpoints first so a
// dangling edge cannot be created.
const (
	UpsertDocumentQuery = `
		MERGE (d:Document {id: $id})
		ON CREATE SET d.created_at = $now
		SET d.module_id = $module_id,
			d.title = $title,
			d.status = $status,
			d.error = $error,
			d.updated_at = $now
		RETURN d.id AS id
	`

	SetDocumentStatusQuery = `
		MATCH (d:Document {id: $id})
		SET d.status = $status,
			d.error = $error,
			d.updated_at = $now
		RETURN d.id AS id
	`

	GetDocumentQuery = `
		MATCH (d:Document {id: $id})
		RETURN d.id AS id, d.module_id AS module_id, d.title AS title,
			d.status AS status, d.error AS error,
			d.created_at AS created_at, d.updated_at AS updated_at
	`

	ListDocumentsByModulesQuery = `
		MATCH (d:Document)
		WHERE d.module_id IN $module_ids AND d.status = 'completed'
		RETURN d.id AS id, d.module_id AS module_id, d.title AS title,
			d.created_at AS created_at
		ORDER BY d.updated_at DESC
		LIMIT $limit
	`

	UpsertParentChunkQuery = `
		MATCH (d:Document {id: $document_id})
		MERGE (p:ParentChunk {id: $id})
		SET p.document_id = $document_id,
			p.index = $index,
			p.text = $text,
			p.token_count = $token_count
		MERGE (d)-[:HAS_PARENT_CHUNK]->(p)
		RETURN p.id AS id
	`

	UpsertChunkQuery = `
		MATCH (d:Document {id: $document_id})
		MERGE (c:Chunk {id: $id})
		SET c.document_id = $document_id,
			c.module_id = $module_id,
			c.document_title = $document_title,
			c.parent_id = $parent_id,
			c.index = $index,
			c.text = $text,
			c.token_count = $token_count,
			c.embedding = $embedding,
			c.created_at = $created_at
		MERGE (d)-[:HAS_CHUNK]->(c)
		WITH c
		MATCH (p:ParentChunk {id: $parent_id})
		MERGE (p)-[:HAS_CHUNK]->(c)
		RETURN c.id AS id
	`

	// Confidence keeps the maximum observed value across extraction runs.
	UpsertEntityQuery = `
		MERGE (e:Entity {dedup_key: $dedup_key})
		ON CREATE SET e.id = $id,
			e.created_at = $created_at,
			e.confidence = $confidence
		SET e.name = $name,
			e.type = $type,
			e.confidence = CASE WHEN e.confidence < $confidence THEN $confidence ELSE e.confidence END,
			e.definition = CASE WHEN $definition <> '' THEN $definition ELSE coalesce(e.definition, '') END
		RETURN e.id AS id
	`

	UpsertRelationshipQuery = `
		MATCH (source:Entity {dedup_key: $source_key})
		MATCH (target:Entity {dedup_key: $target_key})
		MERGE (source)-[r:RELATED {type: $type}]->(target)
		ON CREATE SET r.id = $id, r.created_at = $created_at
		SET r.confidence = CASE WHEN r.confidence IS NULL OR r.confidence < $confidence THEN $confidence ELSE r.confidence END,
			r.fact = $fact
		RETURN r.id AS id
	`

	UpsertMentionQuery = `
		MATCH (c:Chunk {id: $chunk_id})
		MATCH (e:Entity {dedup_key: $entity_key})
		MERGE (c)-[r:CONTAINS]->(e)
		ON CREATE SET r.id = $id, r.created_at = $created_at
		RETURN r.id AS id
	`

	VectorSearchQuery = `
		CALL db.index.vector.queryNodes('chunk_embedding', $k, $embedding)
		YIELD node, score
		WHERE size($module_ids) = 0 OR node.module_id IN $module_ids
		RETURN node.id AS id, node.text AS text, node.document_id AS document_id,
			node.document_title AS document_title, node.module_id AS module_id,
			node.created_at AS created_at, score
	`

	FulltextSearchQuery = `
		CALL db.index.fulltext.queryNodes('chunk_fulltext', $query)
		YIELD node, score
		WHERE size($module_ids) = 0 OR node.module_id IN $module_ids
		RETURN node.id AS id, node.text AS text, node.document_id AS document_id,
			node.document_title AS document_title, node.module_id AS module_id,
			node.created_at AS created_at, score
		LIMIT $k
	`

	SchemaNodeCountsQuery = `
		MATCH (n)
		UNWIND labels(n) AS label
		RETURN label, count(*) AS count
	`

	SchemaEdgeCountsQuery = `
		MATCH ()-[r]->()
		RETURN type(r) AS type, count(*) AS count
	`

	SubgraphNodesQuery = `
		MATCH (e:Entity)
		WHERE ($entity_type = '' OR e.type = $entity_type)
			AND (size($module_ids) = 0 OR EXISTS {
				MATCH (c:Chunk)-[:CONTAINS]->(e) WHERE c.module_id IN $module_ids
			})
		RETURN e.id AS id, e.name AS name, e.type AS type,
			e.confidence AS confidence, e.definition AS definition
		ORDER BY e.confidence DESC
		LIMIT $limit
	`

	SubgraphEdgesQuery = `
		MATCH (source:Entity)-[r:RELATED]->(target:Entity)
		WHERE source.id IN $node_ids AND target.id IN $node_ids
		RETURN r.id AS id, source.id AS source_id, target.id AS target_id,
			r.type AS type, r.confidence AS confidence, r.fact AS fact
	`

	// One hop of neighbor expansion from a frontier of entity ids. The
	// adapter drives this repeatedly up to max_hops, truncating by
	// confidence when the entity budget runs out.
	EntityNeighborsQuery = `
		MATCH (e:Entity)-[r:RELATED]-(n:Entity)
		WHERE e.id IN $ids AND NOT n.id IN $seen
		RETURN DISTINCT n.id AS id, n.name AS name, n.type AS type,
			n.confidence AS confidence
		ORDER BY n.confidence DESC
		LIMIT $limit
	`

	ChunkEntitiesQuery = `
		MATCH (c:Chunk)-[:CONTAINS]->(e:Entity)
		WHERE c.id IN $chunk_ids
		RETURN c.id AS chunk_id, e.id AS id, e.name AS name, e.type AS type,
			e.confidence AS confidence
	`

	DocumentChunksQuery = `
		MATCH (c:Chunk {document_id: $document_id})
		RETURN c.id AS id, c.text AS text, c.index AS index,
			c.document_id AS document_id, c.document_title AS document_title,
			c.module_id AS module_id, c.embedding AS embedding
		ORDER BY c.index
	`

	CountDocumentGraphQuery = `
		MATCH (d:Document {id: $id})
		OPTIONAL MATCH (d)-[:HAS_CHUNK]->(c:Chunk)
		OPTIONAL MATCH (d)-[:HAS_PARENT_CHUNK]->(p:ParentChunk)
		RETURN count(DISTINCT c) AS chunks, count(DISTINCT p) AS parents
	`
)
