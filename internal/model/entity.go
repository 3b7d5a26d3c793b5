package model

import (
	"strings"
	"time"
)

// EntityType is the closed set of concept kinds the extractor may emit.
type EntityType string

const (
	EntityTopic       EntityType = "Topic"
	EntityConcept     EntityType = "Concept"
	EntityMethodology EntityType = "Methodology"
	EntityFinding     EntityType = "Finding"
	EntityDefinition  EntityType = "Definition"
	EntityCitation    EntityType = "Citation"
)

// EntityTypes lists every valid entity type, used for schema reporting and
// extractor prompt construction.
var EntityTypes = []EntityType{
	EntityTopic, EntityConcept, EntityMethodology,
	EntityFinding, EntityDefinition, EntityCitation,
}

func (t EntityType) Valid() bool {
	switch t {
	case EntityTopic, EntityConcept, EntityMethodology,
		EntityFinding, EntityDefinition, EntityCitation:
		return true
	}
	return false
}

// Entity is an extracted concept node. Entities are shared across documents
// and deduplicated by normalized name + type.
type Entity struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Type       EntityType `json:"type"`
	Confidence float64    `json:"confidence"`
	Definition string     `json:"definition,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// DedupKey returns the content-derived identity used for idempotent upserts.
func (e Entity) DedupKey() string {
	return NormalizeEntityName(e.Name) + "|" + string(e.Type)
}

// NormalizeEntityName lowercases and collapses whitespace so that "Neural
// Networks" and "neural  networks" dedupe to the same node.
func NormalizeEntityName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// RelationType names for entity-to-entity edges.
const (
	RelRelatesTo   = "RELATES_TO"
	RelSupports    = "SUPPORTS"
	RelContradicts = "CONTRADICTS"
	RelContains    = "CONTAINS" // chunk -> entity
)

// Relationship is a typed directed edge between two entities, or between a
// chunk and an entity (CONTAINS). Endpoints must exist before the edge.
type Relationship struct {
	ID         string    `json:"id"`
	SourceID   string    `json:"source_id"`
	TargetID   string    `json:"target_id"`
	Type       string    `json:"type"`
	Confidence float64   `json:"confidence"`
	Fact       string    `json:"fact,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
