package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/notegraph/notegraph/internal/llm"
	"github.com/notegraph/notegraph/internal/model"
	"github.com/notegraph/notegraph/internal/taskerr"
)

// extractedEntity mirrors the JSON shape the extraction prompt asks for.
type extractedEntity struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Definition string  `json:"definition,omitempty"`
}

type extractedRelationship struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Fact       string  `json:"fact,omitempty"`
}

type extractionResponse struct {
	Entities      []extractedEntity       `json:"entities"`
	Relationships []extractedRelationship `json:"relationships"`
}

const extractionPromptTemplate = `You are extracting a knowledge graph from study material.

Entity types (use exactly these): %s
Relationship types (use exactly these): relates-to, supports, contradicts

<TEXT>
%s
</TEXT>

Extract up to %d entities and the relationships between them.
Return ONLY a JSON object:
{
  "entities": [
    {"name": "...", "type": "Concept", "confidence": 0.9, "definition": "..."}
  ],
  "relationships": [
    {"source": "entity name", "target": "entity name", "type": "relates-to", "confidence": 0.8, "fact": "..."}
  ]
}
Confidence must be in [0,1]. Omit entities you are not confident about.`

// Extractor runs the Extract stage: one LLM call per parent chunk, filtered
// by the confidence threshold, deduplicated by normalized name + type.
type Extractor struct {
	Client        llm.LLMClient
	MinConfidence float64
	MaxEntities   int
	Logger        *slog.Logger
}

func NewExtractor(client llm.LLMClient, minConfidence float64, maxEntities int, logger *slog.Logger) *Extractor {
	if maxEntities <= 0 {
		maxEntities = 15
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		Client:        client,
		MinConfidence: minConfidence,
		MaxEntities:   maxEntities,
		Logger:        logger,
	}
}

var relationTypes = map[string]string{
	"relates-to":  model.RelRelatesTo,
	"supports":    model.RelSupports,
	"contradicts": model.RelContradicts,
}

func (e *Extractor) Run(ctx context.Context, set model.EmbeddedChunkSet) (model.ExtractedGraph, error) {
	out := model.ExtractedGraph{EmbeddedChunkSet: set}

	typeNames := make([]string, len(model.EntityTypes))
	for i, t := range model.EntityTypes {
		typeNames[i] = string(t)
	}

	byKey := make(map[string]*model.Entity)
	relSeen := make(map[string]bool)

	for _, parent := range set.Parents {
		prompt := fmt.Sprintf(extractionPromptTemplate,
			strings.Join(typeNames, ", "), parent.Text, e.MaxEntities)

		response, err := e.Client.Generate(ctx, prompt)
		if err != nil {
			return out, taskerr.Transient(fmt.Errorf("extract from parent chunk %s: %w", parent.ID, err))
		}

		parsed, err := llm.ParseJSON[extractionResponse](response)
		if err != nil {
			e.Logger.Warn("failed to parse extraction response, skipping parent chunk",
				"parent", parent.ID, "err", err)
			continue
		}

		for _, ee := range parsed.Entities {
			entityType := model.EntityType(ee.Type)
			if !entityType.Valid() || strings.TrimSpace(ee.Name) == "" {
				continue
			}
			if ee.Confidence < e.MinConfidence {
				continue // below threshold: discarded, never persisted
			}
			key := model.NormalizeEntityName(ee.Name) + "|" + ee.Type
			if existing, ok := byKey[key]; ok {
				if ee.Confidence > existing.Confidence {
					existing.Confidence = ee.Confidence
				}
				if existing.Definition == "" {
					existing.Definition = ee.Definition
				}
				continue
			}
			entity := &model.Entity{
				ID:         uuid.New().String(),
				Name:       strings.TrimSpace(ee.Name),
				Type:       entityType,
				Confidence: ee.Confidence,
				Definition: ee.Definition,
			}
			byKey[key] = entity
		}

		for _, er := range parsed.Relationships {
			relType, ok := relationTypes[strings.ToLower(er.Type)]
			if !ok || er.Confidence < e.MinConfidence {
				continue
			}
			source := e.lookup(byKey, er.Source)
			target := e.lookup(byKey, er.Target)
			if source == nil || target == nil || source.ID == target.ID {
				continue
			}
			relKey := source.DedupKey() + "|" + relType + "|" + target.DedupKey()
			if relSeen[relKey] {
				continue
			}
			relSeen[relKey] = true
			out.Relationships = append(out.Relationships, model.Relationship{
				ID:         uuid.NewSHA1(uuid.NameSpaceOID, []byte(relKey)).String(),
				SourceID:   source.ID,
				TargetID:   target.ID,
				Type:       relType,
				Confidence: er.Confidence,
				Fact:       er.Fact,
			})
		}
	}

	for _, entity := range byKey {
		out.Entities = append(out.Entities, *entity)
	}
	out.Mentions = buildMentions(set.Chunks, out.Entities)
	return out, nil
}

// lookup matches an extracted relationship endpoint to an accepted entity
// by normalized name, regardless of the type the LLM assigned it.
func (e *Extractor) lookup(byKey map[string]*model.Entity, name string) *model.Entity {
	norm := model.NormalizeEntityName(name)
	for _, entity := range byKey {
		if model.NormalizeEntityName(entity.Name) == norm {
			return entity
		}
	}
	return nil
}

// buildMentions links each entity to the chunks whose text contains its
// name. An entity mentioned nowhere verbatim still gets one mention on the
// first chunk so it remains reachable from its document.
func buildMentions(chunks []model.Chunk, entities []model.Entity) []model.Mention {
	var mentions []model.Mention
	for _, entity := range entities {
		name := strings.ToLower(entity.Name)
		found := false
		for _, chunk := range chunks {
			if strings.Contains(strings.ToLower(chunk.Text), name) {
				mentions = append(mentions, model.Mention{ChunkID: chunk.ID, EntityID: entity.ID})
				found = true
			}
		}
		if !found && len(chunks) > 0 {
			mentions = append(mentions, model.Mention{ChunkID: chunks[0].ID, EntityID: entity.ID})
		}
	}
	return mentions
}
