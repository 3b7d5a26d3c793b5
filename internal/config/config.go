package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
}

type Neo4jConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

type PipelineConfig struct {
	ChunkTokens          int     `toml:"chunk_tokens"`
	ChunkOverlapTokens   int     `toml:"chunk_overlap_tokens"`
	ParentChunkTokens    int     `toml:"parent_chunk_tokens"`
	EmbedBatchSize       int     `toml:"embed_batch_size"`
	EmbeddingDimensions  int     `toml:"embedding_dimensions"`
	MinEntityConfidence  float64 `toml:"min_entity_confidence"`
	MaxEntitiesPerParent int     `toml:"max_entities_per_parent"`
}

type OrchestratorConfig struct {
	Workers             int           `toml:"workers"`
	QueueSize           int           `toml:"queue_size"`
	DocumentMaxAttempts int           `toml:"document_max_attempts"`
	BatchMaxAttempts    int           `toml:"batch_max_attempts"`
	RetryBaseDelay      time.Duration `toml:"retry_base_delay"`
	SoftTimeLimit       time.Duration `toml:"soft_time_limit"`
	HardTimeLimit       time.Duration `toml:"hard_time_limit"`
	TaskRetention       time.Duration `toml:"task_retention"`
}

type SearchConfig struct {
	DefaultTopK         int     `toml:"default_top_k"`
	VectorWeight        float64 `toml:"vector_weight"`
	FulltextWeight      float64 `toml:"fulltext_weight"`
	MaxExpansionTerms   int     `toml:"max_expansion_terms"`
	MinTermWeight       float64 `toml:"min_term_weight"`
	MaxHops             int     `toml:"max_hops"`
	MaxExpandedEntities int     `toml:"max_expanded_entities"`
	CandidateMultiplier int     `toml:"candidate_multiplier"`

	// Multi-document synthesis bounds.
	MaxDocuments         int `toml:"max_documents"`
	MaxChunksPerDocument int `toml:"max_chunks_per_document"`
}

type FeedbackConfig struct {
	StatsCacheTTL time.Duration `toml:"stats_cache_ttl"`
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type ServerConfig struct {
	Port string `toml:"port"`
}

type Config struct {
	Server       ServerConfig       `toml:"server"`
	Neo4j        Neo4jConfig        `toml:"neo4j"`
	LLM          LLMConfig          `toml:"llm"`
	Pipeline     PipelineConfig     `toml:"pipeline"`
	Orchestrator OrchestratorConfig `toml:"orchestrator"`
	Search       SearchConfig       `toml:"search"`
	Feedback     FeedbackConfig     `toml:"feedback"`
	Store        StoreConfig        `toml:"store"`
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			Database: "neo4j",
		},
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
		},
		Pipeline: PipelineConfig{
			ChunkTokens:          400,
			ChunkOverlapTokens:   50,
			ParentChunkTokens:    1600,
			EmbedBatchSize:       32,
			EmbeddingDimensions:  1536,
			MinEntityConfidence:  0.5,
			MaxEntitiesPerParent: 15,
		},
		Orchestrator: OrchestratorConfig{
			Workers:             4,
			QueueSize:           64,
			DocumentMaxAttempts: 5,
			BatchMaxAttempts:    3,
			RetryBaseDelay:      500 * time.Millisecond,
			SoftTimeLimit:       4 * time.Minute,
			HardTimeLimit:       5 * time.Minute,
			TaskRetention:       24 * time.Hour,
		},
		Search: SearchConfig{
			DefaultTopK:         10,
			VectorWeight:        0.7,
			FulltextWeight:      0.3,
			MaxExpansionTerms:   3,
			MinTermWeight:       0.5,
			MaxHops:             2,
			MaxExpandedEntities: 10,
			CandidateMultiplier: 3,

			MaxDocuments:         5,
			MaxChunksPerDocument: 3,
		},
		Feedback: FeedbackConfig{StatsCacheTTL: 30 * time.Second},
		Store:    StoreConfig{Path: "data/notegraph"},
	}
}

// Load reads a TOML config file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides secrets and connection settings from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("NEO4J_URI"); v != "" {
		c.Neo4j.URI = v
	}
	if v := os.Getenv("NEO4J_USER"); v != "" {
		c.Neo4j.User = v
	}
	if v := os.Getenv("NEO4J_PASSWORD"); v != "" {
		c.Neo4j.Password = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LLM_EMBEDDING_MODEL"); v != "" {
		c.LLM.EmbeddingModel = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("STORE_PATH"); v != "" {
		c.Store.Path = v
	}
}

func (c *Config) Validate() error {
	if c.Pipeline.ChunkTokens <= 0 {
		return fmt.Errorf("pipeline.chunk_tokens must be positive, got %d", c.Pipeline.ChunkTokens)
	}
	if c.Pipeline.ChunkOverlapTokens < 0 || c.Pipeline.ChunkOverlapTokens >= c.Pipeline.ChunkTokens {
		return fmt.Errorf("pipeline.chunk_overlap_tokens must be in [0, chunk_tokens), got %d", c.Pipeline.ChunkOverlapTokens)
	}
	if c.Pipeline.MinEntityConfidence < 0 || c.Pipeline.MinEntityConfidence > 1 {
		return fmt.Errorf("pipeline.min_entity_confidence must be in [0,1], got %f", c.Pipeline.MinEntityConfidence)
	}
	if c.Orchestrator.Workers < 1 {
		return fmt.Errorf("orchestrator.workers must be at least 1, got %d", c.Orchestrator.Workers)
	}
	if c.Orchestrator.SoftTimeLimit > c.Orchestrator.HardTimeLimit {
		return fmt.Errorf("orchestrator.soft_time_limit must not exceed hard_time_limit")
	}
	if c.Search.MaxHops < 0 {
		return fmt.Errorf("search.max_hops must be non-negative, got %d", c.Search.MaxHops)
	}
	return nil
}
