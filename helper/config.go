package helper

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ServiceConfiguration holds everything besides the database connection
// that the search service reads from its environment.
type ServiceConfiguration struct {
	// Sync
	SyncInterval     time.Duration
	SyncBatchSize    int
	SyncAdvisoryLock bool

	// Ranking
	RankLimit            int
	RankClipThreshold    float64
	RankClipPenalty      float64
	RankNoPersonDistance float64
	RankCombine          string

	// Embedding
	Embedder          string
	EmbeddingModel    string
	EmbeddingOnnxFile string
	EmbeddingHost     string
	EmbeddingDim      int

	// Server
	ServerAddress string
	ServerPort    string
}

// DefaultServiceConfiguration returns the reference values
func DefaultServiceConfiguration() *ServiceConfiguration {
	return &ServiceConfiguration{
		SyncInterval:         6 * time.Hour,
		SyncBatchSize:        32,
		SyncAdvisoryLock:     false,
		RankLimit:            200,
		RankClipThreshold:    0.8,
		RankClipPenalty:      0.9,
		RankNoPersonDistance: 0.9,
		RankCombine:          "sum",
		Embedder:             "hugot",
		EmbeddingModel:       "sentence-transformers/all-MiniLM-L12-v2",
		EmbeddingOnnxFile:    DefaultOnnxFilePath,
		EmbeddingHost:        "http://localhost:11434/v1",
		EmbeddingDim:         384,
		ServerAddress:        "0.0.0.0",
		ServerPort:           "4000",
	}
}

// NewServiceConfiguration reads the service configuration from the environment.
// Unset variables keep their default, malformed ones are an error.
func NewServiceConfiguration() (*ServiceConfiguration, error) {
	loadDotEnv()

	config := DefaultServiceConfiguration()
	var err error

	if config.SyncInterval, err = envDuration("SYNC_INTERVAL", config.SyncInterval); err != nil {
		return nil, err
	}
	if config.SyncBatchSize, err = envInt("SYNC_BATCH_SIZE", config.SyncBatchSize); err != nil {
		return nil, err
	}
	if config.SyncAdvisoryLock, err = envBool("SYNC_ADVISORY_LOCK", config.SyncAdvisoryLock); err != nil {
		return nil, err
	}
	if config.RankLimit, err = envInt("RANK_LIMIT", config.RankLimit); err != nil {
		return nil, err
	}
	if config.RankClipThreshold, err = envFloat("RANK_CLIP_THRESHOLD", config.RankClipThreshold); err != nil {
		return nil, err
	}
	if config.RankClipPenalty, err = envFloat("RANK_CLIP_PENALTY", config.RankClipPenalty); err != nil {
		return nil, err
	}
	if config.RankNoPersonDistance, err = envFloat("RANK_NO_PERSON_DISTANCE", config.RankNoPersonDistance); err != nil {
		return nil, err
	}
	if config.EmbeddingDim, err = envInt("EMBEDDING_DIM", config.EmbeddingDim); err != nil {
		return nil, err
	}

	config.RankCombine = envString("RANK_COMBINE", config.RankCombine)
	config.Embedder = envString("EMBEDDER", config.Embedder)
	config.EmbeddingModel = envString("EMBEDDING_MODEL", config.EmbeddingModel)
	config.EmbeddingOnnxFile = envString("EMBEDDING_ONNX_FILE", config.EmbeddingOnnxFile)
	config.EmbeddingHost = envString("EMBEDDING_HOST", config.EmbeddingHost)
	config.ServerAddress = envString("SERVER_ADDRESS", config.ServerAddress)
	config.ServerPort = envString("SERVER_PORT", config.ServerPort)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks value ranges
func (c *ServiceConfiguration) Validate() error {
	if c.SyncInterval <= 0 {
		return NewError("service configuration validation", fmt.Errorf("sync interval must be positive"))
	}
	if c.SyncBatchSize <= 0 {
		return NewError("service configuration validation", fmt.Errorf("sync batch size must be positive"))
	}
	if c.EmbeddingDim <= 0 {
		return NewError("service configuration validation", fmt.Errorf("embedding dimension must be positive"))
	}
	if c.RankCombine != "sum" && c.RankCombine != "max" {
		return NewError("service configuration validation", fmt.Errorf("rank combine must be sum or max, got %q", c.RankCombine))
	}
	if c.Embedder != "hugot" && c.Embedder != "openai" {
		return NewError("service configuration validation", fmt.Errorf("embedder must be hugot or openai, got %q", c.Embedder))
	}
	return nil
}

func envString(key string, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, NewError("parse "+key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, NewError("parse "+key, err)
	}
	return f, nil
}

func envBool(key string, def bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, NewError("parse "+key, err)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, NewError("parse "+key, err)
	}
	return d, nil
}
