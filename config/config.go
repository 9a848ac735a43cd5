package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds every setting the backend reads at startup. It is built once
// and treated as read-only afterwards.
type Config struct {
	Server struct {
		Port           string
		GinMode        string
		RequestTimeout time.Duration
		CORSOrigins    []string
	}
	Log struct {
		Level  string
		Format string
	}
	VectorStore   string
	Elasticsearch struct {
		Host          string
		User          string
		Password      string
		Index         string
		VerifyCerts   bool
		NumCandidates int
	}
	Chroma struct {
		URL        string
		Collection string
	}
	LLM struct {
		APIBase   string
		APIKey    string
		ModelName string
	}
	Embedding struct {
		APIBase   string
		APIKey    string
		ModelName string
	}
	Vision struct {
		Provider     string
		APIBase      string
		APIKey       string
		ModelName    string
		GeminiAPIKey string
		PromptFile   string
	}
	QA struct {
		TopK               int
		PromptTemplateFile string
		BuiltinPrompt      bool
	}
	ResponseFormat   string
	CitationDedupKey string
	Indexer          struct {
		Path       string
		Watch      bool
		LicenseKey string
	}
}

// VisionEnabled reports whether enough settings are present to describe images.
func (c *Config) VisionEnabled() bool {
	switch c.Vision.Provider {
	case "gemini":
		return c.Vision.GeminiAPIKey != "" && c.Vision.ModelName != ""
	default:
		return c.Vision.APIBase != "" && c.Vision.ModelName != ""
	}
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, relying on environment variables.")
	}
	return fromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("REQUEST_TIMEOUT", "120s")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("VECTOR_STORE", "elasticsearch")
	v.SetDefault("ELASTICSEARCH_VERIFY_CERTS", false)
	v.SetDefault("ELASTICSEARCH_NUM_CANDIDATES", 50)
	v.SetDefault("CHROMA_URL", "http://localhost:8000")
	v.SetDefault("CHROMA_COLLECTION", "chatbot")
	v.SetDefault("EMBEDDING_MODEL_NAME", "nomic-ai/nomic-embed-text-v1")
	v.SetDefault("LLM_VISION_PROVIDER", "openai")
	v.SetDefault("RETRIEVER_TOP_K", 4)
	v.SetDefault("QA_PROMPT_BUILTIN", false)
	v.SetDefault("RESPONSE_FORMAT", "markers")
	v.SetDefault("CITATION_DEDUP_KEY", "text")
	v.SetDefault("INDEX_WATCH", false)
	return v
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.Server.Port = v.GetString("SERVER_PORT")
	cfg.Server.GinMode = v.GetString("GIN_MODE")
	cfg.Server.RequestTimeout = v.GetDuration("REQUEST_TIMEOUT")
	cfg.Server.CORSOrigins = splitList(v.GetString("CORS_ALLOWED_ORIGINS"))
	cfg.Log.Level = v.GetString("LOG_LEVEL")
	cfg.Log.Format = v.GetString("LOG_FORMAT")

	cfg.VectorStore = strings.ToLower(v.GetString("VECTOR_STORE"))
	cfg.Elasticsearch.Host = v.GetString("ELASTICSEARCH_HOST")
	cfg.Elasticsearch.User = v.GetString("ELASTICSEARCH_USER")
	cfg.Elasticsearch.Password = v.GetString("ELASTICSEARCH_PASSWORD")
	cfg.Elasticsearch.Index = v.GetString("ELASTICSEARCH_INDEX")
	cfg.Elasticsearch.VerifyCerts = v.GetBool("ELASTICSEARCH_VERIFY_CERTS")
	cfg.Elasticsearch.NumCandidates = v.GetInt("ELASTICSEARCH_NUM_CANDIDATES")
	cfg.Chroma.URL = v.GetString("CHROMA_URL")
	cfg.Chroma.Collection = v.GetString("CHROMA_COLLECTION")

	cfg.LLM.APIBase = v.GetString("LLM_API_BASE")
	cfg.LLM.APIKey = v.GetString("LLM_API_KEY")
	cfg.LLM.ModelName = v.GetString("LLM_MODEL_NAME")
	cfg.Embedding.APIBase = getOrDefault(v, "EMBEDDING_API_BASE", cfg.LLM.APIBase)
	cfg.Embedding.APIKey = getOrDefault(v, "EMBEDDING_API_KEY", cfg.LLM.APIKey)
	cfg.Embedding.ModelName = v.GetString("EMBEDDING_MODEL_NAME")

	cfg.Vision.Provider = strings.ToLower(v.GetString("LLM_VISION_PROVIDER"))
	cfg.Vision.APIBase = v.GetString("LLM_VISION_API_BASE")
	cfg.Vision.APIKey = v.GetString("LLM_VISION_API_KEY")
	cfg.Vision.ModelName = v.GetString("LLM_VISION_MODEL_NAME")
	cfg.Vision.GeminiAPIKey = v.GetString("GEMINI_API_KEY")
	cfg.Vision.PromptFile = v.GetString("VISION_PROMPT_FILE")

	cfg.QA.TopK = v.GetInt("RETRIEVER_TOP_K")
	cfg.QA.PromptTemplateFile = v.GetString("QA_PROMPT_TEMPLATE_FILE")
	cfg.QA.BuiltinPrompt = v.GetBool("QA_PROMPT_BUILTIN")

	cfg.ResponseFormat = strings.ToLower(v.GetString("RESPONSE_FORMAT"))
	cfg.CitationDedupKey = strings.ToLower(v.GetString("CITATION_DEDUP_KEY"))

	cfg.Indexer.Path = v.GetString("INDEX_PATH")
	cfg.Indexer.Watch = v.GetBool("INDEX_WATCH")
	cfg.Indexer.LicenseKey = v.GetString("UNIDOC_LICENSE_KEY")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	require := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	switch c.VectorStore {
	case "elasticsearch":
		require("ELASTICSEARCH_HOST", c.Elasticsearch.Host)
		require("ELASTICSEARCH_USER", c.Elasticsearch.User)
		require("ELASTICSEARCH_PASSWORD", c.Elasticsearch.Password)
		require("ELASTICSEARCH_INDEX", c.Elasticsearch.Index)
	case "chroma":
		require("CHROMA_URL", c.Chroma.URL)
		require("CHROMA_COLLECTION", c.Chroma.Collection)
	default:
		return fmt.Errorf("unsupported VECTOR_STORE %q", c.VectorStore)
	}
	require("LLM_API_BASE", c.LLM.APIBase)
	require("LLM_API_KEY", c.LLM.APIKey)
	require("LLM_MODEL_NAME", c.LLM.ModelName)

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	switch c.Vision.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unsupported LLM_VISION_PROVIDER %q", c.Vision.Provider)
	}
	if c.QA.TopK <= 0 {
		return fmt.Errorf("RETRIEVER_TOP_K must be positive, got %d", c.QA.TopK)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.Server.RequestTimeout)
	}
	return nil
}

// getOrDefault returns the value for key, or fallback when it is empty.
func getOrDefault(v *viper.Viper, key, fallback string) string {
	if value := v.GetString(key); value != "" {
		return value
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
