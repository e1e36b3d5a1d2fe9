package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/openlegis/billchat/pkg/models"
)

type Specification struct {
	ChatProvider   string `yaml:"chatProvider" envconfig:"CHAT_PROVIDER"`
	ChatModel      string `yaml:"chatModel" envconfig:"CHAT_MODEL"`
	ChatAPIKey     string `yaml:"chatApiKey" envconfig:"CHAT_API_KEY"`
	GatewayBaseURL string `yaml:"gatewayBaseURL" envconfig:"GATEWAY_BASE_URL"`

	EmbeddingProvider string `yaml:"embeddingProvider" envconfig:"EMBEDDING_PROVIDER"`
	EmbeddingModel    string `yaml:"embeddingModel" envconfig:"EMBEDDING_MODEL"`
	EmbeddingAPIKey   string `yaml:"embeddingApiKey" envconfig:"EMBEDDING_API_KEY"`

	OllamaBaseURL string `yaml:"ollamaBaseURL" envconfig:"OLLAMA_BASE_URL"`

	CongressAPIKey string `yaml:"congressApiKey" envconfig:"CONGRESS_API_KEY"`
	CorpusDir      string `yaml:"corpusDir" envconfig:"CORPUS_DIR"`

	// Bill selection for one-shot commands like the indexer.
	BillCongress int    `yaml:"billCongress" envconfig:"BILL_CONGRESS"`
	BillType     string `yaml:"billType" envconfig:"BILL_TYPE"`
	BillNumber   int    `yaml:"billNumber" envconfig:"BILL_NUMBER"`

	Database string `yaml:"database" envconfig:"DB_URL"`
	LogLevel string `yaml:"logLevel" envconfig:"LOG_LEVEL"`
	Port     int    `yaml:"port" envconfig:"PORT"`
	TopK     int    `yaml:"topK" envconfig:"TOP_K"`

	flags *pflag.FlagSet `ignored:"true"`
}

const envPrefix = "BILLCHAT"

func (s *Specification) Usage() {
	fmt.Fprint(os.Stderr, s.flags.FlagUsages())
}

// Settings converts the loaded configuration into the immutable value
// handed to each embedding/chat operation.
func (s *Specification) Settings() models.AISettings {
	return models.AISettings{
		ChatProvider:      s.ChatProvider,
		ChatModel:         s.ChatModel,
		ChatAPIKey:        s.ChatAPIKey,
		GatewayBaseURL:    s.GatewayBaseURL,
		EmbeddingProvider: s.EmbeddingProvider,
		EmbeddingModel:    s.EmbeddingModel,
		EmbeddingAPIKey:   s.EmbeddingAPIKey,
		OllamaBaseURL:     s.OllamaBaseURL,
	}
}

// Load => defaults < YAML < env < flags.
// configPath may be ""; if so we auto-discover.
func Load(configPath string, fs *pflag.FlagSet) (Specification, error) {
	var cfg Specification

	setDefaults(&cfg)
	bindFlags(fs, &cfg)

	path := configPath
	if path == "" {
		if v := os.Getenv(envPrefix + "_CONFIG"); v != "" {
			path = v
		} else {
			for _, cand := range []string{
				"config/billchat.yaml",
				"config/config.yaml",
				"./billchat.yaml",
				"./config.yaml",
			} {
				if fileExists(cand) {
					path = cand
					break
				}
			}
		}
	}

	if path != "" {
		if !fileExists(path) {
			return Specification{}, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadYAML(path, &cfg); err != nil {
			return Specification{}, fmt.Errorf("load yaml %s: %w", path, err)
		}
	}

	// env overrides config file
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Specification{}, fmt.Errorf("env override: %w", err)
	}

	// flags override everything
	if err := fs.Parse(os.Args[1:]); err != nil {
		return Specification{}, err
	}
	applyChangedFlags(fs, &cfg)

	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return cfg, nil
}

// ---------- helpers ----------

func loadYAML(path string, into any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, into)
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}

func bindFlags(fs *pflag.FlagSet, c *Specification) {
	fs.String("config", "", "Path to config file")

	// If --config is provided on the command line, capture it now so
	// config discovery (which runs before flags.Parse) can use it.
	for i, a := range os.Args {
		if a == "--config" {
			if i+1 < len(os.Args) && !strings.HasPrefix(os.Args[i+1], "-") {
				_ = os.Setenv(envPrefix+"_CONFIG", os.Args[i+1])
			}
		} else if strings.HasPrefix(a, "--config=") {
			parts := strings.SplitN(a, "=", 2)
			if len(parts) == 2 {
				_ = os.Setenv(envPrefix+"_CONFIG", parts[1])
			}
		}
	}

	fs.String("chat-provider", c.ChatProvider, "Chat provider (openai|gemini|gateway|ollama|stub)")
	fs.String("chat-model", c.ChatModel, "Chat model name")
	fs.String("chat-api-key", c.ChatAPIKey, "Chat provider API key")
	fs.String("gateway-base-url", c.GatewayBaseURL, "OpenAI-compatible gateway base URL")

	fs.String("embedding-provider", c.EmbeddingProvider, "Embedding provider (openai|gemini|ollama|stub)")
	fs.String("embedding-model", c.EmbeddingModel, "Embedding model name")
	fs.String("embedding-api-key", c.EmbeddingAPIKey, "Embedding provider API key")

	fs.String("ollama-base-url", c.OllamaBaseURL, "Ollama server base URL")

	fs.String("congress-api-key", c.CongressAPIKey, "Congress.gov API key")
	fs.String("corpus-dir", c.CorpusDir, "Local bill text corpus directory (offline mode)")

	fs.Int("bill-congress", c.BillCongress, "Congress number of the bill to index")
	fs.String("bill-type", c.BillType, "Bill type (hr, s, hjres, ...)")
	fs.Int("bill-number", c.BillNumber, "Bill number to index")

	fs.String("db-url", c.Database, "Database URL (DSN) for the pgvector store")

	fs.String("log-level", c.LogLevel, "Log level (debug|info|warn|error)")
	fs.Int("port", c.Port, "API server port")
	fs.Int("top-k", c.TopK, "How many chunks ground each answer")

	// Used later for usage/help
	copied := pflag.NewFlagSet("temp", pflag.ContinueOnError)
	*copied = *fs
	c.flags = copied
}

func applyChangedFlags(fs *pflag.FlagSet, c *Specification) {
	setStr := func(name string, dst *string) {
		if fs.Changed(name) {
			v, _ := fs.GetString(name)
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		if fs.Changed(name) {
			v, _ := fs.GetInt(name)
			*dst = v
		}
	}

	setStr("chat-provider", &c.ChatProvider)
	setStr("chat-model", &c.ChatModel)
	setStr("chat-api-key", &c.ChatAPIKey)
	setStr("gateway-base-url", &c.GatewayBaseURL)

	setStr("embedding-provider", &c.EmbeddingProvider)
	setStr("embedding-model", &c.EmbeddingModel)
	setStr("embedding-api-key", &c.EmbeddingAPIKey)

	setStr("ollama-base-url", &c.OllamaBaseURL)

	setStr("congress-api-key", &c.CongressAPIKey)
	setStr("corpus-dir", &c.CorpusDir)

	setInt("bill-congress", &c.BillCongress)
	setStr("bill-type", &c.BillType)
	setInt("bill-number", &c.BillNumber)

	setStr("db-url", &c.Database)

	setStr("log-level", &c.LogLevel)
	setInt("port", &c.Port)
	setInt("top-k", &c.TopK)
}

func setDefaults(c *Specification) {
	c.ChatProvider = "stub"
	c.EmbeddingProvider = "stub"
	c.OllamaBaseURL = "http://localhost:11434"
	c.BillCongress = 118
	c.LogLevel = "info"
	c.Port = 8080
	c.TopK = 5
}
