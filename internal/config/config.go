package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/agenthands/taxgraph/internal/core/anomaly"
	"github.com/agenthands/taxgraph/internal/core/fraud"
	"github.com/agenthands/taxgraph/internal/core/graph"
	"github.com/agenthands/taxgraph/internal/core/reconcile"
	"github.com/agenthands/taxgraph/internal/core/risk"
	"github.com/pelletier/go-toml/v2"
)

const DefaultPath = "config/config.toml"

type ServerConfig struct {
	Port string `toml:"port"`
	// Mode is the gin mode: debug, release or test.
	Mode string `toml:"mode"`
}

type GraphConfig struct {
	// Backend is "memory" or "neo4j".
	Backend    string                  `toml:"backend"`
	Importance graph.ImportanceOptions `toml:"importance"`
}

type Neo4jConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

type LLMConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

type ExplainPrompts struct {
	System  string `toml:"system"`
	Enhance string `toml:"enhance"`
}

type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type DataConfig struct {
	Dir string `toml:"dir"`
}

type Config struct {
	Server    ServerConfig      `toml:"server"`
	Graph     GraphConfig       `toml:"graph"`
	Neo4j     Neo4jConfig       `toml:"neo4j"`
	LLM       LLMConfig         `toml:"llm"`
	Explain   ExplainPrompts    `toml:"explain"`
	Redis     RedisConfig       `toml:"redis"`
	Log       LogConfig         `toml:"log"`
	Data      DataConfig        `toml:"data"`
	Reconcile reconcile.Options `toml:"reconcile"`
	Fraud     fraud.Options     `toml:"fraud"`
	Risk      risk.Options      `toml:"risk"`
	Anomaly   anomaly.Options   `toml:"anomaly"`
}

// Default returns a configuration that runs without any file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Mode: "release"},
		Graph: GraphConfig{
			Backend:    "memory",
			Importance: graph.DefaultImportanceOptions(),
		},
		Neo4j: Neo4jConfig{URI: "bolt://localhost:7687", User: "neo4j"},
		Explain: ExplainPrompts{
			System:  DefaultSystemPrompt,
			Enhance: DefaultEnhancePrompt,
		},
		Redis:     RedisConfig{TTLSeconds: 300},
		Log:       LogConfig{Level: "info", Format: "json"},
		Data:      DataConfig{Dir: "data"},
		Reconcile: reconcile.DefaultOptions(),
		Fraud:     fraud.DefaultOptions(),
		Risk:      risk.DefaultOptions(),
		Anomaly:   anomaly.DefaultOptions(),
	}
}

const DefaultSystemPrompt = "You are an expert GST Intelligence Officer."

// DefaultEnhancePrompt takes the finding and its context.
const DefaultEnhancePrompt = `You are an expert GST Intelligence Officer in India. Given this finding, provide a clear, actionable 2-3 sentence explanation for a tax officer.

Finding: %s
Context: %s

Explain what happened, why it matters and what action to take. Be concise and professional.
Respond with JSON: {"summary": "..."}`

// Load reads a TOML file over the defaults. Keys absent from the file keep
// their default value.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv loads CONFIG_PATH (or DefaultPath), falling back to defaults
// when the file does not exist, then applies environment overrides.
func LoadFromEnv() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// ApplyEnv overrides file values with non-empty environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Server.Port, "PORT")
	set(&c.Server.Mode, "GIN_MODE")
	set(&c.Graph.Backend, "GRAPH_BACKEND")
	set(&c.Neo4j.URI, "NEO4J_URI")
	set(&c.Neo4j.User, "NEO4J_USER")
	set(&c.Neo4j.Password, "NEO4J_PASSWORD")
	set(&c.Neo4j.Database, "NEO4J_DATABASE")
	set(&c.LLM.Provider, "LLM_PROVIDER")
	set(&c.LLM.Model, "LLM_MODEL")
	set(&c.LLM.APIKey, "LLM_API_KEY")
	set(&c.LLM.BaseURL, "LLM_BASE_URL")
	set(&c.Redis.Addr, "REDIS_ADDR")
	set(&c.Redis.Password, "REDIS_PASSWORD")
	set(&c.Log.Level, "LOG_LEVEL")
	set(&c.Data.Dir, "DATA_DIR")
	if v := getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = n
		}
	}
}
