// Package config loads and validates the inspector's run configuration: the
// model repository location, concurrency limit, per-scheme resolver
// settings, logging, server bind addresses, and the optional audit store.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root of the YAML-loaded run configuration.
type Config struct {
	Repository RepositoryConfig `yaml:"repository"`
	Concurrency int             `yaml:"concurrency"`
	Resolvers  ResolversConfig  `yaml:"resolvers"`
	Logging    LoggingConfig    `yaml:"logging"`
	Server     ServerConfig     `yaml:"server"`
	Audit      AuditConfig      `yaml:"audit"`
}

// RepositoryConfig locates the model repository the orchestrator clones
// entities from and commits rewritten files back to.
type RepositoryConfig struct {
	URL      string `yaml:"url" validate:"required"`
	Branch   string `yaml:"branch"`
	CloneDir string `yaml:"clone_dir"`
}

// ResolversConfig groups the per-scheme resolver settings. Each file path
// points at a standalone config the resolver reads and, if non-empty,
// hot-reloads (§2).
type ResolversConfig struct {
	HTTPS      HTTPSResolverConfig      `yaml:"https"`
	AWSSecret  AWSSecretResolverConfig  `yaml:"awssecret"`
	Kubernetes KubernetesResolverConfig `yaml:"k8sjq"`
	GitLab     GitLabResolverConfig     `yaml:"gitlab"`
}

// HTTPSResolverConfig names the file of headers (e.g. auth tokens) sent with
// every https:// resolve, grounded on the original's https_plugin_headers.yaml.
type HTTPSResolverConfig struct {
	HeadersFile string        `yaml:"headers_file"`
	Timeout     time.Duration `yaml:"timeout"`
}

// AWSSecretResolverConfig names the file whitelisting which secrets-manager
// methods/fields the awssecret:// resolver may call, grounded on the
// original's boto3_plugin_whitelisted_services_and_methods.yaml.
type AWSSecretResolverConfig struct {
	WhitelistFile string `yaml:"whitelist_file"`
	Region        string `yaml:"region"`
}

// KubernetesResolverConfig names the file whitelisting which kubeconfig
// contexts the k8sjq:// resolver may switch into, grounded on the original's
// k8s_plugin_whitelisted_kubectl_contexts.txt.
type KubernetesResolverConfig struct {
	ContextWhitelistFile string `yaml:"context_whitelist_file"`
	Kubeconfig           string `yaml:"kubeconfig"`
}

// GitLabResolverConfig holds the token and API timeout for the gitlab://
// resolver's compare-API calls.
type GitLabResolverConfig struct {
	TokenEnv string        `yaml:"token_env"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LoggingConfig controls the structured logger's level and encoding.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
}

// ServerConfig binds the optional long-lived daemon's health/metrics server.
type ServerConfig struct {
	MetricsPort string `yaml:"metrics_port"`
	HealthPort  string `yaml:"health_port"`
}

// AuditConfig is the optional Postgres audit store. DSN empty disables it.
type AuditConfig struct {
	DSN string `yaml:"dsn"`
}

var v = validator.New()

// Load reads, parses, defaults, env-overlays, and validates the config at
// path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := loadFromEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Repository.Branch == "" {
		cfg.Repository.Branch = "main"
	}
	if cfg.Repository.CloneDir == "" {
		cfg.Repository.CloneDir = "./.inspector-model"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Server.MetricsPort == "" {
		cfg.Server.MetricsPort = "9090"
	}
	if cfg.Server.HealthPort == "" {
		cfg.Server.HealthPort = "8080"
	}
	if cfg.Resolvers.HTTPS.Timeout == 0 {
		cfg.Resolvers.HTTPS.Timeout = 10 * time.Second
	}
	if cfg.Resolvers.GitLab.Timeout == 0 {
		cfg.Resolvers.GitLab.Timeout = 30 * time.Second
	}
	if cfg.Resolvers.GitLab.TokenEnv == "" {
		cfg.Resolvers.GitLab.TokenEnv = "GITLAB_TOKEN"
	}
	if cfg.Resolvers.Kubernetes.Kubeconfig == "" {
		cfg.Resolvers.Kubernetes.Kubeconfig = os.Getenv("KUBECONFIG")
	}
}

func validate(cfg *Config) error {
	if err := v.Struct(cfg); err != nil {
		return err
	}
	if cfg.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be greater than 0")
	}
	return nil
}

func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("MODEL_REPOSITORY_URL"); v != "" {
		cfg.Repository.URL = v
	}
	if v := os.Getenv("INSPECTOR_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("INSPECTOR_CONCURRENCY: %w", err)
		}
		cfg.Concurrency = n
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		cfg.Server.MetricsPort = v
	}
	if v := os.Getenv("HEALTH_PORT"); v != "" {
		cfg.Server.HealthPort = v
	}
	if v := os.Getenv("AUDIT_DSN"); v != "" {
		cfg.Audit.DSN = v
	}
	return nil
}
