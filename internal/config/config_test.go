package config

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	var (
		tempDir    string
		configFile string
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "config-test")
		Expect(err).NotTo(HaveOccurred())
		configFile = filepath.Join(tempDir, "config.yaml")
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	Describe("Load", func() {
		Context("when config file exists with valid content", func() {
			BeforeEach(func() {
				validConfig := `
repository:
  url: "https://gitlab.example.com/models/entities.git"
  branch: "main"
  clone_dir: "/tmp/models"

concurrency: 8

resolvers:
  https:
    headers_file: "https_headers.yaml"
    timeout: "15s"
  awssecret:
    whitelist_file: "aws_whitelist.yaml"
    region: "us-east-1"
  k8sjq:
    context_whitelist_file: "k8s_contexts.txt"
  gitlab:
    token_env: "GITLAB_TOKEN"
    timeout: "45s"

logging:
  level: "debug"
  format: "console"

server:
  metrics_port: "9091"
  health_port: "8081"

audit:
  dsn: "postgres://localhost/inspector"
`
				err := os.WriteFile(configFile, []byte(validConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should load configuration successfully", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg).NotTo(BeNil())

				Expect(cfg.Repository.URL).To(Equal("https://gitlab.example.com/models/entities.git"))
				Expect(cfg.Repository.Branch).To(Equal("main"))
				Expect(cfg.Repository.CloneDir).To(Equal("/tmp/models"))

				Expect(cfg.Concurrency).To(Equal(8))

				Expect(cfg.Resolvers.HTTPS.HeadersFile).To(Equal("https_headers.yaml"))
				Expect(cfg.Resolvers.HTTPS.Timeout).To(Equal(15 * time.Second))
				Expect(cfg.Resolvers.AWSSecret.WhitelistFile).To(Equal("aws_whitelist.yaml"))
				Expect(cfg.Resolvers.AWSSecret.Region).To(Equal("us-east-1"))
				Expect(cfg.Resolvers.Kubernetes.ContextWhitelistFile).To(Equal("k8s_contexts.txt"))
				Expect(cfg.Resolvers.GitLab.TokenEnv).To(Equal("GITLAB_TOKEN"))
				Expect(cfg.Resolvers.GitLab.Timeout).To(Equal(45 * time.Second))

				Expect(cfg.Logging.Level).To(Equal("debug"))
				Expect(cfg.Logging.Format).To(Equal("console"))

				Expect(cfg.Server.MetricsPort).To(Equal("9091"))
				Expect(cfg.Server.HealthPort).To(Equal("8081"))

				Expect(cfg.Audit.DSN).To(Equal("postgres://localhost/inspector"))
			})
		})

		Context("when config file has minimal content", func() {
			BeforeEach(func() {
				minimalConfig := `
repository:
  url: "https://gitlab.example.com/models/entities.git"
`
				err := os.WriteFile(configFile, []byte(minimalConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should load with defaults for missing values", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())

				Expect(cfg.Repository.URL).To(Equal("https://gitlab.example.com/models/entities.git"))
				Expect(cfg.Repository.Branch).To(Equal("main"))
				Expect(cfg.Concurrency).To(Equal(4))
				Expect(cfg.Logging.Level).To(Equal("info"))
				Expect(cfg.Logging.Format).To(Equal("json"))
				Expect(cfg.Server.MetricsPort).To(Equal("9090"))
				Expect(cfg.Server.HealthPort).To(Equal("8080"))
				Expect(cfg.Resolvers.GitLab.TokenEnv).To(Equal("GITLAB_TOKEN"))
			})
		})

		Context("when config file does not exist", func() {
			It("should return an error", func() {
				_, err := Load("/nonexistent/config.yaml")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to read config file"))
			})
		})

		Context("when config file has invalid YAML", func() {
			BeforeEach(func() {
				invalidConfig := `
repository:
  url: [
concurrency: 8
`
				err := os.WriteFile(configFile, []byte(invalidConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return an error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
			})
		})

		Context("when config is missing the repository URL", func() {
			BeforeEach(func() {
				noURLConfig := `
concurrency: 2
`
				err := os.WriteFile(configFile, []byte(noURLConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return a validation error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("config validation failed"))
			})
		})
	})

	Describe("validate", func() {
		var cfg *Config

		BeforeEach(func() {
			cfg = &Config{
				Repository: RepositoryConfig{
					URL:    "https://gitlab.example.com/models/entities.git",
					Branch: "main",
				},
				Concurrency: 4,
				Logging: LoggingConfig{
					Level:  "info",
					Format: "json",
				},
			}
		})

		Context("when config is valid", func() {
			It("should pass validation", func() {
				Expect(validate(cfg)).To(Succeed())
			})
		})

		Context("when repository URL is missing", func() {
			BeforeEach(func() {
				cfg.Repository.URL = ""
			})

			It("should return a validation error", func() {
				Expect(validate(cfg)).To(HaveOccurred())
			})
		})

		Context("when concurrency is zero", func() {
			BeforeEach(func() {
				cfg.Concurrency = 0
			})

			It("should return a validation error", func() {
				err := validate(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("concurrency must be greater than 0"))
			})
		})

		Context("when logging level is unsupported", func() {
			BeforeEach(func() {
				cfg.Logging.Level = "verbose"
			})

			It("should return a validation error", func() {
				Expect(validate(cfg)).To(HaveOccurred())
			})
		})
	})

	Describe("loadFromEnv", func() {
		var cfg *Config

		BeforeEach(func() {
			cfg = &Config{}
			os.Clearenv()
		})

		AfterEach(func() {
			os.Clearenv()
		})

		Context("when environment variables are set", func() {
			BeforeEach(func() {
				os.Setenv("MODEL_REPOSITORY_URL", "https://gitlab.example.com/override.git")
				os.Setenv("INSPECTOR_CONCURRENCY", "16")
				os.Setenv("LOG_LEVEL", "debug")
				os.Setenv("METRICS_PORT", "9999")
				os.Setenv("HEALTH_PORT", "8888")
				os.Setenv("AUDIT_DSN", "postgres://override/db")
			})

			It("should load values from environment", func() {
				Expect(loadFromEnv(cfg)).To(Succeed())

				Expect(cfg.Repository.URL).To(Equal("https://gitlab.example.com/override.git"))
				Expect(cfg.Concurrency).To(Equal(16))
				Expect(cfg.Logging.Level).To(Equal("debug"))
				Expect(cfg.Server.MetricsPort).To(Equal("9999"))
				Expect(cfg.Server.HealthPort).To(Equal("8888"))
				Expect(cfg.Audit.DSN).To(Equal("postgres://override/db"))
			})
		})

		Context("when an environment variable has an invalid value", func() {
			BeforeEach(func() {
				os.Setenv("INSPECTOR_CONCURRENCY", "not-a-number")
			})

			It("should return an error", func() {
				Expect(loadFromEnv(cfg)).To(HaveOccurred())
			})
		})

		Context("when no environment variables are set", func() {
			It("should not modify config", func() {
				original := *cfg
				Expect(loadFromEnv(cfg)).To(Succeed())
				Expect(*cfg).To(Equal(original))
			})
		})
	})
})
