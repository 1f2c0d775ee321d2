// Command inspector runs one inspection pass (or a long-lived watch loop)
// over a coArchi model repository, resolving each entity's reference-drift
// properties and committing any detected drift back to the repository.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"

	"github.com/archi-tools/inspector/internal/audit"
	"github.com/archi-tools/inspector/internal/cache"
	"github.com/archi-tools/inspector/internal/config"
	"github.com/archi-tools/inspector/internal/httpserver"
	"github.com/archi-tools/inspector/internal/logfields"
	"github.com/archi-tools/inspector/internal/metrics"
	"github.com/archi-tools/inspector/internal/orchestrate"
	"github.com/archi-tools/inspector/pkg/inspector"
	"github.com/archi-tools/inspector/pkg/resolver"
	"github.com/archi-tools/inspector/pkg/resolvers/awssecret"
	"github.com/archi-tools/inspector/pkg/resolvers/file"
	"github.com/archi-tools/inspector/pkg/resolvers/gitlab"
	"github.com/archi-tools/inspector/pkg/resolvers/https"
	"github.com/archi-tools/inspector/pkg/resolvers/k8sjq"
)

func main() {
	configPath := flag.StringP("config", "c", "inspector.yaml", "path to the run configuration file")
	noCommit := flag.Bool("no-commit", false, "detect and report drift without committing or pushing")
	watch := flag.Bool("watch", false, "run as a long-lived daemon serving /healthz and /metrics instead of a one-shot pass")
	flag.Parse()

	if err := run(*configPath, *noCommit, *watch); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, noCommit, watch bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	zapLogger, err := logfields.NewZapLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer zapLogger.Sync() //nolint:errcheck
	logger := logfields.ToLogr(zapLogger)

	logger.Info("starting inspection", "repository", orchestrate.RedactURL(cfg.Repository.URL))

	reg := prometheus.NewRegistry()
	recorder := metrics.NewPromRecorder(reg)

	resolvers, err := buildRegistry(context.Background(), cfg, logger)
	if err != nil {
		return err
	}

	auditStore, err := openAuditStore(cfg.Audit.DSN)
	if err != nil {
		logger.Error(err, "audit store unavailable, continuing without it")
		auditStore = audit.NoopStore{}
	}
	defer auditStore.Close() //nolint:errcheck

	engine := inspector.New(resolvers, logger)

	orch := &orchestrate.Run{
		Git:         orchestrate.NewGit(cfg.Repository.CloneDir),
		Engine:      engine,
		Metrics:     recorder,
		Audit:       auditStore,
		Logger:      logger,
		Concurrency: int64(cfg.Concurrency),
		NoCommit:    noCommit,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	watcher, err := startResolverConfigWatcher(ctx, cfg, resolvers, logger)
	if err != nil {
		logger.Error(err, "resolver config hot-reload unavailable, continuing without it")
	} else {
		defer watcher.Close() //nolint:errcheck
	}

	if watch {
		return runWatchLoop(ctx, cfg, orch, reg, logger)
	}

	result, err := orch.Execute(ctx, cfg.Repository.URL, cfg.Repository.CloneDir+"/model")
	if err != nil {
		return err
	}
	logger.Info("inspection complete",
		"files_processed", result.FilesProcessed,
		"files_changed", result.ChangedFiles,
		"files_failed", result.FailedFiles,
		"committed", result.Committed)
	return nil
}

func runWatchLoop(ctx context.Context, cfg *config.Config, orch *orchestrate.Run, reg *prometheus.Registry, logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(err error, msg string, keysAndValues ...interface{})
}) error {
	healthy := func() error { return nil }
	handler := httpserver.New(reg, healthy)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- httpserver.Serve(ctx, ":"+cfg.Server.HealthPort, handler, 5*time.Second)
	}()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return <-serverErrCh
		case err := <-serverErrCh:
			return err
		case <-ticker.C:
			result, err := orch.Execute(ctx, cfg.Repository.URL, cfg.Repository.CloneDir+"/model")
			if err != nil {
				logger.Error(err, "inspection pass failed")
				continue
			}
			logger.Info("inspection pass complete",
				"files_processed", result.FilesProcessed,
				"files_changed", result.ChangedFiles,
				"files_failed", result.FailedFiles,
				"committed", result.Committed)
		}
	}
}

func buildRegistry(ctx context.Context, cfg *config.Config, logger logr.Logger) (*resolver.Registry, error) {
	reg := resolver.NewRegistry()
	store := cache.NewMemoryCache()

	reg.Register(file.New())

	headers, err := https.LoadHeaders(cfg.Resolvers.HTTPS.HeadersFile)
	if err != nil {
		return nil, err
	}
	reg.Register(https.New(headers, store, https.WithLogger(logger)))

	reg.Register(gitlab.New(os.Getenv(cfg.Resolvers.GitLab.TokenEnv), cfg.Resolvers.GitLab.Timeout, store, gitlab.WithLogger(logger)))

	if cfg.Resolvers.AWSSecret.WhitelistFile != "" {
		whitelist, err := awssecret.LoadWhitelist(cfg.Resolvers.AWSSecret.WhitelistFile)
		if err != nil {
			return nil, err
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Resolvers.AWSSecret.Region))
		if err != nil {
			return nil, err
		}
		reg.Register(awssecret.New(secretsmanager.NewFromConfig(awsCfg), whitelist, awssecret.WithLogger(logger)))
	}

	if cfg.Resolvers.Kubernetes.ContextWhitelistFile != "" {
		contextForHost, err := k8sjq.LoadContextWhitelist(cfg.Resolvers.Kubernetes.ContextWhitelistFile, cfg.Resolvers.Kubernetes.Kubeconfig)
		if err != nil {
			return nil, err
		}
		reg.Register(k8sjq.New(contextForHost, k8sjq.NewClientFactory(cfg.Resolvers.Kubernetes.Kubeconfig), k8sjq.WithLogger(logger)))
	}

	return reg, nil
}

// startResolverConfigWatcher watches each resolver's external config file
// (HTTPS headers, AWS secret whitelist, Kubernetes context whitelist) and
// re-registers that resolver on reg whenever its file changes, so a running
// --watch process picks up edited whitelists without a restart. A resolver
// whose config file is unset is never watched.
func startResolverConfigWatcher(ctx context.Context, cfg *config.Config, reg *resolver.Registry, logger logr.Logger) (*config.ResolverConfigWatcher, error) {
	watcher, err := config.NewResolverConfigWatcher(logger)
	if err != nil {
		return nil, err
	}

	if err := watcher.Watch(cfg.Resolvers.HTTPS.HeadersFile, func() {
		headers, err := https.LoadHeaders(cfg.Resolvers.HTTPS.HeadersFile)
		if err != nil {
			logger.Error(err, "failed to reload https headers file")
			return
		}
		reg.Register(https.New(headers, cache.NewMemoryCache(), https.WithLogger(logger)))
		logger.Info("reloaded https headers file")
	}); err != nil {
		watcher.Close() //nolint:errcheck
		return nil, err
	}

	if err := watcher.Watch(cfg.Resolvers.AWSSecret.WhitelistFile, func() {
		whitelist, err := awssecret.LoadWhitelist(cfg.Resolvers.AWSSecret.WhitelistFile)
		if err != nil {
			logger.Error(err, "failed to reload aws secret whitelist file")
			return
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Resolvers.AWSSecret.Region))
		if err != nil {
			logger.Error(err, "failed to reload aws config")
			return
		}
		reg.Register(awssecret.New(secretsmanager.NewFromConfig(awsCfg), whitelist, awssecret.WithLogger(logger)))
		logger.Info("reloaded aws secret whitelist file")
	}); err != nil {
		watcher.Close() //nolint:errcheck
		return nil, err
	}

	if err := watcher.Watch(cfg.Resolvers.Kubernetes.ContextWhitelistFile, func() {
		contextForHost, err := k8sjq.LoadContextWhitelist(cfg.Resolvers.Kubernetes.ContextWhitelistFile, cfg.Resolvers.Kubernetes.Kubeconfig)
		if err != nil {
			logger.Error(err, "failed to reload kubernetes context whitelist file")
			return
		}
		reg.Register(k8sjq.New(contextForHost, k8sjq.NewClientFactory(cfg.Resolvers.Kubernetes.Kubeconfig), k8sjq.WithLogger(logger)))
		logger.Info("reloaded kubernetes context whitelist file")
	}); err != nil {
		watcher.Close() //nolint:errcheck
		return nil, err
	}

	go watcher.Run(ctx)
	return watcher, nil
}

func openAuditStore(dsn string) (audit.Store, error) {
	if dsn == "" {
		return audit.NoopStore{}, nil
	}
	return audit.Open(dsn)
}
