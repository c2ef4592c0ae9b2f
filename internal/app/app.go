// Package app assembles the chat service from configuration. Every entrypoint
// goes through Build so the wiring stays identical across server, Lambda and
// terminal modes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"academy-assistant/internal/config"
	"academy-assistant/internal/integrations/openai"
	"academy-assistant/internal/integrations/paramstore"
	"academy-assistant/internal/metrics"
	"academy-assistant/internal/repository"
	"academy-assistant/internal/usecase"
)

type App struct {
	Config   config.Config
	LLM      *openai.Client
	Chat     *usecase.ChatService
	Registry *prometheus.Registry
	Logger   *slog.Logger

	closers []func() error
}

// Build wires the completion client, the optional transcript store and the
// metrics registry.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		c, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return aws.Config{}, fmt.Errorf("app: load aws config: %w", err)
		}
		awsCfg = &c
		return c, nil
	}

	keys, err := keySource(cfg, loadAWS)
	if err != nil {
		return nil, err
	}
	llm, err := openai.NewClient(keys,
		openai.WithBaseURL(cfg.OpenAIBaseURL),
		openai.WithModel(cfg.OpenAIModel),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.OpenAITimeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("app: openai client: %w", err)
	}
	a.LLM = llm

	opts := []usecase.Option{
		usecase.WithLogger(logger),
		usecase.WithRecorder(metrics.New(a.Registry)),
	}
	store, err := a.stateStore(ctx, cfg, loadAWS)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if store != nil {
		opts = append(opts, usecase.WithState(store))
	}

	svc, err := usecase.NewChatService(llm, usecase.Config{
		SystemPrompt:    cfg.SystemPrompt,
		MaxContextItems: cfg.MaxContextItems,
		MaxMessageLen:   cfg.MaxMessageLength,
	}, opts...)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("app: chat service: %w", err)
	}
	a.Chat = svc
	return a, nil
}

// MetricsHandler exposes the app registry in Prometheus text format.
func (a *App) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func keySource(cfg config.Config, loadAWS func() (aws.Config, error)) (openai.KeySource, error) {
	if key := strings.TrimSpace(cfg.OpenAIAPIKey); key != "" {
		return openai.StaticKey(key), nil
	}
	awsCfg, err := loadAWS()
	if err != nil {
		return nil, err
	}
	ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("app: param store: %w", err)
	}
	keys, err := openai.NewParamStoreKey(ps, cfg.ParamPrefix)
	if err != nil {
		return nil, fmt.Errorf("app: param store key: %w", err)
	}
	return keys, nil
}

func (a *App) stateStore(ctx context.Context, cfg config.Config, loadAWS func() (aws.Config, error)) (usecase.StateReadWriter, error) {
	switch cfg.StateBackend {
	case config.BackendDynamoDB:
		awsCfg, err := loadAWS()
		if err != nil {
			return nil, err
		}
		store, err := repository.NewDynamoStore(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable)
		if err != nil {
			return nil, fmt.Errorf("app: dynamodb store: %w", err)
		}
		a.Logger.Info("transcript store enabled", "backend", cfg.StateBackend, "table", cfg.StateTable)
		return store, nil
	case config.BackendRedis:
		rdb, err := repository.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		store, err := repository.NewRedisStore(rdb)
		if err != nil {
			return nil, fmt.Errorf("app: redis store: %w", err)
		}
		a.Logger.Info("transcript store enabled", "backend", cfg.StateBackend)
		return store, nil
	default:
		return nil, nil
	}
}
