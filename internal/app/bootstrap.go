// Package app wires configuration into a ready-to-run Responder.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	appconfig "lead-responder/internal/config"
	"lead-responder/internal/domain"
	"lead-responder/internal/integrations/bonzo"
	"lead-responder/internal/integrations/openai"
	"lead-responder/internal/integrations/paramstore"
	"lead-responder/internal/metrics"
	"lead-responder/internal/repository"
	"lead-responder/internal/server"
	"lead-responder/internal/usecase"
)

// Runtime holds the wired components shared by both binaries.
type Runtime struct {
	Responder *usecase.Responder
	Registry  *prometheus.Registry
	LastTick  *server.LastTick

	closers []func() error
}

// Close releases connections opened by Build.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// secretEnv maps logical secret names to the environment variables that
// override them.
var secretEnv = map[string]string{
	paramstore.SecretBonzoToken:   "BONZO_TOKEN",
	paramstore.SecretOpenAIAPIKey: "OPENAI_API_KEY",
}

// Build wires clients, the seen store and metrics from cfg.
func Build(ctx context.Context, cfg *appconfig.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var awsCfg *aws.Config
	if cfg.ParamPrefix != "" || cfg.SeenStore == appconfig.SeenStoreDynamoDB {
		loaded, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("app: load aws config: %w", err)
		}
		awsCfg = &loaded
	}

	resolver, err := buildResolver(ctx, cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	bonzoToken, err := resolver.Token(ctx, paramstore.SecretBonzoToken)
	if err != nil {
		return nil, fmt.Errorf("app: resolve bonzo token: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	messenger, err := bonzo.NewClient(bonzoToken,
		bonzo.WithBaseURL(cfg.BonzoBaseURL),
		bonzo.WithHTTPClient(httpClient),
		bonzo.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("app: create bonzo client: %w", err)
	}

	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = usecase.DefaultSystemPrompt
	}
	llm, err := openai.NewClient(resolver,
		openai.WithBaseURL(cfg.OpenAIBaseURL),
		openai.WithHTTPClient(httpClient),
		openai.WithModel(cfg.OpenAIModel),
		openai.WithSystemPrompt(systemPrompt),
		openai.WithKeyName(paramstore.SecretOpenAIAPIKey),
		openai.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("app: create openai client: %w", err)
	}

	rt := &Runtime{
		Registry: prometheus.NewRegistry(),
		LastTick: &server.LastTick{},
	}
	seen, err := buildSeenStore(ctx, cfg, awsCfg, rt)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	rt.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	tickMetrics := metrics.NewTickMetrics(rt.Registry)

	rt.Responder, err = usecase.NewResponder(messenger, llm, seen,
		usecase.WithCounterparty(domain.Sender(cfg.CounterpartySender)),
		usecase.WithLogger(logger),
		usecase.WithObserver(tickMetrics),
		usecase.WithObserver(rt.LastTick),
	)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("app: create responder: %w", err)
	}

	logger.Info("lead responder wired",
		"seen_store", cfg.SeenStore,
		"model", cfg.OpenAIModel,
		"counterparty", cfg.CounterpartySender,
		"secrets_from_ssm", cfg.ParamPrefix != "",
	)
	return rt, nil
}

func buildResolver(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config) (*paramstore.Resolver, error) {
	var ssm paramstore.Getter
	if cfg.ParamPrefix != "" && awsCfg != nil {
		client, err := paramstore.New(awsssm.NewFromConfig(*awsCfg))
		if err != nil {
			return nil, fmt.Errorf("app: create ssm client: %w", err)
		}
		ssm = client
	}
	resolver := paramstore.NewResolver(ssm, cfg.ParamPrefix, secretEnv)
	if err := resolver.Prefetch(ctx, paramstore.SecretBonzoToken, paramstore.SecretOpenAIAPIKey); err != nil {
		return nil, fmt.Errorf("app: load secrets: %w", err)
	}
	return resolver, nil
}

func buildSeenStore(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, rt *Runtime) (usecase.SeenStore, error) {
	switch cfg.SeenStore {
	case appconfig.SeenStoreMemory:
		return repository.NewMemoryStore(), nil
	case appconfig.SeenStoreDynamoDB:
		if awsCfg == nil {
			return nil, errors.New("app: dynamodb seen store needs aws config")
		}
		store, err := repository.NewDynamoStore(awsdynamodb.NewFromConfig(*awsCfg), cfg.StateTable, cfg.StateTTL)
		if err != nil {
			return nil, fmt.Errorf("app: create dynamodb seen store: %w", err)
		}
		return store, nil
	case appconfig.SeenStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		rt.closers = append(rt.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("app: ping redis %s: %w", cfg.RedisAddr, err)
		}
		store, err := repository.NewRedisStore(client, cfg.RedisKeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("app: create redis seen store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("app: unknown seen store %q", cfg.SeenStore)
	}
}
