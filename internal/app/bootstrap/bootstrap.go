// Package bootstrap wires the send pipeline from configuration so the API
// server and the lambda entrypoint share identical construction.
package bootstrap

import (
	"context"
	"crypto/tls"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/veldmed/practice-platform/internal/config"
	"github.com/veldmed/practice-platform/internal/connections"
	"github.com/veldmed/practice-platform/internal/dispatch"
	"github.com/veldmed/practice-platform/internal/history"
	"github.com/veldmed/practice-platform/internal/http/handlers"
	"github.com/veldmed/practice-platform/internal/mail"
	"github.com/veldmed/practice-platform/internal/observability/metrics"
	"github.com/veldmed/practice-platform/internal/render"
	"github.com/veldmed/practice-platform/pkg/logging"
)

// Pipeline bundles everything a serving entrypoint needs.
type Pipeline struct {
	Connections *connections.Store
	History     *history.Store
	Renderer    *render.Renderer
	Dispatcher  *dispatch.Dispatcher
	Handler     *handlers.PrescriptionEmailHandler
}

// BuildPipeline constructs the full validate-resolve-render-dispatch chain.
func BuildPipeline(awsCfg aws.Config, cfg *appconfig.Config, m *metrics.DeliveryMetrics, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	connStore := connections.NewStore(dynamoClient, cfg.ConnectionsTable, logger)

	var historyStore *history.Store
	if cfg.SendHistoryTable != "" {
		historyStore = history.NewStore(dynamoClient, cfg.SendHistoryTable, logger)
	}

	s3Client := s3.NewFromConfig(awsCfg)
	fetcher := render.NewTemplateFetcher(cfg.TemplateURLs, httpClient, s3Client, logger)
	renderer := render.NewRenderer(fetcher, logger)

	senders := map[connections.Provider]mail.Sender{
		connections.ProviderGmail:   mail.NewGmailSender("", httpClient, logger),
		connections.ProviderOutlook: mail.NewOutlookSender("", httpClient, logger),
	}
	refreshers := map[connections.Provider]mail.TokenRefresher{
		connections.ProviderGmail: mail.NewRefresher(
			mail.GoogleOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret), httpClient, logger),
		connections.ProviderOutlook: mail.NewRefresher(
			mail.MicrosoftOAuthConfig(cfg.MicrosoftClientID, cfg.MicrosoftClientSecret), httpClient, logger),
	}

	dispatcher := dispatch.New(senders, refreshers, connStore, m, logger)

	var recorder history.Recorder
	if historyStore != nil {
		recorder = historyStore
	}
	handler := handlers.NewPrescriptionEmailHandler(connStore, renderer, dispatcher, recorder, m, logger)

	return &Pipeline{
		Connections: connStore,
		History:     historyStore,
		Renderer:    renderer,
		Dispatcher:  dispatcher,
		Handler:     handler,
	}
}

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, rate limiting disabled", "error", err)
		return nil
	}
	return client
}
