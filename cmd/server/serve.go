package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fire-team/ticket-router/internal/cache"
	"github.com/fire-team/ticket-router/internal/config"
	"github.com/fire-team/ticket-router/internal/db"
	"github.com/fire-team/ticket-router/internal/enrichment"
	"github.com/fire-team/ticket-router/internal/geocode"
	httpapi "github.com/fire-team/ticket-router/internal/http"
	"github.com/fire-team/ticket-router/internal/http/handlers"
	"github.com/fire-team/ticket-router/internal/idempotency"
	"github.com/fire-team/ticket-router/internal/queue"
	"github.com/fire-team/ticket-router/internal/routing"
	"github.com/fire-team/ticket-router/internal/service"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the stream consumer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts.cfg, opts.logger, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving")
	return cmd
}

func serve(parent context.Context, cfg config.Config, logger zerolog.Logger, migrate bool) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect db")
		return err
	}
	defer store.Close()
	if migrate {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}

	var rdb *cache.Cache
	if cfg.RedisAddr != "" {
		rdb, err = cache.New(ctx,
			cache.WithAddress(cfg.RedisAddr),
			cache.WithPassword(cfg.RedisPassword),
			cache.WithDB(cfg.RedisDB),
		)
		if err != nil {
			logger.Error().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect redis")
			return err
		}
		defer rdb.Close()
	} else {
		logger.Warn().Msg("REDIS_ADDR not set, results kept in memory and stream consumer disabled")
	}

	strategy, err := routing.NewStrategy(cfg.LoadBalancing)
	if err != nil {
		return err
	}
	rules := rulesFromConfig(cfg)
	assigner := service.NewAssignmentService(store,
		routing.NewOfficeResolver(rules, nil, logger),
		routing.NewManagerSelector(rules, strategy, logger),
		logger)

	var results handlers.ResultReader
	var publisher service.Publisher
	if rdb != nil {
		p := queue.NewStreamPublisher(rdb.Client(), cfg.StreamOutgoing, logger)
		publisher, results = p, p
	} else {
		p := queue.NewMemoryPublisher(logger)
		publisher, results = p, p
	}
	ingestion := service.NewIngestionProcessor(store, assigner, publisher, logger)

	var enricher enrichment.Enricher
	if cfg.EnrichBaseURL == "" {
		enricher = enrichment.Stub{}
		logger.Info().Msg("using stub enricher")
	} else {
		enricher = enrichment.NewClient(enrichment.ClientConfig{
			BaseURL:       cfg.EnrichBaseURL,
			WebhookPath:   cfg.EnrichWebhookPath,
			APIKey:        cfg.EnrichAPIKey,
			MaxConcurrent: cfg.EnrichMaxConcurrent,
			MaxWait:       cfg.EnrichMaxWait,
			Timeout:       cfg.EnrichTimeout,
		}, nil, logger)
	}

	var geocoder *geocode.Resolver
	if cfg.GeocoderURL != "" {
		geocoder = geocode.NewResolver(geocode.NewNominatimGeocoder(cfg.GeocoderURL, cfg.GeocoderUserAgent), logger)
	}
	pipeline := service.NewPipeline(store, enricher, geocoder, ingestion, cfg.IntakeWorkers, logger)

	h := &handlers.Handler{
		Store:     store,
		Assigner:  assigner,
		Events:    ingestion,
		Intake:    pipeline,
		Results:   results,
		Validator: validator.New(),
		Logger:    logger,
	}
	if rdb != nil {
		h.Idempotency = idempotency.NewStore(rdb, cfg.IdempotencyTTL)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.Router(cfg, h, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if rdb != nil {
		consumer := queue.NewConsumer(rdb.Client(), queue.ConsumerConfig{
			Stream:   cfg.StreamIncoming,
			Group:    cfg.ConsumerGroup,
			Consumer: consumerName(),
			Workers:  cfg.ConsumerWorkers,
		}, ingestion, logger)
		g.Go(func() error { return consumer.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		logger.Info().Msg("server stopped")
		return err
	})
	return g.Wait()
}

func rulesFromConfig(cfg config.Config) routing.Rules {
	rules := routing.DefaultRules()
	if len(cfg.HomeCountries) > 0 {
		rules.HomeCountries = splitList(cfg.HomeCountries)
	}
	if cfg.HomeLanguage != "" {
		rules.HomeLanguage = cfg.HomeLanguage
	}
	rules.Hubs = []routing.HubGroup{
		{Name: cfg.HubPrimaryName, Aliases: splitList(cfg.HubPrimaryAliases)},
		{Name: cfg.HubSecondaryName, Aliases: splitList(cfg.HubSecondaryAliases)},
	}
	return rules
}

// splitList accepts both real lists and a single comma separated entry, which
// is what a list set through the environment looks like.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "router"
	}
	return host + "-" + time.Now().UTC().Format("150405")
}
