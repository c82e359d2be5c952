package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/acme/call-billing/internal/aggregate"
	"github.com/acme/call-billing/internal/config"
	"github.com/acme/call-billing/internal/infra/db"
	"github.com/acme/call-billing/internal/infra/redis"
	"github.com/acme/call-billing/internal/queue"
	"github.com/acme/call-billing/internal/rating"
	"github.com/acme/call-billing/internal/repository"
	pgrepo "github.com/acme/call-billing/internal/repository/postgres"
	scyllarepo "github.com/acme/call-billing/internal/repository/scylla"
	billsvc "github.com/acme/call-billing/internal/service/bill"
	"github.com/acme/call-billing/internal/service/calllock"
	detailsvc "github.com/acme/call-billing/internal/service/detail"
	tariffsvc "github.com/acme/call-billing/internal/service/tariff"
	"github.com/acme/call-billing/pkg/logger"
)

// Container wires together shared infrastructure dependencies.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	Postgres *db.Postgres
	Scylla   *db.Scylla
	Redis    *redis.Client
	Kafka    *queue.Kafka

	// lazily initialised components
	components struct {
		once         sync.Once
		repositories *repositories
		services     *services
		publishers   *publishers
		ruleCache    *rating.CachedRuleSource
	}
}

type repositories struct {
	TariffRules repository.TariffRuleRepository
	CallDetails repository.CallDetailRepository
	Calls       repository.CallRepository
	Archive     repository.DetailArchive
}

type services struct {
	Tariff  *tariffsvc.Service
	Details *detailsvc.Service
	Bills   *billsvc.Service
}

type publishers struct {
	RatedCalls *queue.RatedCallPublisher
}

// Build constructs a container for the given configuration path.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	pg, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("bootstrap postgres: %w", err)
	}

	scylla, err := db.NewScylla(cfg.Scylla)
	if err != nil {
		return nil, fmt.Errorf("bootstrap scylla: %w", err)
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}

	kafka, err := queue.NewKafka(cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("bootstrap kafka: %w", err)
	}

	container := &Container{
		Config:   cfg,
		Logger:   lg,
		Postgres: pg,
		Scylla:   scylla,
		Redis:    redisClient,
		Kafka:    kafka,
	}

	return container, nil
}

func (c *Container) initComponents() {
	c.components.once.Do(func() {
		repos := &repositories{
			TariffRules: pgrepo.NewTariffRuleRepository(c.Postgres.DB()),
			CallDetails: pgrepo.NewCallDetailRepository(c.Postgres.DB()),
			Calls:       pgrepo.NewCallRepository(c.Postgres.DB()),
			Archive:     scyllarepo.NewDetailArchive(c.Scylla.Session()),
		}

		pubs := &publishers{
			RatedCalls: queue.NewRatedCallPublisher(c.Kafka, c.Config.Kafka.RatedTopic),
		}

		ruleCache := rating.NewCachedRuleSource(repos.TariffRules)
		engine := rating.NewEngine(ruleCache)

		locker := calllock.NewLocker(c.Redis.Inner(), c.Config.Locking.TTL, c.Config.Locking.RetryInterval)
		aggregator := aggregate.New(repos.Calls, engine, locker)

		broadcaster := tariffsvc.NewRedisBroadcaster(c.Redis.Inner(), c.Config.Cache.InvalidationChannel)

		svcs := &services{
			Tariff: tariffsvc.NewService(repos.TariffRules, ruleCache, broadcaster),
			Details: detailsvc.NewService(
				repos.CallDetails,
				repos.Archive,
				aggregator,
				pubs.RatedCalls,
				c.Logger.Named("detail"),
			),
			Bills: billsvc.NewService(repos.Calls),
		}

		c.components.repositories = repos
		c.components.services = svcs
		c.components.publishers = pubs
		c.components.ruleCache = ruleCache
	})
}

// Repositories exposes initialized repositories.
func (c *Container) Repositories() *repositories {
	c.initComponents()
	return c.components.repositories
}

// Services exposes initialized services.
func (c *Container) Services() *services {
	c.initComponents()
	return c.components.services
}

// Publishers exposes Kafka publishers.
func (c *Container) Publishers() *publishers {
	c.initComponents()
	return c.components.publishers
}

// InvalidationListener builds the pub/sub listener keeping the local rule
// cache in step with rule mutations made by other processes.
func (c *Container) InvalidationListener() *tariffsvc.InvalidationListener {
	c.initComponents()
	return tariffsvc.NewInvalidationListener(
		c.Redis.Inner(),
		c.Config.Cache.InvalidationChannel,
		c.components.ruleCache,
		c.Logger.Named("tariffcache"),
	)
}

// EnsureTopics ensures required Kafka topics exist.
func (c *Container) EnsureTopics(ctx context.Context) error {
	topics := []string{c.Config.Kafka.DetailTopic, c.Config.Kafka.RatedTopic}
	return c.Kafka.EnsureTopics(ctx, topics, 12, 1)
}

// Close releases all held resources.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.components.publishers != nil && c.components.publishers.RatedCalls != nil {
		if err := c.components.publishers.RatedCalls.Close(); err != nil {
			errs = append(errs, fmt.Errorf("rated publisher close: %w", err))
		}
	}
	if c.Kafka != nil {
		if err := c.Kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka close: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.Scylla != nil {
		if err := c.Scylla.Close(); err != nil {
			errs = append(errs, fmt.Errorf("scylla close: %w", err))
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres close: %w", err))
		}
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
