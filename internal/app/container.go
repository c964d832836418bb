// Package app wires the dispatch engine's dependency graph: configuration,
// storage, travel providers, the optimizer chain, event publishing, and the
// planning services built on top of them.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fieldworks-io/dispatch/internal/optimizer"
	"github.com/fieldworks-io/dispatch/internal/scheduling/application/services"
	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
	"github.com/fieldworks-io/dispatch/internal/scheduling/infrastructure/availability"
	"github.com/fieldworks-io/dispatch/internal/scheduling/infrastructure/persistence"
	"github.com/fieldworks-io/dispatch/internal/scheduling/infrastructure/travel"
	"github.com/fieldworks-io/dispatch/internal/shared/infrastructure/database"
	_ "github.com/fieldworks-io/dispatch/internal/shared/infrastructure/database/postgres" // register postgres driver
	_ "github.com/fieldworks-io/dispatch/internal/shared/infrastructure/database/sqlite"   // register sqlite driver
	"github.com/fieldworks-io/dispatch/internal/shared/infrastructure/eventbus"
	"github.com/fieldworks-io/dispatch/internal/shared/infrastructure/migrations"
	"github.com/fieldworks-io/dispatch/internal/solver/vrp"
	"github.com/fieldworks-io/dispatch/pkg/config"
	"github.com/fieldworks-io/dispatch/pkg/observability"
)

// travelCacheTTL bounds how long a cached travel estimate is trusted.
const travelCacheTTL = 24 * time.Hour

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics observability.Metrics
	Health  *observability.HealthRegistry

	// Infrastructure
	DBConn       database.Connection
	DBDriver     database.Driver
	RedisClient  *redis.Client
	Publisher    eventbus.Publisher
	SolverClient *optimizer.Client

	// Scheduling dependencies
	Store        persistence.Store
	Travel       domain.TravelProvider
	Availability domain.AvailabilityProvider
	Optimizer    optimizer.Optimizer

	// Planning services
	UnitBuilder  *services.UnitBuilder
	ETAEstimator *services.ETAEstimator
	Planner      *services.AssignmentPlanner
	RouteEngine  *services.RouteEngine
	ETAWriter    *services.ETAWriter
	PlanCycle    *services.PlanCycle
}

// NewContainer creates and wires all dependencies from configuration.
// DATABASE_URL selects PostgreSQL; without it the engine runs zero-config on
// SQLite with auto-migration. Redis, RabbitMQ, and the solver service are
// optional: each missing piece degrades to a local substitute.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewInMemoryMetrics(),
		Health:  observability.NewHealthRegistry(),
	}

	if err := c.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := c.initRedis(ctx); err != nil {
		c.closePartial()
		return nil, err
	}
	if err := c.initPublisher(); err != nil {
		c.closePartial()
		return nil, err
	}
	c.initTravel()
	c.initOptimizer()
	c.initServices()
	c.registerHealthChecks()

	logger.Info("container initialized",
		"driver", string(c.DBDriver),
		"redis", c.RedisClient != nil,
		"solver_url", cfg.SolverURL,
		"horizon_days", cfg.PlanningHorizonDays,
	)
	return c, nil
}

// initDatabase opens PostgreSQL when DATABASE_URL is set, otherwise SQLite.
func (c *Container) initDatabase(ctx context.Context) error {
	cfg := c.Config

	driver := database.DriverSQLite
	if cfg.DatabaseURL != "" {
		driver = database.DetectDriver(cfg.DatabaseURL)
	}

	conn, err := database.NewConnection(ctx, database.Config{
		Driver:     driver,
		URL:        cfg.DatabaseURL,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == database.DriverSQLite {
		if err := c.migrateSQLite(ctx, conn); err != nil {
			_ = conn.Close()
			return err
		}
		c.Store = persistence.NewSQLiteStore(conn)
	} else {
		c.Logger.Info("running PostgreSQL migrations")
		if err := migrations.RunPostgresMigrations(ctx, conn); err != nil {
			_ = conn.Close()
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		c.Store = persistence.NewPostgresStore(conn)
	}

	c.DBConn = conn
	c.DBDriver = driver
	c.Logger.Info("database connected", "driver", string(driver))
	return nil
}

// sqliteConnection is the SQLite connection shape that exposes the raw DB
// for migrations.
type sqliteConnection interface {
	database.Connection
	DB() *sql.DB
}

func (c *Container) migrateSQLite(ctx context.Context, conn database.Connection) error {
	sqliteConn, ok := conn.(sqliteConnection)
	if !ok {
		return fmt.Errorf("expected SQLite connection with DB() method, got %T", conn)
	}
	c.Logger.Info("running SQLite migrations")
	if err := migrations.RunSQLiteMigrations(ctx, sqliteConn.DB()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// initRedis connects the optional travel cache. A missing or unreachable
// Redis is fatal only in production; development runs uncached.
func (c *Container) initRedis(ctx context.Context) error {
	cfg := c.Config
	if cfg.RedisURL == "" {
		return nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		if cfg.IsDevelopment() {
			c.Logger.Warn("invalid Redis URL, travel cache disabled", "error", err)
			return nil
		}
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		if cfg.IsDevelopment() {
			c.Logger.Warn("Redis unreachable, travel cache disabled", "error", err)
			return nil
		}
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c.RedisClient = client
	c.Logger.Info("Redis connected")
	return nil
}

// initPublisher connects RabbitMQ when configured. Development falls back to
// the noop publisher so the engine plans without a broker.
func (c *Container) initPublisher() error {
	cfg := c.Config
	if cfg.RabbitMQURL == "" {
		c.Logger.Info("RabbitMQ not configured, event publishing disabled")
		c.Publisher = eventbus.NewNoopPublisher(c.Logger)
		return nil
	}

	pub, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, c.Logger)
	if err != nil {
		if cfg.IsDevelopment() {
			c.Logger.Warn("RabbitMQ unavailable, using noop publisher", "error", err)
			c.Publisher = eventbus.NewNoopPublisher(c.Logger)
			return nil
		}
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	c.Publisher = pub
	return nil
}

// initTravel builds the travel provider chain: exact matrix entries first,
// haversine estimates for unknown pairs, Redis caching on top when available.
func (c *Container) initTravel() {
	cfg := c.Config

	estimator := travel.NewHaversineEstimator(0, int64(cfg.MinTravelSeconds))
	matrix := travel.NewMatrix(estimator)

	if c.RedisClient != nil {
		c.Travel = travel.NewRedisCache(c.RedisClient, matrix, travelCacheTTL, c.Metrics, c.Logger)
	} else {
		c.Travel = matrix
	}

	c.Availability = availability.NewWorkdayProvider(time.Now(), c.Store)
}

// initOptimizer assembles the day-route optimizer: the HTTP solver client
// behind a circuit breaker with the in-process heuristic as failover, or the
// heuristic alone when no solver URL is configured.
func (c *Container) initOptimizer() {
	cfg := c.Config

	heuristic := optimizer.NewHeuristic(c.solverOptions(), c.Logger)
	if cfg.SolverURL == "" {
		c.Logger.Info("solver service not configured, using in-process heuristic")
		c.Optimizer = heuristic
		return
	}

	clientCfg := optimizer.DefaultClientConfig(cfg.SolverURL)
	clientCfg.Timeout = cfg.SolverRequestTimeout
	clientCfg.RetryAttempts = cfg.SolverRetryAttempts
	c.SolverClient = optimizer.NewClient(clientCfg, c.Metrics, c.Logger)
	c.Optimizer = optimizer.NewFailover(c.SolverClient, heuristic, c.Metrics, c.Logger)
}

func (c *Container) solverOptions() vrp.Options {
	cfg := c.Config
	return vrp.Options{
		TimeLimit:      cfg.SolverTimeLimit,
		InfeasibleCost: cfg.InfeasibleCost,
		BasePenalty:    cfg.BasePenalty,
		LogSearch:      cfg.SolverLogSearch,
	}
}

func (c *Container) initServices() {
	cfg := c.Config

	c.UnitBuilder = services.NewUnitBuilder(c.Logger)
	c.ETAEstimator = services.NewETAEstimator(c.Travel, c.Availability, cfg.PlanningHorizonDays, c.Logger)
	c.Planner = services.NewAssignmentPlanner(c.Store, c.UnitBuilder, c.ETAEstimator, c.Publisher, c.Metrics, c.Logger)
	c.RouteEngine = services.NewRouteEngine(c.Store, c.UnitBuilder, c.Travel, c.Availability, c.Optimizer, cfg.PlanningHorizonDays, c.Metrics, c.Logger)
	c.ETAWriter = services.NewETAWriter(c.Store, c.Publisher, cfg.CustomerETAWindow, c.Metrics, c.Logger)
	c.PlanCycle = services.NewPlanCycle(c.Store, c.Planner, c.RouteEngine, c.ETAWriter, c.Publisher, c.Metrics, c.Logger)
}

func (c *Container) registerHealthChecks() {
	c.Health.Register("database", observability.DatabaseHealthChecker(c.DBConn.Ping))

	if c.RedisClient != nil {
		client := c.RedisClient
		c.Health.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
	}

	if pub, ok := c.Publisher.(*eventbus.RabbitMQPublisher); ok {
		c.Health.Register("rabbitmq", observability.RabbitMQHealthChecker(func(ctx context.Context) error {
			if pub.IsClosed() {
				return fmt.Errorf("connection closed")
			}
			return nil
		}))
	}

	if c.SolverClient != nil {
		c.Health.Register("solver", observability.SolverHealthChecker(c.SolverClient.Health))
	}
}

// closePartial releases what a failed constructor already acquired.
func (c *Container) closePartial() {
	if c.RedisClient != nil {
		_ = c.RedisClient.Close()
	}
	if c.DBConn != nil {
		_ = c.DBConn.Close()
	}
}

// Close releases all container resources.
func (c *Container) Close() {
	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		} else {
			c.Logger.Info("Redis connection closed")
		}
	}

	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			c.Logger.Warn("error closing database connection", "error", err)
		} else {
			c.Logger.Info("database connection closed", "driver", string(c.DBDriver))
		}
	}
}
