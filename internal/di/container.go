package di

import (
	"github.com/tixgate/tixgate/internal/fanout"
	"github.com/tixgate/tixgate/internal/handler"
	"github.com/tixgate/tixgate/internal/repository"
	"github.com/tixgate/tixgate/internal/service"
	"github.com/tixgate/tixgate/internal/worker"
	"github.com/tixgate/tixgate/pkg/database"
	pkgredis "github.com/tixgate/tixgate/pkg/redis"
)

// Container holds all dependencies for the service
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *pkgredis.Client

	// Repositories
	QueueRepo   repository.QueueRepository
	SeatRepo    repository.SeatRepository
	BookingRepo repository.BookingRepository
	SessionRepo repository.SessionRepository

	// Publishers
	EventPublisher service.EventPublisher

	// Services
	QueueService     service.QueueService
	InventoryService service.InventoryService
	BookingService   service.BookingService

	// Fanout
	Hub      *fanout.Hub
	Notifier *fanout.Notifier

	// Workers
	Sweeper *worker.Sweeper

	// Handlers
	HealthHandler    *handler.HealthHandler
	QueueHandler     *handler.QueueHandler
	InventoryHandler *handler.InventoryHandler
	BookingHandler   *handler.BookingHandler
	PaymentHandler   *handler.PaymentHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB             *database.PostgresDB
	Redis          *pkgredis.Client
	EventPublisher service.EventPublisher

	ServiceName string
	Version     string

	QueueConfig     *service.QueueServiceConfig
	InventoryConfig *service.InventoryServiceConfig
	BookingConfig   *service.BookingServiceConfig
	NotifierConfig  *fanout.NotifierConfig
	SweeperConfig   *worker.SweeperConfig
	HubBufferSize   int
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:             cfg.DB,
		Redis:          cfg.Redis,
		EventPublisher: cfg.EventPublisher,
	}

	// Initialize repositories
	c.QueueRepo = repository.NewRedisQueueRepository(cfg.Redis)
	c.SeatRepo = repository.NewPostgresSeatRepository(cfg.DB.Pool())
	c.BookingRepo = repository.NewPostgresBookingRepository(cfg.DB.Pool())
	c.SessionRepo = repository.NewRedisSessionRepository(cfg.Redis)

	// Initialize services
	c.QueueService = service.NewQueueService(c.QueueRepo, cfg.QueueConfig)
	c.InventoryService = service.NewInventoryService(c.SeatRepo, c.SessionRepo, cfg.InventoryConfig)
	c.BookingService = service.NewBookingService(
		c.BookingRepo,
		c.SessionRepo,
		c.QueueService,
		c.EventPublisher,
		cfg.BookingConfig,
	)

	// Initialize fanout and workers
	c.Hub = fanout.NewHub(cfg.HubBufferSize)
	c.Notifier = fanout.NewNotifier(c.QueueService, c.Hub, cfg.NotifierConfig)
	c.Sweeper = worker.NewSweeper(c.InventoryService, c.BookingService, cfg.SweeperConfig)

	// Initialize handlers
	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis, cfg.ServiceName, cfg.Version)
	c.QueueHandler = handler.NewQueueHandler(c.QueueService, c.Hub)
	c.InventoryHandler = handler.NewInventoryHandler(c.InventoryService)
	c.BookingHandler = handler.NewBookingHandler(c.BookingService)
	c.PaymentHandler = handler.NewPaymentHandler(c.BookingService)

	return c
}

// StartWorkers starts the notifier and sweeper
func (c *Container) StartWorkers() error {
	if err := c.Notifier.Start(); err != nil {
		return err
	}
	if err := c.Sweeper.Start(); err != nil {
		c.Notifier.Stop()
		return err
	}
	return nil
}

// StopWorkers stops the notifier and sweeper
func (c *Container) StopWorkers() {
	c.Sweeper.Stop()
	c.Notifier.Stop()
}
