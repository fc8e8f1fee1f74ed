package main

import (
	"context"
	"fmt"
	"log"
	"time"

	common_api "go-pos-sync/internal/common/api"
	"go-pos-sync/internal/config"
	"go-pos-sync/internal/database"
	"go-pos-sync/internal/features/auth"
	"go-pos-sync/internal/features/credential"
	"go-pos-sync/internal/features/notification"
	"go-pos-sync/internal/features/pos"
	syncfeature "go-pos-sync/internal/features/sync"
	"go-pos-sync/internal/features/syncjob"
	"go-pos-sync/internal/features/system"
	"go-pos-sync/internal/features/transaction"
	"go-pos-sync/internal/logger"
	"go-pos-sync/internal/middleware"
	"go-pos-sync/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// NewVault builds the credential vault from the configured secret
func NewVault(cfg *config.Config) (*credential.Vault, error) {
	return credential.NewVault(cfg.EncryptionSecret)
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	for _, route := range routes {
		route.Setup(app)
	}
	log.Printf("Registered %d routes\n", len(routes))
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			utils.SetSecret(cfg.JWTSecret)
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// StartWorker runs the sync orchestrator for the lifetime of the app
func StartWorker(lc fx.Lifecycle, orchestrator *syncfeature.Orchestrator) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			orchestrator.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return orchestrator.Stop(ctx)
		},
	})
}

// StartScheduler runs the cron-based sync trigger when configured
func StartScheduler(lc fx.Lifecycle, scheduler *syncfeature.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start()
		},
		OnStop: func(ctx context.Context) error {
			scheduler.Stop()
			return nil
		},
	})
}

// InitializeIndexes ensures that necessary database indexes are created.
// The partial unique index on sync_jobs is what enforces the
// one-active-job-per-tenant invariant, so index creation failures are fatal.
func InitializeIndexes(
	lc fx.Lifecycle,
	credRepo credential.CredentialRepository,
	jobRepo syncjob.JobRepository,
	txnRepo transaction.TransactionRepository,
	userRepo auth.UserRepository,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			if err := credRepo.EnsureIndexes(ctx); err != nil {
				return fmt.Errorf("failed to ensure credential indexes: %w", err)
			}
			if err := jobRepo.EnsureIndexes(ctx); err != nil {
				return fmt.Errorf("failed to ensure sync job indexes: %w", err)
			}
			if err := txnRepo.EnsureIndexes(ctx); err != nil {
				return fmt.Errorf("failed to ensure transaction indexes: %w", err)
			}
			if err := userRepo.EnsureIndexes(ctx); err != nil {
				return fmt.Errorf("failed to ensure user indexes: %w", err)
			}
			return nil
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Logger
			logger.NewLogger,

			// Initialize Fiber Server
			NewFiberServer,

			// Initialize Database
			database.NewDatabase,

			// Credential encryption
			NewVault,

			// Initialize Repositories
			credential.NewCredentialRepository,
			syncjob.NewJobRepository,
			transaction.NewTransactionRepository,
			notification.NewNotificationRepository,
			auth.NewUserRepository,

			// Job queue
			syncjob.NewJobQueue,

			// Initialize Services
			credential.NewCredentialService,
			transaction.NewImporter,
			pos.NewFetcher,
			notification.NewNotificationService,
			syncfeature.NewProgressHub,
			syncfeature.NewSyncService,
			syncfeature.NewOrchestrator,
			syncfeature.NewScheduler,
			auth.NewAuthService,

			// Initialize Controllers
			credential.NewCredentialController,
			transaction.NewTransactionController,
			syncfeature.NewSyncController,
			auth.NewAuthController,

			// Initialize API Routes
			AsRoute(credential.NewCredentialApi),
			AsRoute(transaction.NewTransactionApi),
			AsRoute(syncfeature.NewSyncApi),
			AsRoute(auth.NewAuthApi),
			AsRoute(system.NewHealthApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			RegisterAllRoutesWithAnnotation,
			StartServer,
			StartWorker,
			StartScheduler,
			InitializeIndexes,
		),
	)

	app.Run()
}
