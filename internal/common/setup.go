package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"capture-scheduler-go/internal/api"
	"capture-scheduler-go/internal/capture"
	"capture-scheduler-go/internal/consent"
	"capture-scheduler-go/internal/database"
	"capture-scheduler-go/internal/formance"
	"capture-scheduler-go/internal/lock"
	"capture-scheduler-go/internal/models"
	"capture-scheduler-go/internal/notify"
	"capture-scheduler-go/internal/orchestrator"
	"capture-scheduler-go/internal/scheduler"
	"capture-scheduler-go/internal/storage"
	"capture-scheduler-go/internal/store"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

// Services is the fully wired capture pipeline
type Services struct {
	DbService    *database.Service
	Ledger       store.LedgerStore
	Locker       lock.Locker
	Writer       *storage.Writer
	Notifier     notify.Notifier
	Orchestrator *orchestrator.Orchestrator
	Scheduler    *scheduler.Scheduler
	API          *api.CaptureService

	redisClient *redis.Client
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		return nil, err
	}
	services := &Services{DbService: dbService}

	if services.Ledger, err = InitializeLedger(ctx, cfg, dbService); err != nil {
		services.Close()
		return nil, err
	}

	if err := services.initLocker(ctx, cfg); err != nil {
		services.Close()
		return nil, err
	}

	if services.Writer, err = initWriter(ctx, cfg.Storage); err != nil {
		services.Close()
		return nil, err
	}

	if services.Notifier, err = initNotifier(cfg.Notify); err != nil {
		services.Close()
		return nil, err
	}

	device, validator, err := initCapture(cfg.Capture)
	if err != nil {
		services.Close()
		return nil, err
	}

	services.Orchestrator = orchestrator.New(orchestrator.Dependencies{
		Store:     dbService,
		Ledger:    services.Ledger,
		Device:    device,
		Validator: validator,
		Gate:      consent.NewGate(dbService),
		Writer:    services.Writer,
		Notifier:  services.Notifier,
	}, cfg)

	services.Scheduler = scheduler.NewScheduler(scheduler.SchedulerConfig{
		Store:            dbService,
		Locker:           services.Locker,
		Runner:           services.Orchestrator,
		Notifier:         services.Notifier,
		TickInterval:     cfg.Scheduler.TickInterval,
		ReapInterval:     cfg.Scheduler.ReapInterval,
		SessionDeadline:  cfg.Scheduler.SessionDeadline,
		LeaseTTL:         cfg.Lock.LeaseTTL,
		MaxDailyCaptures: cfg.Scheduler.MaxDailyCaptures,
	})

	services.API = api.NewCaptureService(dbService, services.Ledger, services.Writer, services.Scheduler)
	return services, nil
}

// InitializeDatabaseOnly initializes just the metadata store
// Useful for read-only operations like querying balances
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database, cfg.Ledger.MaxRetries)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

// InitializeLedger selects the earnings backend; the SQLite subledger is the default
func InitializeLedger(ctx context.Context, cfg *models.Config, dbService *database.Service) (store.LedgerStore, error) {
	switch strings.ToLower(cfg.Ledger.Backend) {
	case "", "sqlite":
		zap.L().Info("Using SQLite earnings ledger")
		return dbService, nil
	case "formance":
		zap.L().Info("Using Formance earnings ledger")
		ledger, err := formance.NewService(ctx, cfg.Formance)
		if err != nil {
			return nil, err
		}
		return ledger, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

func (cs *Services) initLocker(ctx context.Context, cfg *models.Config) error {
	switch strings.ToLower(cfg.Lock.Backend) {
	case "", "sqlite":
		cs.Locker = database.NewLeaseLocker(cs.DbService, cfg.Lock.LeaseTTL)
	case "redis":
		client, err := lock.NewRedisClient(ctx, cfg.Lock)
		if err != nil {
			return err
		}
		cs.redisClient = client
		cs.Locker = lock.NewRedisLocker(client, cfg.Lock.KeyPrefix, cfg.Lock.LeaseTTL)
	case "local":
		cs.Locker = lock.NewLocalLocker(cfg.Lock.LeaseTTL)
	default:
		return fmt.Errorf("unknown lock backend %q", cfg.Lock.Backend)
	}
	zap.L().Info("Per-user lock initialized",
		zap.String("backend", cfg.Lock.Backend),
		zap.Duration("lease_ttl", cfg.Lock.LeaseTTL))
	return nil
}

func initWriter(ctx context.Context, cfg models.StorageConfig) (*storage.Writer, error) {
	var primary, fallback storage.ObjectStore

	switch strings.ToLower(cfg.Backend) {
	case "", "minio":
		minioStore, err := storage.NewMinioStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		diskStore, err := storage.NewDiskStore(cfg.FallbackDir)
		if err != nil {
			return nil, err
		}
		primary, fallback = minioStore, diskStore
	case "disk":
		diskStore, err := storage.NewDiskStore(cfg.FallbackDir)
		if err != nil {
			return nil, err
		}
		primary = diskStore
	case "memory":
		primary, fallback = storage.NewMemoryStore(), storage.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	zap.L().Info("Storage writer initialized",
		zap.String("backend", cfg.Backend),
		zap.Bool("fallback", fallback != nil),
		zap.Int("max_attempts", cfg.MaxAttempts))
	return storage.NewWriter(primary, fallback, cfg), nil
}

func initNotifier(cfg models.NotifyConfig) (notify.Notifier, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "log":
		return notify.NewLogNotifier(), nil
	case "nats":
		notifier, err := notify.NewNATSNotifier(cfg)
		if err != nil {
			return nil, err
		}
		return notifier, nil
	default:
		return nil, fmt.Errorf("unknown notify backend %q", cfg.Backend)
	}
}

func initCapture(cfg models.CaptureConfig) (capture.Device, capture.Validator, error) {
	var device capture.Device = capture.NewSyntheticDevice()
	if cfg.DeviceURL != "" && cfg.DeviceURL != "synthetic" {
		httpDevice, err := capture.NewHTTPDevice(cfg)
		if err != nil {
			return nil, nil, err
		}
		device = httpDevice
	}

	var validator capture.Validator = capture.NewBasicValidator(cfg)
	if cfg.VerdictURL != "" {
		httpValidator, err := capture.NewHTTPValidator(cfg)
		if err != nil {
			return nil, nil, err
		}
		validator = httpValidator
	}

	zap.L().Info("Capture pipeline initialized",
		zap.Bool("remote_device", cfg.DeviceURL != "" && cfg.DeviceURL != "synthetic"),
		zap.Bool("remote_verdict", cfg.VerdictURL != ""))
	return device, validator, nil
}

func (cs *Services) Close() {
	if cs.Scheduler != nil {
		cs.Scheduler.Stop()
	}
	if cs.Notifier != nil {
		cs.Notifier.Close()
	}
	if cs.redisClient != nil {
		if err := cs.redisClient.Close(); err != nil {
			zap.L().Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if cs.Ledger != nil && cs.Ledger != store.LedgerStore(cs.DbService) {
		cs.Ledger.Close()
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
