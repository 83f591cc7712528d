// Package service runs OQL queries against heap snapshots and manages the
// saved-query library and run history.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/heapql/internal/heap"
	"github.com/heapql/internal/parser/hprof"
	"github.com/heapql/internal/repository"
	"github.com/heapql/internal/storage"
	"github.com/heapql/pkg/config"
	apperrors "github.com/heapql/pkg/errors"
	"github.com/heapql/pkg/filter"
	"github.com/heapql/pkg/telemetry"
	"github.com/heapql/pkg/utils"
)

// Service is the main application service.
type Service struct {
	config    *config.Config
	logger    utils.Logger
	repos     *repository.Repositories
	storage   storage.Storage
	snapshots *snapshotCache
	classes   *filter.ClassFilter
	newID     func() string

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// Option configures a Service.
type Option func(*Service)

// WithStorage sets the dump storage instead of building it from config.
func WithStorage(st storage.Storage) Option {
	return func(s *Service) { s.storage = st }
}

// WithRepositories sets the database repositories instead of connecting
// from config.
func WithRepositories(repos *repository.Repositories) Option {
	return func(s *Service) { s.repos = repos }
}

// New creates a new Service instance. Call Initialize before use.
func New(cfg *config.Config, logger utils.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}

	s := &Service{
		config:  cfg,
		logger:  logger,
		classes: filter.NewClassFilter(cfg.Engine.BusinessPrefixes...),
		newID:   uuid.NewString,
		running: make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snapshots = newSnapshotCache(cfg.Snapshots.MaxLoaded, s.loadSnapshot, logger)
	return s, nil
}

// Initialize connects the database and storage that were not supplied as
// options.
func (s *Service) Initialize(ctx context.Context) error {
	s.logger.Info("Initializing service components...")

	if err := s.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := s.initStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := s.config.EnsureCacheDir(); err != nil {
		return fmt.Errorf("failed to create snapshot cache dir: %w", err)
	}

	s.logger.Info("Service components initialized successfully")
	return nil
}

func (s *Service) initDatabase() error {
	if s.repos != nil || s.config.Database.Type == "none" {
		return nil
	}
	s.logger.Info("Connecting to database (%s)...", s.config.Database.Type)

	db := s.config.Database
	gormDB, err := repository.NewGormDB(&repository.DBConfig{
		Type:     db.Type,
		Path:     db.Path,
		Host:     db.Host,
		Port:     db.Port,
		Database: db.Database,
		User:     db.User,
		Password: db.Password,
		MaxConns: db.MaxConns,
	})
	if err != nil {
		return err
	}
	if err := repository.Migrate(gormDB); err != nil {
		return err
	}

	s.repos = repository.NewRepositories(gormDB, db.Type)
	s.logger.Info("Database connection established")
	return nil
}

func (s *Service) initStorage() error {
	if s.storage != nil {
		return nil
	}
	s.logger.Info("Initializing storage (%s)...", s.config.Storage.Type)

	store, err := storage.NewStorage(&s.config.Storage)
	if err != nil {
		return err
	}
	s.storage = store
	s.logger.Info("Storage initialized")
	return nil
}

// Close cancels running queries and closes the database.
func (s *Service) Close() error {
	s.mu.Lock()
	for _, cancel := range s.running {
		cancel()
	}
	s.mu.Unlock()

	if s.repos != nil {
		if err := s.repos.Close(); err != nil {
			s.logger.Error("Failed to close database connection: %v", err)
			return err
		}
	}
	return nil
}

// Config returns the service configuration.
func (s *Service) Config() *config.Config { return s.config }

// Storage returns the dump storage.
func (s *Service) Storage() storage.Storage { return s.storage }

// HealthCheck performs a health check on the service.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.repos != nil {
		if err := s.repos.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database health check failed: %w", err)
		}
	}
	return nil
}

// Stats returns service statistics.
func (s *Service) Stats() ServiceStats {
	s.mu.Lock()
	running := len(s.running)
	s.mu.Unlock()
	return ServiceStats{
		LoadedSnapshots: s.snapshots.Keys(),
		RunningQueries:  running,
		Database:        s.databaseType(),
	}
}

// ServiceStats holds service statistics.
type ServiceStats struct {
	LoadedSnapshots []string `json:"loaded_snapshots"`
	RunningQueries  int      `json:"running_queries"`
	Database        string   `json:"database"`
}

func (s *Service) databaseType() string {
	if s.repos == nil {
		return "none"
	}
	return s.repos.Type()
}

func (s *Service) loadSnapshot(ctx context.Context, key string) (snap *Snapshot, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.LoadSnapshot", telemetry.AttrSnapshot.String(key))
	defer func() { telemetry.EndSpan(span, err) }()

	if s.storage == nil {
		return nil, apperrors.New(apperrors.CodeConfigError, "storage is not initialized")
	}
	info, err := s.storage.Stat(ctx, key)
	if err != nil {
		return nil, err
	}
	if info.Size == 0 {
		return nil, apperrors.New(apperrors.CodeEmptyFile, "heap dump is empty: "+key)
	}

	path, err := s.storage.Fetch(ctx, key, s.config.Snapshots.CacheDir)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Loading snapshot %s (%d bytes)...", key, info.Size)
	loader := hprof.NewLoader(&hprof.LoaderOptions{
		SizeMode: heap.ParseSizeMode(s.config.Engine.SizeMode),
		Workers:  s.config.Engine.Parallelism,
		Logger:   s.logger,
	})
	h, stats, err := loader.LoadFile(ctx, path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeLoadError, "failed to load snapshot "+key, err)
	}
	s.logger.Info("Loaded snapshot %s: %d classes, %d instances, %d roots in %v",
		key, len(h.Classes()), h.InstanceCount(), len(h.Roots()), stats.Duration)

	return &Snapshot{Key: key, Heap: h, Stats: stats, LoadedAt: time.Now()}, nil
}
