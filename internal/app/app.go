// Package app wires configuration into the registry and submission
// services. Both binaries build their dependencies through Open.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	_ "github.com/lib/pq"

	"github.com/riskframe/riskframe/internal/blob"
	"github.com/riskframe/riskframe/internal/cache"
	"github.com/riskframe/riskframe/internal/loader"
	"github.com/riskframe/riskframe/internal/platform"
	"github.com/riskframe/riskframe/internal/platform/logger"
	"github.com/riskframe/riskframe/internal/registry"
	"github.com/riskframe/riskframe/internal/schema"
	"github.com/riskframe/riskframe/internal/submission"
	"github.com/riskframe/riskframe/pkg/config"
)

// App holds the opened services and the resources behind them.
type App struct {
	DB          *sql.DB
	Registry    *registry.Service
	Submissions *submission.Service
	Log         *logger.Logger

	closers []io.Closer
}

// OpenDB connects to PostgreSQL and verifies the connection.
func OpenDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Open connects every backend named by cfg. The caller must Close the App.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.NewNop()
	}
	db, err := OpenDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &App{DB: db, Log: log}

	if cfg.Database.AutoMigrate {
		if err := platform.AutoMigrate(db); err != nil {
			a.Close()
			return nil, err
		}
		log.Info("migrations applied")
	}

	validator, err := schema.NewValidator()
	if err != nil {
		a.Close()
		return nil, err
	}
	opts := []registry.Option{registry.WithLogger(log)}
	if cfg.Cache.Backend != "none" && cfg.Cache.Backend != "" {
		c, err := cache.New(ctx, cache.Options{
			Backend:  cfg.Cache.Backend,
			Size:     cfg.Cache.Size,
			RedisURL: cfg.Cache.RedisURL,
			Prefix:   cfg.Cache.Prefix,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		if cl, ok := c.(io.Closer); ok {
			a.closers = append(a.closers, cl)
		}
		opts = append(opts, registry.WithCache(c))
		log.Info("version cache enabled", "backend", cfg.Cache.Backend)
	}
	a.Registry = registry.NewService(registry.NewPostgresStore(db), validator, opts...)

	store, err := a.submissionStore(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Submissions = submission.NewService(a.Registry, store, log)
	log.Info("submission store ready", "backend", cfg.Storage.Backend)
	return a, nil
}

func (a *App) submissionStore(ctx context.Context, cfg config.StorageConfig) (submission.Store, error) {
	switch cfg.Backend {
	case config.StoragePostgres, "":
		return submission.NewPostgresStore(a.DB), nil
	case config.StorageLocal:
		return submission.NewBlobStore(blob.NewLocalStorage(cfg.LocalDir)), nil
	case config.StorageGCS:
		s, err := blob.NewGCSStorage(ctx, cfg.GCSBucket, cfg.GCSPrefix)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s)
		return submission.NewBlobStore(s), nil
	case config.StorageS3:
		s, err := blob.NewS3Storage(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return submission.NewBlobStore(s), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Seed applies the seed directory to the registry.
func (a *App) Seed(ctx context.Context, dir string) (*loader.Report, error) {
	if fi, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("seed dir: %w", err)
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("seed dir %s is not a directory", dir)
	}
	b, err := loader.Load(os.DirFS(dir))
	if err != nil {
		return nil, err
	}
	r, err := loader.Apply(ctx, a.Registry, b, a.Log)
	if err != nil {
		return r, err
	}
	a.Log.Info("seed applied",
		"dir", dir,
		"questions_created", r.QuestionsCreated,
		"frameworks_created", r.FrameworksCreated,
		"versions_published", len(r.VersionsPublished),
	)
	return r, nil
}

// Close releases every backend. It is safe to call more than once.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	if a.DB != nil {
		if err := a.DB.Close(); err != nil && first == nil {
			first = err
		}
		a.DB = nil
	}
	return first
}
