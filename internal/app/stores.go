package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/scholaris/scholaris/internal/auth"
	"github.com/scholaris/scholaris/internal/platform/db"
	"github.com/scholaris/scholaris/internal/platform/docstore"
	"github.com/scholaris/scholaris/internal/students"
)

// Stores bundles the credential store and the profile store for one driver.
type Stores struct {
	Driver     string
	Identities auth.Repository
	Profiles   students.Repository
	closers    []func(context.Context) error
}

// MemoryStores returns process-local stores.
func MemoryStores() *Stores {
	return &Stores{
		Driver:     StoreMemory,
		Identities: auth.NewMemoryRepository(),
		Profiles:   students.NewMemoryRepository(),
	}
}

// OpenStores connects the configured driver and bootstraps its schema.
func OpenStores(ctx context.Context, cfg *Config, logger *slog.Logger) (*Stores, error) {
	switch cfg.StoreDriver {
	case StoreMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return MemoryStores(), nil
	case StorePostgres:
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &Stores{
			Driver:     StorePostgres,
			Identities: auth.NewRepository(pool),
			Profiles:   students.NewRepository(pool),
			closers: []func(context.Context) error{func(context.Context) error {
				pool.Close()
				return nil
			}},
		}, nil
	case StoreMongo:
		client, database, err := docstore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		identities, err := auth.NewMongoRepository(ctx, database)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("app: identity collection: %w", err)
		}
		profiles, err := students.NewMongoRepository(ctx, database)
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("app: student collection: %w", err)
		}
		return &Stores{
			Driver:     StoreMongo,
			Identities: identities,
			Profiles:   profiles,
			closers:    []func(context.Context) error{client.Disconnect},
		}, nil
	}
	return nil, fmt.Errorf("app: unknown store driver %q", cfg.StoreDriver)
}

// Close releases store connections.
func (s *Stores) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, closeFn := range s.closers {
		if err := closeFn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
