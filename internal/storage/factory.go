// factory.go maps backend names (local, s3, azure, gcs) to constructor functions
// and wraps whatever NewStorage builds with operation metrics.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/sharebook/sharebook/internal/config"
)

// FactoryFunc builds a storage backend from configuration.
type FactoryFunc func(*config.Config) (Storage, error)

var factories = make(map[string]FactoryFunc)

// Register registers a storage backend factory
func Register(name string, factory FactoryFunc) {
	factories[name] = factory
}

// Registered returns the registered backend names in sorted order.
func Registered() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BucketEnsurer is implemented by backends that can create their physical
// bucket or container on startup.
type BucketEnsurer interface {
	EnsureBucket(ctx context.Context) error
}

const ensureTimeout = 15 * time.Second

// NewStorage creates the configured storage backend. Backends implementing
// BucketEnsurer get their bucket created if missing; a failure there is only
// logged. The result records sharebook_storage_operations_total for every call.
func NewStorage(cfg *config.Config) (Storage, error) {
	factory, ok := factories[cfg.Storage.DefaultBackend]
	if !ok {
		return nil, fmt.Errorf("unsupported storage backend: %s (must be 'local', 'azure', 's3', or 'gcs')", cfg.Storage.DefaultBackend)
	}

	backend, err := factory(cfg)
	if err != nil {
		return nil, err
	}

	if e, ok := backend.(BucketEnsurer); ok {
		ctx, cancel := context.WithTimeout(context.Background(), ensureTimeout)
		if err := e.EnsureBucket(ctx); err != nil {
			slog.Warn("could not ensure storage bucket exists", "backend", cfg.Storage.DefaultBackend, "error", err)
		}
		cancel()
	}
	return WithMetrics(backend), nil
}
