package cache

import (
	"context"
	"fmt"

	appcert "github.com/afp/backend/internal/application/certification"
	"github.com/afp/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// FileGuardFactory creates in-flight guards based on configuration
type FileGuardFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FileGuardFactoryOption is a functional option for configuring the factory
type FileGuardFactoryOption func(*FileGuardFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FileGuardFactoryOption {
	return func(f *FileGuardFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory guard
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) FileGuardFactoryOption {
	return func(f *FileGuardFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFileGuardFactory creates a new factory
func NewFileGuardFactory(cfg config.RedisConfig, opts ...FileGuardFactoryOption) *FileGuardFactory {
	f := &FileGuardFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns a Redis guard when Redis is enabled and reachable, and an
// in-memory guard otherwise (if fallback is allowed)
func (f *FileGuardFactory) Create(ctx context.Context) (appcert.InFlightGuard, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("using in-memory file guard")
		return NewInMemoryFileGuard(f.redisConfig.InFlightTTL), nil
	}

	guard, err := NewRedisFileGuard(ctx,
		f.redisConfig.Addr(),
		f.redisConfig.Password,
		f.redisConfig.DB,
		f.redisConfig.KeyPrefix,
		f.redisConfig.InFlightTTL,
	)
	if err == nil {
		f.logger.Info("using Redis file guard", zap.String("addr", f.redisConfig.Addr()))
		return guard, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for file guard but unavailable: %w", err)
	}
	f.logger.Warn("Redis unavailable, falling back to in-memory file guard. "+
		"Instances sharing a bucket may process the same file concurrently.",
		zap.Error(err),
	)
	return NewInMemoryFileGuard(f.redisConfig.InFlightTTL), nil
}
