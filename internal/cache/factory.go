package cache

import (
	"fmt"

	"github.com/kyleking/hr-insight/internal/config"
	"github.com/kyleking/hr-insight/internal/logging"
)

// New builds the configured backend
func New(cfg config.CacheConfig, logger *logging.Logger) (Store, error) {
	switch cfg.Backend {
	case "none", "":
		return Disabled{}, nil
	case "memory":
		return NewMemoryCache(cfg.TTLDuration(), cfg.CleanupDuration()), nil
	case "file":
		return NewFileCache(FileOptions{
			Directory:   cfg.Directory,
			MaxSizeMB:   cfg.MaxSizeMB,
			DefaultTTL:  cfg.TTLDuration(),
			CleanupFreq: cfg.CleanupDuration(),
			Logger:      logger,
		})
	case "redis":
		return NewRedisCache(RedisOptions{
			Addr:       cfg.RedisAddr,
			Password:   cfg.RedisPassword,
			DB:         cfg.RedisDB,
			KeyPrefix:  cfg.KeyPrefix,
			DefaultTTL: cfg.TTLDuration(),
			Logger:     logger,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}
