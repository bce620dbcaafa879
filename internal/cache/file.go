package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kyleking/hr-insight/internal/logging"
	"github.com/kyleking/hr-insight/internal/types"
)

const (
	dataSuffix = ".data"
	metaSuffix = ".meta"
)

// fileMeta is written next to each payload file
type fileMeta struct {
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Size        int64     `json:"size"`
}

// FileCache persists responses as JSON files so repeated CLI invocations
// share answers.
type FileCache struct {
	directory   string
	maxSize     int64
	defaultTTL  time.Duration
	cleanupFreq time.Duration
	clock       Clock
	logger      *logging.Logger
	mu          sync.Mutex
	hits        atomic.Int64
	misses      atomic.Int64
	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

// FileOptions configures a FileCache
type FileOptions struct {
	Directory   string
	MaxSizeMB   int
	DefaultTTL  time.Duration
	CleanupFreq time.Duration
	Clock       Clock
	Logger      *logging.Logger
}

// NewFileCache creates a new file-based cache
func NewFileCache(opts FileOptions) (*FileCache, error) {
	directory := opts.Directory
	if strings.HasPrefix(directory, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}

		directory = filepath.Join(home, directory[2:])
	}

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &FileCache{
		directory:   directory,
		maxSize:     int64(opts.MaxSizeMB) * 1024 * 1024,
		defaultTTL:  opts.DefaultTTL,
		cleanupFreq: opts.CleanupFreq,
		clock:       opts.Clock,
		logger:      opts.Logger,
		stopCleanup: make(chan struct{}),
	}

	if c.defaultTTL <= 0 {
		c.defaultTTL = DefaultTTL
	}

	if c.clock == nil {
		c.clock = SystemClock
	}

	if c.logger == nil {
		c.logger = logging.NewNopLogger()
	}

	if c.cleanupFreq > 0 {
		go c.backgroundCleanup()
	}

	return c, nil
}

// Get reads a stored response. Unreadable or expired entries are misses.
func (c *FileCache) Get(ctx context.Context, fingerprint string) (*types.Response, bool) {
	if ctx.Err() != nil {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dataPath, metaPath := c.paths(fingerprint)

	meta, err := readMeta(metaPath)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.WithError(err).Debug("Unreadable cache metadata")
		}

		c.misses.Add(1)

		return nil, false
	}

	if meta.Fingerprint != fingerprint || !c.clock.Now().Before(meta.ExpiresAt) {
		_ = os.Remove(dataPath)
		_ = os.Remove(metaPath)
		c.misses.Add(1)

		return nil, false
	}

	data, err := os.ReadFile(dataPath)
	if err != nil {
		c.misses.Add(1)
		return nil, false
	}

	var payload types.Response
	if err := json.Unmarshal(data, &payload); err != nil {
		c.logger.WithError(err).Debug("Unreadable cache payload")
		c.misses.Add(1)

		return nil, false
	}

	c.hits.Add(1)

	return &payload, true
}

// Put writes payload, replacing any previous entry for fingerprint
func (c *FileCache) Put(ctx context.Context, fingerprint string, payload *types.Response, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal cache payload: %w", err)
	}

	now := c.clock.Now()
	meta := fileMeta{
		Fingerprint: fingerprint,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		Size:        int64(len(data)),
	}

	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal cache metadata: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dataPath, metaPath := c.paths(fingerprint)

	if err := c.enforceSize(meta.Size); err != nil {
		return fmt.Errorf("failed to enforce cache size: %w", err)
	}

	if err := os.WriteFile(dataPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write cache data: %w", err)
	}

	if err := os.WriteFile(metaPath, metaData, 0o600); err != nil {
		_ = os.Remove(dataPath)
		return fmt.Errorf("failed to write cache metadata: %w", err)
	}

	return nil
}

// Delete removes an entry from cache
func (c *FileCache) Delete(ctx context.Context, fingerprint string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dataPath, metaPath := c.paths(fingerprint)
	_ = os.Remove(dataPath)
	_ = os.Remove(metaPath)

	return nil
}

// Clear removes all entries and resets counters
func (c *FileCache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.directory)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isCacheFile(entry.Name()) {
			continue
		}

		_ = os.Remove(filepath.Join(c.directory, entry.Name()))
	}

	c.hits.Store(0)
	c.misses.Store(0)

	return nil
}

// Cleanup removes expired entries and returns how many went
func (c *FileCache) Cleanup(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.directory)
	if err != nil {
		return 0, fmt.Errorf("failed to read cache directory: %w", err)
	}

	now := c.clock.Now()
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), metaSuffix) {
			continue
		}

		metaPath := filepath.Join(c.directory, entry.Name())

		meta, err := readMeta(metaPath)
		if err != nil || now.Before(meta.ExpiresAt) {
			continue
		}

		base := strings.TrimSuffix(entry.Name(), metaSuffix)
		_ = os.Remove(filepath.Join(c.directory, base+dataSuffix))
		_ = os.Remove(metaPath)
		removed++
	}

	return removed, nil
}

// GetStats returns cache statistics
func (c *FileCache) GetStats(ctx context.Context) (*Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stats := &Stats{
		Backend: "file",
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}

	size, err := c.calculateSize()
	if err != nil {
		return nil, err
	}

	stats.TotalSize = size

	entries, err := os.ReadDir(c.directory)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), dataSuffix) {
			stats.TotalEntries++
		}
	}

	stats.computeRates()

	return stats, nil
}

// Close stops the background cleanup goroutine
func (c *FileCache) Close() error {
	c.cleanupOnce.Do(func() {
		close(c.stopCleanup)
	})

	return nil
}

func (c *FileCache) paths(fingerprint string) (string, string) {
	base := filepath.Join(c.directory, hashKey(fingerprint))
	return base + dataSuffix, base + metaSuffix
}

// hashKey creates a safe filename from a cache key
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:32]
}

func isCacheFile(name string) bool {
	return strings.HasSuffix(name, dataSuffix) || strings.HasSuffix(name, metaSuffix)
}

func readMeta(path string) (*fileMeta, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var meta fileMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// enforceSize evicts the oldest entries until newEntrySize fits. The caller
// holds c.mu.
func (c *FileCache) enforceSize(newEntrySize int64) error {
	if c.maxSize <= 0 {
		return nil
	}

	currentSize, err := c.calculateSize()
	if err != nil {
		return err
	}

	if currentSize+newEntrySize <= c.maxSize {
		return nil
	}

	entries, err := os.ReadDir(c.directory)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	type entryInfo struct {
		base    string
		modTime time.Time
		size    int64
	}

	var infos []entryInfo

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), metaSuffix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		base := strings.TrimSuffix(entry.Name(), metaSuffix)
		if dataInfo, err := os.Stat(filepath.Join(c.directory, base+dataSuffix)); err == nil {
			infos = append(infos, entryInfo{base: base, modTime: info.ModTime(), size: dataInfo.Size()})
		}
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].modTime.Before(infos[j].modTime)
	})

	needed := currentSize + newEntrySize - c.maxSize

	var freed int64

	for _, info := range infos {
		if freed >= needed {
			break
		}

		_ = os.Remove(filepath.Join(c.directory, info.base+dataSuffix))
		_ = os.Remove(filepath.Join(c.directory, info.base+metaSuffix))
		freed += info.size
	}

	return nil
}

// calculateSize sums payload sizes. The caller holds c.mu.
func (c *FileCache) calculateSize() (int64, error) {
	var total int64

	err := filepath.WalkDir(c.directory, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() && strings.HasSuffix(path, dataSuffix) {
			info, err := d.Info()
			if err != nil {
				return err
			}

			total += info.Size()
		}

		return nil
	})

	return total, err
}

func (c *FileCache) backgroundCleanup() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n, err := c.Cleanup(context.Background()); err != nil {
				c.logger.WithError(err).Warn("Cache cleanup failed")
			} else if n > 0 {
				c.logger.WithField("removed", n).Debug("Expired cache entries removed")
			}
		case <-c.stopCleanup:
			return
		}
	}
}
