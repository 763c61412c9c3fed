package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"snf_underwriting/pkg/core/extraction"
)

// ExtractionCache stores raw extraction results keyed by a hash of the combined document
// text and period guidance. DB is primary when a pool is configured, otherwise files.
//
// Schema assumption:
//
//	extraction_cache (cache_key TEXT PRIMARY KEY, model TEXT, data JSONB, created_at, updated_at)
type ExtractionCache struct {
	pool    *pgxpool.Pool
	fileDir string
	log     logrus.FieldLogger
}

// NewExtractionCache creates a cache. If pool is nil, it falls back to a file-based cache
// in dir (default .cache/extractions).
func NewExtractionCache(pool *pgxpool.Pool, dir string, logger logrus.FieldLogger) *ExtractionCache {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if pool == nil && dir == "" {
		dir = filepath.Join(".cache", "extractions")
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.WithError(err).WithField("dir", dir).Warn("cannot create extraction cache dir")
		}
	}
	return &ExtractionCache{pool: pool, fileDir: dir, log: logger}
}

// CacheEntry is the on-disk form of a cached extraction.
type CacheEntry struct {
	Key         string             `json:"key"`
	Model       string             `json:"model"`
	Data        *extraction.Result `json:"data"`
	ExtractedAt time.Time          `json:"extracted_at"`
}

// CacheKey hashes guidance and text; either changing yields a new key.
func CacheKey(combinedText, guidance string) string {
	h := sha256.New()
	h.Write([]byte(guidance))
	h.Write([]byte{0})
	h.Write([]byte(combinedText))
	return hex.EncodeToString(h.Sum(nil))
}

// Lookup returns the cached result, or nil, nil on a miss.
func (c *ExtractionCache) Lookup(ctx context.Context, combinedText, guidance string) (*extraction.Result, error) {
	key := CacheKey(combinedText, guidance)

	if c.pool != nil {
		var data []byte
		err := c.pool.QueryRow(ctx, `SELECT data FROM extraction_cache WHERE cache_key = $1`, key).Scan(&data)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to query extraction cache: %w", err)
		}
		var res extraction.Result
		if err := json.Unmarshal(data, &res); err != nil {
			return nil, fmt.Errorf("failed to unmarshal db cached data: %w", err)
		}
		return &res, nil
	}

	if c.fileDir == "" {
		return nil, nil
	}
	entry, err := c.loadEntry(c.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return entry.Data, nil
}

// Save stores res under the key for text and guidance.
func (c *ExtractionCache) Save(ctx context.Context, combinedText, guidance string, res *extraction.Result) error {
	if res == nil {
		return nil
	}
	key := CacheKey(combinedText, guidance)
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal extraction: %w", err)
	}

	if c.pool != nil {
		_, err = c.pool.Exec(ctx, `
			INSERT INTO extraction_cache (cache_key, model, data, created_at, updated_at)
			VALUES ($1, $2, $3, NOW(), NOW())
			ON CONFLICT (cache_key)
			DO UPDATE SET
				model = EXCLUDED.model,
				data = EXCLUDED.data,
				updated_at = NOW()`,
			key, res.Metadata.Model, data)
		if err != nil {
			return fmt.Errorf("failed to save to db cache: %w", err)
		}
	}

	if c.fileDir != "" {
		entry := CacheEntry{Key: key, Model: res.Metadata.Model, Data: res, ExtractedAt: time.Now()}
		fileBytes, err := json.MarshalIndent(entry, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal cache entry: %w", err)
		}
		if err := os.WriteFile(c.path(key), fileBytes, 0644); err != nil {
			return fmt.Errorf("failed to save to file cache: %w", err)
		}
		c.log.WithField("key", key[:12]).Debug("extraction cached")
	}
	return nil
}

func (c *ExtractionCache) path(key string) string {
	return filepath.Join(c.fileDir, key+".json")
}

func (c *ExtractionCache) loadEntry(path string) (*CacheEntry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entry CacheEntry
	if err := json.Unmarshal(b, &entry); err != nil {
		return nil, fmt.Errorf("corrupt cache entry %s: %w", filepath.Base(path), err)
	}
	return &entry, nil
}
