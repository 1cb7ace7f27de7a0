// Package cache is a file-backed JSON cache for fetched indicator data.
// Entries carry a schema version and a content checksum so corrupted or
// incompatible files are detected on read and discarded rather than fed
// into scoring.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// entryVersion is bumped whenever the on-disk entry layout changes.
// Entries written by a different version are treated as misses.
const entryVersion = "2.0"

// Metadata keys embedded in every entry. Underscore-prefixed keys are
// excluded from the checksum so the checksum covers only payload data.
const (
	metaVersion   = "_version"
	metaSchema    = "_schema"
	metaTimestamp = "_timestamp"
	metaChecksum  = "_checksum"
)

// DefaultMaxBytes is the cache size ceiling before LRU eviction kicks in.
const DefaultMaxBytes = 100 << 20 // 100 MB

// ErrMiss is returned by Fetch when no usable entry exists: absent,
// expired, version-mismatched, or corrupt.
var ErrMiss = eris.New("cache miss")

// DefaultTTLs maps data types to their freshness windows. Cost of living
// moves slowly, exchange rates fast.
func DefaultTTLs() map[string]time.Duration {
	return map[string]time.Duration{
		"flights":  48 * time.Hour,
		"exchange": 4 * time.Hour,
		"col":      720 * time.Hour,
	}
}

const defaultTTL = 24 * time.Hour

// Hit is a successful cache read.
type Hit struct {
	Payload  map[string]any
	CachedAt time.Time
	Age      time.Duration
	// Stale means the entry is past its TTL but within the 2xTTL stale
	// window and the caller opted in to stale reads.
	Stale bool
}

// Health summarizes cache state for the health command.
type Health struct {
	Dir          string  `json:"dir"`
	TotalEntries int     `json:"total_entries"`
	ValidEntries int     `json:"valid_entries"`
	StaleEntries int     `json:"stale_entries"`
	Corrupt      int     `json:"corrupt_entries"`
	SizeBytes    int64   `json:"size_bytes"`
	MaxBytes     int64   `json:"max_bytes"`
	UsagePercent float64 `json:"usage_percent"`
}

// Store is a directory of JSON cache entries, one file per
// (dataType, key) pair.
type Store struct {
	dir      string
	ttls     map[string]time.Duration
	maxBytes int64

	mu         sync.Mutex
	corruption int64

	nowFunc func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTLs overrides the per-type TTL table.
func WithTTLs(ttls map[string]time.Duration) Option {
	return func(s *Store) { s.ttls = ttls }
}

// WithMaxBytes overrides the eviction ceiling.
func WithMaxBytes(n int64) Option {
	return func(s *Store) { s.maxBytes = n }
}

// New creates a cache store rooted at dir, creating the directory if
// needed.
func New(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "creating cache dir %s", dir)
	}
	s := &Store{
		dir:      dir,
		ttls:     DefaultTTLs(),
		maxBytes: DefaultMaxBytes,
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the freshness window for a data type.
func (s *Store) TTL(dataType string) time.Duration {
	if ttl, ok := s.ttls[dataType]; ok {
		return ttl
	}
	return defaultTTL
}

func (s *Store) path(dataType, key string) string {
	name := sanitize(dataType) + "_" + sanitize(key) + ".json"
	return filepath.Join(s.dir, name)
}

func sanitize(part string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, part)
}

// Checksum computes the integrity checksum of a payload: canonical
// (sorted-key) JSON of the non-metadata keys, sha256, first 16 hex chars.
func Checksum(payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		if strings.HasPrefix(k, "_") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(payload[k])
		b.Write(kb)
		b.WriteByte(':')
		b.Write(vb)
	}
	b.WriteByte('}')

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:16]
}

// Save writes a payload entry atomically (temp file + rename).
func (s *Store) Save(dataType, key string, payload map[string]any) error {
	entry := make(map[string]any, len(payload)+4)
	for k, v := range payload {
		if strings.HasPrefix(k, "_") {
			continue
		}
		entry[k] = v
	}
	entry[metaVersion] = entryVersion
	entry[metaSchema] = dataType
	entry[metaTimestamp] = s.nowFunc().UTC().Format(time.RFC3339)
	entry[metaChecksum] = Checksum(entry)

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encoding cache entry")
	}

	dest := s.path(dataType, key)
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return eris.Wrap(err, "creating temp cache file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrap(err, "writing cache entry")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrap(err, "closing cache entry")
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return eris.Wrap(err, "renaming cache entry into place")
	}
	return nil
}

// Fetch reads an entry. Expired-but-recoverable entries are returned with
// Stale=true only when allowStale is set. Corrupt entries are deleted and
// reported as misses.
func (s *Store) Fetch(dataType, key string, allowStale bool) (*Hit, error) {
	path := s.path(dataType, key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrMiss
		}
		return nil, eris.Wrapf(err, "reading cache entry %s", path)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		s.discardCorrupt(path, "invalid json")
		return nil, ErrMiss
	}

	if v, _ := entry[metaVersion].(string); v != entryVersion {
		return nil, ErrMiss
	}

	want, _ := entry[metaChecksum].(string)
	if want == "" || Checksum(entry) != want {
		s.discardCorrupt(path, "checksum mismatch")
		return nil, ErrMiss
	}

	ts, _ := entry[metaTimestamp].(string)
	cachedAt, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		s.discardCorrupt(path, "invalid timestamp")
		return nil, ErrMiss
	}

	age := s.nowFunc().Sub(cachedAt)
	ttl := s.TTL(dataType)
	stale := false
	switch {
	case age < ttl:
	case allowStale && age < 2*ttl:
		stale = true
		zap.L().Warn("serving stale cache entry",
			zap.String("type", dataType),
			zap.String("key", key),
			zap.Duration("age", age),
		)
	default:
		return nil, ErrMiss
	}

	payload := make(map[string]any, len(entry))
	for k, v := range entry {
		if strings.HasPrefix(k, "_") {
			continue
		}
		payload[k] = v
	}

	return &Hit{Payload: payload, CachedAt: cachedAt, Age: age, Stale: stale}, nil
}

func (s *Store) discardCorrupt(path, reason string) {
	s.mu.Lock()
	s.corruption++
	s.mu.Unlock()
	zap.L().Warn("discarding corrupt cache entry",
		zap.String("path", path),
		zap.String("reason", reason),
	)
	_ = os.Remove(path)
}

// CorruptionCount returns the number of corrupt entries discarded since
// startup.
func (s *Store) CorruptionCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.corruption
}

// Delete removes an entry if present.
func (s *Store) Delete(dataType, key string) error {
	err := os.Remove(s.path(dataType, key))
	if err != nil && !os.IsNotExist(err) {
		return eris.Wrap(err, "deleting cache entry")
	}
	return nil
}

// Clear removes every entry in the cache directory.
func (s *Store) Clear() (int, error) {
	files, err := s.entryFiles()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range files {
		if err := os.Remove(f.path); err == nil {
			removed++
		}
	}
	return removed, nil
}

type entryFile struct {
	path  string
	size  int64
	mtime time.Time
}

func (s *Store) entryFiles() ([]entryFile, error) {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, eris.Wrapf(err, "listing cache dir %s", s.dir)
	}
	var files []entryFile
	for _, de := range dirents {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		files = append(files, entryFile{
			path:  filepath.Join(s.dir, de.Name()),
			size:  info.Size(),
			mtime: info.ModTime(),
		})
	}
	return files, nil
}

// EvictLRU deletes oldest-modified entries until total size is under the
// ceiling. Returns bytes freed and entries removed.
func (s *Store) EvictLRU() (int64, int, error) {
	files, err := s.entryFiles()
	if err != nil {
		return 0, 0, err
	}

	var total int64
	for _, f := range files {
		total += f.size
	}
	if total <= s.maxBytes {
		return 0, 0, nil
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].mtime.Before(files[j].mtime)
	})

	var freed int64
	removed := 0
	for _, f := range files {
		if total-freed <= s.maxBytes {
			break
		}
		if err := os.Remove(f.path); err != nil {
			continue
		}
		freed += f.size
		removed++
	}

	zap.L().Info("evicted cache entries",
		zap.Int("removed", removed),
		zap.Int64("freed_bytes", freed),
	)
	return freed, removed, nil
}

// CheckHealth walks the cache and classifies every entry.
func (s *Store) CheckHealth() (Health, error) {
	h := Health{Dir: s.dir, MaxBytes: s.maxBytes}

	files, err := s.entryFiles()
	if err != nil {
		return h, err
	}

	now := s.nowFunc()
	for _, f := range files {
		h.TotalEntries++
		h.SizeBytes += f.size

		data, err := os.ReadFile(f.path)
		if err != nil {
			h.Corrupt++
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal(data, &entry); err != nil {
			h.Corrupt++
			continue
		}
		want, _ := entry[metaChecksum].(string)
		if want == "" || Checksum(entry) != want {
			h.Corrupt++
			continue
		}

		ts, _ := entry[metaTimestamp].(string)
		cachedAt, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			h.Corrupt++
			continue
		}

		dataType, _ := entry[metaSchema].(string)
		if now.Sub(cachedAt) < s.TTL(dataType) {
			h.ValidEntries++
		} else {
			h.StaleEntries++
		}
	}

	if s.maxBytes > 0 {
		h.UsagePercent = float64(h.SizeBytes) / float64(s.maxBytes) * 100
	}
	return h, nil
}
