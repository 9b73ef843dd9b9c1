package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"

	"github.com/bull/lexrag/internal/index"
)

// lockRetryDelay is how often a blocked writer re-polls the file lock.
const lockRetryDelay = 50 * time.Millisecond

// Options configures a Store.
type Options struct {
	// Path is the local index file.
	Path string
	// RemoteKey is the object key on the mirror; DefaultRemoteKey if empty.
	RemoteKey string
	// Mirror is optional. Without one the store is local only.
	Mirror Mirror
	Logger *slog.Logger
	Now    func() time.Time
}

// Store persists the index to a local JSON file and optionally mirrors it to a
// remote blob store.
//
// Writers are serialized by an in-process mutex and a cross-process flock on
// "<path>.lock". The local file is replaced by rename, so readers see either
// the previous or the new index, never a partial one.
type Store struct {
	path      string
	remoteKey string
	mirror    Mirror
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	flock *flock.Flock
}

// NewStore creates the index directory if needed and returns a Store.
func NewStore(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.New("index path is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	if opts.RemoteKey == "" {
		opts.RemoteKey = DefaultRemoteKey
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		path:      opts.Path,
		remoteKey: opts.RemoteKey,
		mirror:    opts.Mirror,
		logger:    opts.Logger,
		now:       opts.Now,
		flock:     flock.New(opts.Path + ".lock"),
	}, nil
}

// Path returns the local index file path.
func (s *Store) Path() string { return s.path }

// MirrorName returns the configured mirror backend, or "" when local only.
func (s *Store) MirrorName() string {
	if s.mirror == nil {
		return ""
	}
	return s.mirror.Name()
}

// Load returns the current index. The mirror is preferred when configured
// unless the local file holds a newer version; on any mirror failure the local
// file is used. A remote read that wins also refreshes the local cache.
// Returns ErrIndexNotFound when neither source holds a readable index.
func (s *Store) Load(ctx context.Context) (*index.Index, error) {
	idx, fromRemote, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if fromRemote {
		s.refreshCache(idx)
	}
	return idx, nil
}

// Save persists idx as the next version. idx.Version and idx.UpdatedAt are
// overwritten. A failed local write fails the save; a failed mirror upload is
// only logged.
func (s *Store) Save(ctx context.Context, idx *index.Index) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return s.saveLocked(ctx, idx, s.localVersion())
}

// Update runs fn against the current index (nil when none exists) and saves
// its result, holding the writer lock for the whole load-modify-save cycle.
func (s *Store) Update(ctx context.Context, fn func(current *index.Index) (*index.Index, error)) (*index.Index, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, _, err := s.load(ctx)
	if err != nil && !errors.Is(err, ErrIndexNotFound) {
		return nil, err
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}

	base := s.localVersion()
	if current != nil && current.Version > base {
		base = current.Version
	}
	if err := s.saveLocked(ctx, next, base); err != nil {
		return nil, err
	}
	return next, nil
}

// Health reports whether the local index directory is usable.
func (s *Store) Health(ctx context.Context) error {
	info, err := os.Stat(filepath.Dir(s.path))
	if err != nil {
		return fmt.Errorf("index directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("index directory %s is not a directory", filepath.Dir(s.path))
	}
	return nil
}

// MirrorHealth checks the remote mirror. It returns nil when none is configured.
func (s *Store) MirrorHealth(ctx context.Context) error {
	if s.mirror == nil {
		return nil
	}
	if err := s.mirror.Health(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrMirrorUnreachable, err)
	}
	return nil
}

// MirrorVersion returns the index version held by the mirror, 0 when the
// mirror holds none or none is configured.
func (s *Store) MirrorVersion(ctx context.Context) (int64, error) {
	if s.mirror == nil {
		return 0, nil
	}
	return s.mirror.Version(ctx, s.remoteKey)
}

// Close releases the mirror connection.
func (s *Store) Close() error {
	if s.mirror != nil {
		return s.mirror.Close()
	}
	return nil
}

func (s *Store) lock(ctx context.Context) (func(), error) {
	s.mu.Lock()
	ok, err := s.flock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !ok {
		s.mu.Unlock()
		if err == nil {
			err = errors.New("index lock not acquired")
		}
		return nil, fmt.Errorf("acquire index lock: %w", err)
	}
	return func() {
		if err := s.flock.Unlock(); err != nil {
			s.logger.Warn("Failed to release index lock", "path", s.flock.Path(), "error", err)
		}
		s.mu.Unlock()
	}, nil
}

func (s *Store) load(ctx context.Context) (*index.Index, bool, error) {
	if s.mirror != nil {
		idx, err := s.loadRemote(ctx)
		if err == nil {
			// a save made while the mirror was down is only local until the next upload
			if local, lerr := s.loadLocal(); lerr == nil && local.Version > idx.Version {
				s.logger.Info("Local index newer than mirror, using local",
					"mirror", s.mirror.Name(), "local_version", local.Version, "remote_version", idx.Version)
				return local, false, nil
			}
			return idx, true, nil
		}
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		if errors.Is(err, ErrBlobNotFound) {
			s.logger.Debug("No remote index yet, using local", "mirror", s.mirror.Name())
		} else {
			s.logger.Warn("Failed to load index from mirror, falling back to local",
				"mirror", s.mirror.Name(), "error", err)
		}
	}

	idx, err := s.loadLocal()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Local index unreadable", "path", s.path, "error", err)
		}
		return nil, false, ErrIndexNotFound
	}
	return idx, false, nil
}

func (s *Store) loadRemote(ctx context.Context) (*index.Index, error) {
	data, err := s.mirror.Get(ctx, s.remoteKey)
	if err != nil {
		return nil, err
	}
	return decode(data)
}

func (s *Store) loadLocal() (*index.Index, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	return decode(data)
}

func (s *Store) localVersion() int64 {
	idx, err := s.loadLocal()
	if err != nil {
		return 0
	}
	return idx.Version
}

func (s *Store) saveLocked(ctx context.Context, idx *index.Index, base int64) error {
	idx.Version = base + 1
	idx.UpdatedAt = s.now().UTC()

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	// one retry, then the previous file stays authoritative
	retry := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(100*time.Millisecond), 1), ctx)
	if err := backoff.Retry(func() error { return writeFileAtomic(s.path, data) }, retry); err != nil {
		return fmt.Errorf("write index %s: %w", s.path, err)
	}
	s.logger.Info("Index saved", "path", s.path, "version", idx.Version, "documents", idx.CorpusSize)

	if s.mirror != nil {
		s.upload(ctx, idx)
	}
	return nil
}

func (s *Store) upload(ctx context.Context, idx *index.Index) {
	data, err := json.Marshal(idx)
	if err != nil {
		s.logger.Warn("Failed to encode index for mirror", "error", err)
		return
	}
	if err := s.mirror.Put(ctx, s.remoteKey, data, idx.Version); err != nil {
		s.logger.Warn("Failed to upload index to mirror",
			"mirror", s.mirror.Name(), "key", s.remoteKey, "version", idx.Version, "error", err)
		return
	}
	s.logger.Info("Index uploaded to mirror", "mirror", s.mirror.Name(), "key", s.remoteKey, "version", idx.Version)
}

// refreshCache writes a remotely loaded index to the local file unless a
// writer is active or the local copy is newer.
func (s *Store) refreshCache(idx *index.Index) {
	if !s.mu.TryLock() {
		return
	}
	defer s.mu.Unlock()

	ok, err := s.flock.TryLock()
	if err != nil || !ok {
		return
	}
	defer func() { _ = s.flock.Unlock() }()

	if s.localVersion() > idx.Version {
		return
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err == nil {
		err = writeFileAtomic(s.path, data)
	}
	if err != nil {
		s.logger.Warn("Failed to refresh local index cache", "path", s.path, "error", err)
	}
}

func decode(data []byte) (*index.Index, error) {
	var idx index.Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	if idx.DocumentFrequency == nil {
		idx.DocumentFrequency = map[string]int{}
	}
	if idx.InverseDocumentFrequency == nil {
		idx.InverseDocumentFrequency = map[string]float64{}
	}
	return &idx, nil
}

// writeFileAtomic writes data to a temp file in the target directory, syncs
// it and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
