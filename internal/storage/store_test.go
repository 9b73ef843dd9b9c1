package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/lexrag/internal/index"
)

type fakeMirror struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	versions map[string]int64
	getErr   error
	putErr   error
	puts     int
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{blobs: map[string][]byte{}, versions: map[string]int64{}}
}

func (f *fakeMirror) Name() string { return "fake" }

func (f *fakeMirror) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	b, ok := f.blobs[key]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return b, nil
}

func (f *fakeMirror) Put(_ context.Context, key string, data []byte, version int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	if v, ok := f.versions[key]; ok && v >= version {
		return ErrVersionConflict
	}
	f.blobs[key] = data
	f.versions[key] = version
	return nil
}

func (f *fakeMirror) Version(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return 0, f.getErr
	}
	return f.versions[key], nil
}

func (f *fakeMirror) Health(context.Context) error { return f.getErr }
func (f *fakeMirror) Close() error                 { return nil }

func newTestStore(t *testing.T, mirror Mirror) *Store {
	t.Helper()
	s, err := NewStore(Options{
		Path:   filepath.Join(t.TempDir(), "data", "index.json"),
		Mirror: mirror,
		Now:    func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return s
}

func docsIndex(texts ...string) *index.Index {
	docs := make([]index.Document, len(texts))
	for i, text := range texts {
		docs[i] = index.Document{ID: fmt.Sprintf("d%d", i), Text: text}
	}
	return index.Build(docs)
}

func TestStore_LoadMissing(t *testing.T) {
	s := newTestStore(t, nil)

	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, ErrIndexNotFound)
}

func TestStore_SaveAssignsIncreasingVersions(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	first := docsIndex("red apples")
	require.NoError(t, s.Save(ctx, first))
	assert.Equal(t, int64(1), first.Version)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), first.UpdatedAt)

	second := docsIndex("green pears")
	require.NoError(t, s.Save(ctx, second))
	assert.Equal(t, int64(2), second.Version)

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded.Version)
	require.Len(t, loaded.Documents, 1)
	assert.Equal(t, "green pears", loaded.Documents[0].Text)
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t, nil)
	require.NoError(t, s.Save(context.Background(), docsIndex("one")))

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestStore_CorruptLocalFileIsNotFound(t *testing.T) {
	s := newTestStore(t, nil)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o644))

	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, ErrIndexNotFound)
}

func TestStore_UpdateFromEmpty(t *testing.T) {
	s := newTestStore(t, nil)

	var sawNil bool
	idx, err := s.Update(context.Background(), func(current *index.Index) (*index.Index, error) {
		sawNil = current == nil
		return docsIndex("hello world"), nil
	})
	require.NoError(t, err)
	assert.True(t, sawNil)
	assert.Equal(t, int64(1), idx.Version)
}

func TestStore_UpdateErrorLeavesIndexUntouched(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, docsIndex("keep me")))

	boom := errors.New("boom")
	_, err := s.Update(ctx, func(*index.Index) (*index.Index, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), loaded.Version)
	assert.Equal(t, "keep me", loaded.Documents[0].Text)
}

func TestStore_ConcurrentUpdatesSerialize(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Update(ctx, func(current *index.Index) (*index.Index, error) {
				docs := current.SourceDocuments()
				docs = append(docs, index.Document{ID: fmt.Sprintf("w%d", i), Text: "writer text"})
				return index.Build(docs), nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded.Documents, writers)
	assert.Equal(t, int64(writers), loaded.Version)
}

func TestStore_UploadsToMirror(t *testing.T) {
	m := newFakeMirror()
	s := newTestStore(t, m)

	require.NoError(t, s.Save(context.Background(), docsIndex("mirrored")))

	require.Contains(t, m.blobs, DefaultRemoteKey)
	assert.Equal(t, int64(1), m.versions[DefaultRemoteKey])

	var remote index.Index
	require.NoError(t, json.Unmarshal(m.blobs[DefaultRemoteKey], &remote))
	assert.Equal(t, int64(1), remote.Version)
}

func TestStore_MirrorUploadFailureIsNotFatal(t *testing.T) {
	m := newFakeMirror()
	m.putErr = errors.New("unreachable")
	s := newTestStore(t, m)

	require.NoError(t, s.Save(context.Background(), docsIndex("local only")))
	assert.Equal(t, 1, m.puts)
	assert.FileExists(t, s.Path())
}

func TestStore_LoadPrefersMirrorAndRefreshesCache(t *testing.T) {
	m := newFakeMirror()
	s := newTestStore(t, m)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, docsIndex("local copy")))

	remote := docsIndex("remote copy")
	remote.Version = 7
	data, err := json.Marshal(remote)
	require.NoError(t, err)
	m.blobs[DefaultRemoteKey] = data
	m.versions[DefaultRemoteKey] = 7

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), loaded.Version)
	assert.Equal(t, "remote copy", loaded.Documents[0].Text)

	local, err := s.loadLocal()
	require.NoError(t, err)
	assert.Equal(t, int64(7), local.Version)

	// next save continues from the remote version
	next := docsIndex("after remote")
	require.NoError(t, s.Save(ctx, next))
	assert.Equal(t, int64(8), next.Version)
}

func TestStore_LoadFallsBackToLocal(t *testing.T) {
	m := newFakeMirror()
	s := newTestStore(t, m)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, docsIndex("local copy")))
	m.getErr = errors.New("connection refused")

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "local copy", loaded.Documents[0].Text)
}

func appendDoc(id, text string) func(*index.Index) (*index.Index, error) {
	return func(current *index.Index) (*index.Index, error) {
		var docs []index.Document
		if current != nil {
			docs = current.SourceDocuments()
		}
		return index.Build(append(docs, index.Document{ID: id, Text: text})), nil
	}
}

func TestStore_SaveDuringMirrorOutageSurvivesRecovery(t *testing.T) {
	m := newFakeMirror()
	s := newTestStore(t, m)
	ctx := context.Background()

	_, err := s.Update(ctx, appendDoc("alpha", "alpha text"))
	require.NoError(t, err)

	m.getErr = errors.New("connection refused")
	m.putErr = errors.New("connection refused")
	saved, err := s.Update(ctx, appendDoc("beta", "beta text"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)
	assert.Equal(t, int64(1), m.versions[DefaultRemoteKey])

	m.getErr = nil
	m.putErr = nil

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded.Version)
	assert.Len(t, loaded.Documents, 2)

	next, err := s.Update(ctx, appendDoc("gamma", "gamma text"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), next.Version)

	var ids []string
	for _, d := range next.Documents {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, ids)
	assert.Equal(t, int64(3), m.versions[DefaultRemoteKey])

	v, err := s.MirrorVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}

func TestStore_MirrorVersionWithoutMirror(t *testing.T) {
	s := newTestStore(t, nil)
	v, err := s.MirrorVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestStore_Health(t *testing.T) {
	m := newFakeMirror()
	s := newTestStore(t, m)
	ctx := context.Background()

	assert.NoError(t, s.Health(ctx))
	assert.NoError(t, s.MirrorHealth(ctx))
	assert.Equal(t, "fake", s.MirrorName())

	m.getErr = errors.New("down")
	assert.ErrorIs(t, s.MirrorHealth(ctx), ErrMirrorUnreachable)
}

func TestNewStore_RequiresPath(t *testing.T) {
	_, err := NewStore(Options{})
	assert.Error(t, err)
}
