package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// DefaultQdrantCollection is the collection holding mirrored index blobs.
const DefaultQdrantCollection = "lexrag_index"

// QdrantMirror keeps index blobs in the payload of one point per key.
// Points carry no vectors; the collection exists only as durable storage.
type QdrantMirror struct {
	client     *qdrant.Client
	collection string
	host       string
	port       int
}

// NewQdrantMirror connects to Qdrant over gRPC and ensures the collection
// exists. It performs a health check with retry on startup and fails fast if
// Qdrant is unreachable.
func NewQdrantMirror(ctx context.Context, host string, port int, collection string) (*QdrantMirror, error) {
	if collection == "" {
		collection = DefaultQdrantCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	m := &QdrantMirror{
		client:     client,
		collection: collection,
		host:       host,
		port:       port,
	}

	if err := m.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrMirrorUnreachable, err)
	}

	if err := m.EnsureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return m, nil
}

// Name implements Mirror.
func (m *QdrantMirror) Name() string { return "qdrant" }

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (m *QdrantMirror) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error {
		return m.Health(ctx)
	}, backoff.WithContext(newRetryBackOff(), ctx))
}

// Health performs a single health check against Qdrant.
func (m *QdrantMirror) Health(ctx context.Context) error {
	result, err := m.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}

	return nil
}

// EnsureCollection creates the blob collection if it does not exist.
// Idempotent - safe to call multiple times.
func (m *QdrantMirror) EnsureCollection(ctx context.Context) error {
	collections, err := m.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, name := range collections {
		if name == m.collection {
			return nil
		}
	}

	// Qdrant requires a vector config; points are stored with an empty vector map.
	err = m.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: m.collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			"content": {
				Size:     1,
				Distance: qdrant.Distance_Cosine,
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	_, err = m.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: m.collection,
		FieldName:      "key",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create index for field key: %w", err)
	}

	return nil
}

// Get returns the blob stored under key, or ErrBlobNotFound.
func (m *QdrantMirror) Get(ctx context.Context, key string) ([]byte, error) {
	data, _, err := m.get(ctx, key)
	return data, err
}

// Put stores data under key if version is newer than the stored version.
// The compare and the upsert are separate calls, so two writers racing on the
// same key can both succeed; the store's file lock is what serializes writers.
func (m *QdrantMirror) Put(ctx context.Context, key string, data []byte, version int64) error {
	_, current, err := m.get(ctx, key)
	switch {
	case err == nil:
		if current >= version {
			return fmt.Errorf("%w: stored %d, put %d", ErrVersionConflict, current, version)
		}
	case !errors.Is(err, ErrBlobNotFound):
		return err
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(pointID(key)),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{}),
		Payload: qdrant.NewValueMap(map[string]any{
			"key":        key,
			"version":    version,
			"data":       string(data),
			"updated_at": time.Now().UTC().Format(time.RFC3339),
		}),
	}
	return m.upsertWithRetry(ctx, []*qdrant.PointStruct{point})
}

// Version returns the stored version of key, 0 when absent.
func (m *QdrantMirror) Version(ctx context.Context, key string) (int64, error) {
	_, v, err := m.get(ctx, key)
	if errors.Is(err, ErrBlobNotFound) {
		return 0, nil
	}
	return v, err
}

// Close closes the Qdrant client connection.
func (m *QdrantMirror) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

func (m *QdrantMirror) get(ctx context.Context, key string) ([]byte, int64, error) {
	result, err := m.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: m.collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(pointID(key))},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get blob: %w", err)
	}

	if len(result) == 0 {
		return nil, 0, ErrBlobNotFound
	}

	payload := result[0].Payload
	data, ok := payload["data"]
	if !ok {
		return nil, 0, ErrBlobNotFound
	}
	return []byte(data.GetStringValue()), payload["version"].GetIntegerValue(), nil
}

// upsertWithRetry performs upsert operation with exponential backoff retry.
func (m *QdrantMirror) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	operation := func() error {
		_, err := m.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: m.collection,
			Points:         points,
		})
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(newRetryBackOff(), ctx))
}

// pointID derives a stable point UUID from a blob key.
func pointID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("lexrag:"+key)).String()
}

func newRetryBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}
