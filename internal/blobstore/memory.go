package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"fileshare/internal/fileshare"
)

const memoryScheme = "mem://"

type memoryBlob struct {
	data       []byte
	modifiedAt time.Time
}

// MemoryStore keeps blobs in memory. It is safe for concurrent use and is
// meant for tests and throwaway servers.
type MemoryStore struct {
	clock fileshare.Clock
	mu    sync.RWMutex
	blobs map[string]memoryBlob // storage path -> blob
}

// NewMemoryStore creates an empty MemoryStore. Modification times come from
// clock, or the wall clock when clock is nil.
func NewMemoryStore(clock fileshare.Clock) *MemoryStore {
	if clock == nil {
		clock = fileshare.RealClock{}
	}
	return &MemoryStore{
		clock: clock,
		blobs: make(map[string]memoryBlob),
	}
}

func (m *MemoryStore) Write(ctx context.Context, name string, r io.Reader) (string, int64, error) {
	if err := validName(name); err != nil {
		return "", 0, err
	}

	data, err := io.ReadAll(contextReader{ctx: ctx, r: r})
	if err != nil {
		return "", 0, fmt.Errorf("failed to read content: %w", err)
	}

	path := memoryScheme + name

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[path] = memoryBlob{data: data, modifiedAt: m.clock.Now()}

	return path, int64(len(data)), nil
}

func (m *MemoryStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", fileshare.ErrBlobNotFound, path)
	}
	// The slice is never mutated after Write, so readers can share it.
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

func (m *MemoryStore) Remove(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blobs[path]; !ok {
		return fmt.Errorf("%w: %s", fileshare.ErrBlobNotFound, path)
	}
	delete(m.blobs, path)
	return nil
}

// List returns the blobs ordered by path.
func (m *MemoryStore) List(ctx context.Context) ([]fileshare.BlobInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blobs := make([]fileshare.BlobInfo, 0, len(m.blobs))
	for path, b := range m.blobs {
		blobs = append(blobs, fileshare.BlobInfo{
			Path:       path,
			Name:       strings.TrimPrefix(path, memoryScheme),
			ModifiedAt: b.modifiedAt,
		})
	}
	sort.Slice(blobs, func(i, j int) bool { return blobs[i].Path < blobs[j].Path })
	return blobs, nil
}

func (m *MemoryStore) ValidateSetup(ctx context.Context) error {
	return nil
}

// Len returns the number of stored blobs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// Compile-time check that MemoryStore implements fileshare.BlobStore
var _ fileshare.BlobStore = (*MemoryStore)(nil)
