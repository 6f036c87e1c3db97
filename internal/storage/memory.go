package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

var _ ObjectStore = (*MemoryStore)(nil)

var errInjectedFailure = errors.New("injected put failure")

// MemoryStore is an in-process ObjectStore for development and tests.
// FailPuts makes the next n Put calls fail.
type MemoryStore struct {
	mu       sync.Mutex
	objects  map[string]memoryObject
	failures int
	puts     int
}

type memoryObject struct {
	data     []byte
	modified time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func (m *MemoryStore) FailPuts(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = n
}

// PutCalls reports how many Put calls were made, failed ones included.
func (m *MemoryStore) PutCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

func (m *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	m.mu.Lock()
	m.puts++
	if m.failures != 0 {
		if m.failures > 0 {
			m.failures--
		}
		m.mu.Unlock()
		return errInjectedFailure
	}
	m.mu.Unlock()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return fmt.Errorf("read object body: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: buf.Bytes(), modified: time.Now().UTC()}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return bytes.Clone(obj.data), nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var objects []ObjectInfo
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, ObjectInfo{Key: key, SizeBytes: int64(len(obj.data)), LastModified: obj.modified})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}
