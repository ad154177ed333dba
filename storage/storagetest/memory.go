// Package storagetest provides an in-memory storage.Storage for tests.
package storagetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/assetflow/storage"
)

type memFile struct {
	data    []byte
	modTime time.Time
}

// Memory is a thread-safe in-memory Storage. Uploads are buffered fully
// before they become visible, matching the all-or-nothing contract.
type Memory struct {
	mu      sync.RWMutex
	files   map[string]*memFile
	uploads int

	// FailUpload, when set, is consulted before each upload; a non-nil
	// return fails that upload.
	FailUpload func(path string) error
}

var _ storage.Storage = (*Memory)(nil)

// NewMemory creates an empty in-memory storage.
func NewMemory() *Memory {
	return &Memory{files: make(map[string]*memFile)}
}

func clean(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

func (m *Memory) Upload(ctx context.Context, p string, reader io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if m.FailUpload != nil {
		if err := m.FailUpload(p); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads++
	m.files[clean(p)] = &memFile{data: data, modTime: time.Now()}
	return nil
}

func (m *Memory) Download(_ context.Context, p string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[clean(p)]
	if !ok {
		return nil, fmt.Errorf("storagetest: %s: %w", p, fs.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func (m *Memory) Delete(_ context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := clean(p)
	delete(m.files, key)
	for k := range m.files {
		if strings.HasPrefix(k, key+"/") {
			delete(m.files, k)
		}
	}
	return nil
}

func (m *Memory) Exists(_ context.Context, p string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[clean(p)]
	return ok, nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]storage.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	files := []storage.FileInfo{}
	for k, f := range m.files {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		files = append(files, storage.FileInfo{
			Path:         k,
			Size:         int64(len(f.data)),
			LastModified: f.modTime,
			ContentType:  mime.TypeByExtension(path.Ext(k)),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Get returns a copy of the stored bytes for p.
func (m *Memory) Get(p string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[clean(p)]
	if !ok {
		return nil, false
	}
	return bytes.Clone(f.data), true
}

// Paths returns every stored path, sorted.
func (m *Memory) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.files))
	for k := range m.files {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Uploads reports how many uploads succeeded.
func (m *Memory) Uploads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uploads
}
