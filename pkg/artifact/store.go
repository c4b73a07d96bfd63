// Package artifact stores generated images behind opaque handles. The
// workflow graph only ever holds a Ref; it never reads or frees the bytes.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned for a Ref the store does not hold.
var ErrNotFound = errors.New("artifact not found")

// Ref is an opaque handle to a stored artifact.
type Ref string

// Artifact is a stored blob and its media type.
type Artifact struct {
	Ref      Ref
	MIMEType string
	Data     []byte
}

// Store saves artifacts and resolves refs back to them.
type Store interface {
	Put(ctx context.Context, data []byte, mimeType string) (Ref, error)
	Get(ctx context.Context, ref Ref) (Artifact, error)
}

// MemoryStore keeps artifacts in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[Ref]Artifact
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[Ref]Artifact)}
}

func (s *MemoryStore) Put(_ context.Context, data []byte, mimeType string) (Ref, error) {
	ref := Ref("mem:" + uuid.NewString())
	buf := append([]byte(nil), data...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[ref] = Artifact{Ref: ref, MIMEType: mimeType, Data: buf}
	return ref, nil
}

func (s *MemoryStore) Get(_ context.Context, ref Ref) (Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.items[ref]
	if !ok {
		return Artifact{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return a, nil
}

// DirStore writes each artifact to its own file under Dir. The ref is the
// file name.
type DirStore struct {
	Dir string
}

// NewDirStore creates dir if needed and returns a store rooted there.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact dir: %w", err)
	}
	return &DirStore{Dir: dir}, nil
}

func (s *DirStore) Put(_ context.Context, data []byte, mimeType string) (Ref, error) {
	name := uuid.NewString() + extensionFor(mimeType)
	if err := os.WriteFile(filepath.Join(s.Dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("artifact write: %w", err)
	}
	return Ref(name), nil
}

func (s *DirStore) Get(_ context.Context, ref Ref) (Artifact, error) {
	name := string(ref)
	if name == "" || name != filepath.Base(name) {
		return Artifact{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	data, err := os.ReadFile(filepath.Join(s.Dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Artifact{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return Artifact{}, fmt.Errorf("artifact read: %w", err)
	}
	mt := mime.TypeByExtension(filepath.Ext(name))
	if mt == "" {
		mt = "application/octet-stream"
	}
	return Artifact{Ref: ref, MIMEType: mt, Data: data}, nil
}

// Path returns the file backing ref.
func (s *DirStore) Path(ref Ref) string {
	return filepath.Join(s.Dir, string(ref))
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "text/plain":
		return ".txt"
	}
	return ".bin"
}
