package object

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FSStore is a loose-object store on the local filesystem with a
// two-character fan-out directory layout: objects/ab/cdef0123...
type FSStore struct {
	root string
}

// NewFSStore creates a store rooted at the given directory (typically the
// repository's .grit dir). The objects/ subdirectory is created lazily on
// first write.
func NewFSStore(root string) *FSStore {
	return &FSStore{root: root}
}

func (s *FSStore) objectPath(h Hash) string {
	return filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash.
func (s *FSStore) Has(h Hash) (bool, error) {
	if !ValidHash(string(h)) {
		return false, nil
	}
	_, err := os.Stat(s.objectPath(h))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("object stat %s: %w", h, err)
}

// Write stores an object and returns its content hash. Data is written to a
// temp file and renamed into place, so concurrent writers of the same hash
// settle on identical bytes and a partially written object is never visible.
func (s *FSStore) Write(objType Type, data []byte) (Hash, error) {
	h, raw, err := encodeObject(objType, data)
	if err != nil {
		return "", err
	}

	// Fast path: content-addressing makes rewrites a no-op.
	if ok, err := s.Has(h); err != nil {
		return "", err
	} else if ok {
		return h, nil
	}

	dir := filepath.Join(s.root, "objects", string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("object write mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("object write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write close: %w", err)
	}

	if err := os.Rename(tmpName, s.objectPath(h)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write rename: %w", err)
	}
	return h, nil
}

// Read retrieves an object by hash, returning its type and raw content.
func (s *FSStore) Read(h Hash) (Type, []byte, error) {
	if !ValidHash(string(h)) {
		return "", nil, fmt.Errorf("object read %q: %w", h, ErrNotFound)
	}
	raw, err := os.ReadFile(s.objectPath(h))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
		}
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	return decodeObject(h, raw)
}

// Delete removes an object. Missing objects are a no-op.
func (s *FSStore) Delete(h Hash) error {
	if !ValidHash(string(h)) {
		return nil
	}
	if err := os.Remove(s.objectPath(h)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("object delete %s: %w", h, err)
	}
	return nil
}

// List returns all stored hashes matching the given hex prefix.
func (s *FSStore) List(prefix string) ([]Hash, error) {
	objectsDir := filepath.Join(s.root, "objects")
	shards, err := os.ReadDir(objectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("object list: %w", err)
	}

	var out []Hash
	for _, shard := range shards {
		if !shard.IsDir() || len(shard.Name()) != 2 {
			continue
		}
		if len(prefix) >= 2 && shard.Name() != prefix[:2] {
			continue
		}
		if len(prefix) == 1 && !strings.HasPrefix(shard.Name(), prefix) {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(objectsDir, shard.Name()))
		if err != nil {
			return nil, fmt.Errorf("object list shard %s: %w", shard.Name(), err)
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			h := Hash(shard.Name() + e.Name())
			if !ValidHash(string(h)) {
				continue
			}
			if prefix != "" && !strings.HasPrefix(string(h), prefix) {
				continue
			}
			out = append(out, h)
		}
	}
	return out, nil
}

// ModTime returns the object file's modification time.
func (s *FSStore) ModTime(h Hash) (time.Time, error) {
	if !ValidHash(string(h)) {
		return time.Time{}, fmt.Errorf("object stat %q: %w", h, ErrNotFound)
	}
	info, err := os.Stat(s.objectPath(h))
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, fmt.Errorf("object stat %s: %w", h, ErrNotFound)
		}
		return time.Time{}, fmt.Errorf("object stat %s: %w", h, err)
	}
	return info.ModTime(), nil
}
