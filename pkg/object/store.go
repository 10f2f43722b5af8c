package object

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zlib"
)

// Store is a content-addressed object store. Implementations persist each
// object as deflate-compressed "type len\0content" bytes keyed by the hex
// SHA-256 of the uncompressed envelope, sharded on the first two hex chars.
//
// Writes are idempotent: storing bytes that hash to an existing key is a
// no-op, and concurrent writers of the same hash race harmlessly to the
// same final state. Implementations never expose partially written objects.
type Store interface {
	// Write stores an object and returns its content hash.
	Write(objType Type, data []byte) (Hash, error)
	// Read retrieves an object by hash. It returns ErrNotFound if absent
	// and ErrCorrupt if the stored bytes fail to decode or re-hash.
	Read(h Hash) (Type, []byte, error)
	// Has reports whether the store contains the given hash.
	Has(h Hash) (bool, error)
	// Delete removes an object. Deleting a missing hash is a no-op.
	Delete(h Hash) error
	// List returns all stored hashes with the given hex prefix
	// (empty prefix = everything). Order is unspecified.
	List(prefix string) ([]Hash, error)
	// ModTime returns when the object was stored, used by the garbage
	// collector's grace period.
	ModTime(h Hash) (time.Time, error)
}

// encodeObject builds the "type len\0content" envelope and compresses it.
func encodeObject(objType Type, data []byte) (Hash, []byte, error) {
	h := ComputeHash(objType, data)

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := fmt.Fprintf(zw, "%s %d\x00", objType, len(data)); err != nil {
		zw.Close()
		return "", nil, fmt.Errorf("encode object: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return "", nil, fmt.Errorf("encode object: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", nil, fmt.Errorf("encode object: %w", err)
	}
	return h, buf.Bytes(), nil
}

// decodeObject decompresses raw stored bytes and validates the envelope
// against the requested hash. Any mismatch is corruption, never retried.
func decodeObject(h Hash, raw []byte) (Type, []byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", nil, fmt.Errorf("object %s: inflate: %w: %v", h, ErrCorrupt, err)
	}
	plain, err := io.ReadAll(zr)
	zr.Close()
	if err != nil {
		return "", nil, fmt.Errorf("object %s: inflate: %w: %v", h, ErrCorrupt, err)
	}

	nulIdx := bytes.IndexByte(plain, 0)
	if nulIdx < 0 {
		return "", nil, fmt.Errorf("object %s: no envelope terminator: %w", h, ErrCorrupt)
	}
	header := string(plain[:nulIdx])
	content := plain[nulIdx+1:]

	typeStr, lenStr, ok := strings.Cut(header, " ")
	if !ok {
		return "", nil, fmt.Errorf("object %s: invalid header %q: %w", h, header, ErrCorrupt)
	}
	objType := Type(typeStr)
	switch objType {
	case TypeBlob, TypeTree, TypeCommit, TypeTag:
	default:
		return "", nil, fmt.Errorf("object %s: unknown type %q: %w", h, typeStr, ErrCorrupt)
	}
	length, err := strconv.Atoi(lenStr)
	if err != nil || length != len(content) {
		return "", nil, fmt.Errorf("object %s: length mismatch (header=%q, actual=%d): %w",
			h, lenStr, len(content), ErrCorrupt)
	}

	if got := ComputeHash(objType, content); got != h {
		return "", nil, fmt.Errorf("object %s: hash mismatch (computed %s): %w", h, got, ErrCorrupt)
	}
	return objType, content, nil
}

// ---------------------------------------------------------------------------
// Typed convenience helpers
// ---------------------------------------------------------------------------

// WriteBlob stores raw file content.
func WriteBlob(s Store, data []byte) (Hash, error) {
	return s.Write(TypeBlob, data)
}

// ReadBlob reads raw file content.
func ReadBlob(s Store, h Hash) ([]byte, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != TypeBlob {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, TypeBlob)
	}
	return data, nil
}

// WriteTree serializes and stores a TreeObj.
func WriteTree(s Store, tr *TreeObj) (Hash, error) {
	data, err := MarshalTree(tr)
	if err != nil {
		return "", err
	}
	return s.Write(TypeTree, data)
}

// ReadTree reads and deserializes a TreeObj.
func ReadTree(s Store, h Hash) (*TreeObj, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != TypeTree {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, TypeTree)
	}
	return UnmarshalTree(data)
}

// WriteCommit serializes and stores a CommitObj. The tree and every parent
// must already exist in the store; the commit graph is written
// dependency-first and stays acyclic by construction.
func WriteCommit(s Store, c *CommitObj) (Hash, error) {
	ok, err := s.Has(c.TreeHash)
	if err != nil {
		return "", fmt.Errorf("write commit: check tree %s: %w", c.TreeHash, err)
	}
	if !ok {
		return "", fmt.Errorf("write commit: tree %s: %w", c.TreeHash, ErrNotFound)
	}
	for _, p := range c.Parents {
		ok, err := s.Has(p)
		if err != nil {
			return "", fmt.Errorf("write commit: check parent %s: %w", p, err)
		}
		if !ok {
			return "", fmt.Errorf("write commit: parent %s: %w", p, ErrNotFound)
		}
	}
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a CommitObj.
func ReadCommit(s Store, h Hash) (*CommitObj, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != TypeCommit {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, TypeCommit)
	}
	return UnmarshalCommit(data)
}

// WriteTag serializes and stores a TagObj.
func WriteTag(s Store, t *TagObj) (Hash, error) {
	return s.Write(TypeTag, MarshalTag(t))
}

// ReadTag reads and deserializes a TagObj.
func ReadTag(s Store, h Hash) (*TagObj, error) {
	objType, data, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != TypeTag {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, TypeTag)
	}
	return UnmarshalTag(data)
}
