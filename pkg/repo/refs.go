package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gritvcs/grit/pkg/object"
)

// ErrRefNotFound indicates a ref that does not exist yet (e.g. an unborn
// branch). Not retried; callers decide whether "unborn" is acceptable.
var ErrRefNotFound = errors.New("ref not found")

// ErrRefCycle indicates a symbolic ref chain that revisits a name.
var ErrRefCycle = errors.New("symbolic ref cycle")

// ErrRefCASMismatch reports a lost compare-and-swap race on a ref update.
// Recoverable: re-resolve the ref and retry, or report a rejected push.
var ErrRefCASMismatch = errors.New("ref compare-and-swap mismatch")

var ErrRefUpdatedButReflogAppendFailed = errors.New("ref updated but reflog append failed")

// RefUpdateReflogError indicates the ref file update succeeded, but
// appending the corresponding reflog entry failed.
type RefUpdateReflogError struct {
	Ref     string
	OldHash object.Hash
	NewHash object.Hash
	Err     error
}

func (e *RefUpdateReflogError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("update ref %q: %s (old=%s new=%s): %v",
		e.Ref, ErrRefUpdatedButReflogAppendFailed, e.OldHash, e.NewHash, e.Err)
}

func (e *RefUpdateReflogError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *RefUpdateReflogError) Is(target error) bool {
	return target == ErrRefUpdatedButReflogAppendFailed
}

const (
	symRefPrefix      = "ref: "
	refLockRetryDelay = 5 * time.Millisecond
	refLockWaitLimit  = 2 * time.Second
	maxSymRefDepth    = 16
)

// refFilePath maps a ref name to its file under the grit dir. "HEAD" lives
// at the top level; everything else under refs/.
func (r *Repo) refFilePath(name string) string {
	return filepath.Join(r.GritDir, filepath.FromSlash(name))
}

func normalizeRefName(name string) string {
	name = strings.TrimSpace(name)
	if name == "HEAD" || strings.HasPrefix(name, "refs/") {
		return name
	}
	return "refs/heads/" + name
}

// ResolveRef resolves a ref name to an object hash, following symbolic refs
// to a terminal value. A missing terminal ref yields ErrRefNotFound (unborn
// branch); a chain that revisits a name yields ErrRefCycle.
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	name = normalizeRefName(name)
	visited := make(map[string]struct{})

	for depth := 0; depth <= maxSymRefDepth; depth++ {
		if _, seen := visited[name]; seen {
			return "", fmt.Errorf("resolve ref %q: %w", name, ErrRefCycle)
		}
		visited[name] = struct{}{}

		data, err := os.ReadFile(r.refFilePath(name))
		if err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("resolve ref %q: %w", name, ErrRefNotFound)
			}
			return "", fmt.Errorf("resolve ref %q: %w", name, err)
		}
		content := strings.TrimSpace(string(data))

		if strings.HasPrefix(content, symRefPrefix) {
			name = strings.TrimSpace(strings.TrimPrefix(content, symRefPrefix))
			continue
		}
		if !object.ValidHash(content) {
			return "", fmt.Errorf("resolve ref %q: malformed target %q", name, content)
		}
		return object.Hash(content), nil
	}
	return "", fmt.Errorf("resolve ref %q: %w", name, ErrRefCycle)
}

// ResolveCommit resolves a revision and peels annotated tags until a commit
// hash is reached.
func (r *Repo) ResolveCommit(rev string) (object.Hash, error) {
	h, err := r.RevParse(rev)
	if err != nil {
		return "", err
	}
	for depth := 0; depth <= maxSymRefDepth; depth++ {
		objType, data, err := r.Store.Read(h)
		if err != nil {
			return "", fmt.Errorf("resolve commit %q: %w", rev, err)
		}
		switch objType {
		case object.TypeCommit:
			return h, nil
		case object.TypeTag:
			tag, err := object.UnmarshalTag(data)
			if err != nil {
				return "", fmt.Errorf("resolve commit %q: %w", rev, err)
			}
			h = tag.TargetHash
		default:
			return "", fmt.Errorf("resolve commit %q: %s is a %s, not a commit", rev, h, objType)
		}
	}
	return "", fmt.Errorf("resolve commit %q: tag chain too deep", rev)
}

// UpdateRef writes a hash to the named ref without a CAS guard.
func (r *Repo) UpdateRef(name string, h object.Hash) error {
	return r.UpdateRefCAS(name, h)
}

// UpdateRefCAS writes a hash to the named ref using lockfile + rename
// semantics. This is the sole ref mutation path and the concurrency
// boundary: when expectedOld is given, the update succeeds only if the
// ref's current value matches it, otherwise ErrRefCASMismatch is returned
// and the ref is untouched. An absent ref matches an empty expectedOld.
//
// Reflog append happens after the rename; if it fails the ref update stays
// committed and a RefUpdateReflogError is returned.
func (r *Repo) UpdateRefCAS(name string, h object.Hash, expectedOld ...object.Hash) error {
	if len(expectedOld) > 1 {
		return fmt.Errorf("update ref %q: expected at most one old hash", name)
	}
	name = normalizeRefName(name)
	refPath := r.refFilePath(name)

	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return fmt.Errorf("update ref %q: mkdir: %w", name, err)
	}

	lockPath := refPath + ".lock"
	lockFile, err := acquireRefLock(lockPath)
	if err != nil {
		return fmt.Errorf("update ref %q: lock: %w", name, err)
	}
	cleanupLock := true
	defer func() {
		if lockFile != nil {
			_ = lockFile.Close()
		}
		if cleanupLock {
			_ = os.Remove(lockPath)
		}
	}()

	oldHash, err := readRefHash(refPath)
	if err != nil {
		return fmt.Errorf("update ref %q: read old hash: %w", name, err)
	}
	if len(expectedOld) == 1 && oldHash != expectedOld[0] {
		return fmt.Errorf("update ref %q: %w (expected %s, found %s)",
			name, ErrRefCASMismatch, expectedOld[0], oldHash)
	}

	if _, err := lockFile.WriteString(string(h) + "\n"); err != nil {
		return fmt.Errorf("update ref %q: write: %w", name, err)
	}
	if err := lockFile.Sync(); err != nil {
		return fmt.Errorf("update ref %q: sync: %w", name, err)
	}
	if err := lockFile.Close(); err != nil {
		lockFile = nil
		return fmt.Errorf("update ref %q: close: %w", name, err)
	}
	lockFile = nil

	if err := os.Rename(lockPath, refPath); err != nil {
		return fmt.Errorf("update ref %q: rename: %w", name, err)
	}
	cleanupLock = false

	if err := r.appendReflog(name, oldHash, h, "update"); err != nil {
		return &RefUpdateReflogError{Ref: name, OldHash: oldHash, NewHash: h, Err: err}
	}
	return nil
}

// SetSymbolicRef points name (normally HEAD) at another ref.
func (r *Repo) SetSymbolicRef(name, target string) error {
	target = normalizeRefName(target)
	refPath := r.refFilePath(strings.TrimSpace(name))
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return fmt.Errorf("set symbolic ref %q: mkdir: %w", name, err)
	}
	data := []byte(symRefPrefix + target + "\n")
	if err := atomicWriteFile(filepath.Dir(refPath), refPath, data); err != nil {
		return fmt.Errorf("set symbolic ref %q: %w", name, err)
	}
	return nil
}

// setDetachedHead points HEAD at a raw commit hash.
func (r *Repo) setDetachedHead(h object.Hash) error {
	headPath := filepath.Join(r.GritDir, "HEAD")
	if err := atomicWriteFile(r.GritDir, headPath, []byte(string(h)+"\n")); err != nil {
		return fmt.Errorf("set detached HEAD: %w", err)
	}
	return nil
}

// DeleteRef removes a ref file. Deleting a missing ref is an error.
func (r *Repo) DeleteRef(name string) error {
	name = normalizeRefName(name)
	if err := os.Remove(r.refFilePath(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("delete ref %q: %w", name, ErrRefNotFound)
		}
		return fmt.Errorf("delete ref %q: %w", name, err)
	}
	return nil
}

// ListRefs lists references under refs/, optionally filtered by a prefix
// relative to the refs root (e.g. "heads", "tags/v1"). Names are returned
// relative to the grit dir, e.g. "refs/heads/main".
func (r *Repo) ListRefs(prefix string) (map[string]object.Hash, error) {
	root := filepath.Join(r.GritDir, "refs")
	dir := root
	if strings.TrimSpace(prefix) != "" {
		dir = filepath.Join(root, filepath.FromSlash(prefix))
	}

	refs := make(map[string]object.Hash)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || strings.HasSuffix(path, ".lock") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		content := strings.TrimSpace(string(data))
		if !object.ValidHash(content) {
			// Symbolic refs under refs/ are listed by their resolution.
			if strings.HasPrefix(content, symRefPrefix) {
				return nil
			}
			return fmt.Errorf("ref %q: malformed target %q", rel, content)
		}
		refs["refs/"+filepath.ToSlash(rel)] = object.Hash(content)
		return nil
	})
	if os.IsNotExist(err) {
		return refs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return refs, nil
}

func acquireRefLock(lockPath string) (*os.File, error) {
	deadline := time.Now().Add(refLockWaitLimit)
	for {
		f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if os.IsExist(err) {
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("timeout waiting for lock %q", lockPath)
			}
			time.Sleep(refLockRetryDelay)
			continue
		}
		return nil, err
	}
}

func readRefHash(refPath string) (object.Hash, error) {
	data, err := os.ReadFile(refPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return object.Hash(strings.TrimSpace(string(data))), nil
}
