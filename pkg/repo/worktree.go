package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gritvcs/grit/pkg/object"
)

// Checkout switches the working directory to the state of the target,
// which can be a branch name or a raw commit hash. The working tree must
// be clean.
func (r *Repo) Checkout(target string) error {
	if err := r.ensureClean(); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	isBranch := false
	var targetHash object.Hash
	if branchHash, err := r.ResolveRef("refs/heads/" + target); err == nil {
		targetHash = branchHash
		isBranch = true
	} else {
		resolved, err := r.ResolveCommit(target)
		if err != nil {
			return fmt.Errorf("checkout: resolve %q: %w", target, err)
		}
		targetHash = resolved
	}

	commit, err := object.ReadCommit(r.Store, targetHash)
	if err != nil {
		return fmt.Errorf("checkout: cannot read commit %s: %w", targetHash, err)
	}

	if err := r.resetWorktree(commit.TreeHash); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	if isBranch {
		if err := r.SetSymbolicRef("HEAD", "refs/heads/"+target); err != nil {
			return fmt.Errorf("checkout: update HEAD: %w", err)
		}
	} else {
		if err := r.setDetachedHead(targetHash); err != nil {
			return fmt.Errorf("checkout: update HEAD: %w", err)
		}
	}
	return nil
}

// resetWorktree replaces all tracked files in the working directory with
// the contents of the given tree and rewrites the staging area to match.
func (r *Repo) resetWorktree(treeHash object.Hash) error {
	targetFiles, err := r.FlattenTree(treeHash)
	if err != nil {
		return fmt.Errorf("flatten target tree: %w", err)
	}

	for path := range r.trackedFiles() {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))
		if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %q: %w", path, err)
		}
		r.removeEmptyParents(filepath.Dir(absPath))
	}

	for _, f := range targetFiles {
		if err := r.writeWorktreeBlob(f.Path, f.Hash, f.Mode); err != nil {
			return err
		}
	}

	stg := &Staging{Entries: make(map[string]*StagingEntry, len(targetFiles))}
	for _, f := range targetFiles {
		absPath := filepath.Join(r.RootDir, filepath.FromSlash(f.Path))
		info, err := os.Stat(absPath)
		if err != nil {
			return fmt.Errorf("stat %q: %w", f.Path, err)
		}
		stg.Entries[f.Path] = &StagingEntry{
			Path:     f.Path,
			BlobHash: f.Hash,
			Mode:     normalizeFileMode(f.Mode),
			ModTime:  info.ModTime().Unix(),
			Size:     info.Size(),
		}
	}
	return r.WriteStaging(stg)
}

// writeWorktreeBlob materializes one blob at the given repo-relative path.
func (r *Repo) writeWorktreeBlob(path string, blobHash object.Hash, mode string) error {
	absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return fmt.Errorf("mkdir for %q: %w", path, err)
	}
	data, err := object.ReadBlob(r.Store, blobHash)
	if err != nil {
		return fmt.Errorf("read blob for %q: %w", path, err)
	}
	if err := os.WriteFile(absPath, data, filePermFromMode(mode)); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}

// writeWorktreeFile writes raw bytes at the given repo-relative path,
// creating parent directories as needed.
func (r *Repo) writeWorktreeFile(path string, data []byte, mode string) error {
	absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return fmt.Errorf("mkdir for %q: %w", path, err)
	}
	if err := os.WriteFile(absPath, data, filePermFromMode(mode)); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}

// removeWorktreeFile removes a tracked file and any newly empty parents.
func (r *Repo) removeWorktreeFile(path string) error {
	absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))
	if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %q: %w", path, err)
	}
	r.removeEmptyParents(filepath.Dir(absPath))
	return nil
}

// ensureClean checks that the working tree has no uncommitted changes.
func (r *Repo) ensureClean() error {
	entries, err := r.Status()
	if err != nil {
		return fmt.Errorf("check status: %w", err)
	}
	for _, e := range entries {
		if e.IndexStatus != StatusClean || e.WorkStatus != StatusClean {
			return fmt.Errorf("working tree is not clean (file %q has uncommitted changes)", e.Path)
		}
	}
	return nil
}

// trackedFiles merges paths from the HEAD tree and the staging index.
func (r *Repo) trackedFiles() map[string]bool {
	files := make(map[string]bool)

	if headHash, err := r.ResolveRef("HEAD"); err == nil {
		if treeHash, err := r.commitTreeHash(headHash); err == nil {
			if m, err := r.treeFileMap(treeHash); err == nil {
				for path := range m {
					files[path] = true
				}
			}
		}
	}

	if stg, err := r.ReadStaging(); err == nil {
		for path := range stg.Entries {
			files[path] = true
		}
	}
	return files
}

// removeEmptyParents removes empty directories up to (but not including)
// the repository root.
func (r *Repo) removeEmptyParents(dir string) {
	for {
		if dir == r.RootDir || !strings.HasPrefix(dir, r.RootDir) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		os.Remove(dir)
		dir = filepath.Dir(dir)
	}
}
