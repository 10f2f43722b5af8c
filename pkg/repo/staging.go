package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gritvcs/grit/pkg/object"
)

// StagingEntry records the staged state of a single file. For a path left
// conflicted by a merge or rewrite step, Conflict is set and the three
// contributing blob hashes are retained until the user resolves and re-adds
// the file.
type StagingEntry struct {
	Path     string      `json:"path"`
	BlobHash object.Hash `json:"blob_hash"`
	Mode     string      `json:"mode"`
	ModTime  int64       `json:"mod_time"`
	Size     int64       `json:"size"`

	Conflict       bool        `json:"conflict,omitempty"`
	ConflictType   string      `json:"conflict_type,omitempty"`
	BaseBlobHash   object.Hash `json:"base_blob_hash,omitempty"`
	OursBlobHash   object.Hash `json:"ours_blob_hash,omitempty"`
	TheirsBlobHash object.Hash `json:"theirs_blob_hash,omitempty"`
}

// Staging holds the full staging area (index) for a repository.
type Staging struct {
	Entries map[string]*StagingEntry `json:"entries"`
}

func (r *Repo) indexPath() string {
	return filepath.Join(r.GritDir, "index")
}

// ReadStaging loads the staging area from .grit/index. If the file does not
// exist, an empty Staging is returned (no error).
func (r *Repo) ReadStaging() (*Staging, error) {
	data, err := os.ReadFile(r.indexPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Staging{Entries: make(map[string]*StagingEntry)}, nil
		}
		return nil, fmt.Errorf("read staging: %w", err)
	}

	var stg Staging
	if err := json.Unmarshal(data, &stg); err != nil {
		return nil, fmt.Errorf("read staging: unmarshal: %w", err)
	}
	if stg.Entries == nil {
		stg.Entries = make(map[string]*StagingEntry)
	}
	return &stg, nil
}

// WriteStaging atomically writes the staging area to .grit/index.
func (r *Repo) WriteStaging(s *Staging) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("write staging: marshal: %w", err)
	}
	if err := atomicWriteFile(r.GritDir, r.indexPath(), data); err != nil {
		return fmt.Errorf("write staging: %w", err)
	}
	return nil
}

// Add stages the given paths. Each path is resolved relative to the repo
// root; directories are walked recursively. Staging a conflicted path clears
// its conflict record.
func (r *Repo) Add(paths []string) error {
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	for _, p := range paths {
		relPath, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("add: resolve path %q: %w", p, err)
		}

		absPath := filepath.Join(r.RootDir, relPath)
		info, err := os.Stat(absPath)
		if err != nil {
			return fmt.Errorf("add: stat %q: %w", relPath, err)
		}

		if info.IsDir() {
			if err := r.addDir(stg, relPath); err != nil {
				return err
			}
			continue
		}
		if err := r.stageFile(stg, relPath, info); err != nil {
			return err
		}
	}

	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("add: %w", err)
	}
	return nil
}

func (r *Repo) addDir(stg *Staging, relDir string) error {
	root := filepath.Join(r.RootDir, relDir)
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("add: walk %q: %w", relDir, walkErr)
		}
		if d.IsDir() {
			if d.Name() == gritDirName {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(r.RootDir, path)
		if err != nil {
			return fmt.Errorf("add: %w", err)
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("add: stat %q: %w", rel, err)
		}
		return r.stageFile(stg, filepath.ToSlash(rel), info)
	})
}

func (r *Repo) stageFile(stg *Staging, relPath string, info os.FileInfo) error {
	content, err := os.ReadFile(filepath.Join(r.RootDir, relPath))
	if err != nil {
		return fmt.Errorf("add: read %q: %w", relPath, err)
	}

	blobHash, err := object.WriteBlob(r.Store, content)
	if err != nil {
		return fmt.Errorf("add: write blob %q: %w", relPath, err)
	}

	stg.Entries[relPath] = &StagingEntry{
		Path:     relPath,
		BlobHash: blobHash,
		Mode:     modeFromFileInfo(info),
		ModTime:  info.ModTime().Unix(),
		Size:     info.Size(),
	}
	return nil
}

// Remove unstages the given paths. Paths not present in the index are
// ignored.
func (r *Repo) Remove(paths []string) error {
	stg, err := r.ReadStaging()
	if err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	for _, p := range paths {
		relPath, err := r.repoRelPath(p)
		if err != nil {
			return fmt.Errorf("remove: resolve path %q: %w", p, err)
		}
		delete(stg.Entries, relPath)
	}
	if err := r.WriteStaging(stg); err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

// ConflictedPaths returns the sorted paths still marked conflicted in the
// staging area.
func (s *Staging) ConflictedPaths() []string {
	var paths []string
	for p, e := range s.Entries {
		if e.Conflict {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

// stagingFromTree replaces the staging area contents with the flattened
// entries of a tree, clearing any conflict state.
func (r *Repo) stagingFromTree(treeHash object.Hash) (*Staging, error) {
	files, err := r.FlattenTree(treeHash)
	if err != nil {
		return nil, err
	}
	stg := &Staging{Entries: make(map[string]*StagingEntry, len(files))}
	for _, f := range files {
		stg.Entries[f.Path] = &StagingEntry{
			Path:     f.Path,
			BlobHash: f.Hash,
			Mode:     f.Mode,
		}
	}
	return stg, nil
}

// repoRelPath converts a path (absolute, or relative to CWD) into a
// slash-separated path relative to the repository root.
func (r *Repo) repoRelPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(r.RootDir, p)
		if err != nil {
			return "", fmt.Errorf("cannot make %q relative to %q: %w", p, r.RootDir, err)
		}
		return filepath.ToSlash(rel), nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}

	abs := filepath.Join(cwd, p)
	rel, err := filepath.Rel(r.RootDir, abs)
	if err != nil {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}
	if strings.HasPrefix(rel, "..") {
		// Outside the repo root: treat as already repo-relative.
		return filepath.ToSlash(filepath.Clean(p)), nil
	}
	return filepath.ToSlash(rel), nil
}
