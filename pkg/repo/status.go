package repo

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/gritvcs/grit/pkg/object"
)

// FileStatus represents the state of a file in the working tree or index.
type FileStatus int

const (
	StatusClean     FileStatus = iota // file matches between compared areas
	StatusNew                         // in staging, not in HEAD tree
	StatusModified                    // in staging, different from HEAD
	StatusConflict                    // file has unresolved merge conflicts in index
	StatusDeleted                     // in HEAD but not in staging (or staged but gone on disk)
	StatusUntracked                   // in working dir but not in staging
	StatusDirty                       // staged but working copy differs from staged
)

// StatusEntry records the status of a single file.
type StatusEntry struct {
	Path        string     // repo-relative path
	IndexStatus FileStatus // staging vs HEAD comparison
	WorkStatus  FileStatus // working tree vs staging comparison
}

// Status computes the working tree status: each tracked or untracked file
// with its staging-vs-HEAD and worktree-vs-staging state, sorted by path.
func (r *Repo) Status() ([]StatusEntry, error) {
	stg, err := r.ReadStaging()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	workFiles, err := r.worktreeFiles()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	result := make(map[string]*StatusEntry)

	for path := range workFiles {
		se, inStaging := stg.Entries[path]
		if !inStaging {
			result[path] = &StatusEntry{
				Path:        path,
				IndexStatus: StatusUntracked,
				WorkStatus:  StatusUntracked,
			}
			continue
		}
		if se.Conflict {
			result[path] = &StatusEntry{Path: path, WorkStatus: StatusConflict}
			continue
		}

		workStatus, err := r.compareWorktreeEntry(path, se)
		if err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
		result[path] = &StatusEntry{Path: path, WorkStatus: workStatus}
	}

	for path, se := range stg.Entries {
		if _, onDisk := workFiles[path]; onDisk {
			continue
		}
		entry, exists := result[path]
		if !exists {
			entry = &StatusEntry{Path: path}
			result[path] = entry
		}
		if se.Conflict {
			entry.WorkStatus = StatusConflict
		} else {
			entry.WorkStatus = StatusDeleted
		}
	}

	headEntries := r.headTreeEntries()
	for path, se := range stg.Entries {
		entry, exists := result[path]
		if !exists {
			entry = &StatusEntry{Path: path}
			result[path] = entry
		}

		headFile, inHead := headEntries[path]
		switch {
		case se.Conflict:
			entry.IndexStatus = StatusConflict
		case !inHead:
			entry.IndexStatus = StatusNew
		case se.BlobHash != headFile.Hash || normalizeFileMode(se.Mode) != normalizeFileMode(headFile.Mode):
			entry.IndexStatus = StatusModified
		default:
			entry.IndexStatus = StatusClean
		}
	}

	for path := range headEntries {
		if _, inStaging := stg.Entries[path]; inStaging {
			continue
		}
		entry, exists := result[path]
		if !exists {
			entry = &StatusEntry{Path: path}
			result[path] = entry
		}
		entry.IndexStatus = StatusDeleted
	}

	entries := make([]StatusEntry, 0, len(result))
	for _, e := range result {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
	return entries, nil
}

// compareWorktreeEntry compares an on-disk file against its staged entry,
// using stat metadata as a fast path before rehashing content.
func (r *Repo) compareWorktreeEntry(path string, se *StagingEntry) (FileStatus, error) {
	absPath := filepath.Join(r.RootDir, filepath.FromSlash(path))
	info, err := os.Stat(absPath)
	if err != nil {
		return StatusClean, fmt.Errorf("stat %q: %w", path, err)
	}

	workMode := modeFromFileInfo(info)
	if info.ModTime().Unix() == se.ModTime && info.Size() == se.Size && workMode == normalizeFileMode(se.Mode) {
		return StatusClean, nil
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return StatusClean, fmt.Errorf("read %q: %w", path, err)
	}
	if object.ComputeHash(object.TypeBlob, content) != se.BlobHash || workMode != normalizeFileMode(se.Mode) {
		return StatusDirty, nil
	}
	return StatusClean, nil
}

// worktreeFiles walks the working directory, returning the set of
// repo-relative file paths. The repository directory itself is skipped.
func (r *Repo) worktreeFiles() (map[string]bool, error) {
	files := make(map[string]bool)
	if r.Bare() {
		return files, nil
	}
	err := filepath.WalkDir(r.RootDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(r.RootDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if d.Name() == gritDirName {
				return fs.SkipDir
			}
			return nil
		}
		files[rel] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk worktree: %w", err)
	}
	return files, nil
}

// headTreeEntries reads the HEAD commit's tree and flattens it into a
// path-keyed map. A fresh repo with no commits yields an empty map.
func (r *Repo) headTreeEntries() map[string]TreeFileEntry {
	headHash, err := r.ResolveRef("HEAD")
	if err != nil {
		return map[string]TreeFileEntry{}
	}
	treeHash, err := r.commitTreeHash(headHash)
	if err != nil {
		return map[string]TreeFileEntry{}
	}
	m, err := r.treeFileMap(treeHash)
	if err != nil {
		return map[string]TreeFileEntry{}
	}
	return m
}
