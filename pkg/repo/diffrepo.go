package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gritvcs/grit/pkg/diff"
	"github.com/gritvcs/grit/pkg/object"
)

// DiffStaged diffs the HEAD tree against the staging area, one FileDiff
// per changed path, sorted by path. Unchanged paths are omitted.
func (r *Repo) DiffStaged(context int) ([]*diff.FileDiff, error) {
	stg, err := r.ReadStaging()
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	headEntries := r.headTreeEntries()

	paths := make(map[string]struct{})
	for p := range headEntries {
		paths[p] = struct{}{}
	}
	for p := range stg.Entries {
		paths[p] = struct{}{}
	}

	var diffs []*diff.FileDiff
	for p := range paths {
		headFile, inHead := headEntries[p]
		se, inStaging := stg.Entries[p]

		var oldData, newData []byte
		oldPath, newPath := "", ""
		if inHead {
			oldPath = p
			oldData, err = object.ReadBlob(r.Store, headFile.Hash)
			if err != nil {
				return nil, fmt.Errorf("diff: read %q: %w", p, err)
			}
		}
		if inStaging {
			newPath = p
			newData, err = object.ReadBlob(r.Store, se.BlobHash)
			if err != nil {
				return nil, fmt.Errorf("diff: read staged %q: %w", p, err)
			}
		}
		if inHead && inStaging && headFile.Hash == se.BlobHash {
			continue
		}

		diffs = append(diffs, diff.File(oldPath, newPath, oldData, newData, context))
	}

	sortFileDiffs(diffs)
	return diffs, nil
}

// DiffWorktree diffs the staging area against the working tree.
func (r *Repo) DiffWorktree(context int) ([]*diff.FileDiff, error) {
	stg, err := r.ReadStaging()
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	workFiles, err := r.worktreeFiles()
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}

	paths := make(map[string]struct{})
	for p := range stg.Entries {
		paths[p] = struct{}{}
	}
	for p := range workFiles {
		paths[p] = struct{}{}
	}

	var diffs []*diff.FileDiff
	for p := range paths {
		se, inStaging := stg.Entries[p]
		_, onDisk := workFiles[p]
		if !inStaging {
			// Untracked files are status territory, not diff output.
			continue
		}

		oldData, err := object.ReadBlob(r.Store, se.BlobHash)
		if err != nil {
			return nil, fmt.Errorf("diff: read staged %q: %w", p, err)
		}

		var newData []byte
		newPath := ""
		if onDisk {
			newPath = p
			newData, err = os.ReadFile(filepath.Join(r.RootDir, filepath.FromSlash(p)))
			if err != nil {
				return nil, fmt.Errorf("diff: read %q: %w", p, err)
			}
			if object.ComputeHash(object.TypeBlob, newData) == se.BlobHash {
				continue
			}
		}

		diffs = append(diffs, diff.File(p, newPath, oldData, newData, context))
	}

	sortFileDiffs(diffs)
	return diffs, nil
}

// DiffCommits diffs the trees of two commits.
func (r *Repo) DiffCommits(oldRev, newRev string, context int) ([]*diff.FileDiff, error) {
	oldHash, err := r.ResolveCommit(oldRev)
	if err != nil {
		return nil, fmt.Errorf("diff: resolve %q: %w", oldRev, err)
	}
	newHash, err := r.ResolveCommit(newRev)
	if err != nil {
		return nil, fmt.Errorf("diff: resolve %q: %w", newRev, err)
	}

	oldTree, err := r.commitTreeHash(oldHash)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	newTree, err := r.commitTreeHash(newHash)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}

	oldFiles, err := r.treeFileMap(oldTree)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}
	newFiles, err := r.treeFileMap(newTree)
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}

	paths := make(map[string]struct{})
	for p := range oldFiles {
		paths[p] = struct{}{}
	}
	for p := range newFiles {
		paths[p] = struct{}{}
	}

	var diffs []*diff.FileDiff
	for p := range paths {
		of, inOld := oldFiles[p]
		nf, inNew := newFiles[p]
		if inOld && inNew && of.Hash == nf.Hash {
			continue
		}

		var oldData, newData []byte
		oldPath, newPath := "", ""
		if inOld {
			oldPath = p
			oldData, err = object.ReadBlob(r.Store, of.Hash)
			if err != nil {
				return nil, fmt.Errorf("diff: read %q: %w", p, err)
			}
		}
		if inNew {
			newPath = p
			newData, err = object.ReadBlob(r.Store, nf.Hash)
			if err != nil {
				return nil, fmt.Errorf("diff: read %q: %w", p, err)
			}
		}
		diffs = append(diffs, diff.File(oldPath, newPath, oldData, newData, context))
	}

	sortFileDiffs(diffs)
	return diffs, nil
}

func sortFileDiffs(diffs []*diff.FileDiff) {
	sort.Slice(diffs, func(i, j int) bool {
		return diffPathKey(diffs[i]) < diffPathKey(diffs[j])
	})
}

func diffPathKey(d *diff.FileDiff) string {
	if d.NewPath != "" {
		return d.NewPath
	}
	return d.OldPath
}
