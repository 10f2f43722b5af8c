package repo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gritvcs/grit/pkg/diff"
	"github.com/gritvcs/grit/pkg/diff3"
	"github.com/gritvcs/grit/pkg/object"
)

// Conflict classification for a single path.
const (
	ConflictContent      = "content"
	ConflictAddAdd       = "add/add"
	ConflictDeleteModify = "delete/modify"
	ConflictBinary       = "binary"
)

// Conflict records one unresolved path from a tree-level merge. A deleted
// side has an empty blob hash.
type Conflict struct {
	Path       string
	Type       string
	BaseHash   object.Hash
	OursHash   object.Hash
	TheirsHash object.Hash
}

// MergeResult reports the outcome of Merge.
type MergeResult struct {
	CommitHash      object.Hash
	FastForward     bool
	AlreadyUpToDate bool
	Conflicts       []Conflict
}


// Merge merges the named revision into the current branch.
//
// When HEAD is an ancestor of theirs the branch fast-forwards without a
// merge commit. When theirs is already reachable from HEAD nothing happens.
// Otherwise the trees are merged three-way against the merge base: a clean
// merge commits immediately with both parents, while conflicts leave marker
// files in the working tree and a persisted merge state for
// Continue/Abort.
func (r *Repo) Merge(rev, author string) (*MergeResult, error) {
	if st, _ := r.readOpState(); st != nil {
		return nil, fmt.Errorf("merge: %w (%s)", ErrOperationInProgress, st.Kind)
	}
	if err := r.ensureClean(); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	oursHash, err := r.ResolveRef("HEAD")
	if err != nil {
		return nil, fmt.Errorf("merge: resolve HEAD: %w", err)
	}
	theirsHash, err := r.ResolveCommit(rev)
	if err != nil {
		return nil, fmt.Errorf("merge: resolve %q: %w", rev, err)
	}

	baseHash, err := r.FindMergeBase(oursHash, theirsHash)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	if baseHash == theirsHash || oursHash == theirsHash {
		return &MergeResult{CommitHash: oursHash, AlreadyUpToDate: true}, nil
	}
	if baseHash == oursHash {
		return r.fastForward(oursHash, theirsHash)
	}

	baseTree, err := r.commitTreeHash(baseHash)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	oursTree, err := r.commitTreeHash(oursHash)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	theirsTree, err := r.commitTreeHash(theirsHash)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	stg, conflicts, err := r.MergeTrees(baseTree, oursTree, theirsTree)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	if len(conflicts) == 0 {
		hash, err := r.commitMerge(stg, oursHash, theirsHash, author,
			fmt.Sprintf("Merge %s", rev))
		if err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		return &MergeResult{CommitHash: hash}, nil
	}

	if err := r.materializeMerge(stg); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	state := &opState{
		Kind:       opMerge,
		OrigHead:   oursHash,
		TheirsHash: theirsHash,
		MergeRev:   rev,
		Author:     author,
		Conflicted: conflictPaths(conflicts),
	}
	if err := r.writeOpState(state); err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	return &MergeResult{Conflicts: conflicts}, nil
}

func (r *Repo) fastForward(oursHash, theirsHash object.Hash) (*MergeResult, error) {
	theirsTree, err := r.commitTreeHash(theirsHash)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if err := r.resetWorktree(theirsTree); err != nil {
		return nil, fmt.Errorf("merge: fast-forward worktree: %w", err)
	}
	if err := r.advanceHead(theirsHash, oursHash); err != nil {
		return nil, fmt.Errorf("merge: fast-forward: %w", err)
	}
	return &MergeResult{CommitHash: theirsHash, FastForward: true}, nil
}

// MergeTrees performs a three-way merge of the given trees. It returns a
// staging area containing the merged entries (conflicted paths carry
// marker content and a conflict record) plus the sorted conflict list.
// Only object reads and blob writes touch the store; nothing is committed.
func (r *Repo) MergeTrees(baseTree, oursTree, theirsTree object.Hash) (*Staging, []Conflict, error) {
	base, err := r.treeFileMap(baseTree)
	if err != nil {
		return nil, nil, err
	}
	ours, err := r.treeFileMap(oursTree)
	if err != nil {
		return nil, nil, err
	}
	theirs, err := r.treeFileMap(theirsTree)
	if err != nil {
		return nil, nil, err
	}

	paths := make(map[string]struct{})
	for p := range base {
		paths[p] = struct{}{}
	}
	for p := range ours {
		paths[p] = struct{}{}
	}
	for p := range theirs {
		paths[p] = struct{}{}
	}

	stg := &Staging{Entries: make(map[string]*StagingEntry)}
	var conflicts []Conflict

	for p := range paths {
		b, inBase := base[p]
		o, inOurs := ours[p]
		t, inTheirs := theirs[p]

		entry, conflict, err := r.mergePath(p, b, o, t, inBase, inOurs, inTheirs)
		if err != nil {
			return nil, nil, fmt.Errorf("merge %q: %w", p, err)
		}
		if entry != nil {
			stg.Entries[p] = entry
		}
		if conflict != nil {
			conflicts = append(conflicts, *conflict)
		}
	}

	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].Path < conflicts[j].Path
	})
	return stg, conflicts, nil
}

// mergePath resolves one path of a three-way tree merge. A nil entry means
// the path is absent from the merged tree.
func (r *Repo) mergePath(p string, b, o, t TreeFileEntry, inBase, inOurs, inTheirs bool) (*StagingEntry, *Conflict, error) {
	switch {
	case !inBase && inOurs && !inTheirs:
		// Added on our side only.
		return cleanEntry(p, o), nil, nil

	case !inBase && !inOurs && inTheirs:
		// Added on their side only.
		return cleanEntry(p, t), nil, nil

	case !inBase && inOurs && inTheirs:
		if o.Hash == t.Hash {
			return cleanEntry(p, o), nil, nil
		}
		return r.conflictEntry(p, ConflictAddAdd, TreeFileEntry{}, o, t)

	case inBase && !inOurs && !inTheirs:
		// Deleted on both sides.
		return nil, nil, nil

	case inBase && !inOurs && inTheirs:
		if b.Hash == t.Hash {
			// They kept it unchanged, we deleted it.
			return nil, nil, nil
		}
		return r.conflictEntry(p, ConflictDeleteModify, b, TreeFileEntry{}, t)

	case inBase && inOurs && !inTheirs:
		if b.Hash == o.Hash {
			return nil, nil, nil
		}
		return r.conflictEntry(p, ConflictDeleteModify, b, o, TreeFileEntry{})

	default:
		// Present everywhere.
		if o.Hash == t.Hash {
			return cleanEntry(p, o), nil, nil
		}
		if b.Hash == o.Hash {
			return cleanEntry(p, t), nil, nil
		}
		if b.Hash == t.Hash {
			return cleanEntry(p, o), nil, nil
		}
		return r.mergeContent(p, b, o, t)
	}
}

// mergeContent runs the line-level three-way merge for a path modified on
// both sides.
func (r *Repo) mergeContent(p string, b, o, t TreeFileEntry) (*StagingEntry, *Conflict, error) {
	baseData, err := object.ReadBlob(r.Store, b.Hash)
	if err != nil {
		return nil, nil, err
	}
	oursData, err := object.ReadBlob(r.Store, o.Hash)
	if err != nil {
		return nil, nil, err
	}
	theirsData, err := object.ReadBlob(r.Store, t.Hash)
	if err != nil {
		return nil, nil, err
	}

	if diff.IsBinary(baseData) || diff.IsBinary(oursData) || diff.IsBinary(theirsData) {
		return r.conflictEntry(p, ConflictBinary, b, o, t)
	}

	res := diff3.Merge(baseData, oursData, theirsData)
	mode := mergedMode(b.Mode, o.Mode, t.Mode)

	mergedHash, err := object.WriteBlob(r.Store, res.Merged)
	if err != nil {
		return nil, nil, err
	}
	entry := &StagingEntry{Path: p, BlobHash: mergedHash, Mode: mode}
	if !res.HasConflicts {
		return entry, nil, nil
	}

	entry.Conflict = true
	entry.ConflictType = ConflictContent
	entry.BaseBlobHash = b.Hash
	entry.OursBlobHash = o.Hash
	entry.TheirsBlobHash = t.Hash
	return entry, &Conflict{
		Path:       p,
		Type:       ConflictContent,
		BaseHash:   b.Hash,
		OursHash:   o.Hash,
		TheirsHash: t.Hash,
	}, nil
}

// conflictEntry builds the staged record for a non-content conflict. The
// staged blob holds the best materializable view: markers for add/add text
// conflicts, the surviving side for deletes, our side for binary.
func (r *Repo) conflictEntry(p, kind string, b, o, t TreeFileEntry) (*StagingEntry, *Conflict, error) {
	var blobHash object.Hash
	mode := mergedMode(b.Mode, o.Mode, t.Mode)

	switch kind {
	case ConflictAddAdd:
		oursData, err := object.ReadBlob(r.Store, o.Hash)
		if err != nil {
			return nil, nil, err
		}
		theirsData, err := object.ReadBlob(r.Store, t.Hash)
		if err != nil {
			return nil, nil, err
		}
		if diff.IsBinary(oursData) || diff.IsBinary(theirsData) {
			kind = ConflictBinary
			blobHash = o.Hash
			break
		}
		res := diff3.Merge(nil, oursData, theirsData)
		blobHash, err = object.WriteBlob(r.Store, res.Merged)
		if err != nil {
			return nil, nil, err
		}
	case ConflictDeleteModify:
		if o.Hash != "" {
			blobHash = o.Hash
		} else {
			blobHash = t.Hash
		}
	case ConflictBinary:
		blobHash = o.Hash
	default:
		return nil, nil, fmt.Errorf("unknown conflict type %q", kind)
	}

	entry := &StagingEntry{
		Path:           p,
		BlobHash:       blobHash,
		Mode:           mode,
		Conflict:       true,
		ConflictType:   kind,
		BaseBlobHash:   b.Hash,
		OursBlobHash:   o.Hash,
		TheirsBlobHash: t.Hash,
	}
	return entry, &Conflict{
		Path:       p,
		Type:       kind,
		BaseHash:   b.Hash,
		OursHash:   o.Hash,
		TheirsHash: t.Hash,
	}, nil
}

func conflictPaths(conflicts []Conflict) []string {
	paths := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		paths = append(paths, c.Path)
	}
	return paths
}

func cleanEntry(p string, f TreeFileEntry) *StagingEntry {
	return &StagingEntry{Path: p, BlobHash: f.Hash, Mode: f.Mode}
}

// mergedMode prefers a side that changed the mode relative to base,
// defaulting to ours.
func mergedMode(base, ours, theirs string) string {
	if ours == "" {
		if theirs != "" {
			return theirs
		}
		return base
	}
	if ours == base && theirs != "" && theirs != base {
		return theirs
	}
	return ours
}

// materializeMerge writes the merged staging entries into the working tree
// and persists the staging area, conflict records included.
func (r *Repo) materializeMerge(stg *Staging) error {
	for path := range r.trackedFiles() {
		if _, keep := stg.Entries[path]; keep {
			continue
		}
		if err := r.removeWorktreeFile(path); err != nil {
			return err
		}
	}
	for _, e := range stg.Entries {
		if e.BlobHash == "" {
			continue
		}
		if err := r.writeWorktreeBlob(e.Path, e.BlobHash, e.Mode); err != nil {
			return err
		}
	}
	return r.WriteStaging(stg)
}

// commitMerge builds the merged tree, commits it with both parents, resets
// the working tree to match, and advances HEAD.
func (r *Repo) commitMerge(stg *Staging, oursHash, theirsHash object.Hash, author, message string) (object.Hash, error) {
	treeHash, err := r.BuildTree(stg)
	if err != nil {
		return "", err
	}
	parents := []object.Hash{oursHash}
	if theirsHash != "" && theirsHash != oursHash {
		parents = append(parents, theirsHash)
	}
	commitHash, err := r.writeCommitObj(treeHash, parents, author, message, nil)
	if err != nil {
		return "", err
	}
	if !r.Bare() {
		if err := r.resetWorktree(treeHash); err != nil {
			return "", err
		}
	}
	if err := r.advanceHead(commitHash, oursHash); err != nil {
		return "", err
	}
	return commitHash, nil
}

// verifyResolved checks that the previously conflicted paths have been
// re-staged without leftover conflict markers. A path absent from staging
// counts as resolved by deletion.
func (r *Repo) verifyResolved(stg *Staging, paths []string) error {
	var unresolved []string
	for _, p := range paths {
		e, ok := stg.Entries[p]
		if !ok {
			continue
		}
		if e.Conflict {
			unresolved = append(unresolved, p)
			continue
		}
		data, err := object.ReadBlob(r.Store, e.BlobHash)
		if err != nil {
			return fmt.Errorf("read staged blob %q: %w", p, err)
		}
		if !diff.IsBinary(data) && diff3.HasMarkers(data) {
			unresolved = append(unresolved, p)
		}
	}
	if len(unresolved) > 0 {
		sort.Strings(unresolved)
		return fmt.Errorf("%w: %s", ErrUnresolvedConflicts, strings.Join(unresolved, ", "))
	}
	return nil
}
