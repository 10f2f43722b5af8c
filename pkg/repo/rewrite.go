package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gritvcs/grit/pkg/object"
)

// Rewrite operation kinds persisted in the state file.
const (
	opMerge      = "merge"
	opCherryPick = "cherry-pick"
	opRebase     = "rebase"
	opRevert     = "revert"
)

var (
	ErrOperationInProgress   = errors.New("operation already in progress")
	ErrNoOperationInProgress = errors.New("no operation in progress")
)

// opState is the persisted pause/resume record for an in-flight merge or
// history rewrite. It lives at .grit/rewrite.json and is written
// atomically, so a crash mid-operation leaves either the previous state or
// the new one, never a torn file.
type opState struct {
	Kind       string        `json:"kind"`
	Todo       []object.Hash `json:"todo,omitempty"`
	Done       []object.Hash `json:"done,omitempty"`
	Current    object.Hash   `json:"current,omitempty"`
	OrigHead   object.Hash   `json:"orig_head"`
	BranchRef  string        `json:"branch_ref,omitempty"`
	TheirsHash object.Hash   `json:"theirs_hash,omitempty"`
	MergeRev   string        `json:"merge_rev,omitempty"`
	Author     string        `json:"author,omitempty"`
	NoCommit   bool          `json:"no_commit,omitempty"`
	Conflicted []string      `json:"conflicted,omitempty"`
	StartedAt  int64         `json:"started_at"`
}

// RewriteResult reports the outcome of a rewrite operation or a
// continue/skip step.
type RewriteResult struct {
	Kind       string
	NewCommits []object.Hash
	Conflicts  []Conflict
	Stopped    object.Hash // commit that hit conflicts, if any
	Done       bool
}

func (r *Repo) opStatePath() string {
	return filepath.Join(r.GritDir, "rewrite.json")
}

func (r *Repo) readOpState() (*opState, error) {
	data, err := os.ReadFile(r.opStatePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read rewrite state: %w", err)
	}
	var st opState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("read rewrite state: unmarshal: %w", err)
	}
	return &st, nil
}

func (r *Repo) writeOpState(st *opState) error {
	if st.StartedAt == 0 {
		st.StartedAt = time.Now().Unix()
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("write rewrite state: marshal: %w", err)
	}
	if err := atomicWriteFile(r.GritDir, r.opStatePath(), data); err != nil {
		return fmt.Errorf("write rewrite state: %w", err)
	}
	return nil
}

func (r *Repo) clearOpState() error {
	if err := os.Remove(r.opStatePath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear rewrite state: %w", err)
	}
	return nil
}

// OperationInProgress returns the kind of the pending merge or rewrite
// operation, or "" when none is pending.
func (r *Repo) OperationInProgress() (string, error) {
	st, err := r.readOpState()
	if err != nil {
		return "", err
	}
	if st == nil {
		return "", nil
	}
	return st.Kind, nil
}

// CherryPick applies the given revisions onto HEAD in order. On a conflict
// the operation pauses with persisted state; Continue, Skip, and Abort
// resume it. With noCommit the changes accumulate in the staging area and
// working tree without creating commits.
func (r *Repo) CherryPick(revs []string, author string, noCommit bool) (*RewriteResult, error) {
	st, err := r.beginRewrite(opCherryPick, revs, author)
	if err != nil {
		return nil, err
	}
	st.NoCommit = noCommit
	return r.runTodo(st, nil)
}

// Revert applies the inverse of the given revisions onto HEAD in order,
// pausing on conflicts like CherryPick.
func (r *Repo) Revert(revs []string, author string, noCommit bool) (*RewriteResult, error) {
	st, err := r.beginRewrite(opRevert, revs, author)
	if err != nil {
		return nil, err
	}
	st.NoCommit = noCommit
	return r.runTodo(st, nil)
}

func (r *Repo) beginRewrite(kind string, revs []string, author string) (*opState, error) {
	if st, _ := r.readOpState(); st != nil {
		return nil, fmt.Errorf("%s: %w (%s)", kind, ErrOperationInProgress, st.Kind)
	}
	if err := r.ensureClean(); err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	if len(revs) == 0 {
		return nil, fmt.Errorf("%s: no revisions given", kind)
	}

	head, err := r.ResolveRef("HEAD")
	if err != nil {
		return nil, fmt.Errorf("%s: resolve HEAD: %w", kind, err)
	}

	todo := make([]object.Hash, 0, len(revs))
	for _, rev := range revs {
		h, err := r.ResolveCommit(rev)
		if err != nil {
			return nil, fmt.Errorf("%s: resolve %q: %w", kind, rev, err)
		}
		todo = append(todo, h)
	}

	return &opState{
		Kind:     kind,
		Todo:     todo,
		OrigHead: head,
		Author:   author,
	}, nil
}

// Rebase replays the current branch's commits since its merge base with
// upstream, on top of onto, then moves the branch ref. An empty onto
// replays onto upstream itself. HEAD detaches during the replay and
// re-attaches when the rebase finishes.
func (r *Repo) Rebase(upstreamRev, ontoRev, author string) (*RewriteResult, error) {
	if st, _ := r.readOpState(); st != nil {
		return nil, fmt.Errorf("rebase: %w (%s)", ErrOperationInProgress, st.Kind)
	}
	if err := r.ensureClean(); err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}

	branch, err := r.CurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}
	if branch == "" {
		return nil, fmt.Errorf("rebase: HEAD is detached")
	}
	branchRef := "refs/heads/" + branch

	head, err := r.ResolveRef(branchRef)
	if err != nil {
		return nil, fmt.Errorf("rebase: resolve %q: %w", branchRef, err)
	}
	upstreamHash, err := r.ResolveCommit(upstreamRev)
	if err != nil {
		return nil, fmt.Errorf("rebase: resolve %q: %w", upstreamRev, err)
	}
	ontoHash := upstreamHash
	if ontoRev != "" {
		if ontoHash, err = r.ResolveCommit(ontoRev); err != nil {
			return nil, fmt.Errorf("rebase: resolve --onto %q: %w", ontoRev, err)
		}
	}

	base, err := r.FindMergeBase(head, upstreamHash)
	if err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}
	if base == head && ontoHash == upstreamHash {
		// Branch is behind onto: fast-forward in place.
		if err := r.UpdateRefCAS(branchRef, ontoHash, head); err != nil {
			return nil, fmt.Errorf("rebase: fast-forward: %w", err)
		}
		ontoTree, err := r.commitTreeHash(ontoHash)
		if err != nil {
			return nil, fmt.Errorf("rebase: %w", err)
		}
		if err := r.resetWorktree(ontoTree); err != nil {
			return nil, fmt.Errorf("rebase: %w", err)
		}
		return &RewriteResult{Kind: opRebase, NewCommits: []object.Hash{ontoHash}, Done: true}, nil
	}
	if base == upstreamHash && ontoHash == upstreamHash {
		return &RewriteResult{Kind: opRebase, Done: true}, nil
	}

	todo, err := r.commitsSince(head, base)
	if err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}
	if len(todo) == 0 {
		if ontoHash == upstreamHash || ontoHash == head {
			return &RewriteResult{Kind: opRebase, Done: true}, nil
		}
		// Nothing to replay but an explicit replay root: move the branch.
		if err := r.UpdateRefCAS(branchRef, ontoHash, head); err != nil {
			return nil, fmt.Errorf("rebase: %w", err)
		}
		ontoTree, err := r.commitTreeHash(ontoHash)
		if err != nil {
			return nil, fmt.Errorf("rebase: %w", err)
		}
		if err := r.resetWorktree(ontoTree); err != nil {
			return nil, fmt.Errorf("rebase: %w", err)
		}
		return &RewriteResult{Kind: opRebase, NewCommits: []object.Hash{ontoHash}, Done: true}, nil
	}

	// Detach HEAD at onto and replay from there.
	ontoTree, err := r.commitTreeHash(ontoHash)
	if err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}
	if err := r.setDetachedHead(ontoHash); err != nil {
		return nil, fmt.Errorf("rebase: detach HEAD: %w", err)
	}
	if err := r.resetWorktree(ontoTree); err != nil {
		return nil, fmt.Errorf("rebase: %w", err)
	}

	st := &opState{
		Kind:      opRebase,
		Todo:      todo,
		OrigHead:  head,
		BranchRef: branchRef,
		Author:    author,
	}
	return r.runTodo(st, nil)
}

// commitsSince returns the first-parent commits reachable from head but
// not from base, oldest first.
func (r *Repo) commitsSince(head, base object.Hash) ([]object.Hash, error) {
	baseSet := map[object.Hash]struct{}{}
	if base != "" {
		set, err := r.commitAncestors(base)
		if err != nil {
			return nil, err
		}
		baseSet = set
	}

	var chain []object.Hash
	current := head
	for current != "" {
		if _, inBase := baseSet[current]; inBase {
			break
		}
		c, err := object.ReadCommit(r.Store, current)
		if err != nil {
			return nil, fmt.Errorf("read commit %s: %w", current, err)
		}
		chain = append(chain, current)
		if len(c.Parents) == 0 {
			break
		}
		current = c.Parents[0]
	}

	// Reverse into oldest-first replay order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// runTodo replays the state's pending commits onto HEAD one at a time,
// persisting the state and stopping when a step conflicts. newCommits
// carries hashes already created by earlier steps of a resumed run.
func (r *Repo) runTodo(st *opState, newCommits []object.Hash) (*RewriteResult, error) {
	for len(st.Todo) > 0 {
		st.Current = st.Todo[0]
		st.Todo = st.Todo[1:]

		stg, conflicts, err := r.applyStep(st, st.Current)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", st.Kind, err)
		}

		if len(conflicts) > 0 {
			if err := r.materializeMerge(stg); err != nil {
				return nil, fmt.Errorf("%s: %w", st.Kind, err)
			}
			st.Conflicted = conflictPaths(conflicts)
			if err := r.writeOpState(st); err != nil {
				return nil, err
			}
			return &RewriteResult{
				Kind:       st.Kind,
				NewCommits: newCommits,
				Conflicts:  conflicts,
				Stopped:    st.Current,
			}, nil
		}

		if st.NoCommit {
			if err := r.materializeMerge(stg); err != nil {
				return nil, fmt.Errorf("%s: %w", st.Kind, err)
			}
			st.Done = append(st.Done, st.Current)
			st.Current = ""
			st.Conflicted = nil
			continue
		}

		commitHash, err := r.commitStep(st, st.Current, stg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", st.Kind, err)
		}
		newCommits = append(newCommits, commitHash)
		st.Done = append(st.Done, st.Current)
		st.Current = ""
		st.Conflicted = nil
	}

	if err := r.finishRewrite(st); err != nil {
		return nil, err
	}
	return &RewriteResult{Kind: st.Kind, NewCommits: newCommits, Done: true}, nil
}

// applyStep computes the three-way merge for one replayed commit. For
// cherry-pick and rebase the change is the commit against its first
// parent; for revert the direction flips.
func (r *Repo) applyStep(st *opState, hash object.Hash) (*Staging, []Conflict, error) {
	c, err := object.ReadCommit(r.Store, hash)
	if err != nil {
		return nil, nil, fmt.Errorf("read commit %s: %w", hash, err)
	}

	var parentHash object.Hash
	if len(c.Parents) > 0 {
		parentHash = c.Parents[0]
	}
	parentTree, err := r.commitTreeHash(parentHash)
	if err != nil {
		return nil, nil, err
	}

	head, err := r.ResolveRef("HEAD")
	if err != nil {
		return nil, nil, fmt.Errorf("resolve HEAD: %w", err)
	}
	oursTree, err := r.commitTreeHash(head)
	if err != nil {
		return nil, nil, err
	}
	if st.NoCommit {
		// Accumulated staged changes are the effective ours side.
		stg, err := r.ReadStaging()
		if err != nil {
			return nil, nil, err
		}
		if len(stg.Entries) > 0 {
			oursTree, err = r.BuildTree(stg)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	baseTree := parentTree
	theirsTree := c.TreeHash
	if st.Kind == opRevert {
		baseTree, theirsTree = c.TreeHash, parentTree
	}

	return r.MergeTrees(baseTree, oursTree, theirsTree)
}

// commitStep commits one cleanly applied replay step, preserving the
// original author for cherry-pick and rebase.
func (r *Repo) commitStep(st *opState, hash object.Hash, stg *Staging) (object.Hash, error) {
	orig, err := object.ReadCommit(r.Store, hash)
	if err != nil {
		return "", fmt.Errorf("read commit %s: %w", hash, err)
	}

	head, err := r.ResolveRef("HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}

	treeHash, err := r.BuildTree(stg)
	if err != nil {
		return "", err
	}

	committer := st.Author
	if strings.TrimSpace(committer) == "" {
		committer = r.defaultIdentity()
	}

	commitObj := &object.CommitObj{
		TreeHash:      treeHash,
		Parents:       []object.Hash{head},
		Committer:     committer,
		CommitterTime: time.Now().Unix(),
	}
	if st.Kind == opRevert {
		commitObj.Author = committer
		commitObj.AuthorTime = commitObj.CommitterTime
		commitObj.Message = revertMessage(orig, hash)
	} else {
		commitObj.Author = orig.Author
		commitObj.AuthorTime = orig.AuthorTime
		commitObj.Message = orig.Message
	}

	commitHash, err := object.WriteCommit(r.Store, commitObj)
	if err != nil {
		return "", fmt.Errorf("write commit: %w", err)
	}

	if !r.Bare() {
		if err := r.resetWorktree(treeHash); err != nil {
			return "", err
		}
	}
	if err := r.advanceHead(commitHash, head); err != nil {
		return "", err
	}
	return commitHash, nil
}

func revertMessage(orig *object.CommitObj, hash object.Hash) string {
	subject := orig.Message
	if i := strings.IndexByte(subject, '\n'); i >= 0 {
		subject = subject[:i]
	}
	return fmt.Sprintf("Revert %q\n\nThis reverts commit %s.", subject, hash)
}

// finishRewrite completes a drained todo list: a rebase moves the branch
// ref to the replayed tip and re-attaches HEAD, everything else just
// clears the state file.
func (r *Repo) finishRewrite(st *opState) error {
	if st.Kind == opRebase {
		tip, err := r.ResolveRef("HEAD")
		if err != nil {
			return fmt.Errorf("rebase: resolve HEAD: %w", err)
		}
		if err := r.UpdateRefCAS(st.BranchRef, tip, st.OrigHead); err != nil {
			return fmt.Errorf("rebase: move %q: %w", st.BranchRef, err)
		}
		if err := r.SetSymbolicRef("HEAD", st.BranchRef); err != nil {
			return fmt.Errorf("rebase: reattach HEAD: %w", err)
		}
	}
	return r.clearOpState()
}

// Continue resumes a paused operation after the user has resolved and
// re-staged the conflicted paths.
func (r *Repo) Continue() (*RewriteResult, error) {
	st, err := r.readOpState()
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrNoOperationInProgress
	}

	stg, err := r.ReadStaging()
	if err != nil {
		return nil, fmt.Errorf("%s --continue: %w", st.Kind, err)
	}
	if err := r.verifyResolved(stg, st.Conflicted); err != nil {
		return nil, fmt.Errorf("%s --continue: %w", st.Kind, err)
	}

	if st.Kind == opMerge {
		hash, err := r.commitMerge(stg, st.OrigHead, st.TheirsHash, st.Author,
			fmt.Sprintf("Merge %s", st.MergeRev))
		if err != nil {
			return nil, fmt.Errorf("merge --continue: %w", err)
		}
		if err := r.clearOpState(); err != nil {
			return nil, err
		}
		return &RewriteResult{Kind: opMerge, NewCommits: []object.Hash{hash}, Done: true}, nil
	}

	// Commit the step that was paused, then drain the rest of the todo.
	var newCommits []object.Hash
	if st.Current != "" {
		if st.NoCommit {
			if err := r.materializeMerge(stg); err != nil {
				return nil, fmt.Errorf("%s --continue: %w", st.Kind, err)
			}
		} else {
			commitHash, err := r.commitStep(st, st.Current, stg)
			if err != nil {
				return nil, fmt.Errorf("%s --continue: %w", st.Kind, err)
			}
			newCommits = append(newCommits, commitHash)
		}
		st.Done = append(st.Done, st.Current)
		st.Current = ""
		st.Conflicted = nil
	}
	return r.runTodo(st, newCommits)
}

// Skip abandons the currently conflicted step and resumes the remaining
// todo list.
func (r *Repo) Skip() (*RewriteResult, error) {
	st, err := r.readOpState()
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrNoOperationInProgress
	}
	if st.Kind == opMerge {
		return nil, fmt.Errorf("merge: cannot skip, use --abort or resolve conflicts")
	}

	head, err := r.ResolveRef("HEAD")
	if err != nil {
		return nil, fmt.Errorf("%s --skip: resolve HEAD: %w", st.Kind, err)
	}
	headTree, err := r.commitTreeHash(head)
	if err != nil {
		return nil, fmt.Errorf("%s --skip: %w", st.Kind, err)
	}
	if err := r.resetWorktree(headTree); err != nil {
		return nil, fmt.Errorf("%s --skip: %w", st.Kind, err)
	}

	st.Current = ""
	st.Conflicted = nil
	return r.runTodo(st, nil)
}

// Abort cancels the pending operation and restores the pre-operation
// state: the working tree, the staging area, and for rewrites that had
// already advanced HEAD, the original head commit.
func (r *Repo) Abort() error {
	st, err := r.readOpState()
	if err != nil {
		return err
	}
	if st == nil {
		return ErrNoOperationInProgress
	}

	origTree, err := r.commitTreeHash(st.OrigHead)
	if err != nil {
		return fmt.Errorf("%s --abort: %w", st.Kind, err)
	}

	switch st.Kind {
	case opMerge:
		// HEAD never moved; only the worktree and index did.
	case opRebase:
		if err := r.SetSymbolicRef("HEAD", st.BranchRef); err != nil {
			return fmt.Errorf("rebase --abort: reattach HEAD: %w", err)
		}
	default:
		// Cherry-pick or revert may have created commits on the branch.
		head, err := r.ResolveRef("HEAD")
		if err != nil {
			return fmt.Errorf("%s --abort: resolve HEAD: %w", st.Kind, err)
		}
		if head != st.OrigHead {
			if err := r.advanceHead(st.OrigHead, head); err != nil {
				return fmt.Errorf("%s --abort: %w", st.Kind, err)
			}
		}
	}

	if err := r.resetWorktree(origTree); err != nil {
		return fmt.Errorf("%s --abort: %w", st.Kind, err)
	}
	return r.clearOpState()
}

// RewriteStatus describes the pending operation for status output.
type RewriteStatus struct {
	Kind       string
	Current    object.Hash
	Remaining  int
	Conflicted []string
}

// PendingOperation returns details of the paused operation, or nil.
func (r *Repo) PendingOperation() (*RewriteStatus, error) {
	st, err := r.readOpState()
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, nil
	}
	conflicted := append([]string(nil), st.Conflicted...)
	sort.Strings(conflicted)
	return &RewriteStatus{
		Kind:       st.Kind,
		Current:    st.Current,
		Remaining:  len(st.Todo),
		Conflicted: conflicted,
	}, nil
}

// rewriteStateHashes returns the commit hashes referenced by a pending
// operation so the garbage collector treats them as roots.
func (r *Repo) rewriteStateHashes() ([]object.Hash, error) {
	st, err := r.readOpState()
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, nil
	}
	var hashes []object.Hash
	hashes = append(hashes, st.Todo...)
	hashes = append(hashes, st.Done...)
	if st.Current != "" {
		hashes = append(hashes, st.Current)
	}
	if st.OrigHead != "" {
		hashes = append(hashes, st.OrigHead)
	}
	if st.TheirsHash != "" {
		hashes = append(hashes, st.TheirsHash)
	}
	return hashes, nil
}
